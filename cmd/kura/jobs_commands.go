package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kura/internal/organizer"
	"kura/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize tracked jobs and library folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				folders, err := ctx.organizer().ListFolders()
				if err != nil {
					return fmt.Errorf("scan library: %w", err)
				}
				lock, idle, err := ctx.tryRunnerLock()
				if err != nil {
					return err
				}
				if idle {
					_ = lock.Unlock()
				}

				if jsonOut {
					return writeJSON(cmd, statusView{
						Jobs:          stats,
						SuccessRate:   stats.SuccessRate(),
						Folders:       len(folders),
						Images:        organizer.TotalImages(folders),
						SessionActive: !idle,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Jobs", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderDownloadStatus(stats))
				for _, line := range renderSectionHeader("Library", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Library root", statusInfo, ctx.configValue().Paths.LibraryRoot, colorize))
				fmt.Fprintln(out, renderStatusLine("Folders", statusInfo, strconv.Itoa(len(folders)), colorize))
				fmt.Fprintln(out, renderStatusLine("Images", statusInfo, strconv.Itoa(organizer.TotalImages(folders)), colorize))
				session := renderStatusLine("Download session", statusInfo, "Idle", colorize)
				if !idle {
					session = renderStatusLine("Download session", statusOK, "Running", colorize)
				}
				fmt.Fprintln(out, session)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

type statusView struct {
	Jobs          queue.DownloadStatus `json:"jobs"`
	SuccessRate   float64              `json:"successRate"`
	Folders       int                  `json:"folders"`
	Images        int                  `json:"images"`
	SessionActive bool                 `json:"sessionActive"`
}

func renderDownloadStatus(s queue.DownloadStatus) string {
	rows := [][]string{
		{"Queued", strconv.Itoa(s.Queued)},
		{"Running", strconv.Itoa(s.Running)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Cancelled", strconv.Itoa(s.Cancelled)},
		{"Total", strconv.Itoa(s.Total)},
		{"Success rate", fmt.Sprintf("%.0f%%", s.SuccessRate()*100)},
	}
	return renderTable([]string{"State", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight})
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List tracked jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.Status
			for _, raw := range statusFilters {
				status, err := queue.ParseStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderJobsTable(jobs, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (queued, running, succeeded, failed, cancelled)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderJobsTable(jobs []queue.Job, colorize bool) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		detail := j.StatusText
		if j.Status == queue.StatusFailed && j.LastError != "" {
			detail = j.LastError
		}
		if j.Status == queue.StatusSucceeded && j.ResultPath != "" {
			detail = j.ResultPath
		}
		rows = append(rows, []string{
			shortID(j.ID),
			j.Entry.IDString(),
			j.Entry.DisplayTitle(),
			renderJobStatus(j.Status, colorize),
			strconv.Itoa(j.Attempt),
			fmt.Sprintf("%d%%", j.Progress),
			j.UpdatedAt.Local().Format(time.DateTime),
			detail,
		})
	}
	return renderTable(
		[]string{"Job", "Entry", "Title", "Status", "Attempt", "Progress", "Updated", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Queue every failed job for a new attempt",
		Long:  "Failed jobs go back to queued with the same ID and an incremented attempt number.\nRun kura resume to process them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withExclusiveStore(func(c context.Context, store *queue.Store) error {
				n, err := store.RetryFailed(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if n == 0 {
					fmt.Fprintln(out, "No failed jobs")
					return nil
				}
				fmt.Fprintf(out, "Queued %d failed job(s) for retry; run kura resume to download them\n", n)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "cancel [job-id...]",
		Short: "Cancel queued or running jobs",
		Long: "Cancel jobs by ID or unique ID prefix, or every unfinished job with --all.\n" +
			"While a download session runs, the request is picked up within a second.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass job IDs or --all")
			}
			return ctx.withStore(func(store *queue.Store) error {
				c := cmd.Context()
				var ids []string
				for _, arg := range args {
					id, err := store.ResolveID(c, strings.TrimSpace(arg))
					if err != nil {
						return fmt.Errorf("%s: %w", arg, err)
					}
					ids = append(ids, id)
				}

				lock, idle, err := ctx.tryRunnerLock()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if idle {
					defer lock.Unlock()
					n, err := store.MarkCancelled(c, ids)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cancelled %d job(s)\n", n)
					return nil
				}
				n, err := store.RequestCancel(c, ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Requested cancellation of %d job(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Cancel every unfinished job")
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget finished jobs so their entries can be downloaded again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withExclusiveStore(func(c context.Context, store *queue.Store) error {
				n, err := store.ClearTerminal(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished job(s)\n", n)
				return nil
			})
		},
	}
}
