package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kura/internal/logs"
)

const logFollowWait = time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var job string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the kura log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Job: job}
			if lines <= 0 {
				opts.Offset = 0
				opts.Limit = 0
			}
			printed := false
			for {
				result, err := logs.Tail(runCtx, cfg.LogPath(), opts)
				if err != nil {
					if errors.Is(err, runCtx.Err()) {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, record := range result.Records {
					fmt.Fprintln(out, record)
					printed = true
				}
				if !follow {
					if !printed {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: logFollowWait, Job: job}
				if runCtx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of records to show (0 for all)")
	cmd.Flags().StringVar(&job, "job", "", "Only show records for this job ID or prefix")
	return cmd
}
