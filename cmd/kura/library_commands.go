package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kura/internal/catalog"
	"kura/internal/config"
	"kura/internal/download"
	"kura/internal/fetch"
	"kura/internal/metadata"
	"kura/internal/organizer"
)

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List library folders with image counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			folders, err := ctx.organizer().ListFolders()
			if err != nil {
				return fmt.Errorf("scan library: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd, folders)
			}
			out := cmd.OutOrStdout()
			if len(folders) == 0 {
				fmt.Fprintln(out, "Library is empty")
				return nil
			}
			root := ctx.configValue().Paths.LibraryRoot
			rows := make([][]string, 0, len(folders)+1)
			for _, f := range folders {
				rel, err := filepath.Rel(root, f.Path)
				if err != nil {
					rel = f.Path
				}
				rows = append(rows, []string{rel, f.Kind.String(), yesNo(f.Sensitive), strconv.Itoa(f.ImageCount)})
			}
			rows = append(rows, []string{"Total", "", "", strconv.Itoa(organizer.TotalImages(folders))})
			fmt.Fprintln(out, renderTable(
				[]string{"Folder", "Kind", "Sensitive", "Images"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove empty library folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, idle, err := ctx.tryRunnerLock()
			if err != nil {
				return err
			}
			if !idle {
				return errRunnerActive
			}
			defer lock.Unlock()

			result := ctx.organizer().Cleanup(cmd.Context())
			out := cmd.OutOrStdout()
			for _, dir := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", dir)
			}
			fmt.Fprintf(out, "Removed %d empty folder(s)\n", len(result.Removed))
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", e.Path, e.Error)
				}
				return fmt.Errorf("%d folder(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Show the catalog metadata embedded in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			codec := metadata.NewCodec(ctx.configValue().Metadata.Software)
			report, err := codec.Verify(path)
			if err != nil {
				return fmt.Errorf("read metadata: %w", err)
			}
			record, recErr := metadata.ReadRecord(path)

			if jsonOut {
				view := inspectView{Path: path, Description: report.Description, HasRecord: report.Record}
				if recErr == nil {
					view.Record = &record
				}
				return writeJSON(cmd, view)
			}

			rows := [][2]string{{"File", path}}
			for _, tag := range []string{metadata.TagDescription, metadata.TagSoftware, metadata.TagKind, metadata.TagGenres} {
				rows = append(rows, [2]string{tag, report.Tags[tag]})
			}
			if recErr == nil {
				rows = append(rows,
					[2]string{"id", idString(record.ID)},
					[2]string{"title", record.Title},
					[2]string{"image url", record.ImageURL},
					[2]string{"processed", record.ProcessedAt.Local().Format("2006-01-02 15:04:05")},
				)
			} else {
				rows = append(rows, [2]string{"record", "missing (" + recErr.Error() + ")"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(rows))
			if !report.OK() {
				return errors.New("metadata incomplete")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

type inspectView struct {
	Path        string           `json:"path"`
	Description bool             `json:"description"`
	HasRecord   bool             `json:"hasRecord"`
	Record      *metadata.Record `json:"record,omitempty"`
}

func idString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "classify <catalog>",
		Short: "Show where each catalog entry would be filed, without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			entries, err := catalog.Parse(data)
			if err != nil {
				return err
			}

			org := ctx.organizer()
			classifier := org.Classifier()
			root := org.Root()
			views := make([]classifyView, 0, len(entries))
			for _, e := range entries {
				target := org.Target(e)
				folder, err := filepath.Rel(root, target.Path)
				if err != nil {
					folder = target.Path
				}
				name := ""
				if strings.TrimSpace(e.ImageURL) != "" {
					name = download.FileName(e, fetch.Extension(e.ImageURL, ""))
				}
				views = append(views, classifyView{
					ID:     e.IDString(),
					Title:  e.DisplayTitle(),
					Kind:   target.Kind.String(),
					Rating: classifier.Rate(e).String(),
					Folder: folder,
					File:   name,
				})
			}
			if jsonOut {
				return writeJSON(cmd, views)
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				file := v.File
				if file == "" {
					file = "(no image url)"
				}
				rows = append(rows, []string{v.ID, v.Title, v.Kind, v.Rating, v.Folder, file})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Entry", "Title", "Kind", "Rating", "Folder", "File"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

type classifyView struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	Rating string `json:"rating"`
	Folder string `json:"folder"`
	File   string `json:"file,omitempty"`
}
