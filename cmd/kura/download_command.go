package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kura/internal/catalog"
	"kura/internal/config"
)

type sessionFlags struct {
	wifiOnly        bool
	requireCharging bool
	metricsAddr     string
	quiet           bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.wifiOnly, "wifi-only", false, "Only download while connected to Wi-Fi")
	cmd.Flags().BoolVar(&f.requireCharging, "require-charging", false, "Only download while on external power")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides [metrics].listen)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only print the final summary")
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "download <catalog>",
		Short: "Download every image referenced by a catalog export",
		Long: "Parse a JSON or XML catalog export, queue one job per entry that has an image URL,\n" +
			"and run them until every job has finished. Entries already tracked are not queued again.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, skipped, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if skipped > 0 {
				fmt.Fprintf(out, "Skipping %d entr%s without an image URL\n", skipped, plural(skipped, "y", "ies"))
			}
			if len(entries) == 0 {
				return errors.New("catalog has no downloadable entries")
			}
			return runSession(cmd, ctx, entries, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Run unfinished jobs left by an interrupted or retried session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, ctx, nil, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func loadCatalog(path string) ([]catalog.Entry, int, error) {
	resolved, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return nil, 0, fmt.Errorf("resolve catalog path: %w", err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, 0, fmt.Errorf("read catalog: %w", err)
	}
	entries, err := catalog.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	keep, skipped := catalog.Downloadable(entries)
	return keep, skipped, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
