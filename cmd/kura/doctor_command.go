package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kura/internal/notifications"
	"kura/internal/preflight"
	"kura/internal/queue"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var repair, testNotify bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the job database, privacy markers and host constraints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			org := ctx.organizer()

			if repair {
				missing, err := org.Audit()
				if err != nil {
					return fmt.Errorf("audit privacy markers: %w", err)
				}
				written, err := org.Repair(missing)
				if err != nil {
					return fmt.Errorf("repair privacy markers: %w", err)
				}
				fmt.Fprintf(out, "Restored %d privacy marker(s)\n", written)
			}

			return ctx.withStore(func(store *queue.Store) error {
				results := preflight.RunAll(cmd.Context(), cfg, store, org)
				for _, line := range renderSectionHeader("Checks", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					fmt.Fprintln(out, renderResult(r, statusError, colorize))
				}

				for _, line := range renderSectionHeader("Host", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range preflight.HostStatus(cfg) {
					fmt.Fprintln(out, renderResult(r, statusWarn, colorize))
				}

				if testNotify {
					for _, line := range renderSectionHeader("Notifications", colorize) {
						fmt.Fprintln(out, line)
					}
					fmt.Fprintln(out, renderResult(notifyResult(cmd, cfg.Notifications.NtfyTopic, notifications.NewService(cfg)), statusError, colorize))
				}

				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d check(s) failed", len(failed))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Restore missing privacy markers before checking")
	cmd.Flags().BoolVar(&testNotify, "test-notify", false, "Send a test message to the configured ntfy topic")
	return cmd
}

func notifyResult(cmd *cobra.Command, topic string, svc notifications.Service) preflight.Result {
	result := preflight.Result{Name: "ntfy"}
	if topic == "" {
		result.Passed = true
		result.Detail = "Disabled (notifications.ntfy_topic unset)"
		return result
	}
	if err := svc.TestNotification(cmd.Context()); err != nil {
		result.Detail = err.Error()
		return result
	}
	result.Passed = true
	result.Detail = "Test message sent to " + topic
	return result
}
