package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kura/internal/queue"
	"kura/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage download preferences (" + strings.Join(settings.Keys(), ", ") + ")",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _, err := settings.Normalize(args[0], "false")
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				value, ok, err := settings.NewSQLite(store).Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !ok {
					value = "(unset; config default applies)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <true|false>",
		Short: "Store one preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				if err := settings.Put(cmd.Context(), settings.NewSQLite(store), args[0], args[1]); err != nil {
					return err
				}
				key, value, _ := settings.Normalize(args[0], args[1])
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
				return nil
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				values, err := settings.NewSQLite(store).All(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(settings.Keys()))
				for _, key := range settings.Keys() {
					value, ok := values[key]
					if !ok {
						value = "(unset)"
					}
					rows = append(rows, []string{key, value})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
				return nil
			})
		},
	})

	return settingsCmd
}
