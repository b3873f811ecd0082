package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"promptman/internal/autostart"
)

func newAutostartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Control starting at login",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start promptman at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := autostart.Enable(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Start at login enabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop starting promptman at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := autostart.Disable(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Start at login disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether promptman starts at login",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				state := "disabled"
				if autostart.IsEnabled() {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Start at login %s\n", state)
			},
		},
	)
	return cmd
}
