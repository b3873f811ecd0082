package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"promptman/internal/ui"
)

func newUICmd(a *app) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the settings page of the running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfgMgr.Get()
			if !cfg.General.APIEnabled {
				return errors.New("the API server is disabled; set api_enabled in the config")
			}
			target := ui.URL(cfg.General.APIPort, cfg.General.APIToken)
			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			}
			return ui.OpenBrowser(target)
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the URL instead of opening a browser")
	return cmd
}
