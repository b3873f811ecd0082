package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"promptman/internal/rules"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"prompts"},
		Short:   "Manage expansion rules",
	}
	cmd.AddCommand(
		newRulesListCmd(a),
		newRulesAddCmd(a),
		newRulesDeleteCmd(a),
		newRulesImportCmd(a),
		newRulesExportCmd(a),
	)
	return cmd
}

func newRulesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TRIGGER\tTEXT")
			for _, r := range store.Snapshot() {
				fmt.Fprintf(w, "%s\t%s\n", r.Trigger(), summarize(r.Text, 60))
			}
			return w.Flush()
		},
	}
}

func newRulesAddCmd(a *app) *cobra.Command {
	var prepend, postpend string
	cmd := &cobra.Command{
		Use:   "add <shortcut> <text>",
		Short: "Add or replace a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			r := rules.Rule{Shortcut: args[0], Prepend: prepend, Postpend: postpend, Text: args[1]}
			if err := store.Add(r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", r.Trigger())
			return nil
		},
	}
	cmd.Flags().StringVar(&prepend, "prepend", "", "text required before the shortcut")
	cmd.Flags().StringVar(&postpend, "postpend", "", "text required after the shortcut")
	return cmd
}

func newRulesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <shortcut>",
		Aliases: []string{"rm"},
		Short:   "Delete a rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newRulesImportCmd(a *app) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from a prompts.json file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			incoming, err := rules.DecodeMap(data)
			if err != nil {
				return err
			}

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if replace {
				if err := store.Replace(incoming); err != nil {
					return err
				}
			} else {
				for _, r := range incoming {
					if err := store.Add(r); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rules, %d total\n", len(incoming), store.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace every existing rule")
	return cmd
}

func newRulesExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write rules as prompts.json to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			data, err := rules.EncodeMap(store.Snapshot())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

// summarize shortens s to one line of at most n runes.
func summarize(s string, n int) string {
	out := make([]rune, 0, n)
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		if len(out) == n {
			return string(out[:n-1]) + "…"
		}
		out = append(out, r)
	}
	return string(out)
}
