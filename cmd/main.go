// promptman expands typed shortcuts into saved text system-wide and sends
// rough prompts to Gemini for rewriting.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptman/internal/config"
	"promptman/internal/logging"
)

var version = "0.3.0"

func init() {
	// The tray and the macOS event tap need the main thread.
	runtime.LockOSThread()
}

// app carries what every subcommand loads before running.
type app struct {
	configPath string
	cfgMgr     *config.Manager
	log        *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var noTray bool

	root := &cobra.Command{
		Use:           "promptman",
		Short:         "System-wide text expansion with Gemini prompt enhancement",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runService(cmd.Context(), !noTray)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (.toml, .yaml or .json; default is the per-user config.toml)")
	root.Flags().BoolVar(&noTray, "no-tray", false, "run without the tray icon")

	root.AddCommand(
		newRunCmd(a),
		newRulesCmd(a),
		newAutostartCmd(a),
		newUICmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads the .env file, the config and the logger.
func (a *app) init() error {
	mgr, err := config.NewManager(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := config.LoadEnv(mgr.EnvPath()); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := mgr.Load(); err != nil {
		return err
	}
	if custom := mgr.Get().Rewriter.EnvFile; custom != "" {
		if err := config.LoadEnv(custom); err != nil {
			return fmt.Errorf("load %s: %w", custom, err)
		}
	}

	log, err := logging.New(mgr.Get().Logging)
	if err != nil {
		return err
	}
	a.cfgMgr = mgr
	a.log = log
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var noTray bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the background service (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runService(cmd.Context(), !noTray)
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the tray icon")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptman version %s\n", version)
		},
	}
}
