// Package main provides the subfeed CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	dbPath     string

	cfg *config.Config
}

// newRootCmd creates the root command for subfeed CLI.
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "subfeed",
		Short: "One newest-first feed of your YouTube subscriptions",
		Long: "Subfeed merges the uploads of the YouTube channels you follow into a single " +
			"newest-first feed, skipping Shorts, and keeps your channels organised in categories.",
		Version:      buildVersion(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.SetVersionTemplate("subfeed version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default "+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to the preference database")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newFeedCmd(a))
	rootCmd.AddCommand(newChannelsCmd(a))
	rootCmd.AddCommand(newCategoriesCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd(a))

	return rootCmd
}

// load reads the configuration, applies global flag overrides and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = a.dbPath
	}
	if err := configureLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Print the configuration subfeed would run with, after the config file, .env and environment are applied. Secrets are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.configPath != "" {
				fmt.Fprintf(out, "# Config file: %s\n", a.configPath)
			}
			if err := a.cfg.Write(out); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			return nil
		},
	}
}
