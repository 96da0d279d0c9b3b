package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/pkg/browser"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
			if err := store.Migrate(a.cfg.DBPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date\n", a.cfg.DBPath)
			return nil
		},
	}
}

// newWatchCmd creates the watch subcommand.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <video-id>",
		Short: "Open a video in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := browser.OpenVideo(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opening %s\n", args[0])
			return nil
		},
	}
}
