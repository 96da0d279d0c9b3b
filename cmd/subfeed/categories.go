package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/display"
)

// newCategoriesCmd creates the categories subcommand tree.
func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Organise channels into categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories and their channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			interests, err := prefs.Interests(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatCategories(*interests))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			cat, err := prefs.AddCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %s (%s)\n", cat.Name, cat.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <category-id> <name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			if err := prefs.RenameCategory(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed category %s to %s\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <category-id>",
		Short: "Remove a category; its channels move to the default category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			if err := prefs.RemoveCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed category %s\n", args[0])
			return nil
		},
	})

	return cmd
}
