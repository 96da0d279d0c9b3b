package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/display"
	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

const lookupTimeout = 30 * time.Second

// newChannelsCmd creates the channels subcommand tree.
func newChannelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage subscribed channels",
	}

	cmd.AddCommand(newChannelsListCmd(a))
	cmd.AddCommand(newChannelsAddCmd(a))
	cmd.AddCommand(newChannelsRemoveCmd(a))
	cmd.AddCommand(newChannelsSearchCmd(a))

	return cmd
}

func newChannelsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribed channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			channels, err := prefs.ListChannels(cmd.Context())
			if err != nil {
				return err
			}
			if len(channels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channels subscribed.")
				return nil
			}

			f := display.NewTerminalFormatter()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ch := range channels {
				fmt.Fprintf(w, "%s\t%s\tadded %s\n", ch.ID, f.TruncateText(ch.Title, 50), f.FormatTimestamp(ch.AddedAt))
			}
			return w.Flush()
		},
	}
}

func newChannelsAddCmd(a *app) *cobra.Command {
	var title string
	var category string

	cmd := &cobra.Command{
		Use:   "add <channel-id>",
		Short: "Subscribe to a channel",
		Long:  "Subscribe to a channel. Without --title the channel title is looked up on YouTube when an API key is configured.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := store.Channel{ID: args[0], Title: title}

			if ch.Title == "" {
				if client := youtubeClient(a.cfg); client != nil {
					ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
					defer cancel()

					info, err := client.FetchChannel(ctx, ch.ID)
					switch {
					case errors.Is(err, youtube.ErrChannelNotFound):
						return fmt.Errorf("channel %s not found on YouTube", ch.ID)
					case err != nil:
						fmt.Fprintf(cmd.ErrOrStderr(), "Could not look up channel title: %v\n", err)
					default:
						ch.Title = info.Title
						ch.Thumbnail = info.Thumbnail
					}
				}
			}

			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			if err := prefs.AddChannel(cmd.Context(), ch, category); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to %s\n", displayTitle(ch))
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Channel title")
	cmd.Flags().StringVar(&category, "category", "", "Category id (default: "+store.DefaultCategoryID+")")

	return cmd
}

func displayTitle(ch store.Channel) string {
	if ch.Title == "" || ch.Title == ch.ID {
		return ch.ID
	}
	return fmt.Sprintf("%s (%s)", ch.Title, ch.ID)
}

func newChannelsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <channel-id>",
		Short: "Unsubscribe from a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = prefs.Close() }()

			if err := prefs.RemoveChannel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unsubscribed from %s\n", args[0])
			return nil
		},
	}
}

func newChannelsSearchCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search YouTube for channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireYouTubeClient(a.cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
			defer cancel()

			channels, err := client.SearchChannels(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(channels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channels found.")
				return nil
			}

			f := display.NewTerminalFormatter()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ch := range channels {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ch.ID, ch.Title, f.TruncateText(ch.Description, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 5, "Maximum number of channels")

	return cmd
}
