package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/display"
	"github.com/gauthierbraillon/subfeed/internal/feedclient"
	"github.com/gauthierbraillon/subfeed/internal/server"
)

const feedRetries = 2

// newFeedCmd creates the feed subcommand.
func newFeedCmd(a *app) *cobra.Command {
	var scope string
	var pages int
	var pageSize int
	var serverURL string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Display the aggregated feed",
		Long: "Display the newest videos of your subscriptions, or of one channel, from a running " +
			"subfeed server. Each extra page continues where the previous one stopped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("server") {
				a.cfg.ServerURL = serverURL
			}
			if pages < 1 {
				return fmt.Errorf("invalid --pages %d: must be at least 1", pages)
			}
			if pageSize < 0 {
				return fmt.Errorf("invalid --page-size %d", pageSize)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			r := feedclient.NewReconciler(feedClient(a.cfg), scope, pageSize)
			if err := loadPages(ctx, r, pages); err != nil {
				return fmt.Errorf("failed to load feed from %s: %w", a.cfg.ServerURL, err)
			}

			printFeed(cmd.OutOrStdout(), r, pages)
			return nil
		},
	}

	cmd.Flags().StringVarP(&scope, "scope", "s", server.ScopeAll, "Feed scope: all, or a channel id")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "Videos requested per channel and page (default from server)")
	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of the subfeed server")

	return cmd
}

// loadPages loads up to pages pages, retrying failed loads with backoff.
// Client errors are not retried.
func loadPages(ctx context.Context, r *feedclient.Reconciler, pages int) error {
	for i := 0; i < pages && r.HasMore(); i++ {
		op := func() error {
			err := r.LoadMore(ctx)
			var reqErr *feedclient.RequestError
			if errors.As(err, &reqErr) && reqErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), feedRetries), ctx)
		notify := func(err error, wait time.Duration) {
			log.WithFields(log.Fields{"error": err, "retry_in": wait}).Warn("Feed request failed, retrying")
		}
		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			return err
		}
	}
	return nil
}

func printFeed(out io.Writer, r *feedclient.Reconciler, pages int) {
	fmt.Fprint(out, display.NewTerminalFormatter().FormatFeed(r.Items()))
	if r.HasMore() {
		fmt.Fprintf(out, "\nMore videos available: run again with --pages %d\n", pages+1)
	}
}
