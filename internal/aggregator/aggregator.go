package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrAggregation is returned when merging a page fails. Per-channel failures
// never produce it; they are absorbed by the Fetcher.
var ErrAggregation = errors.New("feed aggregation failed")

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithConcurrency caps how many channels are fetched at once. Zero or less
// means one goroutine per channel.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		a.concurrency = n
	}
}

// WithSourceTimeout bounds each channel's fetch so a hung channel cannot
// stall the whole page.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.sourceTimeout = d
	}
}

// Aggregator merges one page from each requested channel into a FeedPage.
// It holds no per-request state; everything needed for the next page travels
// in the continuation token.
type Aggregator struct {
	fetcher       Fetcher
	concurrency   int
	sourceTimeout time.Duration
}

// New creates an Aggregator that reads channels through fetcher.
func New(fetcher Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{fetcher: fetcher}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches the next page for every channel in sourceIDs, asking each
// for up to perSource videos, and returns the merged page.
//
// An empty token starts every channel from its newest upload. A non-empty
// token continues only the channels it still holds a cursor for; channels
// missing from it were exhausted on an earlier page.
func (a *Aggregator) Aggregate(ctx context.Context, sourceIDs []string, perSource int, token string) (page FeedPage, err error) {
	start := time.Now()
	defer func() {
		aggregationDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			aggregationFailures.Inc()
		}
	}()

	ids := lo.Uniq(sourceIDs)
	if len(ids) == 0 {
		return FeedPage{Items: []FeedItem{}}, nil
	}

	cursors, parseErr := ParseToken(token)
	if parseErr != nil {
		log.WithFields(log.Fields{
			"error": parseErr,
		}).Warn("Ignoring malformed continuation token, starting from the first page")
	}
	continuing := len(cursors) > 0

	if continuing {
		ids = lo.Filter(ids, func(id string, _ int) bool {
			return cursors[id] != ""
		})
	}

	batches := a.fanOut(ctx, ids, cursors, perSource)

	page, err = merge(ids, batches)
	if err != nil {
		return FeedPage{}, err
	}

	log.WithFields(log.Fields{
		"sources":    len(ids),
		"continuing": continuing,
		"items":      len(page.Items),
		"hasMore":    page.HasMore,
	}).Debug("Aggregated feed page")

	return page, nil
}

// fanOut calls the fetcher once per channel and waits for all of them. Every
// goroutine writes only its own slot, so the slice needs no locking.
func (a *Aggregator) fanOut(ctx context.Context, ids []string, cursors Cursors, perSource int) []Batch {
	batches := make([]Batch, len(ids))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			sourceCtx := ctx
			if a.sourceTimeout > 0 {
				var cancel context.CancelFunc
				sourceCtx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
				defer cancel()
			}
			batches[i] = a.fetcher.FetchPage(sourceCtx, id, cursors[id], perSource)
			return nil
		})
	}

	// Fetchers never return errors, so Wait only acts as the join barrier.
	_ = g.Wait()

	return batches
}

// merge concatenates the batches, keeps the first occurrence of each video ID,
// sorts newest first and rebuilds the cursor map.
func merge(ids []string, batches []Batch) (page FeedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAggregation, r)
		}
	}()

	all := make([]FeedItem, 0)
	next := Cursors{}
	hasMore := false

	for i, batch := range batches {
		all = append(all, batch.Items...)
		if batch.HasMore && batch.NextCursor != "" {
			next[ids[i]] = batch.NextCursor
			hasMore = true
		}
	}

	items := lo.UniqBy(all, func(item FeedItem) string {
		return item.ID
	})
	SortNewestFirst(items)

	page = FeedPage{
		Items:   items,
		HasMore: hasMore,
	}
	if hasMore {
		page.NextToken = next.Encode()
	}
	return page, nil
}

// SortNewestFirst orders items by publish time, newest first. Equal
// timestamps keep their relative order.
func SortNewestFirst(items []FeedItem) {
	slices.SortStableFunc(items, func(a, b FeedItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
}
