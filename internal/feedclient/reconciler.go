package feedclient

import (
	"context"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
)

// PageFetcher requests one feed page. *Client implements it.
type PageFetcher interface {
	FetchFeed(ctx context.Context, scope string, pageSize int, token string) (*aggregator.FeedPage, error)
}

// Reconciler holds the accumulated feed for one scope: every item loaded so
// far, newest first, each id once, plus the token for the next page.
//
// LoadMore calls are serialized by an in-flight flag; a call made while
// another is running, or after the feed is exhausted, does nothing.
type Reconciler struct {
	fetcher  PageFetcher
	pageSize int

	mu         sync.Mutex
	scope      string
	generation uint64
	items      []aggregator.FeedItem
	seen       map[string]struct{}
	token      string
	hasMore    bool
	loading    bool
	err        error
}

// NewReconciler creates a Reconciler for scope. Nothing is loaded until
// LoadMore or SetScope is called.
func NewReconciler(fetcher PageFetcher, scope string, pageSize int) *Reconciler {
	r := &Reconciler{fetcher: fetcher, pageSize: pageSize}
	r.reset(scope)
	return r
}

func (r *Reconciler) reset(scope string) {
	r.generation++
	r.scope = scope
	r.items = nil
	r.seen = map[string]struct{}{}
	r.token = ""
	r.hasMore = true
	r.loading = false
	r.err = nil
}

// SetScope discards everything loaded so far and loads the first page of scope.
func (r *Reconciler) SetScope(ctx context.Context, scope string) error {
	r.mu.Lock()
	r.reset(scope)
	r.mu.Unlock()

	log.WithField("scope", scope).Debug("Feed scope changed, starting over")
	return r.LoadMore(ctx)
}

// LoadMore fetches the next page and merges it into the feed. On failure the
// feed and token are left as they were, so calling LoadMore again retries the
// same page.
func (r *Reconciler) LoadMore(ctx context.Context) error {
	r.mu.Lock()
	if r.loading || !r.hasMore {
		r.mu.Unlock()
		return nil
	}
	r.loading = true
	generation, scope, token := r.generation, r.scope, r.token
	r.mu.Unlock()

	page, err := r.fetcher.FetchFeed(ctx, scope, r.pageSize, token)

	r.mu.Lock()
	defer r.mu.Unlock()

	if generation != r.generation {
		// The scope changed while this page was in flight.
		return nil
	}
	r.loading = false

	if err != nil {
		r.err = err
		log.WithFields(log.Fields{
			"scope": scope,
			"error": err,
		}).Warn("Loading more videos failed")
		return err
	}

	r.err = nil
	r.merge(page.Items)
	r.hasMore = page.HasMore
	r.token = page.NextToken
	if !r.hasMore {
		r.token = ""
	}
	return nil
}

func (r *Reconciler) merge(incoming []aggregator.FeedItem) {
	for _, item := range incoming {
		if _, dup := r.seen[item.ID]; dup {
			continue
		}
		r.seen[item.ID] = struct{}{}
		r.items = append(r.items, item)
	}
	// A slow channel's page can hold videos newer than ones already shown.
	aggregator.SortNewestFirst(r.items)
}

// Items returns a copy of the accumulated feed.
func (r *Reconciler) Items() []aggregator.FeedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

func (r *Reconciler) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasMore
}

func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the error of the last failed load, cleared by the next success.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reconciler) Scope() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scope
}

// Token returns the continuation token the next LoadMore will send.
func (r *Reconciler) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}
