// Package source turns one external channel into pages of feed-eligible videos.
package source

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
)

// minRawFetch is the smallest raw batch requested per page, however small the target.
const minRawFetch = 50

// overFetchFactor absorbs the share of uploads the length filter removes.
const overFetchFactor = 4

// RawItem is an upload as the transport reports it, before filtering.
type RawItem struct {
	ID           string
	Title        string
	Thumbnail    string
	ChannelTitle string
	PublishedAt  time.Time
	URL          string
	ViewCount    int64
}

// RawPage is one transport page plus the channel's own next cursor.
// NextCursor is empty once the channel has no older uploads.
type RawPage struct {
	Items      []RawItem
	NextCursor string
}

// Details is the per-video metadata fetched after the listing.
type Details struct {
	Duration  string
	ViewCount int64
}

// Transport is the raw capability to list a channel's uploads.
type Transport interface {
	FetchRawPage(ctx context.Context, sourceID, cursor string, limit int) (*RawPage, error)
	FetchDetails(ctx context.Context, ids []string) (map[string]Details, error)
}

// Adapter wraps a Transport and implements aggregator.Fetcher.
type Adapter struct {
	transport Transport
}

var _ aggregator.Fetcher = (*Adapter)(nil)

// NewAdapter creates an Adapter over transport.
func NewAdapter(transport Transport) *Adapter {
	return &Adapter{transport: transport}
}

// RawLimit is how many raw uploads are requested to fill target eligible ones.
func RawLimit(target int) int {
	return max(target*overFetchFactor, minRawFetch)
}

// FetchPage returns up to target eligible videos for sourceID starting at
// cursor. It never fails: any transport error yields an empty, exhausted batch.
func (a *Adapter) FetchPage(ctx context.Context, sourceID, cursor string, target int) (batch aggregator.Batch) {
	start := time.Now()
	logger := log.WithFields(log.Fields{
		"source": sourceID,
		"cursor": cursor,
		"target": target,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Source transport panicked, skipping source")
			sourceFetches.WithLabelValues(resultError).Inc()
			batch = aggregator.Batch{}
		}
		sourceFetchDuration.Observe(time.Since(start).Seconds())
	}()

	if target < 1 {
		target = 1
	}

	batch, err := a.fetchPage(ctx, sourceID, cursor, target)
	if err != nil {
		logger.WithField("error", err).Warn("Source fetch failed, skipping source")
		sourceFetches.WithLabelValues(resultError).Inc()
		return aggregator.Batch{}
	}

	sourceFetches.WithLabelValues(resultOK).Inc()
	logger.WithFields(log.Fields{
		"items":   len(batch.Items),
		"hasMore": batch.HasMore,
		"latency": time.Since(start),
	}).Debug("Fetched source page")
	return batch
}

func (a *Adapter) fetchPage(ctx context.Context, sourceID, cursor string, target int) (aggregator.Batch, error) {
	page, err := a.transport.FetchRawPage(ctx, sourceID, cursor, RawLimit(target))
	if err != nil {
		return aggregator.Batch{}, fmt.Errorf("fetch uploads: %w", err)
	}

	ids := make([]string, 0, len(page.Items))
	for _, raw := range page.Items {
		if raw.ID != "" {
			ids = append(ids, raw.ID)
		}
	}

	details, err := a.transport.FetchDetails(ctx, ids)
	if err != nil {
		// Without lengths every video is kept, matching the fail-open filter.
		log.WithFields(log.Fields{
			"source": sourceID,
			"error":  err,
		}).Warn("Could not fetch video details, keeping all videos")
		details = map[string]Details{}
	}

	items := make([]aggregator.FeedItem, 0, target)
	filtered := 0
	for _, raw := range page.Items {
		item := toFeedItem(sourceID, raw, details[raw.ID])
		if !Eligible(item) {
			filtered++
			continue
		}
		if len(items) < target {
			items = append(items, item)
		}
	}
	videosFiltered.Add(float64(filtered))

	return aggregator.Batch{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.NextCursor != "",
	}, nil
}

func toFeedItem(sourceID string, raw RawItem, details Details) aggregator.FeedItem {
	views := details.ViewCount
	if views == 0 {
		views = raw.ViewCount
	}
	return aggregator.FeedItem{
		ID:           raw.ID,
		Title:        raw.Title,
		Thumbnail:    raw.Thumbnail,
		ChannelID:    sourceID,
		ChannelTitle: raw.ChannelTitle,
		PublishedAt:  raw.PublishedAt,
		Duration:     details.Duration,
		ViewCount:    views,
		URL:          raw.URL,
	}
}
