// Package aggregator combines paginated channel uploads into a single
// newest-first feed.
//
// This package enables subfeed to:
// - Fan out one page request per subscribed channel and join the results
// - Merge, deduplicate and sort videos across channels
// - Carry every channel's pagination position in one opaque continuation token
package aggregator

import (
	"context"
	"time"
)

// Source is one subscribed channel.
type Source struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// FeedItem is a single video in the feed. Identity is ID: two items with the
// same ID are the same video no matter which fetch produced them.
type FeedItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
	Duration     string    `json:"duration,omitempty"`
	ViewCount    int64     `json:"view_count,omitempty"`
	URL          string    `json:"url,omitempty"`
}

// Batch is what one channel contributed to a page.
type Batch struct {
	Items      []FeedItem
	NextCursor string
	HasMore    bool
}

// FeedPage is one aggregated page. NextToken is only meaningful when HasMore
// is true.
type FeedPage struct {
	Items     []FeedItem `json:"items"`
	NextToken string     `json:"continuation_token,omitempty"`
	HasMore   bool       `json:"has_more"`
}

// Fetcher returns one page of eligible videos for a channel. Implementations
// absorb their own failures: a broken channel yields an empty, exhausted Batch.
type Fetcher interface {
	FetchPage(ctx context.Context, sourceID, cursor string, target int) Batch
}
