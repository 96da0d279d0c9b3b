package source

import (
	"context"
	"strconv"

	"github.com/gauthierbraillon/subfeed/internal/ytrss"
)

// RSSTransport lists uploads from the public channel feed. The feed only
// holds the latest uploads, so cursors are plain offsets into it and lengths
// are never known.
type RSSTransport struct {
	client *ytrss.Client
}

// NewRSSTransport creates a Transport backed by client.
func NewRSSTransport(client *ytrss.Client) *RSSTransport {
	return &RSSTransport{client: client}
}

// FetchRawPage returns feed entries [cursor, cursor+limit).
func (t *RSSTransport) FetchRawPage(ctx context.Context, channelID, cursor string, limit int) (*RawPage, error) {
	entries, err := t.client.FetchChannelFeed(ctx, channelID)
	if err != nil {
		return nil, err
	}

	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		offset = 0
	}
	if offset > len(entries) {
		offset = len(entries)
	}
	end := min(offset+limit, len(entries))

	page := &RawPage{Items: make([]RawItem, 0, end-offset)}
	for _, e := range entries[offset:end] {
		page.Items = append(page.Items, RawItem{
			ID:           e.VideoID,
			Title:        e.Title,
			Thumbnail:    e.Thumbnail,
			ChannelTitle: e.ChannelTitle,
			PublishedAt:  e.PublishedAt,
			URL:          e.URL,
			ViewCount:    e.ViewCount,
		})
	}
	if end < len(entries) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// FetchDetails returns no details; the feed does not expose video lengths.
func (t *RSSTransport) FetchDetails(context.Context, []string) (map[string]Details, error) {
	return map[string]Details{}, nil
}
