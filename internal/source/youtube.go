package source

import (
	"context"

	"github.com/samber/lo"

	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// YouTubeTransport lists uploads through the Data API. Cursors are the API's
// own playlist page tokens.
type YouTubeTransport struct {
	client *youtube.Client
}

// NewYouTubeTransport creates a Transport backed by client.
func NewYouTubeTransport(client *youtube.Client) *YouTubeTransport {
	return &YouTubeTransport{client: client}
}

// FetchRawPage lists up to limit uploads of channelID from cursor.
func (t *YouTubeTransport) FetchRawPage(ctx context.Context, channelID, cursor string, limit int) (*RawPage, error) {
	page, err := t.client.FetchUploads(ctx, channelID, cursor, limit)
	if err != nil {
		return nil, err
	}

	items := lo.Map(page.Videos, func(v youtube.Video, _ int) RawItem {
		return RawItem{
			ID:           v.ID,
			Title:        v.Title,
			Thumbnail:    v.Thumbnail,
			ChannelTitle: v.ChannelTitle,
			PublishedAt:  v.PublishedAt,
			URL:          v.URL,
		}
	})
	return &RawPage{Items: items, NextCursor: page.NextPageToken}, nil
}

// FetchDetails looks up length and view count for ids.
func (t *YouTubeTransport) FetchDetails(ctx context.Context, ids []string) (map[string]Details, error) {
	details, err := t.client.FetchVideoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	return lo.MapValues(details, func(d youtube.VideoDetails, _ string) Details {
		return Details{Duration: d.Duration, ViewCount: d.ViewCount}
	}), nil
}
