package ytrss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const defaultBaseURL = "https://www.youtube.com"

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL overrides the host feeds are requested from (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// Client fetches channel feeds from youtube.com.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	parser     *gofeed.Parser
}

// NewClient creates a new channel feed client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		parser:     gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FeedURL returns the Atom feed location for a channel.
func (c *Client) FeedURL(channelID string) string {
	return c.baseURL + "/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}

// FetchChannelFeed fetches a channel's feed, newest upload first.
func (c *Client) FetchChannelFeed(ctx context.Context, channelID string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FeedURL(channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "subfeed (+https://github.com/gauthierbraillon/subfeed)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube channel feed returned HTTP %d for %s", resp.StatusCode, channelID)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entry := convertItem(item, feed.Title, channelID)
		if entry.VideoID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func convertItem(item *gofeed.Item, feedTitle, channelID string) Entry {
	entry := Entry{
		VideoID:      extensionValue(item.Extensions, "yt", "videoId"),
		Title:        item.Title,
		ChannelID:    channelID,
		ChannelTitle: feedTitle,
		URL:          item.Link,
	}
	if entry.VideoID == "" {
		entry.VideoID = strings.TrimPrefix(item.GUID, "yt:video:")
	}
	if item.Author != nil && item.Author.Name != "" {
		entry.ChannelTitle = item.Author.Name
	}
	if entry.URL == "" && entry.VideoID != "" {
		entry.URL = "https://www.youtube.com/watch?v=" + entry.VideoID
	}

	if item.PublishedParsed != nil {
		entry.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.PublishedAt = *item.UpdatedParsed
	}

	if group := firstExtension(item.Extensions, "media", "group"); group != nil {
		if thumb := firstChild(group, "thumbnail"); thumb != nil {
			entry.Thumbnail = thumb.Attrs["url"]
		}
		if community := firstChild(group, "community"); community != nil {
			if stats := firstChild(community, "statistics"); stats != nil {
				entry.ViewCount, _ = strconv.ParseInt(stats.Attrs["views"], 10, 64)
			}
		}
	}
	if entry.Thumbnail == "" && item.Image != nil {
		entry.Thumbnail = item.Image.URL
	}

	return entry
}

func firstExtension(exts ext.Extensions, prefix, name string) *ext.Extension {
	if exts == nil {
		return nil
	}
	list := exts[prefix][name]
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func firstChild(e *ext.Extension, name string) *ext.Extension {
	list := e.Children[name]
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func extensionValue(exts ext.Extensions, prefix, name string) string {
	if e := firstExtension(exts, prefix, name); e != nil {
		return strings.TrimSpace(e.Value)
	}
	return ""
}
