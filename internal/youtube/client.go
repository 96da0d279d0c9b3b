package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.googleapis.com"

	// maxResultsPerCall is the Data API ceiling for maxResults and for ids per videos.list call.
	maxResultsPerCall = 50

	defaultChannelCacheSize = 512
	defaultMaxRetries       = 2
	defaultRetryInterval    = 500 * time.Millisecond
)

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

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithRequestsPerSecond caps outgoing API calls. Zero or less disables the cap.
func WithRequestsPerSecond(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetries sets how many times a temporary failure is retried and the
// first backoff interval.
func WithRetries(maxRetries uint64, interval time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryInterval = interval
	}
}

// WithChannelCacheSize sets how many resolved channels are kept in memory.
func WithChannelCacheSize(size int) ClientOption {
	return func(c *Client) {
		c.channelCacheSize = size
	}
}

// Client is a YouTube Data API client authenticated with an API key.
type Client struct {
	apiKey           string
	baseURL          string
	httpClient       HTTPClient
	limiter          *rate.Limiter
	maxRetries       uint64
	retryInterval    time.Duration
	channelCacheSize int
	channels         *lru.Cache[string, Channel]
}

// NewClient creates a new YouTube API client with the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:           apiKey,
		baseURL:          defaultBaseURL,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		limiter:          rate.NewLimiter(rate.Inf, 1),
		maxRetries:       defaultMaxRetries,
		retryInterval:    defaultRetryInterval,
		channelCacheSize: defaultChannelCacheSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.channelCacheSize > 0 {
		cache, err := lru.New[string, Channel](c.channelCacheSize)
		if err == nil {
			c.channels = cache
		}
	}

	return c
}

// FetchChannel resolves a channel id to its title, thumbnail and uploads playlist.
// Results are cached for the lifetime of the client.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*Channel, error) {
	if c.channels != nil {
		if ch, ok := c.channels.Get(channelID); ok {
			return &ch, nil
		}
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", channelID)

	body, err := c.doRequest(ctx, "/youtube/v3/channels", params)
	if err != nil {
		return nil, err
	}

	var response channelsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse channels response: %w", err)
	}

	if len(response.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}

	item := response.Items[0]
	ch := Channel{
		ID:                item.ID,
		Title:             item.Snippet.Title,
		Description:       item.Snippet.Description,
		Thumbnail:         item.Snippet.Thumbnails.best(),
		UploadsPlaylistID: item.ContentDetails.RelatedPlaylists.Uploads,
	}
	if ch.ID == "" {
		ch.ID = channelID
	}

	if c.channels != nil {
		c.channels.Add(channelID, ch)
	}
	return &ch, nil
}

// FetchUploads lists up to limit uploads of a channel starting at pageToken,
// following the API's own page tokens until limit is reached or the playlist ends.
func (c *Client) FetchUploads(ctx context.Context, channelID, pageToken string, limit int) (*UploadsPage, error) {
	ch, err := c.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.UploadsPlaylistID == "" {
		return nil, fmt.Errorf("%w: %s has no uploads playlist", ErrChannelNotFound, channelID)
	}

	page := &UploadsPage{Videos: make([]Video, 0, limit)}
	token := pageToken

	for remaining := limit; remaining > 0; {
		params := url.Values{}
		params.Set("part", "snippet,contentDetails")
		params.Set("playlistId", ch.UploadsPlaylistID)
		n := min(remaining, maxResultsPerCall)
		params.Set("maxResults", strconv.Itoa(n))
		if token != "" {
			params.Set("pageToken", token)
		}

		body, err := c.doRequest(ctx, "/youtube/v3/playlistItems", params)
		if err != nil {
			return nil, err
		}

		var response playlistItemsResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse playlist items response: %w", err)
		}

		for _, item := range response.Items {
			page.Videos = append(page.Videos, item.toVideo(channelID, ch.Title))
		}

		token = response.NextPageToken
		remaining -= len(response.Items)
		// A short page means the API has nothing more to hand out right now.
		if token == "" || len(response.Items) < n {
			break
		}
	}

	page.NextPageToken = token
	return page, nil
}

// FetchVideoDetails looks up length and view count for the given video ids.
// Ids the API does not return are absent from the map.
func (c *Client) FetchVideoDetails(ctx context.Context, videoIDs []string) (map[string]VideoDetails, error) {
	details := make(map[string]VideoDetails, len(videoIDs))
	ids := lo.Uniq(lo.Compact(videoIDs))

	for _, chunk := range lo.Chunk(ids, maxResultsPerCall) {
		params := url.Values{}
		params.Set("part", "contentDetails,statistics")
		params.Set("id", strings.Join(chunk, ","))

		body, err := c.doRequest(ctx, "/youtube/v3/videos", params)
		if err != nil {
			return nil, err
		}

		var response videosResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse videos response: %w", err)
		}

		for _, item := range response.Items {
			viewCount, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
			details[item.ID] = VideoDetails{
				Duration:  item.ContentDetails.Duration,
				ViewCount: viewCount,
			}
		}
	}

	return details, nil
}

// SearchChannels finds channels whose name matches query.
func (c *Client) SearchChannels(ctx context.Context, query string, limit int) ([]Channel, error) {
	if limit <= 0 || limit > maxResultsPerCall {
		limit = 5
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "channel")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/youtube/v3/search", params)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	channels := make([]Channel, 0, len(response.Items))
	for _, item := range response.Items {
		id := item.ID.ChannelID
		if id == "" {
			id = item.Snippet.ChannelID
		}
		if id == "" {
			continue
		}
		channels = append(channels, Channel{
			ID:          id,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   item.Snippet.Thumbnails.best(),
		})
	}

	return channels, nil
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		b, err := c.get(ctx, endpoint)
		if err == nil {
			body = b
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		log.WithFields(log.Fields{
			"path":    path,
			"attempt": attempt,
			"error":   err,
		}).Debug("YouTube request failed, retrying")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxInterval = 10 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, body)
	}

	return body, nil
}

// API response types (private - implementation detail)

type thumbnail struct {
	URL string `json:"url"`
}

type thumbnails struct {
	Default thumbnail `json:"default"`
	Medium  thumbnail `json:"medium"`
	High    thumbnail `json:"high"`
}

func (t thumbnails) best() string {
	return lo.Ternary(t.Medium.URL != "", t.Medium.URL, lo.Ternary(t.Default.URL != "", t.Default.URL, t.High.URL))
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			Thumbnails  thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItem struct {
	Snippet struct {
		ResourceID struct {
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
		Title        string     `json:"title"`
		ChannelTitle string     `json:"channelTitle"`
		PublishedAt  string     `json:"publishedAt"`
		Thumbnails   thumbnails `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		VideoID          string `json:"videoId"`
		VideoPublishedAt string `json:"videoPublishedAt"`
	} `json:"contentDetails"`
}

func (item playlistItem) toVideo(channelID, channelTitle string) Video {
	id := item.ContentDetails.VideoID
	if id == "" {
		id = item.Snippet.ResourceID.VideoID
	}

	published := item.ContentDetails.VideoPublishedAt
	if published == "" {
		published = item.Snippet.PublishedAt
	}
	publishedAt, _ := time.Parse(time.RFC3339, published)

	title := item.Snippet.ChannelTitle
	if title == "" {
		title = channelTitle
	}

	v := Video{
		ID:           id,
		Title:        item.Snippet.Title,
		ChannelID:    channelID,
		ChannelTitle: title,
		Thumbnail:    item.Snippet.Thumbnails.best(),
		PublishedAt:  publishedAt,
	}
	if id != "" {
		v.URL = WatchURL(id)
	}
	return v
}

type playlistItemsResponse struct {
	NextPageToken string         `json:"nextPageToken"`
	Items         []playlistItem `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
		Snippet struct {
			ChannelID   string     `json:"channelId"`
			Title       string     `json:"title"`
			Description string     `json:"description"`
			Thumbnails  thumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}
