package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/subfeed/internal/youtube"
	"github.com/gauthierbraillon/subfeed/internal/ytrss"
)

func feedWithEntries(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>RSS Channel</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `
  <entry>
    <id>yt:video:r%d</id>
    <yt:videoId>r%d</yt:videoId>
    <title>Entry %d</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=r%d"/>
    <published>%s</published>
  </entry>`, i, i, i, i, base.Add(-time.Duration(i)*time.Hour).Format(time.RFC3339))
	}
	b.WriteString("\n</feed>")
	return b.String()
}

func TestRSSTransport_PagesThroughFeedByOffset(t *testing.T) {
	feed := feedWithEntries(15)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	defer server.Close()

	transport := NewRSSTransport(ytrss.NewClient(ytrss.WithBaseURL(server.URL)))

	first, err := transport.FetchRawPage(context.Background(), "UC1", "", 10)
	require.NoError(t, err)
	require.Len(t, first.Items, 10)
	assert.Equal(t, "r0", first.Items[0].ID)
	assert.Equal(t, "RSS Channel", first.Items[0].ChannelTitle)
	assert.Equal(t, "10", first.NextCursor)

	second, err := transport.FetchRawPage(context.Background(), "UC1", first.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, second.Items, 5)
	assert.Equal(t, "r10", second.Items[0].ID)
	assert.Empty(t, second.NextCursor, "feed end means channel exhausted")

	garbage, err := transport.FetchRawPage(context.Background(), "UC1", "not-a-number", 10)
	require.NoError(t, err)
	assert.Equal(t, "r0", garbage.Items[0].ID, "unreadable cursor restarts from the top")

	details, err := transport.FetchDetails(context.Background(), []string{"r0"})
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestRSSTransport_ThroughAdapterKeepsEverything(t *testing.T) {
	feed := feedWithEntries(3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	defer server.Close()

	adapter := NewAdapter(NewRSSTransport(ytrss.NewClient(ytrss.WithBaseURL(server.URL))))

	batch := adapter.FetchPage(context.Background(), "UC1", "", 20)

	assert.Len(t, batch.Items, 3, "without lengths nothing is filtered")
	assert.False(t, batch.HasMore)
}

func TestYouTubeTransport_ThroughAdapter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{
				"id":             "UC1",
				"snippet":        map[string]interface{}{"title": "API Channel"},
				"contentDetails": map[string]interface{}{"relatedPlaylists": map[string]interface{}{"uploads": "UU1"}},
			}},
		})
	})
	mux.HandleFunc("/youtube/v3/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
		items := []map[string]interface{}{}
		for i, id := range []string{"long", "short", "unknown"} {
			items = append(items, map[string]interface{}{
				"snippet": map[string]interface{}{"title": id, "channelTitle": "API Channel"},
				"contentDetails": map[string]interface{}{
					"videoId":          id,
					"videoPublishedAt": base.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": items, "nextPageToken": "CDIQAA"})
	})
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": "long", "contentDetails": map[string]interface{}{"duration": "PT20M"}, "statistics": map[string]interface{}{"viewCount": "99"}},
				{"id": "short", "contentDetails": map[string]interface{}{"duration": "PT40S"}},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := youtube.NewClient("key", youtube.WithBaseURL(server.URL), youtube.WithRetries(0, time.Millisecond))
	adapter := NewAdapter(NewYouTubeTransport(client))

	batch := adapter.FetchPage(context.Background(), "UC1", "", 10)

	require.Len(t, batch.Items, 2)
	assert.Equal(t, "long", batch.Items[0].ID)
	assert.Equal(t, int64(99), batch.Items[0].ViewCount)
	assert.Equal(t, "https://www.youtube.com/watch?v=long", batch.Items[0].URL)
	assert.Equal(t, "unknown", batch.Items[1].ID)
	assert.Equal(t, "CDIQAA", batch.NextCursor)
	assert.True(t, batch.HasMore)
}
