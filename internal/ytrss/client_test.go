// Package ytrss tests document the expected behavior of the channel feed client.
//
// Test requirements (this file serves as documentation):
// - Client requests /feeds/videos.xml with the channel id
// - Client parses video id, title, channel, thumbnail, views and publish time
// - Client returns errors on HTTP failures
// - Client returns errors on malformed XML
package ytrss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const channelFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
  <id>yt:channel:UC123</id>
  <yt:channelId>UC123</yt:channelId>
  <title>Test Channel</title>
  <author><name>Test Channel</name></author>
  <entry>
    <id>yt:video:abc123</id>
    <yt:videoId>abc123</yt:videoId>
    <yt:channelId>UC123</yt:channelId>
    <title>Newest Upload</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=abc123"/>
    <author><name>Test Channel</name></author>
    <published>2024-01-15T10:00:00+00:00</published>
    <updated>2024-01-16T10:00:00+00:00</updated>
    <media:group>
      <media:title>Newest Upload</media:title>
      <media:thumbnail url="https://i.ytimg.com/vi/abc123/hqdefault.jpg" width="480" height="360"/>
      <media:community>
        <media:starRating count="10" average="5.00" min="1" max="5"/>
        <media:statistics views="4242"/>
      </media:community>
    </media:group>
  </entry>
  <entry>
    <id>yt:video:def456</id>
    <yt:videoId>def456</yt:videoId>
    <title>Older Upload</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=def456"/>
    <published>2024-01-10T10:00:00+00:00</published>
  </entry>
</feed>`

// TestClient_FetchChannelFeed_ReturnsParsedEntries documents feed parsing:
// - Parses yt:videoId, title, link, published, media thumbnail and view count
func TestClient_FetchChannelFeed_ReturnsParsedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, channelFeedXML)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	entries, err := client.FetchChannelFeed(context.Background(), "UC123")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	entry := entries[0]
	if entry.VideoID != "abc123" {
		t.Errorf("expected video id 'abc123', got %q", entry.VideoID)
	}
	if entry.Title != "Newest Upload" {
		t.Errorf("expected title 'Newest Upload', got %q", entry.Title)
	}
	if entry.ChannelID != "UC123" || entry.ChannelTitle != "Test Channel" {
		t.Errorf("expected channel UC123 'Test Channel', got %q %q", entry.ChannelID, entry.ChannelTitle)
	}
	if entry.URL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("expected watch URL, got %q", entry.URL)
	}
	if entry.Thumbnail != "https://i.ytimg.com/vi/abc123/hqdefault.jpg" {
		t.Errorf("expected media thumbnail, got %q", entry.Thumbnail)
	}
	if entry.ViewCount != 4242 {
		t.Errorf("expected 4242 views, got %d", entry.ViewCount)
	}
	if !entry.PublishedAt.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected published time, got %v", entry.PublishedAt)
	}

	if entries[1].ChannelTitle != "Test Channel" {
		t.Errorf("entry without author should fall back to feed title, got %q", entries[1].ChannelTitle)
	}
}

// TestClient_FetchChannelFeed_RequestsChannelFeedURL documents URL construction.
func TestClient_FetchChannelFeed_RequestsChannelFeedURL(t *testing.T) {
	var capturedPath, capturedChannel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedChannel = r.URL.Query().Get("channel_id")
		fmt.Fprint(w, channelFeedXML)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL + "/"))
	_, _ = client.FetchChannelFeed(context.Background(), "UC+odd/id")

	if capturedPath != "/feeds/videos.xml" {
		t.Errorf("expected /feeds/videos.xml, got %q", capturedPath)
	}
	if capturedChannel != "UC+odd/id" {
		t.Errorf("expected channel id to survive query encoding, got %q", capturedChannel)
	}
}

// TestClient_FetchChannelFeed_ReturnsErrorOnHTTPError documents HTTP error handling:
// - 404 or other non-200 status → descriptive error returned
func TestClient_FetchChannelFeed_ReturnsErrorOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.FetchChannelFeed(context.Background(), "UCmissing")

	if err == nil {
		t.Fatal("expected error for HTTP 404, got nil")
	}
}

// TestClient_FetchChannelFeed_ReturnsErrorOnInvalidXML documents parse error handling:
// - Garbage response body → parse error returned
func TestClient_FetchChannelFeed_ReturnsErrorOnInvalidXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not xml <<garbage>>")
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.FetchChannelFeed(context.Background(), "UC123")

	if err == nil {
		t.Fatal("expected error for invalid XML, got nil")
	}
}
