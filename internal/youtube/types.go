// Package youtube provides a client for the YouTube Data API v3.
//
// This package enables subfeed to:
// - Resolve a channel and its uploads playlist
// - Page through a channel's uploads, newest first
// - Look up video lengths and view counts
// - Search channels by name
package youtube

import "time"

// Channel represents a YouTube channel.
type Channel struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Thumbnail         string `json:"thumbnail"`
	UploadsPlaylistID string `json:"uploads_playlist_id,omitempty"`
}

// Video represents an entry of a channel's uploads playlist.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Thumbnail    string    `json:"thumbnail"`
	PublishedAt  time.Time `json:"published_at"`
	URL          string    `json:"url"`
}

// UploadsPage is a slice of a channel's uploads. NextPageToken is empty once
// the oldest upload has been returned.
type UploadsPage struct {
	Videos        []Video `json:"videos"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

// VideoDetails holds the per-video metadata not present on playlist entries.
type VideoDetails struct {
	Duration  string `json:"duration"`
	ViewCount int64  `json:"view_count"`
}

// WatchURL returns the public watch page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
