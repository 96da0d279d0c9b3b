// Package ytrss reads a YouTube channel's public Atom feed. The feed needs no
// API key but only carries the channel's most recent uploads and no lengths.
package ytrss

import "time"

// Entry represents one upload listed in a channel feed.
type Entry struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	Thumbnail    string
	URL          string
	ViewCount    int64
	PublishedAt  time.Time
}
