// Package display provides terminal output formatting for subfeed.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/source"
	"github.com/gauthierbraillon/subfeed/internal/store"
)

const separator = " • "

// TerminalFormatter formats videos and subscriptions for terminal display.
type TerminalFormatter struct{}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{}
}

// FormatItem formats a single video.
func (f *TerminalFormatter) FormatItem(item aggregator.FeedItem) string {
	var lines []string

	header := item.Title
	if length, ok := source.ParseLength(item.Duration); ok {
		header = fmt.Sprintf("%s [%s]", item.Title, FormatLength(length))
	}
	lines = append(lines, header)

	channel := item.ChannelTitle
	if channel == "" {
		channel = item.ChannelID
	}
	meta := []string{channel, f.FormatTimestamp(item.PublishedAt)}
	if item.ViewCount > 0 {
		meta = append(meta, FormatViews(item.ViewCount))
	}
	lines = append(lines, "  "+strings.Join(meta, separator))

	if item.URL != "" {
		lines = append(lines, "  "+item.URL)
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatFeed formats a list of videos.
func (f *TerminalFormatter) FormatFeed(items []aggregator.FeedItem) string {
	if len(items) == 0 {
		return "No items to display.\n"
	}

	formatted := make([]string, 0, len(items))
	for _, item := range items {
		formatted = append(formatted, f.FormatItem(item))
	}

	return strings.Join(formatted, "\n---\n\n")
}

// FormatCategories lists every category with its channels, using channel
// titles where they are known.
func (f *TerminalFormatter) FormatCategories(interests store.Interests) string {
	if len(interests.Channels) == 0 && len(interests.Categories) <= 1 {
		return "No channels subscribed.\n"
	}

	titles := make(map[string]string, len(interests.Channels))
	for _, ch := range interests.Channels {
		titles[ch.ID] = ch.Title
	}

	var b strings.Builder
	for _, cat := range interests.Categories {
		fmt.Fprintf(&b, "%s (%s)\n", cat.Name, cat.ID)
		if len(cat.ChannelIDs) == 0 {
			b.WriteString("  (empty)\n")
			continue
		}
		for _, id := range cat.ChannelIDs {
			fmt.Fprintf(&b, "  %s  %s\n", id, f.TruncateText(titles[id], 60))
		}
	}
	return b.String()
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatLength renders a video length as h:mm:ss or m:ss.
func FormatLength(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatViews abbreviates a view count: 950 views, 12K views, 3.4M views.
func FormatViews(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return trimDecimal(float64(n)/1e9) + "B views"
	case n >= 1_000_000:
		return trimDecimal(float64(n)/1e6) + "M views"
	case n >= 1_000:
		return trimDecimal(float64(n)/1e3) + "K views"
	case n == 1:
		return "1 view"
	default:
		return fmt.Sprintf("%d views", n)
	}
}

func trimDecimal(v float64) string {
	if v >= 10 {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
