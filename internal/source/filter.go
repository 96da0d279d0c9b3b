package source

import (
	"regexp"
	"strconv"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
)

// MinLength is the shortest video that makes it into the feed. Anything
// shorter is treated as a Short.
const MinLength = 5 * time.Minute

var lengthPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseLength reads an ISO-8601 style PT[nH][nM][nS] duration. ok is false
// when the descriptor does not look like one at all; "PT" alone parses as zero.
func ParseLength(descriptor string) (length time.Duration, ok bool) {
	if descriptor == "" {
		return 0, false
	}

	m := lengthPattern.FindStringSubmatch(descriptor)
	if m == nil {
		return 0, false
	}

	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, false
		}
		length += time.Duration(n) * unit
	}
	return length, true
}

// Eligible reports whether a video belongs in the feed. Videos without a
// readable length are kept: missing metadata should not hide content.
func Eligible(item aggregator.FeedItem) bool {
	if item.ID == "" {
		return false
	}
	length, ok := ParseLength(item.Duration)
	if !ok {
		return true
	}
	return length >= MinLength
}
