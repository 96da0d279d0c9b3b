package aggregator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursors maps a channel ID to that channel's own page token. A missing key
// or an empty value both mean the channel has no further pages.
type Cursors map[string]string

// HasMore reports whether at least one channel still has a page to fetch.
func (c Cursors) HasMore() bool {
	for _, cursor := range c {
		if cursor != "" {
			return true
		}
	}
	return false
}

// Encode packs the cursor map into an opaque, URL-safe token. An empty map
// encodes to the empty string.
func (c Cursors) Encode() string {
	if len(c) == 0 {
		return ""
	}
	// map keys are marshalled in sorted order, so equal maps give equal tokens
	data, err := json.Marshal(map[string]string(c))
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// ParseToken unpacks a token produced by Encode. The returned map is never
// nil; a malformed token yields an empty map together with the parse error so
// callers can log it and carry on from the first page.
func ParseToken(token string) (Cursors, error) {
	if token == "" {
		return Cursors{}, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursors{}, fmt.Errorf("invalid continuation token encoding: %w", err)
	}

	var cursors map[string]string
	if err := json.Unmarshal(data, &cursors); err != nil {
		return Cursors{}, fmt.Errorf("invalid continuation token payload: %w", err)
	}
	if cursors == nil {
		return Cursors{}, nil
	}
	return Cursors(cursors), nil
}

// DecodeToken is ParseToken without the error: malformed tokens mean "start over".
func DecodeToken(token string) Cursors {
	cursors, _ := ParseToken(token)
	return cursors
}
