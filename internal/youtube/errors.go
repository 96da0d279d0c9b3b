package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrChannelNotFound is returned when a channel id resolves to nothing.
var ErrChannelNotFound = errors.New("youtube channel not found")

// APIError is a non-200 answer from the Data API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "YouTube API authentication failed - check your API key"
	case http.StatusForbidden:
		if e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded" {
			return "YouTube API quota exhausted - please try again tomorrow"
		}
		return "YouTube API access denied - check your API key restrictions"
	case http.StatusNotFound:
		return "YouTube API resource not found"
	case http.StatusTooManyRequests:
		return "YouTube API rate limit exceeded - please try again later"
	case http.StatusServiceUnavailable:
		return "YouTube API temporarily unavailable - please try again in a few minutes"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "YouTube API server error - please try again later"
	default:
		return fmt.Sprintf("YouTube API error (status %d) - please try again", e.StatusCode)
	}
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		apiErr.Message = resp.Error.Message
		if len(resp.Error.Errors) > 0 {
			apiErr.Reason = resp.Error.Errors[0].Reason
		}
	}
	return apiErr
}
