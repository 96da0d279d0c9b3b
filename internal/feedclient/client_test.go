package feedclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFeed_SendsQueryAndParsesPage(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [{"id": "v1", "title": "First", "channel_id": "UC1", "channel_title": "One", "published_at": "2024-01-01T12:00:00Z", "duration": "PT10M"}],
			"continuation_token": "abc",
			"has_more": true
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", WithBasicAuth("alice", "secret"))
	page, err := client.FetchFeed(context.Background(), "UC1", 15, "tok")
	require.NoError(t, err)

	assert.Equal(t, "/api/videos/feed", got.URL.Path)
	assert.Equal(t, "UC1", got.URL.Query().Get("scope"))
	assert.Equal(t, "15", got.URL.Query().Get("page_size"))
	assert.Equal(t, "tok", got.URL.Query().Get("token"))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "secret", pass)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "v1", page.Items[0].ID)
	assert.Equal(t, "PT10M", page.Items[0].Duration)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), page.Items[0].PublishedAt.UTC())
	assert.Equal(t, "abc", page.NextToken)
	assert.True(t, page.HasMore)
}

func TestFetchFeed_FirstPageOmitsToken(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"items": [], "has_more": false}`))
	}))
	defer server.Close()

	page, err := NewClient(server.URL).FetchFeed(context.Background(), "all", 0, "")
	require.NoError(t, err)

	assert.NotContains(t, query, "token")
	assert.NotContains(t, query, "page_size")
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestFetchFeed_ServerErrorCarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "Failed to fetch videos"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).FetchFeed(context.Background(), "all", 20, "")
	require.Error(t, err)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "Failed to fetch videos", reqErr.Message)
	assert.Contains(t, err.Error(), "Failed to fetch videos")
}

func TestFetchFeed_ErrorWithoutJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).FetchFeed(context.Background(), "all", 20, "")

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Empty(t, reqErr.Message)
	assert.Equal(t, "feed request failed with status 502", err.Error())
}

func TestFetchFeed_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).FetchFeed(context.Background(), "all", 20, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse feed response")
}

func TestFetchFeed_FeedsReconciler(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("token") == "" {
			_, _ = w.Write([]byte(`{"items": [{"id": "b", "published_at": "2024-01-01T10:00:00Z"}], "continuation_token": "next", "has_more": true}`))
			return
		}
		_, _ = w.Write([]byte(`{"items": [{"id": "a", "published_at": "2024-01-01T11:00:00Z"}], "has_more": false}`))
	}))
	defer server.Close()

	r := NewReconciler(NewClient(server.URL), "all", 10)
	require.NoError(t, r.LoadMore(context.Background()))
	require.NoError(t, r.LoadMore(context.Background()))
	require.NoError(t, r.LoadMore(context.Background()))

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"a", "b"}, itemIDs(r.Items()))
	assert.False(t, r.HasMore())
}
