package main

import (
	"fmt"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/feedclient"
	"github.com/gauthierbraillon/subfeed/internal/source"
	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
	"github.com/gauthierbraillon/subfeed/internal/ytrss"
)

// youtubeClient returns nil when no API key is configured.
func youtubeClient(cfg *config.Config) *youtube.Client {
	if cfg.YouTube.APIKey == "" {
		return nil
	}
	opts := []youtube.ClientOption{youtube.WithRequestsPerSecond(cfg.YouTube.RequestsPerSecond)}
	if cfg.YouTube.BaseURL != "" {
		opts = append(opts, youtube.WithBaseURL(cfg.YouTube.BaseURL))
	}
	return youtube.NewClient(cfg.YouTube.APIKey, opts...)
}

func requireYouTubeClient(cfg *config.Config) (*youtube.Client, error) {
	client := youtubeClient(cfg)
	if client == nil {
		return nil, fmt.Errorf("missing API key: set YOUTUBE_API_KEY or youtube.api_key")
	}
	return client, nil
}

func transport(cfg *config.Config) (source.Transport, error) {
	switch cfg.YouTube.Transport {
	case config.TransportRSS:
		var opts []ytrss.ClientOption
		if cfg.YouTube.RSSBaseURL != "" {
			opts = append(opts, ytrss.WithBaseURL(cfg.YouTube.RSSBaseURL))
		}
		return source.NewRSSTransport(ytrss.NewClient(opts...)), nil
	default:
		client, err := requireYouTubeClient(cfg)
		if err != nil {
			return nil, err
		}
		return source.NewYouTubeTransport(client), nil
	}
}

func newAggregator(cfg *config.Config) (*aggregator.Aggregator, error) {
	t, err := transport(cfg)
	if err != nil {
		return nil, err
	}
	return aggregator.New(source.NewAdapter(t),
		aggregator.WithConcurrency(cfg.Feed.Concurrency),
		aggregator.WithSourceTimeout(cfg.Feed.SourceTimeout),
	), nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences at %s: %w", cfg.DBPath, err)
	}
	return s, nil
}

func feedClient(cfg *config.Config) *feedclient.Client {
	var opts []feedclient.ClientOption
	if cfg.Auth.Username != "" {
		opts = append(opts, feedclient.WithBasicAuth(cfg.Auth.Username, cfg.Auth.Password))
	}
	return feedclient.NewClient(cfg.ServerURL, opts...)
}
