// Package server exposes the aggregated feed and the subscription preferences over HTTP.
package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// Preferences is the subscription store the API reads and edits.
type Preferences interface {
	ListSubscribedSources(ctx context.Context) ([]aggregator.Source, error)
	ListChannels(ctx context.Context) ([]store.Channel, error)
	AddChannel(ctx context.Context, ch store.Channel, categoryID string) error
	RemoveChannel(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]store.Category, error)
	AddCategory(ctx context.Context, name string) (*store.Category, error)
	RenameCategory(ctx context.Context, id, name string) error
	RemoveCategory(ctx context.Context, id string) error
	ReplaceCategories(ctx context.Context, categories []store.Category) error
}

// FeedAggregator builds one feed page from a set of channels.
type FeedAggregator interface {
	Aggregate(ctx context.Context, sourceIDs []string, perSource int, token string) (aggregator.FeedPage, error)
}

// ChannelDirectory looks channels up on YouTube.
type ChannelDirectory interface {
	SearchChannels(ctx context.Context, query string, limit int) ([]youtube.Channel, error)
	FetchChannel(ctx context.Context, channelID string) (*youtube.Channel, error)
}

type ServerConfig struct {
	Preferences Preferences
	Aggregator  FeedAggregator

	// Directory is optional; without it channel search is unavailable and
	// channels are stored with the title given by the caller.
	Directory ChannelDirectory

	// PageSize is the default per-channel target, MaxPageSize its upper bound.
	PageSize    int
	MaxPageSize int

	AllowOrigins string

	// When both are set every /api route requires HTTP basic auth.
	Username string
	Password string
}

// Server returns a fiber.App serving the subfeed API.
func Server(config *ServerConfig) *fiber.App {
	if config.PageSize < 1 {
		config.PageSize = 20
	}
	if config.MaxPageSize < config.PageSize {
		config.MaxPageSize = max(config.PageSize, 50)
	}

	app := fiber.New(fiber.Config{
		AppName:               "subfeed",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   route,
			"status":  status,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(compress.New())
	if config.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: config.AllowOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	if config.Username != "" && config.Password != "" {
		api.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{config.Username: config.Password},
			Realm: "subfeed",
		}))
	}

	h := &handlers{config: config}

	api.Get("/videos/feed", h.feed)
	api.Get("/videos/channel/:channelId", h.channelFeed)

	api.Get("/interests", h.interests)
	api.Get("/channels", h.listChannels)
	api.Post("/channels", h.addChannel)
	api.Get("/channels/search", h.searchChannels)
	api.Delete("/channels/:id", h.removeChannel)

	api.Get("/categories", h.listCategories)
	api.Post("/categories", h.addCategory)
	api.Put("/categories", h.replaceCategories)
	api.Patch("/categories/:id", h.renameCategory)
	api.Delete("/categories/:id", h.removeCategory)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.WithFields(log.Fields{
			"path":  c.Path(),
			"error": err,
		}).Error("Unhandled error")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
