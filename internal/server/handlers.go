package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// ScopeAll selects every subscribed channel.
const ScopeAll = "all"

const searchLimit = 5

type handlers struct {
	config *ServerConfig
}

func (h *handlers) pageSize(c *fiber.Ctx) int {
	size := c.QueryInt("page_size", h.config.PageSize)
	if size < 1 {
		return 1
	}
	return min(size, h.config.MaxPageSize)
}

// feed serves GET /api/videos/feed?scope=all|<channelId>&page_size=&token=
func (h *handlers) feed(c *fiber.Ctx) error {
	scope := strings.TrimSpace(c.Query("scope", ScopeAll))
	if scope == "" {
		scope = ScopeAll
	}

	var ids []string
	if scope == ScopeAll {
		sources, err := h.config.Preferences.ListSubscribedSources(c.UserContext())
		if err != nil {
			log.WithField("error", err).Error("Could not list subscriptions")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch videos")
		}
		ids = lo.Map(sources, func(s aggregator.Source, _ int) string { return s.ID })
	} else {
		ids = []string{scope}
	}

	return h.aggregate(c, ids)
}

// channelFeed serves GET /api/videos/channel/:channelId
func (h *handlers) channelFeed(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	if channelID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "channel id is required")
	}
	return h.aggregate(c, []string{channelID})
}

func (h *handlers) aggregate(c *fiber.Ctx, ids []string) error {
	page, err := h.config.Aggregator.Aggregate(c.UserContext(), ids, h.pageSize(c), c.Query("token"))
	if err != nil {
		log.WithFields(log.Fields{
			"sources": len(ids),
			"error":   err,
		}).Error("Feed aggregation failed")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch videos")
	}
	if page.Items == nil {
		page.Items = []aggregator.FeedItem{}
	}
	return c.JSON(page)
}

func (h *handlers) interests(c *fiber.Ctx) error {
	channels, err := h.config.Preferences.ListChannels(c.UserContext())
	if err != nil {
		return storeError(err)
	}
	categories, err := h.config.Preferences.ListCategories(c.UserContext())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(store.Interests{Channels: channels, Categories: categories})
}

func (h *handlers) listChannels(c *fiber.Ctx) error {
	channels, err := h.config.Preferences.ListChannels(c.UserContext())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(channels)
}

type addChannelRequest struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail"`
	CategoryID string `json:"category_id"`
}

func (h *handlers) addChannel(c *fiber.Ctx) error {
	var req addChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "channel id is required")
	}

	ch := store.Channel{ID: req.ID, Title: req.Title, Thumbnail: req.Thumbnail}
	if ch.Title == "" && h.config.Directory != nil {
		info, err := h.config.Directory.FetchChannel(c.UserContext(), req.ID)
		switch {
		case errors.Is(err, youtube.ErrChannelNotFound):
			return fiber.NewError(fiber.StatusNotFound, "channel not found")
		case err != nil:
			log.WithFields(log.Fields{
				"channel": req.ID,
				"error":   err,
			}).Warn("Could not look up channel, storing it without a title")
		default:
			ch.Title = info.Title
			ch.Thumbnail = lo.Ternary(ch.Thumbnail == "", info.Thumbnail, ch.Thumbnail)
		}
	}

	if err := h.config.Preferences.AddChannel(c.UserContext(), ch, req.CategoryID); err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

func (h *handlers) removeChannel(c *fiber.Ctx) error {
	if err := h.config.Preferences.RemoveChannel(c.UserContext(), c.Params("id")); err != nil {
		return storeError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) searchChannels(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}
	if h.config.Directory == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "channel search requires a YouTube API key")
	}

	channels, err := h.config.Directory.SearchChannels(c.UserContext(), query, searchLimit)
	if err != nil {
		log.WithFields(log.Fields{
			"query": query,
			"error": err,
		}).Error("Channel search failed")
		return fiber.NewError(fiber.StatusBadGateway, "Failed to search channels")
	}
	return c.JSON(channels)
}

func (h *handlers) listCategories(c *fiber.Ctx) error {
	categories, err := h.config.Preferences.ListCategories(c.UserContext())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(categories)
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *handlers) addCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	cat, err := h.config.Preferences.AddCategory(c.UserContext(), strings.TrimSpace(req.Name))
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *handlers) renameCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.config.Preferences.RenameCategory(c.UserContext(), c.Params("id"), strings.TrimSpace(req.Name)); err != nil {
		return storeError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) replaceCategories(c *fiber.Ctx) error {
	var categories []store.Category
	if err := c.BodyParser(&categories); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.config.Preferences.ReplaceCategories(c.UserContext(), categories); err != nil {
		return storeError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) removeCategory(c *fiber.Ctx) error {
	if err := h.config.Preferences.RemoveCategory(c.UserContext(), c.Params("id")); err != nil {
		return storeError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDefaultCategory):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
