// Package store persists which channels are subscribed and how they are
// grouped into named categories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
)

const (
	// DefaultCategoryID is the category new channels land in. It always exists.
	DefaultCategoryID   = "uncategorized"
	DefaultCategoryName = "Channels"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDefaultCategory = errors.New("the default category cannot be removed")
	ErrInvalid         = errors.New("invalid input")
)

// Channel is a subscribed channel.
type Channel struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Category is a named, ordered group of channel ids.
type Category struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ChannelIDs []string `json:"channel_ids"`
}

// Interests is the whole preference document.
type Interests struct {
	Channels   []Channel  `json:"channels"`
	Categories []Category `json:"categories"`
}

// Store is the SQLite-backed preference store.
type Store struct {
	db *sql.DB
}

// Open migrates and opens the database at path, creating its directory if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListSubscribedSources returns every subscribed channel, oldest subscription first.
func (s *Store) ListSubscribedSources(ctx context.Context) ([]aggregator.Source, error) {
	channels, err := s.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(channels, func(c Channel, _ int) aggregator.Source {
		return aggregator.Source{ID: c.ID, Title: c.Title, Thumbnail: c.Thumbnail}
	}), nil
}

// ListChannels returns every subscribed channel, oldest subscription first.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	return listChannels(ctx, s.db)
}

// GetChannel returns one subscribed channel or ErrNotFound.
func (s *Store) GetChannel(ctx context.Context, id string) (*Channel, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "title", "thumbnail", "added_at").From("channels").Where(sb.Equal("id", id))
	query, args := sb.Build()

	var c Channel
	var added int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.Title, &c.Thumbnail, &added)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	c.AddedAt = time.Unix(0, added).UTC()
	return &c, nil
}

// AddChannel subscribes to a channel. A channel that is not yet in any
// category is placed in categoryID, or in the default category when
// categoryID is empty or unknown. Adding a known channel is a no-op apart
// from that placement.
func (s *Store) AddChannel(ctx context.Context, ch Channel, categoryID string) error {
	if ch.ID == "" {
		return fmt.Errorf("channel id is required: %w", ErrInvalid)
	}
	if ch.Title == "" {
		ch.Title = ch.ID
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertIgnoreInto("channels").
			Cols("id", "title", "thumbnail", "added_at").
			Values(ch.ID, ch.Title, ch.Thumbnail, time.Now().UnixNano())
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert error: %w", err)
		}

		assigned, err := isAssigned(ctx, tx, ch.ID)
		if err != nil || assigned {
			return err
		}

		target, err := resolveCategory(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		if err := appendMember(ctx, tx, target, ch.ID); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"channel":  ch.ID,
			"category": target,
		}).Info("Subscribed to channel")
		return nil
	})
}

// RemoveChannel unsubscribes from a channel and drops it from every category.
func (s *Store) RemoveChannel(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		mb := sqlbuilder.SQLite.NewDeleteBuilder()
		mb.DeleteFrom("category_channels").Where(mb.Equal("channel_id", id))
		query, args := mb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete error: %w", err)
		}

		cb := sqlbuilder.SQLite.NewDeleteBuilder()
		cb.DeleteFrom("channels").Where(cb.Equal("id", id))
		query, args = cb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete error: %w", err)
		}

		log.WithField("channel", id).Info("Unsubscribed from channel")
		return nil
	})
}

// AddCategory creates an empty category at the end of the list.
func (s *Store) AddCategory(ctx context.Context, name string) (*Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required: %w", ErrInvalid)
	}

	cat := &Category{ID: uuid.NewString(), Name: name, ChannelIDs: []string{}}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pos, err := nextPosition(ctx, tx, "categories", "")
		if err != nil {
			return err
		}

		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("categories").Cols("id", "name", "position").Values(cat.ID, cat.Name, pos)
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// RenameCategory changes a category's display name.
func (s *Store) RenameCategory(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("category name is required: %w", ErrInvalid)
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("categories").Set(ub.Assign("name", name)).Where(ub.Equal("id", id))
	query, args := ub.Build()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return nil
}

// RemoveCategory deletes a category and moves its channels to the default category.
func (s *Store) RemoveCategory(ctx context.Context, id string) error {
	if id == DefaultCategoryID {
		return ErrDefaultCategory
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureDefaultCategory(ctx, tx); err != nil {
			return err
		}

		members, err := categoryMembers(ctx, tx, id)
		if err != nil {
			return err
		}

		mb := sqlbuilder.SQLite.NewDeleteBuilder()
		mb.DeleteFrom("category_channels").Where(mb.Equal("category_id", id))
		query, args := mb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete error: %w", err)
		}

		for _, channelID := range members {
			if err := appendMember(ctx, tx, DefaultCategoryID, channelID); err != nil {
				return err
			}
		}

		cb := sqlbuilder.SQLite.NewDeleteBuilder()
		cb.DeleteFrom("categories").Where(cb.Equal("id", id))
		query, args = cb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete error: %w", err)
		}

		log.WithFields(log.Fields{
			"category": id,
			"moved":    len(members),
		}).Info("Removed category")
		return nil
	})
}

// ReplaceCategories stores a new ordering and assignment of categories.
// Unknown channel ids are ignored, a channel listed twice keeps its first
// place, and channels left out end up in the default category.
func (s *Store) ReplaceCategories(ctx context.Context, categories []Category) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		channels, err := listChannels(ctx, tx)
		if err != nil {
			return err
		}
		known := lo.SliceToMap(channels, func(c Channel) (string, bool) { return c.ID, true })

		for _, table := range []string{"category_channels", "categories"} {
			db := sqlbuilder.SQLite.NewDeleteBuilder()
			db.DeleteFrom(table)
			query, args := db.Build()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete error: %w", err)
			}
		}

		placed := map[string]bool{}
		seenCategory := map[string]bool{}
		for i, cat := range categories {
			if cat.ID == "" || seenCategory[cat.ID] {
				continue
			}
			seenCategory[cat.ID] = true
			name := cat.Name
			if name == "" {
				name = lo.Ternary(cat.ID == DefaultCategoryID, DefaultCategoryName, cat.ID)
			}

			ib := sqlbuilder.SQLite.NewInsertBuilder()
			ib.InsertInto("categories").Cols("id", "name", "position").Values(cat.ID, name, i)
			query, args := ib.Build()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert error: %w", err)
			}

			pos := 0
			for _, channelID := range cat.ChannelIDs {
				if !known[channelID] || placed[channelID] {
					continue
				}
				placed[channelID] = true
				if err := insertMember(ctx, tx, cat.ID, channelID, pos); err != nil {
					return err
				}
				pos++
			}
		}

		if err := ensureDefaultCategory(ctx, tx); err != nil {
			return err
		}
		for _, c := range channels {
			if !placed[c.ID] {
				if err := appendMember(ctx, tx, DefaultCategoryID, c.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListCategories returns every category in display order with its channels.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "name").From("categories").OrderBy("position", "rowid").Asc()
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	index := map[string]int{}
	for rows.Next() {
		c := Category{ChannelIDs: []string{}}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		index[c.ID] = len(categories)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	mb := sqlbuilder.SQLite.NewSelectBuilder()
	mb.Select("category_id", "channel_id").From("category_channels").OrderBy("position", "rowid").Asc()
	query, args = mb.Build()

	members, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer members.Close()

	for members.Next() {
		var categoryID, channelID string
		if err := members.Scan(&categoryID, &channelID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if i, ok := index[categoryID]; ok {
			categories[i].ChannelIDs = append(categories[i].ChannelIDs, channelID)
		}
	}
	return categories, members.Err()
}

// Interests returns channels and categories together.
func (s *Store) Interests(ctx context.Context) (*Interests, error) {
	channels, err := s.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &Interests{Channels: channels, Categories: categories}, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func listChannels(ctx context.Context, q querier) ([]Channel, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "title", "thumbnail", "added_at").From("channels").OrderBy("added_at", "rowid").Asc()
	query, args := sb.Build()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		var c Channel
		var added int64
		if err := rows.Scan(&c.ID, &c.Title, &c.Thumbnail, &added); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		c.AddedAt = time.Unix(0, added).UTC()
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func isAssigned(ctx context.Context, tx *sql.Tx, channelID string) (bool, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From("category_channels").Where(sb.Equal("channel_id", channelID))
	query, args := sb.Build()

	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return n > 0, nil
}

func categoryExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From("categories").Where(sb.Equal("id", id))
	query, args := sb.Build()

	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return n > 0, nil
}

// resolveCategory returns categoryID if it exists, else the default category.
func resolveCategory(ctx context.Context, tx *sql.Tx, categoryID string) (string, error) {
	if categoryID != "" {
		ok, err := categoryExists(ctx, tx, categoryID)
		if err != nil {
			return "", err
		}
		if ok {
			return categoryID, nil
		}
	}
	return DefaultCategoryID, ensureDefaultCategory(ctx, tx)
}

func ensureDefaultCategory(ctx context.Context, tx *sql.Tx) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("categories").Cols("id", "name", "position").Values(DefaultCategoryID, DefaultCategoryName, -1)
	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

func categoryMembers(ctx context.Context, tx *sql.Tx, categoryID string) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("channel_id").From("category_channels").Where(sb.Equal("category_id", categoryID)).OrderBy("position", "rowid").Asc()
	query, args := sb.Build()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// nextPosition returns one past the highest position in table, optionally
// restricted to a category's members.
func nextPosition(ctx context.Context, tx *sql.Tx, table, categoryID string) (int, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COALESCE(MAX(position), -1) + 1").From(table)
	if categoryID != "" {
		sb.Where(sb.Equal("category_id", categoryID))
	}
	query, args := sb.Build()

	var pos int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&pos); err != nil {
		return 0, fmt.Errorf("query error: %w", err)
	}
	return pos, nil
}

func appendMember(ctx context.Context, tx *sql.Tx, categoryID, channelID string) error {
	pos, err := nextPosition(ctx, tx, "category_channels", categoryID)
	if err != nil {
		return err
	}
	return insertMember(ctx, tx, categoryID, channelID, pos)
}

func insertMember(ctx context.Context, tx *sql.Tx, categoryID, channelID string, pos int) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("category_channels").Cols("category_id", "channel_id", "position").Values(categoryID, channelID, pos)
	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}
