package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// Storage keys for the singleton rows in the kv table.
const (
	autosaveKey   = "crosspost_autosave"
	threadModeKey = "crosspost_thread_mode"
)

// Store persists drafts, the autosave snapshot, and the composer mode flag
// in SQLite.
type Store struct {
	db   *sql.DB
	node *snowflake.Node
}

// NewStore wires the store. Call Migrate before first use.
func NewStore(db *sql.DB, node *snowflake.Node) *Store {
	return &Store{db: db, node: node}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS drafts (
  id         TEXT PRIMARY KEY,
  posts      TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kv (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("migrate draft schema: %w", err)
	}
	return nil
}

// SaveDraft stores the batch as a new draft and returns it with its
// generated ID.
func (s *Store) SaveDraft(ctx context.Context, posts domain.PostBatch) (domain.Draft, error) {
	draft := domain.Draft{
		ID:        s.node.Generate().String(),
		Posts:     posts,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(draft.Posts)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("marshal draft posts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, posts, created_at) VALUES (?, ?, ?)`,
		draft.ID, string(payload), draft.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	return draft, nil
}

// ListDrafts returns all drafts, newest first.
func (s *Store) ListDrafts(ctx context.Context) ([]domain.Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, posts, created_at FROM drafts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []domain.Draft
	for rows.Next() {
		var (
			draft   domain.Draft
			posts   string
			created string
		)
		if err := rows.Scan(&draft.ID, &posts, &created); err != nil {
			return nil, fmt.Errorf("scan draft row: %w", err)
		}
		if err := json.Unmarshal([]byte(posts), &draft.Posts); err != nil {
			return nil, fmt.Errorf("decode draft %s: %w", draft.ID, err)
		}
		draft.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("decode draft %s timestamp: %w", draft.ID, err)
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return drafts, nil
}

// DeleteDraft removes one draft. Deleting an unknown ID is not an error.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// SaveAutosave overwrites the single autosave snapshot.
func (s *Store) SaveAutosave(ctx context.Context, snapshot domain.Autosave) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal autosave: %w", err)
	}
	return s.setKV(ctx, autosaveKey, string(payload))
}

// LoadAutosave returns the snapshot and whether one exists.
func (s *Store) LoadAutosave(ctx context.Context) (domain.Autosave, bool, error) {
	raw, ok, err := s.getKV(ctx, autosaveKey)
	if err != nil || !ok {
		return domain.Autosave{}, false, err
	}
	var snapshot domain.Autosave
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return domain.Autosave{}, false, fmt.Errorf("decode autosave: %w", err)
	}
	return snapshot, true, nil
}

// ClearAutosave removes the snapshot.
func (s *Store) ClearAutosave(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, autosaveKey); err != nil {
		return fmt.Errorf("clear autosave: %w", err)
	}
	return nil
}

// ThreadMode reports the persisted composer mode. Defaults to false (single
// text mode) when never set.
func (s *Store) ThreadMode(ctx context.Context) (bool, error) {
	raw, ok, err := s.getKV(ctx, threadModeKey)
	if err != nil || !ok {
		return false, err
	}
	return raw == "true", nil
}

// SetThreadMode persists the composer mode.
func (s *Store) SetThreadMode(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.setKV(ctx, threadModeKey, value)
}

func (s *Store) setKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set kv[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) getKV(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv[%s]: %w", key, err)
	}
	return value, true, nil
}
