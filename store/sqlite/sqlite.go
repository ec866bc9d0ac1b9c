// Package sqlite provides a SQLite-backed core.ConversationStore using the
// pure-Go modernc.org/sqlite driver, so no cgo toolchain is required.
//
// Turns and metadata are stored as JSON documents alongside indexed owner
// and timestamp columns, which keeps the schema stable while still allowing
// the Query filters (agent kind/name, date range, pagination) to run in SQL.
// WAL mode is enabled to support concurrent readers while a write is in
// flight.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentcrew/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id              TEXT PRIMARY KEY,
	agent_kind      TEXT NOT NULL,
	agent_name      TEXT NOT NULL,
	created_unix_ms INTEGER NOT NULL,
	updated_unix_ms INTEGER NOT NULL,
	turn_count      INTEGER NOT NULL,
	turns_json      TEXT NOT NULL,
	metadata_json   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_owner   ON conversations(agent_kind, agent_name);
CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_unix_ms);
`

// Store is a SQLite-backed conversation store.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema
// exists. The parent directory is created if needed.
func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// Store inserts or wholesale-replaces the conversation with the given ID in
// a single statement, so writes are never partially applied.
func (s *Store) Store(ctx context.Context, conv *core.Conversation) error {
	turnsJSON, metaJSON, err := encode(conv)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, agent_kind, agent_name, created_unix_ms, updated_unix_ms, turn_count, turns_json, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_kind      = excluded.agent_kind,
			agent_name      = excluded.agent_name,
			created_unix_ms = excluded.created_unix_ms,
			updated_unix_ms = excluded.updated_unix_ms,
			turn_count      = excluded.turn_count,
			turns_json      = excluded.turns_json,
			metadata_json   = excluded.metadata_json`,
		conv.ID, string(conv.AgentKind), conv.AgentName,
		conv.Created.UnixMilli(), conv.Updated.UnixMilli(),
		len(conv.Turns), turnsJSON, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

// Get returns the conversation with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*core.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_kind, agent_name, created_unix_ms, updated_unix_ms, turns_json, metadata_json
		FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrConversationNotFound
	}
	return conv, err
}

// Update replaces an existing conversation; the ID must already be present.
func (s *Store) Update(ctx context.Context, conv *core.Conversation) error {
	turnsJSON, metaJSON, err := encode(conv)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			agent_kind = ?, agent_name = ?, created_unix_ms = ?, updated_unix_ms = ?,
			turn_count = ?, turns_json = ?, metadata_json = ?
		WHERE id = ?`,
		string(conv.AgentKind), conv.AgentName,
		conv.Created.UnixMilli(), conv.Updated.UnixMilli(),
		len(conv.Turns), turnsJSON, metaJSON, conv.ID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrConversationNotFound
	}
	return nil
}

// Delete removes the conversation with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrConversationNotFound
	}
	return nil
}

// Query returns conversations matching the filter, ordered
// most-recently-updated-first.
func (s *Store) Query(ctx context.Context, filter core.Filter) ([]*core.Conversation, error) {
	var (
		where []string
		args  []any
	)
	if filter.AgentKind != "" {
		where = append(where, "agent_kind = ?")
		args = append(args, string(filter.AgentKind))
	}
	if filter.AgentName != "" {
		where = append(where, "agent_name = ?")
		args = append(args, filter.AgentName)
	}
	if filter.Since != nil {
		where = append(where, "updated_unix_ms >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if filter.Until != nil {
		where = append(where, "updated_unix_ms <= ?")
		args = append(args, filter.Until.UnixMilli())
	}

	query := `SELECT id, agent_kind, agent_name, created_unix_ms, updated_unix_ms, turns_json, metadata_json FROM conversations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_unix_ms DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means unbounded.
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []*core.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Stats summarizes the store's contents.
func (s *Store) Stats(ctx context.Context) (*core.StoreStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(turn_count), 0), MIN(created_unix_ms), MAX(updated_unix_ms)
		FROM conversations`)

	var (
		stats  core.StoreStats
		oldest sql.NullInt64
		newest sql.NullInt64
	)
	if err := row.Scan(&stats.Count, &stats.TotalTurns, &oldest, &newest); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		stats.Oldest = &t
	}
	if newest.Valid {
		t := time.UnixMilli(newest.Int64).UTC()
		stats.Newest = &t
	}
	return &stats, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(sc scanner) (*core.Conversation, error) {
	var (
		conv      core.Conversation
		kind      string
		createdMs int64
		updatedMs int64
		turnsJSON string
		metaJSON  string
	)
	if err := sc.Scan(&conv.ID, &kind, &conv.AgentName, &createdMs, &updatedMs, &turnsJSON, &metaJSON); err != nil {
		return nil, err
	}

	conv.AgentKind = core.AgentKind(kind)
	conv.Created = time.UnixMilli(createdMs).UTC()
	conv.Updated = time.UnixMilli(updatedMs).UTC()

	if err := json.Unmarshal([]byte(turnsJSON), &conv.Turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &conv.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &conv, nil
}

func encode(conv *core.Conversation) (turnsJSON, metaJSON string, err error) {
	turns, err := json.Marshal(conv.Turns)
	if err != nil {
		return "", "", fmt.Errorf("encode turns: %w", err)
	}
	meta := conv.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(turns), string(raw), nil
}
