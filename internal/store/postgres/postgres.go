// Package postgres persists the link collection in PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/customlinks/internal/links"
)

const (
	schemaSQL = `
		CREATE TABLE IF NOT EXISTS custom_links (
			id       TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			record   JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS custom_links_position_idx ON custom_links (position);
	`
	listSQL      = `SELECT id, record FROM custom_links ORDER BY position`
	deleteAllSQL = `DELETE FROM custom_links`
	insertSQL    = `INSERT INTO custom_links (id, position, record) VALUES ($1, $2, $3)`
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements links.Store on a custom_links table.
type Store struct {
	db     DB
	logger *slog.Logger
}

var _ links.Store = (*Store)(nil)

type row struct {
	ID     string
	Record []byte
}

// New returns a store using db. Call EnsureSchema before first use.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "store", "db", "postgres"),
	}
}

// EnsureSchema creates the custom_links table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create custom_links table: %w", err)
	}
	return nil
}

// Load returns the stored links ordered by position.
func (s *Store) Load(ctx context.Context) ([]links.Entry, error) {
	start := time.Now()

	rows, err := s.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	got, err := pgx.CollectRows(rows, pgx.RowToStructByPos[row])
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	out := make([]links.Entry, 0, len(got))
	for _, r := range got {
		var f links.Fields
		if err := json.Unmarshal(r.Record, &f); err != nil {
			return nil, fmt.Errorf("link %s: decode record: %w", r.ID, err)
		}
		rec, err := links.DecodeRecord(f)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", r.ID, err)
		}
		out = append(out, links.Entry{ID: r.ID, Record: rec})
	}

	s.logger.Debug("sql", "stmt", "ListLinks", "duration_ms", time.Since(start).Milliseconds(), "rows", len(out))
	return out, nil
}

// Save replaces every row in one transaction, inserting through a batch.
func (s *Store) Save(ctx context.Context, entries []links.Entry) error {
	start := time.Now()

	batch := &pgx.Batch{}
	for i, e := range entries {
		payload, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("encode link %s: %w", e.ID, err)
		}
		batch.Queue(insertSQL, e.ID, i, json.RawMessage(payload))
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteAllSQL); err != nil {
			return fmt.Errorf("clear links: %w", err)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert links: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("sql", "stmt", "SaveLinks", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return err
	}

	s.logger.Debug("sql", "stmt", "SaveLinks", "duration_ms", time.Since(start).Milliseconds(), "rows", len(entries))
	return nil
}
