// Package sqlite persists the link collection in a SQLite database using
// the pure-Go modernc.org/sqlite driver.
//
// Each row holds one link: its id, its position in the collection and the
// JSON payload of its attributes. Save rewrites every row inside a single
// transaction, so a failed Save leaves the previous collection in place.
// The database runs in WAL mode with a single connection; the registry
// already serialises writers.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sundayezeilo/customlinks/internal/links"
)

//go:embed schema.sql
var schemaSQL string

const (
	listSQL      = `SELECT id, record FROM custom_links ORDER BY position`
	deleteAllSQL = `DELETE FROM custom_links`
	insertSQL    = `INSERT INTO custom_links (id, position, record) VALUES (?, ?, ?)`
)

// msec formats a duration as milliseconds with 3 decimal places.
func msec(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Microseconds())/1000)
}

// Store implements links.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmtList      *sql.Stmt
	stmtDeleteAll *sql.Stmt
	stmtInsert    *sql.Stmt
}

var _ links.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := open(ctx, dsn(dbPath, [][2]string{{"journal_mode", "WAL"}, {"busy_timeout", "5000"}}), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened database", "path", dbPath)
	return s, nil
}

// NewInMemory opens a private in-memory database.
func NewInMemory(ctx context.Context, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	s, err := open(ctx, dsn(":memory:", nil), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened in-memory database")
	return s, nil
}

func open(ctx context.Context, source string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and visible.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error
	if s.stmtList, err = s.db.PrepareContext(ctx, listSQL); err != nil {
		return fmt.Errorf("prepare list: %w", err)
	}
	if s.stmtDeleteAll, err = s.db.PrepareContext(ctx, deleteAllSQL); err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	if s.stmtInsert, err = s.db.PrepareContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	return nil
}

// Close releases the prepared statements and the database.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtList, s.stmtDeleteAll, s.stmtInsert} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// Load returns the stored links ordered by position.
func (s *Store) Load(ctx context.Context) ([]links.Entry, error) {
	start := time.Now()

	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		s.logger.Debug("sql", "stmt", "ListLinks", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	out := []links.Entry{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		rec, err := decodePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", id, err)
		}
		out = append(out, links.Entry{ID: id, Record: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}

	s.logger.Debug("sql", "stmt", "ListLinks", "duration_ms", msec(time.Since(start)), "rows", len(out))
	return out, nil
}

// Save replaces every row in one transaction.
func (s *Store) Save(ctx context.Context, entries []links.Entry) error {
	start := time.Now()

	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		b, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("encode link %s: %w", e.ID, err)
		}
		payloads[i] = b
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.stmtDeleteAll).ExecContext(ctx); err != nil {
		s.logger.Debug("sql", "stmt", "DeleteLinks", "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("clear links: %w", err)
	}

	insert := tx.StmtContext(ctx, s.stmtInsert)
	for i, e := range entries {
		if _, err := insert.ExecContext(ctx, e.ID, i, string(payloads[i])); err != nil {
			s.logger.Debug("sql", "stmt", "InsertLink", "args", []any{e.ID, i}, "duration_ms", msec(time.Since(start)), "error", err)
			return fmt.Errorf("insert link %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("sql", "stmt", "SaveLinks", "duration_ms", msec(time.Since(start)), "rows", len(entries))
	return nil
}

func decodePayload(raw []byte) (links.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var f links.Fields
	if err := dec.Decode(&f); err != nil {
		return links.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return links.DecodeRecord(f)
}
