// Package sqlite provides a SQLite-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/messenger/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/messenger/internal/services/records"
	"github.com/louisbranch/messenger/internal/services/records/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists record leaves in one SQLite table keyed by full path.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite record store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Subtree replacement reads then writes; one connection keeps writers serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the subtree stored at path.
func (s *Store) Get(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, errors.New("storage is not configured")
	}
	clean, err := records.CleanPath(path)
	if err != nil {
		return nil, err
	}

	lower, upper := records.SubtreeBounds(clean)
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT path, value_json FROM records
		 WHERE path = ? OR (path >= ? AND path < ?)
		 ORDER BY path`,
		clean, lower, upper,
	)
	if err != nil {
		return nil, classify("get", clean, err)
	}
	defer rows.Close()

	var leaves []records.Row
	for rows.Next() {
		var (
			leafPath string
			payload  string
		)
		if err := rows.Scan(&leafPath, &payload); err != nil {
			return nil, classify("get", clean, err)
		}
		leaves = append(leaves, records.Row{Path: leafPath, Value: []byte(payload)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("get", clean, err)
	}
	return records.Assemble(clean, leaves)
}

// Set replaces the subtree at path with value in one transaction.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	clean, err := records.CleanPath(path)
	if err != nil {
		return err
	}
	leaves, err := records.Flatten(clean, value)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classify("set", clean, err)
	}
	defer func() { _ = tx.Rollback() }()

	lower, upper := records.SubtreeBounds(clean)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE path = ? OR (path >= ? AND path < ?)`,
		clean, lower, upper,
	); err != nil {
		return classify("set", clean, err)
	}
	for _, ancestor := range records.Ancestors(clean) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, ancestor); err != nil {
			return classify("set", clean, err)
		}
	}

	updatedAt := s.now().UTC().UnixMilli()
	for _, leaf := range leaves {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (path, value_json, updated_at) VALUES (?, ?, ?)`,
			leaf.Path, string(leaf.Value), updatedAt,
		); err != nil {
			return classify("set", clean, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("set", clean, err)
	}
	return nil
}

// classify maps driver failures onto the record store taxonomy. Busy and
// I/O conditions are transient; constraint failures are programming errors.
func classify(op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return records.Unavailable(op, path, err)
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_CONSTRAINT:
			return fmt.Errorf("%s %s: %w", op, path, err)
		}
	}
	return records.Unavailable(op, path, err)
}
