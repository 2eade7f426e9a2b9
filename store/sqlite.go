package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Backend = (*SQLiteBackend)(nil)

// SQLiteBackend is a persistent Backend backed by SQLite.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) a SQLite database at the given path
// and initialises the schema. Use ":memory:" for an in-memory database.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS livemetro_cache (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create table")
	}

	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM livemetro_cache WHERE key = ?`, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return value, nil
}

func (s *SQLiteBackend) SetItem(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO livemetro_cache (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())

	return errors.WithStack(err)
}

func (s *SQLiteBackend) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM livemetro_cache WHERE key = ?`, key)

	return errors.WithStack(err)
}

func (s *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM livemetro_cache`)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.WithStack(err)
		}
		keys = append(keys, k)
	}

	return keys, errors.WithStack(rows.Err())
}

func (s *SQLiteBackend) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM livemetro_cache WHERE key = ?`, k); err != nil {
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(tx.Commit())
}

// Close closes the underlying database handle.
func (s *SQLiteBackend) Close() error {
	return errors.WithStack(s.db.Close())
}
