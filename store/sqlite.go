package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/formkeep/internal/dbopen"
)

// Schema contains the DDL for the browser-scoped backend.
const Schema = `
CREATE TABLE IF NOT EXISTS form_state (
    key        TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLite is the browser-scoped backend: state survives process restarts.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path, applying the
// formkeep pragmas and schema. The caller must blank-import a driver:
//
//	import _ "modernc.org/sqlite"
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &SQLite{db: db}, nil
}

// NewSQLite wraps an already-open database (tests use dbopen.OpenMemory).
// The schema must have been applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM form_state WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %w", ErrUnavailable, key, err)
	}
	return payload, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_state (key, payload, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload,
			updated_at = excluded.updated_at`,
		key, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: set %q: %w", ErrUnavailable, key, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM form_state WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: remove %q: %w", ErrUnavailable, key, err)
	}
	return nil
}

// likePattern turns a literal prefix into a LIKE pattern, escaping the
// wildcards so a configured prefix containing % or _ matches literally.
func likePattern(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM form_state WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		likePattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: keys: %w", ErrUnavailable, err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
