package cache

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (namespace, key)
);
`

// OpenSQLite opens a SQLite database at dsn, configures WAL mode and
// creates the cache table.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return db, nil
}

// SQLiteBackend stores one namespace of the cache_entries table.
type SQLiteBackend struct {
	db        *sql.DB
	namespace string
}

// NewSQLiteBackend returns a backend over an already migrated database.
func NewSQLiteBackend(db *sql.DB, namespace string) *SQLiteBackend {
	return &SQLiteBackend{db: db, namespace: namespace}
}

// Describe implements Backend.
func (s *SQLiteBackend) Describe() string { return "sqlite:" + s.namespace }

// Load implements Backend.
func (s *SQLiteBackend) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM cache_entries WHERE namespace = ?`, s.namespace)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load cache entries")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string][]byte)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache entry")
		}
		out[k] = []byte(v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate cache entries")
}

// Save implements Backend. All rows are upserted in one transaction.
func (s *SQLiteBackend) Save(ctx context.Context, entries map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for k, v := range entries {
		if _, err := stmt.ExecContext(ctx, s.namespace, k, string(v)); err != nil {
			return eris.Wrapf(err, "sqlite: upsert %q", k)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}
