package cache

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresBackend.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
);
`

const postgresUpsert = `INSERT INTO cache_entries (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// OpenPostgres connects a small pool to connString and creates the cache
// table.
func OpenPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	if err := MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// MigratePostgres creates the cache table if it does not exist.
func MigratePostgres(ctx context.Context, pool PgxPool) error {
	_, err := pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// PostgresBackend stores one namespace of the cache_entries table. The
// namespace carries the run prefix, so several years share one database.
type PostgresBackend struct {
	pool      PgxPool
	namespace string
}

// NewPostgresBackend returns a backend for prefix:namespace.
func NewPostgresBackend(pool PgxPool, prefix, namespace string) *PostgresBackend {
	if prefix != "" {
		namespace = prefix + ":" + namespace
	}
	return &PostgresBackend{pool: pool, namespace: namespace}
}

// Describe implements Backend.
func (p *PostgresBackend) Describe() string { return "postgres:" + p.namespace }

// Load implements Backend.
func (p *PostgresBackend) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, value FROM cache_entries WHERE namespace = $1`, p.namespace)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load cache entries")
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache entry")
		}
		out[k] = []byte(v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate cache entries")
}

// Save implements Backend. Rows are upserted in key order inside one
// transaction.
func (p *PostgresBackend) Save(ctx context.Context, entries map[string][]byte) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, k := range keys {
		if _, err := tx.Exec(ctx, postgresUpsert, p.namespace, k, string(entries[k])); err != nil {
			return eris.Wrapf(err, "postgres: upsert %q", k)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}
