package cache

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Options selects and configures the cache store.
type Options struct {
	Driver string

	// Dir holds JSON files and the SQLite database.
	Dir           string
	SQLiteFile    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// PostgresPrefix scopes namespaces in the shared cache_entries table.
	PostgresURL    string
	PostgresPrefix string
}

// Factory hands out backends over one shared store connection.
type Factory struct {
	opts   Options
	driver string
	db     *sql.DB
	rdb    *redis.Client
	pg     *pgxpool.Pool
}

// NewFactory opens the configured store. When the store cannot be opened the
// factory logs a warning and falls back to JSON files in opts.Dir.
func NewFactory(ctx context.Context, opts Options) *Factory {
	f := &Factory{opts: opts, driver: DriverJSON}

	switch opts.Driver {
	case "", DriverJSON:
	case DriverSQLite:
		name := opts.SQLiteFile
		if name == "" {
			name = "cache.db"
		}
		db, err := OpenSQLite(ctx, filepath.Join(opts.Dir, name))
		if err != nil {
			zap.L().Warn("cache: sqlite unavailable, using json files", zap.Error(err))
			break
		}
		f.db = db
		f.driver = DriverSQLite
	case DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			Password:     opts.RedisPassword,
			DB:           opts.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.L().Warn("cache: redis unavailable, using json files",
				zap.String("addr", opts.RedisAddr), zap.Error(err))
			rdb.Close() //nolint:errcheck
			break
		}
		f.rdb = rdb
		f.driver = DriverRedis
	case DriverPostgres:
		pool, err := OpenPostgres(ctx, opts.PostgresURL)
		if err != nil {
			zap.L().Warn("cache: postgres unavailable, using json files", zap.Error(err))
			break
		}
		f.pg = pool
		f.driver = DriverPostgres
	default:
		zap.L().Warn("cache: unknown driver, using json files", zap.String("driver", opts.Driver))
	}
	return f
}

// Driver returns the driver actually in use.
func (f *Factory) Driver() string { return f.driver }

// Backend returns the backend for one named cache. fileName is used only by
// the JSON driver.
func (f *Factory) Backend(namespace, fileName string) Backend {
	switch f.driver {
	case DriverSQLite:
		return NewSQLiteBackend(f.db, namespace)
	case DriverRedis:
		return NewRedisBackend(f.rdb, f.opts.RedisPrefix, namespace)
	case DriverPostgres:
		return NewPostgresBackend(f.pg, f.opts.PostgresPrefix, namespace)
	default:
		return NewFileBackend(filepath.Join(f.opts.Dir, fileName))
	}
}

// Close releases the store connection.
func (f *Factory) Close() error {
	switch {
	case f.db != nil:
		return eris.Wrap(f.db.Close(), "cache: close sqlite")
	case f.rdb != nil:
		return eris.Wrap(f.rdb.Close(), "cache: close redis")
	case f.pg != nil:
		f.pg.Close()
	}
	return nil
}
