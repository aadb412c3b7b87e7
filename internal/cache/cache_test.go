package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portal-cli/internal/model"
)

type failingBackend struct {
	saves int
}

func (f *failingBackend) Load(context.Context) (map[string][]byte, error) {
	return nil, errors.New("boom")
}

func (f *failingBackend) Save(context.Context, map[string][]byte) error {
	f.saves++
	return errors.New("disk full")
}

func (f *failingBackend) Describe() string { return "failing" }

func TestFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "2024", "edu_cache.json")

	c := Open[model.Decision](ctx, "education", NewFileBackend(path))
	assert.Zero(t, c.Len())

	d := model.Decision{Offers: model.OffersYes, Link: "https://academy.acme.com", Title: "Acme Academy", Score: 94,
		Reason: []string{model.ReasonTokenInContent, model.ContentKeywordReason(3)}}
	c.Put("acme query", d)
	require.NoError(t, c.Flush(ctx))

	reopened := Open[model.Decision](ctx, "education", NewFileBackend(path))
	got, ok := reopened.Get("acme query")
	require.True(t, ok)
	assert.Equal(t, d, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"offers": "Yes"`)
}

func TestFileBackend_CorruptLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := Open[string](ctx, "content", NewFileBackend(path))
	assert.Zero(t, c.Len())

	// The corrupt file is replaced on the next flush.
	c.Put("https://acme.com", "acme academy")
	require.NoError(t, c.Flush(ctx))

	reopened := Open[string](ctx, "content", NewFileBackend(path))
	v, ok := reopened.Get("https://acme.com")
	require.True(t, ok)
	assert.Equal(t, "acme academy", v)
}

func TestFileBackend_SkipsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ddg_cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"good":{"offers":"No","score":0},"bad":"oops"}`), 0o644))

	c := Open[model.Decision](ctx, "careers", NewFileBackend(path))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestFileBackend_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := Open[string](ctx, "content", NewFileBackend(filepath.Join(dir, "content_cache.json")))
	c.Put("k", "v")
	require.NoError(t, c.Flush(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "content_cache.json", entries[0].Name())
}

func TestFlush_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	b := &failingBackend{}
	c := Open[string](ctx, "content", b)

	c.Put("k", "v")
	require.Error(t, c.Flush(ctx))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	// Still dirty, so the next flush retries.
	require.Error(t, c.Flush(ctx))
	assert.Equal(t, 2, b.saves)

	assert.Equal(t, 1, FlushAll(ctx, c))
}

func TestFlush_CleanCacheSkipsSave(t *testing.T) {
	ctx := context.Background()
	b := &failingBackend{}
	c := Open[string](ctx, "content", b)
	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, b.saves)
}

func TestCache_ConcurrentPut(t *testing.T) {
	c := Open[int](context.Background(), "n", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put(string(rune('a'+i%26)), i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, c.Len())
	assert.Equal(t, "a", c.Keys()[0])
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	careers := Open[model.Decision](ctx, "careers", NewSQLiteBackend(db, "careers"))
	careers.Put("acme careers site", model.Decision{Offers: model.OffersYes, Link: "https://careers.acme.com/jobs", Score: 130})
	require.NoError(t, careers.Flush(ctx))

	// Second flush upserts.
	careers.Put("acme careers site", model.Decision{Offers: model.OffersYes, Link: "https://careers.acme.com", Score: 131})
	require.NoError(t, careers.Flush(ctx))

	reopened := Open[model.Decision](ctx, "careers", NewSQLiteBackend(db, "careers"))
	got, ok := reopened.Get("acme careers site")
	require.True(t, ok)
	assert.Equal(t, 131, got.Score)

	// Namespaces are isolated.
	other := Open[model.Decision](ctx, "education", NewSQLiteBackend(db, "education"))
	assert.Zero(t, other.Len())
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close() //nolint:errcheck

	c := Open[string](ctx, "content", NewRedisBackend(client, "portal:2024", "content"))
	c.Put("https://acme.com/learn", "acme learning paths")
	require.NoError(t, c.Flush(ctx))

	assert.Equal(t, `"acme learning paths"`, mr.HGet("portal:2024:content", "https://acme.com/learn"))

	reopened := Open[string](ctx, "content", NewRedisBackend(client, "portal:2024", "content"))
	v, ok := reopened.Get("https://acme.com/learn")
	require.True(t, ok)
	assert.Equal(t, "acme learning paths", v)
}

func TestFactory_Drivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f := NewFactory(ctx, Options{Driver: DriverJSON, Dir: dir})
	assert.Equal(t, DriverJSON, f.Driver())
	assert.Equal(t, filepath.Join(dir, "ddg_cache.json"), f.Backend("careers", "ddg_cache.json").Describe())
	require.NoError(t, f.Close())

	f = NewFactory(ctx, Options{Driver: DriverSQLite, Dir: dir})
	assert.Equal(t, DriverSQLite, f.Driver())
	assert.Equal(t, "sqlite:careers", f.Backend("careers", "ddg_cache.json").Describe())
	require.NoError(t, f.Close())

	mr := miniredis.RunT(t)
	f = NewFactory(ctx, Options{Driver: DriverRedis, RedisAddr: mr.Addr(), RedisPrefix: "portal:2024"})
	assert.Equal(t, DriverRedis, f.Driver())
	assert.Equal(t, "redis:portal:2024:careers", f.Backend("careers", "ddg_cache.json").Describe())
	require.NoError(t, f.Close())
}

func TestFactory_FallsBackToJSON(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	f := NewFactory(ctx, Options{Driver: DriverRedis, RedisAddr: addr, Dir: dir})
	assert.Equal(t, DriverJSON, f.Driver())

	f = NewFactory(ctx, Options{Driver: "mongo", Dir: dir})
	assert.Equal(t, DriverJSON, f.Driver())
}
