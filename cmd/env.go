package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/cache"
	"github.com/sells-group/portal-cli/internal/config"
	"github.com/sells-group/portal-cli/internal/metrics"
	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/records"
	"github.com/sells-group/portal-cli/internal/resilience"
	"github.com/sells-group/portal-cli/internal/resolve"
	"github.com/sells-group/portal-cli/internal/scrape"
	"github.com/sells-group/portal-cli/internal/search"
	"github.com/sells-group/portal-cli/pkg/jina"
)

// resolveEnv holds the store, caches and clients behind one resolver run.
type resolveEnv struct {
	Layout    records.Layout
	Factory   *cache.Factory
	Metrics   *metrics.Metrics
	Breakers  *resilience.Breakers
	Decisions *cache.Cache[model.Decision]
	Content   *cache.Cache[string] // nil for flavors without a content pass
	Resolver  *resolve.Resolver
}

// Close releases the cache store.
func (e *resolveEnv) Close() {
	if e.Factory != nil {
		if err := e.Factory.Close(); err != nil {
			zap.L().Warn("close cache store", zap.Error(err))
		}
	}
}

// Caches lists every cache the run must persist.
func (e *resolveEnv) Caches() []cache.Flusher {
	out := []cache.Flusher{e.Decisions}
	if e.Content != nil {
		out = append(out, e.Content)
	}
	return out
}

// health feeds /healthz.
func (e *resolveEnv) health() map[string]any {
	h := map[string]any{
		"flavor":        e.Resolver.Flavor().Name,
		"year":          e.Layout.Year,
		"cache_driver":  e.Factory.Driver(),
		"decisions":     e.Decisions.Len(),
		"open_breakers": e.Breakers.Open(),
	}
	if e.Content != nil {
		h["pages"] = e.Content.Len()
	}
	return h
}

// initResolveEnv opens the caches for the layout's year and builds the
// resolver for flavorName. Callers should defer env.Close().
func initResolveEnv(ctx context.Context, c *config.Config, l records.Layout, flavorName string) (*resolveEnv, error) {
	if err := c.Validate(flavorName); err != nil {
		return nil, err
	}
	flavor, err := buildFlavor(flavorName, c)
	if err != nil {
		return nil, err
	}
	if err := l.Ensure(); err != nil {
		return nil, err
	}

	retry := resilience.PolicyFrom(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	breakers := resilience.NewBreakers(resilience.BreakerFrom(c.Breaker.FailureThreshold, c.Breaker.CooldownSecs))
	m := metrics.New()

	provider, err := search.NewProvider(c.Search.Provider, search.Options{
		JinaAPIKey:    c.Jina.Key,
		DuckDuckGoURL: c.Search.DuckDuckGoURL,
		Timeout:       time.Duration(c.Search.TimeoutSecs) * time.Second,
		Retry:         retry,
		Breakers:      breakers,
	})
	if err != nil {
		return nil, err
	}

	factory := cache.NewFactory(ctx, cache.Options{
		Driver:        c.Cache.Driver,
		Dir:           l.Dir(),
		SQLiteFile:    records.SQLiteCacheFile,
		RedisAddr:     c.Cache.RedisAddr,
		RedisPassword: c.Cache.RedisPassword,
		RedisDB:       c.Cache.RedisDB,
		RedisPrefix:   fmt.Sprintf("%s:%d", c.Cache.RedisPrefix, l.Year),

		PostgresURL:    c.Cache.PostgresURL,
		PostgresPrefix: strconv.Itoa(l.Year),
	})

	env := &resolveEnv{Layout: l, Factory: factory, Metrics: m, Breakers: breakers}

	decisionFile := records.CareersCacheFile
	if flavorName == "education" {
		decisionFile = records.EducationCacheFile
	}
	env.Decisions = cache.Open[model.Decision](ctx, flavor.Name, factory.Backend(flavor.Name, decisionFile))

	var fetcher resolve.ContentFetcher
	if flavor.ContentPass {
		env.Content = cache.Open[string](ctx, scrape.ContentCacheName,
			factory.Backend(scrape.ContentCacheName, records.ContentCacheFile))

		timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
		scrapers := []scrape.Scraper{scrape.NewLocalScraper(timeout)}
		if c.Fetch.JinaFallback {
			client := jina.NewClient(c.Jina.Key,
				jina.WithBaseURL(c.Jina.BaseURL),
				jina.WithSearchBaseURL(c.Jina.SearchBaseURL),
			)
			scrapers = append(scrapers, scrape.NewJinaAdapter(client, breakers.Get("jina-reader")))
		}
		fetcher = scrape.NewFetcher(scrape.NewChain(scrapers...), env.Content,
			scrape.WithTimeout(timeout),
			scrape.WithMaxChars(c.Fetch.MaxChars),
			scrape.WithRetry(retry),
			scrape.WithMetrics(m),
		)
	}

	env.Resolver = resolve.New(flavor, provider, fetcher, env.Decisions, resolve.WithMetrics(m))

	zap.L().Info("resolver ready",
		zap.String("flavor", flavor.Name),
		zap.Int("year", l.Year),
		zap.String("search", provider.Name()),
		zap.String("cache_driver", factory.Driver()),
		zap.Int("cached_decisions", env.Decisions.Len()),
	)
	return env, nil
}
