package scrape

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/cache"
	"github.com/sells-group/portal-cli/internal/metrics"
	"github.com/sells-group/portal-cli/internal/resilience"
)

// ContentCacheName is the cache namespace for URL to page text.
const ContentCacheName = "content"

// Fetcher resolves a URL to lowercased page text, title included, through a
// content cache.
// Every URL it is asked for is cached, failures as "", so a URL is fetched
// at most once across runs sharing the cache.
type Fetcher struct {
	scraper  Scraper
	cache    *cache.Cache[string]
	metrics  *metrics.Metrics
	retry    resilience.RetryPolicy
	timeout  time.Duration
	maxChars int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout bounds each fetch, retries included.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.timeout = d }
}

// WithMaxChars truncates stored text; 0 keeps everything.
func WithMaxChars(n int) FetcherOption {
	return func(f *Fetcher) { f.maxChars = n }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p resilience.RetryPolicy) FetcherOption {
	return func(f *Fetcher) { f.retry = p }
}

// WithMetrics records cache lookups and fetch failures.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher creates a Fetcher over s and c. A nil cache disables caching.
func NewFetcher(s Scraper, c *cache.Cache[string], opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		scraper: s,
		cache:   c,
		retry:   resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: 500 * time.Millisecond},
		timeout: 8 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the page text, or "" when the page cannot be fetched. It
// never fails. Nothing is cached when ctx itself is canceled.
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	if f.cache != nil {
		if text, ok := f.cache.Get(url); ok {
			f.metrics.CacheLookup(ContentCacheName, true)
			return text
		}
		f.metrics.CacheLookup(ContentCacheName, false)
	}

	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	p := f.retry
	p.OnRetry = resilience.RetryLogger("fetch", url)
	res, err := resilience.DoVal(callCtx, p, func(ctx context.Context) (*Result, error) {
		return f.scraper.Scrape(ctx, url)
	})
	if ctx.Err() != nil {
		return ""
	}

	text := ""
	if err != nil {
		f.metrics.UpstreamError("fetch")
		zap.L().Warn("scrape: fetch failed, using empty text",
			zap.String("url", url),
			zap.Error(err),
		)
	} else {
		text = f.normalize(withTitle(res.Page))
		zap.L().Debug("scrape: fetched",
			zap.String("url", url),
			zap.String("source", res.Source),
			zap.Int("chars", len(text)),
		)
	}

	if f.cache != nil {
		f.cache.Put(url, text)
	}
	return text
}

// withTitle puts the document title in front of the body text unless the
// body already carries it.
func withTitle(p Page) string {
	title := strings.TrimSpace(p.Title)
	if title == "" || strings.Contains(strings.ToLower(p.Text), strings.ToLower(title)) {
		return p.Text
	}
	return title + " " + p.Text
}

func (f *Fetcher) normalize(text string) string {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	if f.maxChars > 0 {
		r := []rune(text)
		if len(r) > f.maxChars {
			text = string(r[:f.maxChars])
		}
	}
	return text
}
