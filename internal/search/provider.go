// Package search turns a text query into an ordered list of result links.
package search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/resilience"
	"github.com/sells-group/portal-cli/pkg/jina"
)

// ErrProviderUnavailable is returned by NewProvider when the configured
// provider cannot be constructed.
var ErrProviderUnavailable = eris.New("search: provider unavailable")

// Provider names.
const (
	DuckDuckGo = "duckduckgo"
	Jina       = "jina"
)

// Provider returns up to maxResults results in provider rank order.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
	Name() string
}

// Options configures NewProvider.
type Options struct {
	JinaAPIKey string
	// DuckDuckGoURL overrides the HTML endpoint.
	DuckDuckGoURL string
	Timeout       time.Duration
	Retry         resilience.RetryPolicy
	Breakers      *resilience.Breakers
}

// NewProvider builds the named provider wrapped with retries and a circuit
// breaker.
func NewProvider(name string, opts Options) (Provider, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var p Provider
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DuckDuckGo, "ddg":
		p = NewDuckDuckGo(&http.Client{Timeout: timeout}, opts.DuckDuckGoURL)
	case Jina:
		if opts.JinaAPIKey == "" {
			return nil, eris.Wrap(ErrProviderUnavailable, "jina selected without an api key")
		}
		p = NewJinaProvider(jina.NewClient(opts.JinaAPIKey,
			jina.WithHTTPClient(&http.Client{Timeout: timeout}),
			jina.WithRetries(1, 0),
		))
	default:
		return nil, eris.Wrapf(ErrProviderUnavailable, "unknown provider %q", name)
	}

	return &Resilient{
		Provider: p,
		Breaker:  opts.Breakers.Get("search-" + p.Name()),
		Retry:    opts.Retry,
		Timeout:  timeout,
	}, nil
}

// Resilient decorates a Provider with a per-call timeout, retries of
// transient failures, and a circuit breaker.
type Resilient struct {
	Provider
	Breaker *resilience.Breaker
	Retry   resilience.RetryPolicy
	Timeout time.Duration
}

// Search implements Provider.
func (r *Resilient) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	p := r.Retry
	p.OnRetry = resilience.RetryLogger(r.Provider.Name(), "search")
	return resilience.DoVal(ctx, p, func(ctx context.Context) ([]model.SearchResult, error) {
		if r.Breaker == nil {
			return r.Provider.Search(ctx, query, maxResults)
		}
		return resilience.Call(ctx, r.Breaker, func(ctx context.Context) ([]model.SearchResult, error) {
			return r.Provider.Search(ctx, query, maxResults)
		})
	})
}
