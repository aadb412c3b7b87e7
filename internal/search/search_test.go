package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/resilience"
	"github.com/sells-group/portal-cli/pkg/jina"
	jinamocks "github.com/sells-group/portal-cli/pkg/jina/mocks"
)

const ddgPage = `<html><body>
<div class="result result--ad"><a class="result__a" href="https://ads.example/acme">Sponsored</a></div>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fcareers.acme.com%2Fjobs&rut=abc">Careers at <b>Acme</b></a></div>
<div class="result"><a class="result__a" href="https://en.wikipedia.org/wiki/Acme_Corp">Acme Corp - Wikipedia</a></div>
<div class="result"><a class="result__a" href="https://www.linkedin.com/company/acme">Acme | LinkedIn</a></div>
<div class="result"><span>no link</span></div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Acme Corp careers site", r.PostForm.Get("q"))
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	p := NewDuckDuckGo(srv.Client(), srv.URL)
	got, err := p.Search(context.Background(), "Acme Corp careers site", 2)
	require.NoError(t, err)
	assert.Equal(t, []model.SearchResult{
		{Title: "Careers at Acme", Href: "https://careers.acme.com/jobs"},
		{Title: "Acme Corp - Wikipedia", Href: "https://en.wikipedia.org/wiki/Acme_Corp"},
	}, got)
}

func TestDuckDuckGo_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := NewDuckDuckGo(srv.Client(), srv.URL).Search(context.Background(), "acme", 10)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestResolveRedirect(t *testing.T) {
	assert.Equal(t, "https://acme.com/learn", resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.com%2Flearn"))
	assert.Equal(t, "https://acme.com", resolveRedirect("https://acme.com"))
	assert.Equal(t, "//duckduckgo.com/l/", resolveRedirect("//duckduckgo.com/l/"))
}

func TestJinaProvider_Search(t *testing.T) {
	client := jinamocks.NewMockClient(t)
	client.On("Search", mock.Anything, "acme careers site").Return(&jina.SearchResponse{Data: []jina.SearchResult{
		{Title: "Careers", URL: "https://careers.acme.com"},
		{Title: "Jobs", URL: "https://jobs.acme.com"},
		{Title: "Wiki", URL: "https://en.wikipedia.org/wiki/Acme"},
	}}, nil)

	got, err := NewJinaProvider(client).Search(context.Background(), "acme careers site", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://jobs.acme.com", got[1].Href)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("DuckDuckGo", Options{})
	require.NoError(t, err)
	assert.Equal(t, DuckDuckGo, p.Name())

	p, err = NewProvider("jina", Options{JinaAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, Jina, p.Name())

	_, err = NewProvider("jina", Options{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = NewProvider("bing", Options{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

type stubProvider struct {
	calls atomic.Int32
	err   error
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Search(context.Context, string, int) ([]model.SearchResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []model.SearchResult{{Href: "https://acme.com"}}, nil
}

func TestResilient_RetriesTransient(t *testing.T) {
	stub := &stubProvider{err: resilience.NewTransientError(errors.New("busy"), 503)}
	r := &Resilient{
		Provider: stub,
		Retry:    resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Timeout:  time.Second,
	}
	_, err := r.Search(context.Background(), "acme", 10)
	require.Error(t, err)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestResilient_BreakerShortCircuits(t *testing.T) {
	stub := &stubProvider{err: errors.New("403")}
	r := &Resilient{
		Provider: stub,
		Breaker:  resilience.NewBreaker("search-stub", resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute}),
		Retry:    resilience.RetryPolicy{MaxAttempts: 1},
	}
	_, _ = r.Search(context.Background(), "acme", 10)
	_, err := r.Search(context.Background(), "acme", 10)
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(1), stub.calls.Load())
}
