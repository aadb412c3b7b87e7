package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockScraper implements Scraper for testing.
type mockScraper struct {
	name     string
	supports bool
	result   *Result
	err      error
	calls    int
}

func (m *mockScraper) Name() string           { return m.name }
func (m *mockScraper) Supports(_ string) bool { return m.supports }
func (m *mockScraper) Scrape(_ context.Context, _ string) (*Result, error) {
	m.calls++
	return m.result, m.err
}

func TestChain_FirstSuccess(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, result: &Result{Source: "primary"}}
	s2 := &mockScraper{name: "fallback", supports: true}

	result, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Source)
	assert.Zero(t, s2.calls)
}

func TestChain_FallbackOnError(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, err: errors.New("blocked")}
	s2 := &mockScraper{name: "fallback", supports: true, result: &Result{Source: "fallback"}}

	result, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Source)
}

func TestChain_SkipsUnsupported(t *testing.T) {
	s1 := &mockScraper{name: "jina", supports: false, result: &Result{Source: "jina"}}
	s2 := &mockScraper{name: "local", supports: true, result: &Result{Source: "local"}}

	result, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
	assert.Zero(t, s1.calls)
}

func TestChain_AllFail(t *testing.T) {
	s1 := &mockScraper{name: "a", supports: true, err: errors.New("one")}
	s2 := &mockScraper{name: "b", supports: true, err: errors.New("two")}

	_, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two")

	_, err = NewChain().Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable scraper")
}
