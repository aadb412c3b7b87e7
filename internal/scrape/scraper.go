// Package scrape turns a URL into plain page text, trying a direct HTTP
// fetch first and the Jina Reader second.
package scrape

import "context"

// Page is the text content of one fetched URL.
type Page struct {
	URL        string
	Title      string
	Text       string
	StatusCode int
}

// Result holds a page with the name of the scraper that produced it.
type Result struct {
	Page   Page
	Source string
}

// Scraper fetches a single URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
