package model

import (
	"net/url"
	"strings"
)

// SearchResult is a raw record returned by a search provider.
type SearchResult struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// Candidate is a search result under evaluation. It lives for one resolution.
type Candidate struct {
	Href       string
	Title      string
	SourceRank int // 0-based position in the provider's result list
	Netloc     string
	Path       string
}

// NewCandidate derives the host and path of a search result. Hosts and paths
// are lowercased; an unparsable href yields an empty host.
func NewCandidate(r SearchResult, rank int) Candidate {
	href := strings.TrimSpace(r.Href)
	c := Candidate{
		Href:       href,
		Title:      r.Title,
		SourceRank: rank,
	}
	c.Netloc, c.Path = SplitURL(href)
	return c
}

// SplitURL returns the lowercased host and path of rawURL.
func SplitURL(rawURL string) (netloc, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	return strings.ToLower(u.Host), strings.ToLower(u.Path)
}

// ScoredCandidate carries the scores computed for a Candidate.
type ScoredCandidate struct {
	Candidate
	PrelimScore           int
	ContentKeywordMatches int
	TokenMatch            bool
	FinalScore            int
}
