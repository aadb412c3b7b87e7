package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/resilience"
)

const defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGoProvider scrapes the keyless DuckDuckGo HTML endpoint.
type DuckDuckGoProvider struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGo creates a provider; an empty baseURL uses the public endpoint.
func NewDuckDuckGo(client *http.Client, baseURL string) *DuckDuckGoProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	return &DuckDuckGoProvider{client: client, baseURL: baseURL}
}

func (d *DuckDuckGoProvider) Name() string { return DuckDuckGo }

// Search implements Provider.
func (d *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	form := url.Values{"q": {query}, "kl": {"wt-wt"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: request")
	}
	defer func() { _ = resp.Body.Close() }()

	// 202 is served in place of results when the endpoint throttles.
	if resp.StatusCode == http.StatusAccepted {
		return nil, resilience.NewTransientError(eris.New("duckduckgo: throttled"), resp.StatusCode)
	}
	if err := resilience.CheckStatus("duckduckgo", resp.StatusCode); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: parse results")
	}
	return parseResults(doc, maxResults), nil
}

func parseResults(doc *goquery.Document, maxResults int) []model.SearchResult {
	var out []model.SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		out = append(out, model.SearchResult{
			Title: strings.TrimSpace(a.Text()),
			Href:  resolveRedirect(href),
		})
		return maxResults <= 0 || len(out) < maxResults
	})
	return out
}

// resolveRedirect unwraps "//duckduckgo.com/l/?uddg=<target>" links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}
