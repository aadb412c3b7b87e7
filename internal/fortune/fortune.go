// Package fortune scrapes the yearly Fortune India 500 ranking into a ranked
// company list.
package fortune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/records"
	"github.com/sells-group/portal-cli/internal/resilience"
)

const (
	// DefaultBaseURL hosts the ranking pages.
	DefaultBaseURL = "https://www.fortuneindia.com"
	userAgent      = "Mozilla/5.0 (compatible; portal-cli/1.0; fortune-ranking)"
)

// Company is one ranked entry.
type Company struct {
	Rank        int    `json:"rank"`
	CompanyName string `json:"company_name"`
}

// ErrNoCompanies is returned when a page yields no entries.
var ErrNoCompanies = eris.New("fortune: no companies found")

var rowPattern = regexp.MustCompile(`^\s*(\d{1,3})[.\s-]*\s+(.{2,200})$`)

// Scraper downloads ranking pages.
type Scraper struct {
	client  *http.Client
	baseURL string
	retry   resilience.RetryPolicy
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithBaseURL points the scraper at another host.
func WithBaseURL(u string) Option {
	return func(s *Scraper) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default 20s client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithRetry sets the download retry policy.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(s *Scraper) { s.retry = p }
}

// NewScraper creates a Scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: DefaultBaseURL,
		retry:   resilience.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the ranking page for year.
func (s *Scraper) URL(year int) string {
	return fmt.Sprintf("%s/rankings/fortune-500/%d", s.baseURL, year)
}

// Scrape downloads and parses the ranking for year.
func (s *Scraper) Scrape(ctx context.Context, year int) ([]Company, error) {
	url := s.URL(year)
	policy := s.retry
	policy.OnRetry = resilience.RetryLogger("fortune", "download")

	body, err := resilience.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return s.download(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fortune: parse html")
	}

	companies := Parse(doc)
	if len(companies) == 0 {
		return nil, eris.Wrapf(ErrNoCompanies, "fortune: %s", url)
	}
	zap.L().Info("fortune: scraped ranking",
		zap.Int("year", year),
		zap.Int("companies", len(companies)),
	)
	return companies, nil
}

func (s *Scraper) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fortune: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fortune: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := resilience.CheckStatus("fortune", resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fortune: read body")
	}
	return body, nil
}

// Parse extracts the ranking. Company profile links are preferred, in page
// order; otherwise rows shaped like "<rank> <name>" are scanned. Names are
// de-duplicated case-insensitively and ranks renumbered from 1.
func Parse(doc *goquery.Document) []Company {
	seen := make(map[string]struct{})
	var out []Company

	add := func(rank int, name string) {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Company{Rank: rank, CompanyName: name})
	}

	doc.Find(`a[href*="/companies/"]`).Each(func(_ int, a *goquery.Selection) {
		if name := strings.Join(strings.Fields(a.Text()), " "); name != "" {
			add(len(out)+1, name)
		}
	})

	if len(out) == 0 {
		doc.Find("tr, li, div").Each(func(_ int, el *goquery.Selection) {
			m := rowPattern.FindStringSubmatch(spacedText(el))
			if m == nil {
				return
			}
			rank, err := strconv.Atoi(m[1])
			if err != nil {
				return
			}
			add(rank, strings.TrimSpace(m[2]))
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// spacedText joins every descendant text node with single spaces, so that
// adjacent cells do not run together.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// AlreadyProcessed reports whether the year's JSON output exists.
func AlreadyProcessed(l records.Layout) bool {
	_, err := os.Stat(l.FortuneJSON())
	return err == nil
}

// Save writes the ranking as JSON and CSV under the layout's year directory.
func Save(l records.Layout, companies []Company) error {
	if err := l.Ensure(); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(companies); err != nil {
		return eris.Wrap(err, "fortune: encode json")
	}
	if err := os.WriteFile(l.FortuneJSON(), buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "fortune: write %s", l.FortuneJSON())
	}

	return records.Write(l.FortuneCSV(), records.FormatCSV, records.CompaniesTable(ToRecords(companies)))
}

// ToRecords converts the ranking into pipeline input records.
func ToRecords(companies []Company) []model.CompanyRecord {
	out := make([]model.CompanyRecord, len(companies))
	for i, c := range companies {
		out[i] = model.CompanyRecord{Rank: strconv.Itoa(c.Rank), CompanyName: c.CompanyName}
	}
	return out
}
