package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/portal-cli/internal/resilience"
)

const (
	localName    = "local_http"
	maxBodyBytes = 1 << 20
	userAgent    = "Mozilla/5.0 (compatible; portal-cli/1.0)"
)

// LocalScraper fetches HTML directly and converts it to text.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates a LocalScraper whose requests give up after timeout.
func NewLocalScraper(timeout time.Duration) *LocalScraper {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConnsPerHost: 4,
			},
		},
	}
}

func (l *LocalScraper) Name() string           { return localName }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches targetURL and extracts its visible text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if err := resilience.CheckStatus(localName, resp.StatusCode); err != nil {
		return nil, err
	}

	title, text, err := ExtractText(string(body))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}
	if text == "" {
		return nil, eris.New("local_http: empty page")
	}

	return &Result{
		Page: Page{
			URL:        targetURL,
			Title:      title,
			Text:       text,
			StatusCode: resp.StatusCode,
		},
		Source: localName,
	}, nil
}

// ExtractText returns the document title and its visible text, one space
// between text nodes. Scripts, styles and templates are dropped.
func ExtractText(doc string) (title, text string, err error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(d.Find("title").First().Text())
	d.Find("script, style, noscript, template, svg, head").Remove()

	var parts []string
	for _, n := range d.Nodes {
		collectText(n, &parts)
	}
	return title, strings.Join(parts, " "), nil
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
			*parts = append(*parts, s)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
