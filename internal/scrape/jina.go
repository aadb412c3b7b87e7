package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portal-cli/internal/resilience"
	"github.com/sells-group/portal-cli/pkg/jina"
)

const jinaName = "jina"

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// JinaAdapter reads pages through the Jina Reader behind a circuit breaker.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaAdapter wraps client; breaker may be shared with other callers of
// the same service.
func NewJinaAdapter(client jina.Client, breaker *resilience.Breaker) *JinaAdapter {
	if breaker == nil {
		breaker = resilience.NewBreaker("jina-reader", resilience.BreakerConfig{FailureThreshold: 3})
	}
	return &JinaAdapter{client: client, breaker: breaker}
}

func (j *JinaAdapter) Name() string { return jinaName }

// Supports reports false while the breaker is open so the chain skips Jina.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.StateOpen
}

// Scrape reads targetURL as plain text.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.Call(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL, jina.WithReturnFormat("text"))
		if err != nil {
			return nil, err
		}
		if unusable(resp) {
			return nil, eris.Errorf("jina: unusable response for %s", targetURL)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Page: Page{
			URL:        targetURL,
			Title:      resp.Data.Title,
			Text:       strings.TrimSpace(resp.Data.Content),
			StatusCode: 200,
		},
		Source: jinaName,
	}, nil
}

// unusable reports an error envelope, an empty page, or a short bot
// challenge page.
func unusable(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if content == "" {
		return true
	}
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}
