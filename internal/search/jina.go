package search

import (
	"context"

	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/pkg/jina"
)

// JinaProvider searches through Jina Search.
type JinaProvider struct {
	client jina.Client
}

// NewJinaProvider wraps a Jina client.
func NewJinaProvider(client jina.Client) *JinaProvider {
	return &JinaProvider{client: client}
}

func (j *JinaProvider) Name() string { return Jina }

// Search implements Provider.
func (j *JinaProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	resp, err := j.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if maxResults > 0 && len(out) == maxResults {
			break
		}
		out = append(out, model.SearchResult{Title: r.Title, Href: r.URL})
	}
	return out, nil
}
