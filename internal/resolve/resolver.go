package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/portal-cli/internal/cache"
	"github.com/sells-group/portal-cli/internal/metrics"
	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/resilience"
	"github.com/sells-group/portal-cli/internal/scorer"
)

// Searcher returns ordered results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// ContentFetcher returns plain page text, or "" on any failure.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Resolver runs one flavor of the pipeline against a decision cache.
// It is safe for concurrent use; concurrent calls for the same query share
// one computation.
type Resolver struct {
	flavor    Flavor
	searcher  Searcher
	fetcher   ContentFetcher
	decisions *cache.Cache[model.Decision]
	metrics   *metrics.Metrics

	flight singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetrics records cache lookups, search failures and outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver. fetcher may be nil for flavors without a content
// pass.
func New(f Flavor, s Searcher, fetcher ContentFetcher, decisions *cache.Cache[model.Decision], opts ...Option) *Resolver {
	r := &Resolver{
		flavor:    f,
		searcher:  s,
		fetcher:   fetcher,
		decisions: decisions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flavor returns the resolver's flavor.
func (r *Resolver) Flavor() Flavor { return r.flavor }

// Resolve returns the decision for company. It fails only when ctx is
// canceled or a search was rejected by an open circuit breaker without being
// sent; nothing is cached in either case.
func (r *Resolver) Resolve(ctx context.Context, company string) (model.Decision, error) {
	query := r.flavor.Query(company)

	if d, ok := r.decisions.Get(query); ok {
		r.metrics.CacheLookup(r.flavor.Name, true)
		return d, nil
	}
	r.metrics.CacheLookup(r.flavor.Name, false)

	v, err, _ := r.flight.Do(query, func() (any, error) {
		// A flight that finished just before this one started has already
		// written the key.
		if d, ok := r.decisions.Get(query); ok {
			return d, nil
		}

		start := time.Now()
		d, err := r.compute(ctx, company, query)
		if err != nil {
			return model.Decision{}, err
		}
		r.decisions.Put(query, d)

		r.metrics.ObserveResolution(r.flavor.Name, string(d.Offers), time.Since(start))
		zap.L().Debug("resolve: decided",
			zap.String("flavor", r.flavor.Name),
			zap.String("company", company),
			zap.String("offers", string(d.Offers)),
			zap.String("link", d.Link),
			zap.Int("score", d.Score),
			zap.Strings("reason", d.Reason),
		)
		return d, nil
	})
	if err != nil {
		return model.Decision{}, err
	}
	return v.(model.Decision), nil
}

func (r *Resolver) compute(ctx context.Context, company, query string) (model.Decision, error) {
	p := r.flavor.Profile
	token := scorer.CompanyToken(company, p.TokenMode)

	results, err := r.search(ctx, query, r.flavor.MaxResults)
	if err != nil {
		return model.Decision{}, err
	}
	if len(results) == 0 {
		return model.NoDecision(0, model.ReasonNoSearchResults), nil
	}

	ranked := r.rank(results, token)
	if len(ranked) == 0 {
		return model.NoDecision(0, model.ReasonNoCandidates), nil
	}

	if !r.flavor.ContentPass {
		return r.decideByPrelim(ranked[0], token), nil
	}

	top := ranked[:min(r.flavor.TopK, len(ranked))]
	pool := make([]model.ScoredCandidate, 0, len(top)+r.flavor.FallbackMaxResults)
	for _, c := range top {
		text := r.fetch(ctx, c.Href)
		if err := ctx.Err(); err != nil {
			return model.Decision{}, err
		}
		pool = append(pool, p.ScoreContent(c, text, token))
	}

	// Only the top-K content scores decide whether to fall back.
	if len(pool) == 0 || bestFinal(pool) < r.flavor.FallbackFloor {
		fb, err := r.fallback(ctx, results, token)
		if err != nil {
			return model.Decision{}, err
		}
		pool = append(pool, fb...)
	}
	if len(pool) == 0 {
		return model.NoDecision(0, model.ReasonNoScored), nil
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].FinalScore > pool[j].FinalScore })
	return r.decideByContent(pool[0], token), nil
}

// rank scores every result with an href and orders them by prelim score.
// Ties keep provider order.
func (r *Resolver) rank(results []model.SearchResult, token string) []model.ScoredCandidate {
	ranked := make([]model.ScoredCandidate, 0, len(results))
	for i, res := range results {
		c := model.NewCandidate(res, i)
		if c.Href == "" {
			continue
		}
		ranked = append(ranked, r.flavor.Profile.Score(c, token))
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].PrelimScore > ranked[j].PrelimScore })
	return ranked
}

// fallback runs the site-restricted query on the host of the first raw
// result and content-scores every hit.
func (r *Resolver) fallback(ctx context.Context, results []model.SearchResult, token string) ([]model.ScoredCandidate, error) {
	if r.flavor.FallbackTemplate == "" {
		return nil, nil
	}
	host, _ := model.SplitURL(strings.TrimSpace(results[0].Href))
	if host == "" {
		return nil, nil
	}

	query := fmt.Sprintf(r.flavor.FallbackTemplate, host)
	hits, err := r.search(ctx, query, r.flavor.FallbackMaxResults)
	if err != nil {
		return nil, err
	}

	p := r.flavor.Profile
	var out []model.ScoredCandidate
	for i, res := range hits {
		c := model.NewCandidate(res, i)
		if c.Href == "" {
			continue
		}
		text := r.fetch(ctx, c.Href)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.ScoreContent(p.Score(c, token), text, token))
	}

	zap.L().Debug("resolve: weak signal fallback",
		zap.String("query", query),
		zap.Int("hits", len(hits)),
		zap.Int("scored", len(out)),
	)
	return out, nil
}

func (r *Resolver) decideByPrelim(best model.ScoredCandidate, token string) model.Decision {
	sig := r.flavor.Profile.Signals(best.Candidate, token)
	if best.PrelimScore <= 0 {
		d := model.NoDecision(best.PrelimScore, model.ReasonNoPositiveScore)
		if sig.Blacklisted {
			d.Reason = append(d.Reason, model.ReasonBlacklistedDomain)
		}
		return d
	}

	var reasons []string
	if sig.Keyword {
		reasons = append(reasons, model.ReasonKeywordMatch)
	}
	if sig.TokenInHost {
		reasons = append(reasons, model.ReasonTokenInHost)
	}
	if sig.Subdomain {
		reasons = append(reasons, model.ReasonSubdomainMarker)
	}
	return model.Decision{
		Offers: model.OffersYes,
		Link:   best.Href,
		Title:  best.Title,
		Score:  best.PrelimScore,
		Reason: reasons,
	}
}

func (r *Resolver) decideByContent(best model.ScoredCandidate, token string) model.Decision {
	f := r.flavor
	var reasons []string
	if best.TokenMatch {
		reasons = append(reasons, model.ReasonTokenInContent)
	}
	if best.ContentKeywordMatches > 0 {
		reasons = append(reasons, model.ContentKeywordReason(best.ContentKeywordMatches))
	}
	for _, part := range f.EduHostParts {
		if strings.Contains(best.Netloc, part) {
			reasons = append(reasons, model.ReasonDomainEduKeyword)
			break
		}
	}

	tokenInHost := token != "" && strings.Contains(best.Netloc, token)
	if f.Profile.IsBlacklisted(best.Netloc) && !tokenInHost {
		if best.FinalScore < f.BlacklistOverrideScore {
			return model.NoDecision(best.FinalScore, model.ReasonBlacklistedLowScore)
		}
		reasons = append(reasons, model.ReasonOverrideBlacklist)
	}

	offers := model.OffersNo
	kw := best.ContentKeywordMatches
	if (best.FinalScore >= f.ScoreThreshold && kw >= f.MinKeywordMatches) || (best.TokenMatch && kw >= 1) {
		offers = model.OffersYes
	}
	if len(reasons) == 0 {
		reasons = []string{model.ReasonScoredCandidate}
	}

	return model.Decision{
		Offers: offers,
		Link:   best.Href,
		Title:  best.Title,
		Score:  best.FinalScore,
		Reason: reasons,
	}
}

// search treats provider failures as an empty result. It returns an error
// only when the outcome must not be cached: ctx is done, or the breaker
// rejected the query before it reached the provider.
func (r *Resolver) search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	results, err := r.searcher.Search(ctx, query, maxResults)
	if err == nil {
		return results, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	r.metrics.UpstreamError("search")
	if errors.Is(err, resilience.ErrBreakerOpen) {
		return nil, eris.Wrapf(err, "resolve: search %q not sent", query)
	}
	zap.L().Warn("resolve: search failed, treating as empty",
		zap.String("flavor", r.flavor.Name),
		zap.String("query", query),
		zap.Error(err),
	)
	return nil, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) string {
	if r.fetcher == nil {
		return ""
	}
	return r.fetcher.Fetch(ctx, url)
}

func bestFinal(pool []model.ScoredCandidate) int {
	best := pool[0].FinalScore
	for _, c := range pool[1:] {
		best = max(best, c.FinalScore)
	}
	return best
}
