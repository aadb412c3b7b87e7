package scorer

import (
	"strings"

	"github.com/sells-group/portal-cli/internal/model"
)

// Signals are the metadata matches found on a candidate by the cheap pass.
type Signals struct {
	Keyword     bool
	TokenInHost bool
	Subdomain   bool
	Blacklisted bool // host is blacklisted and the company token is absent from it
}

// Signals inspects the candidate's URL, title and host.
func (p Profile) Signals(c model.Candidate, token string) Signals {
	href := strings.ToLower(c.Href)
	title := strings.ToLower(c.Title)
	host := c.Netloc

	var s Signals
	for _, kw := range p.Keywords {
		if strings.Contains(href, kw) || strings.Contains(title, kw) {
			s.Keyword = true
			break
		}
	}
	s.TokenInHost = token != "" && strings.Contains(host, token)

	bare := strings.TrimPrefix(host, "www.")
	for _, m := range p.SubdomainMarkers {
		if strings.HasPrefix(bare, m) {
			s.Subdomain = true
			break
		}
	}

	s.Blacklisted = !s.TokenInHost && p.IsBlacklisted(host)
	return s
}

// IsBlacklisted reports whether host contains any blacklist entry.
func (p Profile) IsBlacklisted(host string) bool {
	return containsAny(host, p.Blacklist)
}

// IsTrustedDomain reports whether host contains a trusted learning-domain part.
func (p Profile) IsTrustedDomain(host string) bool {
	return containsAny(host, p.TrustedParts)
}

// PrelimScore is the network-free relevance score of a candidate. It may be
// negative; zero or less means no usable signal.
func (p Profile) PrelimScore(c model.Candidate, token string) int {
	return p.prelim(p.Signals(c, token), c.SourceRank)
}

func (p Profile) prelim(s Signals, rank int) int {
	w := p.Weights
	score := 0
	if s.Keyword {
		score += w.Keyword
	}
	if s.TokenInHost {
		score += w.TokenInHost
	}
	if s.Subdomain {
		score += w.Subdomain
	}
	if s.Blacklisted {
		switch p.BlacklistMode {
		case BlacklistZero:
			score = 0
		case BlacklistPenalty:
			score -= w.BlacklistPenalty
		}
	}
	return score - w.PositionPenalty*rank
}

// ContentScore counts distinct vocabulary keywords in the page text and
// reports whether the company token appears in it.
func (p Profile) ContentScore(text, token string) (keywordMatches int, tokenMatch bool) {
	if text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)
	seen := make(map[string]struct{}, len(p.Keywords))
	for _, kw := range p.Keywords {
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if strings.Contains(lower, kw) {
			keywordMatches++
		}
	}
	return keywordMatches, token != "" && strings.Contains(lower, token)
}

// FinalScore adds the content signal to a prelim score.
func (p Profile) FinalScore(prelim, keywordMatches int, tokenMatch bool, host string) int {
	w := p.Weights
	score := prelim + w.ContentKeyword*keywordMatches
	if tokenMatch {
		score += w.ContentToken
	}
	if p.IsTrustedDomain(host) {
		score += w.TrustedDomain
	}
	return score
}

// Score runs the cheap pass over a candidate.
func (p Profile) Score(c model.Candidate, token string) model.ScoredCandidate {
	prelim := p.PrelimScore(c, token)
	return model.ScoredCandidate{
		Candidate:   c,
		PrelimScore: prelim,
		FinalScore:  prelim,
	}
}

// ScoreContent runs the content pass over an already prelim-scored candidate.
func (p Profile) ScoreContent(sc model.ScoredCandidate, text, token string) model.ScoredCandidate {
	kw, tm := p.ContentScore(text, token)
	sc.ContentKeywordMatches = kw
	sc.TokenMatch = tm
	sc.FinalScore = p.FinalScore(sc.PrelimScore, kw, tm, sc.Netloc)
	return sc
}

func containsAny(s string, parts []string) bool {
	for _, part := range parts {
		if part != "" && strings.Contains(s, part) {
			return true
		}
	}
	return false
}
