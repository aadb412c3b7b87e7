package model

import (
	"strconv"
	"strings"
)

// Offers is the yes/no outcome of a resolution.
type Offers string

const (
	OffersYes Offers = "Yes"
	OffersNo  Offers = "No"
)

// Reason tags recorded on a Decision.
const (
	ReasonNoSearchResults       = "no_search_results"
	ReasonNoCandidates          = "no_candidates"
	ReasonNoPositiveScore       = "no_positive_score"
	ReasonNoScored              = "no_scored"
	ReasonBlacklistedLowScore   = "blacklisted_domain_low_score"
	ReasonOverrideBlacklist     = "override_blacklist_by_score"
	ReasonTokenInContent        = "company_token_in_content"
	ReasonDomainEduKeyword      = "domain_edu_keyword"
	ReasonScoredCandidate       = "scored_candidate"
	ReasonKeywordMatch          = "keyword_match"
	ReasonTokenInHost           = "company_token_in_host"
	ReasonSubdomainMarker       = "subdomain_marker"
	ReasonBlacklistedDomain     = "blacklisted_domain"
	ReasonError                 = "error"
	reasonContentKeywordMatches = "content_kw_matches="
)

// ContentKeywordReason formats the content keyword count tag.
func ContentKeywordReason(n int) string {
	return reasonContentKeywordMatches + strconv.Itoa(n)
}

// Decision is the terminal output of one resolution. It is cached under the
// exact query string that produced it and never mutated afterward.
type Decision struct {
	Offers Offers   `json:"offers"`
	Link   string   `json:"link"`
	Title  string   `json:"title"`
	Score  int      `json:"score"`
	Reason []string `json:"reason"`
}

// NoDecision builds a negative decision with the given score and reasons.
func NoDecision(score int, reasons ...string) Decision {
	return Decision{Offers: OffersNo, Score: score, Reason: reasons}
}

// IsYes reports whether the decision is positive.
func (d Decision) IsYes() bool { return d.Offers == OffersYes }

// ReasonString joins the reason tags the way output files expect them.
func (d Decision) ReasonString() string {
	return strings.Join(d.Reason, ";")
}
