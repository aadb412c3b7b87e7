// Package resolve maps a company name to its best careers portal or learning
// program link by searching, ranking candidates and, for the education
// flavor, scoring fetched page text.
package resolve

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portal-cli/internal/scorer"
)

// Flavor parameterizes the shared pipeline.
type Flavor struct {
	Name    string
	Profile scorer.Profile
	// QueryTemplate takes the company name through %s.
	QueryTemplate string
	// ContentPass enables page fetching, the weak-signal fallback, the
	// blacklist guard and the content-based decision.
	ContentPass bool

	MaxResults             int
	TopK                   int
	ScoreThreshold         int
	MinKeywordMatches      int
	FallbackFloor          int
	FallbackMaxResults     int
	BlacklistOverrideScore int
	// FallbackTemplate takes the host of the first raw result through %s.
	FallbackTemplate string
	// EduHostParts mark a winning host as a learning domain in the reasons.
	EduHostParts []string
}

// Careers returns the careers-portal flavor.
func Careers() Flavor {
	return Flavor{
		Name:          "careers",
		Profile:       scorer.CareersProfile(),
		QueryTemplate: "%s careers site",
		MaxResults:    10,
	}
}

// Education returns the learning-program flavor.
func Education() Flavor {
	return Flavor{
		Name:                   "education",
		Profile:                scorer.EducationProfile(),
		QueryTemplate:          "%s learning academy training courses 'learning path' webinar workshop",
		ContentPass:            true,
		MaxResults:             10,
		TopK:                   3,
		ScoreThreshold:         60,
		MinKeywordMatches:      1,
		FallbackFloor:          30,
		FallbackMaxResults:     6,
		BlacklistOverrideScore: 80,
		FallbackTemplate:       "site:%s careers OR training OR academy OR learn",
		EduHostParts:           []string{"academy", "learn", "skills"},
	}
}

// Query returns the exact search string, which is also the decision cache key.
func (f Flavor) Query(company string) string {
	return fmt.Sprintf(f.QueryTemplate, strings.TrimSpace(company))
}

// Validate checks the tunables.
func (f Flavor) Validate() error {
	if err := f.Profile.Validate(); err != nil {
		return err
	}
	if !strings.Contains(f.QueryTemplate, "%s") {
		return eris.Errorf("resolve: %s query template must contain %%s", f.Name)
	}
	if f.MaxResults <= 0 {
		return eris.Errorf("resolve: %s max_results must be positive", f.Name)
	}
	if f.ContentPass {
		if f.TopK <= 0 {
			return eris.Errorf("resolve: %s top_k must be positive", f.Name)
		}
		if f.FallbackTemplate != "" && !strings.Contains(f.FallbackTemplate, "%s") {
			return eris.Errorf("resolve: %s fallback template must contain %%s", f.Name)
		}
	}
	return nil
}
