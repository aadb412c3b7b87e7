package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/portal-cli/internal/config"
	"github.com/sells-group/portal-cli/internal/resolve"
	"github.com/sells-group/portal-cli/internal/scorer"
)

// buildFlavor returns the named flavor with configured tunables and
// vocabulary overrides applied.
func buildFlavor(name string, c *config.Config) (resolve.Flavor, error) {
	var f resolve.Flavor
	switch name {
	case "careers":
		f = resolve.Careers()
		if c.Careers.MaxResults > 0 {
			f.MaxResults = c.Careers.MaxResults
		}
	case "education":
		f = resolve.Education()
		e := c.Education
		f.MaxResults = e.MaxResults
		f.TopK = e.TopK
		f.ScoreThreshold = e.ScoreThreshold
		f.MinKeywordMatches = e.MinKeywordMatches
		f.FallbackFloor = e.FallbackFloor
		f.FallbackMaxResults = e.FallbackMaxResults
		f.BlacklistOverrideScore = e.BlacklistOverrideScore
	default:
		return resolve.Flavor{}, eris.Errorf("unknown flavor %q", name)
	}

	if c.Vocabulary != "" {
		v, err := scorer.LoadVocabulary(c.Vocabulary)
		if err != nil {
			return resolve.Flavor{}, err
		}
		if f.Profile, err = v.Apply(f.Profile); err != nil {
			return resolve.Flavor{}, err
		}
	}

	if err := f.Validate(); err != nil {
		return resolve.Flavor{}, err
	}
	return f, nil
}
