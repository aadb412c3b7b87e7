// Package scorer ranks search-result candidates with a cheap metadata pass
// and a content pass over fetched page text.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// BlacklistMode selects how a blacklisted host is punished.
type BlacklistMode string

const (
	// BlacklistZero forces the score to zero before the position tie-break.
	BlacklistZero BlacklistMode = "zero"
	// BlacklistPenalty subtracts Weights.BlacklistPenalty.
	BlacklistPenalty BlacklistMode = "penalty"
)

// TokenMode selects how the company token is derived from a name.
type TokenMode string

const (
	// TokenFullName keeps every alphanumeric of the normalized name.
	TokenFullName TokenMode = "full_name"
	// TokenFirstWord keeps only the first word of the normalized name.
	TokenFirstWord TokenMode = "first_word"
)

// Weights are the point values of each scoring signal.
type Weights struct {
	Keyword          int `yaml:"keyword" mapstructure:"keyword"`
	TokenInHost      int `yaml:"token_in_host" mapstructure:"token_in_host"`
	Subdomain        int `yaml:"subdomain" mapstructure:"subdomain"`
	BlacklistPenalty int `yaml:"blacklist_penalty" mapstructure:"blacklist_penalty"`
	PositionPenalty  int `yaml:"position_penalty" mapstructure:"position_penalty"`
	ContentKeyword   int `yaml:"content_keyword" mapstructure:"content_keyword"`
	ContentToken     int `yaml:"content_token" mapstructure:"content_token"`
	TrustedDomain    int `yaml:"trusted_domain" mapstructure:"trusted_domain"`
}

// Profile is the vocabulary and weighting of one resolver flavor.
type Profile struct {
	Name             string
	Keywords         []string
	SubdomainMarkers []string
	Blacklist        []string
	TrustedParts     []string
	BlacklistMode    BlacklistMode
	TokenMode        TokenMode
	Weights          Weights
}

// DefaultWeights returns the weights shared by both built-in profiles.
func DefaultWeights() Weights {
	return Weights{
		Keyword:          60,
		TokenInHost:      30,
		Subdomain:        40,
		BlacklistPenalty: 120,
		PositionPenalty:  2,
		ContentKeyword:   18,
		ContentToken:     20,
		TrustedDomain:    15,
	}
}

// CareersProfile returns the careers-portal vocabulary.
func CareersProfile() Profile {
	return Profile{
		Name: "careers",
		Keywords: []string{
			"career", "careers", "job", "jobs", "vacancy", "join-us", "talent", "opportunities",
		},
		SubdomainMarkers: []string{"careers.", "jobs.", "talent."},
		Blacklist: []string{
			"wikipedia.org", "linkedin.com", "facebook.com",
		},
		BlacklistMode: BlacklistZero,
		TokenMode:     TokenFullName,
		Weights:       DefaultWeights(),
	}
}

// EducationProfile returns the learning-program vocabulary.
func EducationProfile() Profile {
	return Profile{
		Name: "education",
		Keywords: []string{
			"learn", "learning", "academy", "training", "course", "courses", "education",
			"skill", "skills", "bootcamp", "certification", "certifications", "path", "roadmap",
			"webinar", "workshop", "upskill", "upskilling", "developer", "developer training",
			"learning path", "learning paths", "study", "curriculum", "program", "programs",
		},
		SubdomainMarkers: []string{
			"academy", "learn", "skills", "training", "education", "university", "campus",
			"developers", "cloudskillsboost",
		},
		Blacklist: []string{
			"medium.com", "forbes.com", "timesofindia", "indiatoday", "ndtv.com", "googleusercontent.com",
			"facebook.com", "linkedin.com", "twitter.com", "youtube.com", "reddit.com", "quora.com",
			"wordpress.com", "blogspot.com", "glassdoor.com", "indeed.com", "jooble.org", "jobsite",
			"news", "economictimes", "mint", "thehindu", "linkedin.", "razorpay.com",
		},
		TrustedParts: []string{
			"academy", "learn", "learning", "skills", "cloudskillsboost", "training", "education",
			"developers", "campus", "university",
		},
		BlacklistMode: BlacklistPenalty,
		TokenMode:     TokenFirstWord,
		Weights:       DefaultWeights(),
	}
}

// Validate checks that a Profile is usable.
func (p Profile) Validate() error {
	var errs []string

	if len(p.Keywords) == 0 {
		errs = append(errs, "keywords must not be empty")
	}
	for _, kw := range p.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, "keywords must not contain blanks")
			break
		}
	}
	switch p.BlacklistMode {
	case BlacklistZero, BlacklistPenalty:
	default:
		errs = append(errs, fmt.Sprintf("unknown blacklist mode %q", p.BlacklistMode))
	}
	switch p.TokenMode {
	case TokenFullName, TokenFirstWord:
	default:
		errs = append(errs, fmt.Sprintf("unknown token mode %q", p.TokenMode))
	}
	if p.Weights.PositionPenalty < 0 {
		errs = append(errs, "position_penalty must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: profile %s invalid: %s", p.Name, strings.Join(errs, "; "))
	}
	return nil
}
