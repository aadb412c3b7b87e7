package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary overrides parts of the built-in profiles.
type Vocabulary struct {
	Profiles map[string]ProfileOverride `yaml:"profiles"`
}

// ProfileOverride replaces any list it sets; a weights block replaces all
// weights. Unset fields keep the built-in value.
type ProfileOverride struct {
	Keywords         []string `yaml:"keywords"`
	SubdomainMarkers []string `yaml:"subdomain_markers"`
	Blacklist        []string `yaml:"blacklist"`
	TrustedParts     []string `yaml:"trusted_parts"`
	Weights          *Weights `yaml:"weights,omitempty"`
}

// LoadVocabulary reads a vocabulary override file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read vocabulary %s", path)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrap(err, "scorer: parse vocabulary")
	}
	return &v, nil
}

// Apply returns p with the override for p.Name merged in.
func (v *Vocabulary) Apply(p Profile) (Profile, error) {
	if v == nil {
		return p, nil
	}
	o, ok := v.Profiles[p.Name]
	if !ok {
		return p, nil
	}

	if len(o.Keywords) > 0 {
		p.Keywords = o.Keywords
	}
	if len(o.SubdomainMarkers) > 0 {
		p.SubdomainMarkers = o.SubdomainMarkers
	}
	if len(o.Blacklist) > 0 {
		p.Blacklist = o.Blacklist
	}
	if len(o.TrustedParts) > 0 {
		p.TrustedParts = o.TrustedParts
	}
	if o.Weights != nil {
		p.Weights = *o.Weights
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
