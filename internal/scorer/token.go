package scorer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffix matches one trailing legal-entity designator.
var legalSuffix = regexp.MustCompile(`(?i)[\s,]+(inc|incorporated|corp|corporation|co|company|ltd|limited|llc|llp|lp|plc|pvt|private|ag|sa|nv|bv|gmbh)\.?$`)

// CompanyToken derives the identifier used to detect official-domain signals.
func CompanyToken(name string, mode TokenMode) string {
	base := stripLegalSuffixes(fold(name))

	switch mode {
	case TokenFirstWord:
		spaced := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return ' '
		}, base)
		fields := strings.Fields(spaced)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	default:
		var b strings.Builder
		for _, r := range base {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		return b.String()
	}
}

// fold removes diacritics so "Nestlé" and "Nestle" share a token.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func stripLegalSuffixes(name string) string {
	name = strings.TrimSpace(name)
	for {
		stripped := strings.TrimSpace(legalSuffix.ReplaceAllString(name, ""))
		if stripped == name || stripped == "" {
			return name
		}
		name = stripped
	}
}
