// Package selector guesses the CSS selector of job titles on a rendered
// careers page.
package selector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

var (
	candidateTags = []string{"h1", "h2", "h3", "h4", "a", "div", "span", "p"}
	classKeywords = []string{"job", "title", "position", "opening", "listing", "heading"}
)

// Count returns how often each tag.class1.class2 selector appears on elements
// whose class list mentions a job-title keyword.
func Count(doc *goquery.Document) map[string]int {
	counts := make(map[string]int)
	for _, tag := range candidateTags {
		doc.Find(tag).Each(func(_ int, el *goquery.Selection) {
			classes := strings.Fields(el.AttrOr("class", ""))
			if !mentionsKeyword(classes) {
				return
			}
			counts[tag+"."+strings.Join(classes, ".")]++
		})
	}
	return counts
}

func mentionsKeyword(classes []string) bool {
	for _, c := range classes {
		lower := strings.ToLower(c)
		for _, kw := range classKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Best picks the most frequent selector; ties go to the lexicographically
// smallest. It returns "" for no candidates.
func Best(counts map[string]int) string {
	best, bestN := "", 0
	for sel, n := range counts {
		if n > bestN || (n == bestN && sel < best) {
			best, bestN = sel, n
		}
	}
	return best
}

// Guess parses rendered HTML and returns the best selector, or "".
func Guess(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", eris.Wrap(err, "selector: parse html")
	}
	return Best(Count(doc)), nil
}
