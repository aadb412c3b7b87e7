// Package records reads the ranked company list and writes resolution
// results as CSV, JSON or XLSX under a per-year output directory.
package records

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// TargetYear is the ranking year processed by default: the year before now,
// in UTC.
func TargetYear(now time.Time) int {
	return now.UTC().Year() - 1
}

// Layout names every file of one year's run.
type Layout struct {
	Root string
	Year int
}

// NewLayout returns the layout for year under root ("output" when empty).
func NewLayout(root string, year int) Layout {
	if root == "" {
		root = "output"
	}
	return Layout{Root: root, Year: year}
}

// Dir is output/<year>.
func (l Layout) Dir() string { return filepath.Join(l.Root, fmt.Sprint(l.Year)) }

// Ensure creates the year directory.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Dir(), 0o755); err != nil {
		return eris.Wrapf(err, "records: create %s", l.Dir())
	}
	return nil
}

func (l Layout) file(name string) string { return filepath.Join(l.Dir(), name) }

func (l Layout) FortuneJSON() string { return l.file(fmt.Sprintf("fortune500_%d.json", l.Year)) }
func (l Layout) FortuneCSV() string  { return l.file(fmt.Sprintf("fortune500_%d.csv", l.Year)) }

// CareersOut is the careers output path for the given format extension.
func (l Layout) CareersOut(f Format) string {
	return l.file(fmt.Sprintf("fortune500_%d_with_careers.%s", l.Year, f))
}

// EducationOut is the education output path for the given format extension.
func (l Layout) EducationOut(f Format) string {
	return l.file(fmt.Sprintf("fortune500_%d_education.%s", l.Year, f))
}

// EnrichedCSV is the selector guesser's output.
func (l Layout) EnrichedCSV() string { return l.file("fortune500_fully_enriched.csv") }

// Cache file names, relative to Dir.
const (
	CareersCacheFile   = "ddg_cache.json"
	EducationCacheFile = "edu_cache.json"
	ContentCacheFile   = "content_cache.json"
	SQLiteCacheFile    = "cache.db"
)
