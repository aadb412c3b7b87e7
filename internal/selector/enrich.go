package selector

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/records"
)

// Row is one careers result with its guessed selector.
type Row struct {
	Rank             string
	CompanyName      string
	CareersLink      string
	JobTitleSelector string
}

// ReadCareers loads a careers output CSV (rank,company_name,careers_link).
func ReadCareers(ctx context.Context, path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(records.ErrInputMissing, "selector: %s", path)
		}
		return nil, eris.Wrapf(err, "selector: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := records.StreamCSV(ctx, f, records.CSVOptions{TrimSpace: true})
	var (
		header map[string]int
		out    []Row
	)
	for rec := range rowCh {
		if header == nil {
			header = make(map[string]int, len(rec))
			for i, h := range rec {
				header[strings.TrimPrefix(h, "\ufeff")] = i
			}
			continue
		}
		get := func(col string) string {
			if i, ok := header[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		out = append(out, Row{Rank: get("rank"), CompanyName: get("company_name"), CareersLink: get("careers_link")})
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "selector: read %s", path)
	}
	return out, nil
}

// Table renders rows with the jobTitleSelector column.
func Table(rows []Row) records.Table {
	t := records.Table{Header: []string{"rank", "company_name", "careers_link", "jobTitleSelector"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Rank, r.CompanyName, r.CareersLink, r.JobTitleSelector})
	}
	return t
}

// Enricher renders each careers link and records its best selector.
type Enricher struct {
	renderer Renderer
	delay    time.Duration
}

// NewEnricher creates an Enricher pausing delay between rendered pages.
func NewEnricher(r Renderer, delay time.Duration) *Enricher {
	return &Enricher{renderer: r, delay: delay}
}

// Enrich fills JobTitleSelector on every row, in order. Render or parse
// failures leave the selector empty. On cancellation the rows completed so
// far are returned with interrupted set.
func (e *Enricher) Enrich(ctx context.Context, rows []Row) (out []Row, interrupted bool) {
	out = make([]Row, 0, len(rows))
	for i, row := range rows {
		if ctx.Err() != nil {
			return out, true
		}

		log := zap.L().With(
			zap.Int("n", i+1),
			zap.Int("of", len(rows)),
			zap.String("company", row.CompanyName),
		)
		if row.CareersLink != "" {
			row.JobTitleSelector = e.guess(ctx, row.CareersLink, log)
			log.Info("selector: analyzed", zap.String("selector", row.JobTitleSelector))

			if i < len(rows)-1 && e.delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(e.delay):
				}
			}
		}
		out = append(out, row)
	}
	return out, false
}

func (e *Enricher) guess(ctx context.Context, url string, log *zap.Logger) string {
	page, err := e.renderer.Render(ctx, url)
	if err != nil {
		log.Warn("selector: render failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	sel, err := Guess(page)
	if err != nil {
		log.Warn("selector: parse failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return sel
}
