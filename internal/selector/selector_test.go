package selector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portal-cli/internal/records"
)

const listing = `<html><body>
<h1 class="page-heading">Careers</h1>
<ul>
  <li><a class="job-title link" href="/1">Engineer</a></li>
  <li><a class="job-title link" href="/2">Analyst</a></li>
  <li><a class="job-title link" href="/3">Designer</a></li>
</ul>
<div class="Opening card">Open role</div>
<div class="Opening card">Open role</div>
<span class="footer">x</span>
<p>no class</p>
</body></html>`

func TestGuess(t *testing.T) {
	sel, err := Guess(listing)
	require.NoError(t, err)
	assert.Equal(t, "a.job-title.link", sel)
}

func TestCount(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listing))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"h1.page-heading":  1,
		"a.job-title.link": 3,
		"div.Opening.card": 2,
	}, Count(doc))
}

func TestBest_TieIsLexicographic(t *testing.T) {
	assert.Equal(t, "a.job", Best(map[string]int{"span.job": 2, "a.job": 2, "div.title": 1}))
	assert.Equal(t, "", Best(nil))
}

func TestGuess_NoCandidates(t *testing.T) {
	sel, err := Guess(`<html><body><div class="footer">x</div></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, sel)
}

type fakeRenderer struct {
	pages map[string]string
	calls []string
}

func (f *fakeRenderer) Render(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return page, nil
}

func TestEnrich(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://careers.acme.com": listing}}
	rows := []Row{
		{Rank: "1", CompanyName: "Acme", CareersLink: "https://careers.acme.com"},
		{Rank: "2", CompanyName: "Globex"},
		{Rank: "3", CompanyName: "Initech", CareersLink: "https://broken.example"},
	}

	out, interrupted := NewEnricher(r, 0).Enrich(context.Background(), rows)
	assert.False(t, interrupted)
	require.Len(t, out, 3)
	assert.Equal(t, "a.job-title.link", out[0].JobTitleSelector)
	assert.Empty(t, out[1].JobTitleSelector)
	assert.Empty(t, out[2].JobTitleSelector)
	assert.Equal(t, []string{"https://careers.acme.com", "https://broken.example"}, r.calls)
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, interrupted := NewEnricher(&fakeRenderer{}, 0).Enrich(ctx, []Row{{CompanyName: "Acme"}})
	assert.True(t, interrupted)
	assert.Empty(t, out)
}

func TestReadCareersAndWrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "careers.csv")
	require.NoError(t, os.WriteFile(in, []byte("rank,company_name,careers_link\n1,Acme,https://careers.acme.com\n2,Globex,\n"), 0o644))

	rows, err := ReadCareers(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Rank: "1", CompanyName: "Acme", CareersLink: "https://careers.acme.com"},
		{Rank: "2", CompanyName: "Globex"},
	}, rows)

	rows[0].JobTitleSelector = "a.job-title"
	out := filepath.Join(dir, "enriched.csv")
	require.NoError(t, records.Write(out, records.FormatCSV, Table(rows)))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "rank,company_name,careers_link,jobTitleSelector\n1,Acme,https://careers.acme.com,a.job-title\n2,Globex,,\n", string(data))

	_, err = ReadCareers(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, records.ErrInputMissing)
}
