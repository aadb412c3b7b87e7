package records

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/portal-cli/internal/model"
)

// Format is an output file format; its value doubles as the file extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a --format value. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON, FormatXLSX:
		return Format(s), nil
	}
	return "", eris.Errorf("records: unknown format %q (want csv, json or xlsx)", s)
}

// Table is a header plus rows of cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// CompaniesTable renders the plain ranked list.
func CompaniesTable(recs []model.CompanyRecord) Table {
	t := Table{Header: []string{"rank", "company_name"}}
	for _, r := range recs {
		t.Rows = append(t.Rows, []string{r.Rank, r.CompanyName})
	}
	return t
}

// CareersTable renders careers results.
func CareersTable(rows []model.EnrichedRecord) Table {
	t := Table{Header: []string{"rank", "company_name", "careers_link"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Rank, r.CompanyName, r.Decision.Link})
	}
	return t
}

// EducationTable renders education results.
func EducationTable(rows []model.EnrichedRecord) Table {
	t := Table{Header: []string{"rank", "company_name", "offers_education", "detected_link", "detected_title", "score", "reason"}}
	for _, r := range rows {
		d := r.Decision
		t.Rows = append(t.Rows, []string{
			r.Rank, r.CompanyName, string(d.Offers), d.Link, d.Title, strconv.Itoa(d.Score), d.ReasonString(),
		})
	}
	return t
}

// Write saves t to path in format f, creating parent directories.
func Write(path string, f Format, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "records: create dir for %s", path)
	}

	switch f {
	case FormatJSON:
		return writeJSON(path, t)
	case FormatXLSX:
		return writeXLSX(path, t)
	default:
		return writeCSV(path, t)
	}
}

func writeCSV(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "records: create %s", path)
	}

	w := csv.NewWriter(file)
	if err := w.Write(t.Header); err != nil {
		_ = file.Close()
		return eris.Wrap(err, "records: write header")
	}
	if err := w.WriteAll(t.Rows); err != nil {
		_ = file.Close()
		return eris.Wrap(err, "records: write rows")
	}
	if err := file.Close(); err != nil {
		return eris.Wrapf(err, "records: close %s", path)
	}
	return nil
}

// writeJSON emits an array of header-keyed objects.
func writeJSON(path string, t Table) error {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		out = append(out, obj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return eris.Wrap(err, "records: marshal json")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "records: write %s", path)
	}
	return nil
}

func writeXLSX(path string, t Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "records: add sheet")
	}

	addRow := func(cells []string) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	addRow(t.Header)
	for _, r := range t.Rows {
		addRow(r)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "records: save %s", path)
	}
	return nil
}
