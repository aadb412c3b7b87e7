package records

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/portal-cli/internal/model"
)

// ErrInputMissing is returned when the ranked company list does not exist.
var ErrInputMissing = eris.New("records: input file missing")

// nameColumns are the accepted company name headers, by priority.
var nameColumns = []string{"company_name", "Company", "name"}

// ReadCompanies loads the ranked list from a .csv, .xlsx or .json file.
// Rows without a company name are skipped.
func ReadCompanies(ctx context.Context, path string) ([]model.CompanyRecord, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrInputMissing, "records: %s", path)
		}
		return nil, eris.Wrapf(err, "records: stat %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return fromRows(rows), nil
	case ".json":
		return readJSON(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "records: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		rowCh, errCh := StreamCSV(ctx, f, CSVOptions{TrimSpace: true})
		var rows [][]string
		for row := range rowCh {
			rows = append(rows, row)
		}
		if err := <-errCh; err != nil {
			return nil, eris.Wrapf(err, "records: read %s", path)
		}
		return fromRows(rows), nil
	}
}

// fromRows maps a header row plus data rows onto records.
func fromRows(rows [][]string) []model.CompanyRecord {
	if len(rows) == 0 {
		return nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		// First occurrence wins; a BOM may prefix the first header.
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	rankCol, hasRank := index["rank"]

	var out []model.CompanyRecord
	for _, row := range rows[1:] {
		name := ""
		for _, col := range nameColumns {
			if i, ok := index[col]; ok && i < len(row) && strings.TrimSpace(row[i]) != "" {
				name = strings.TrimSpace(row[i])
				break
			}
		}
		if name == "" {
			continue
		}
		rec := model.CompanyRecord{CompanyName: name}
		if hasRank && rankCol < len(row) {
			rec.Rank = strings.TrimSpace(row[rankCol])
		}
		out = append(out, rec)
	}
	return out
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "records: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("records: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// jsonRecord accepts a numeric or string rank.
type jsonRecord struct {
	Rank        json.RawMessage `json:"rank"`
	CompanyName string          `json:"company_name"`
}

func readJSON(path string) ([]model.CompanyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "records: read %s", path)
	}
	var raw []jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "records: parse %s", path)
	}

	out := make([]model.CompanyRecord, 0, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(r.CompanyName)
		if name == "" {
			continue
		}
		out = append(out, model.CompanyRecord{Rank: rawRank(r.Rank), CompanyName: name})
	}
	return out, nil
}

func rawRank(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
