// Package sheet reads the company input workbook and appends profile rows to
// the output workbook.
package sheet

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/company-profiler/internal/model"
)

// ReadOptions locates the company columns in the input sheet. Column
// indexes are 0-based; a negative index means the column is absent.
type ReadOptions struct {
	SheetName         string // empty selects the first sheet
	HeaderRows        int
	NameColumn        int
	URLColumn         int
	EmailColumn       int
	DescriptionColumn int
}

// DefaultReadOptions matches the usual layout: a header row, then name and
// URL in the first two columns.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		HeaderRows:        1,
		NameColumn:        0,
		URLColumn:         1,
		EmailColumn:       -1,
		DescriptionColumn: -1,
	}
}

// ReadCompanies loads every data row of the input sheet. Rows with no
// name, URL or email are dropped. Company.Row is the 1-based sheet row.
func ReadCompanies(path string, opts ReadOptions) ([]model.Company, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: open %s", path)
	}

	sheet, err := selectSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	var out []model.Company
	for i, row := range sheet.Rows {
		if i < opts.HeaderRows || row == nil {
			continue
		}
		cells := rowToStrings(row)
		c := model.Company{
			Row:              i + 1,
			Name:             column(cells, opts.NameColumn),
			RawURL:           column(cells, opts.URLColumn),
			Email:            column(cells, opts.EmailColumn),
			KnownDescription: column(cells, opts.DescriptionColumn),
		}
		if c.Name == "" && c.RawURL == "" && c.Email == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func selectSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("sheet: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("sheet: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func column(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
