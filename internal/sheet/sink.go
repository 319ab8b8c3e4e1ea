package sheet

import (
	"errors"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/company-profiler/internal/model"
)

// SinkOption configures an XLSXSink.
type SinkOption func(*XLSXSink)

// WithBlankPadding controls whether the "No additional pages found" padding
// sentinel is written as an empty cell. On by default.
func WithBlankPadding(on bool) SinkOption {
	return func(s *XLSXSink) { s.blankPadding = on }
}

// XLSXSink appends one row per company to a workbook sheet and saves the
// file after every row, so a crash loses at most the row in flight.
type XLSXSink struct {
	path         string
	file         *xlsx.File
	sheet        *xlsx.Sheet
	schema       model.Schema
	k            int
	blankPadding bool
	written      int
}

// NewXLSXSink opens path for appending, creating the workbook or sheet if
// missing. Nothing is written until the first Append.
func NewXLSXSink(path, sheetName string, schema model.Schema, k int, opts ...SinkOption) (*XLSXSink, error) {
	if sheetName == "" {
		sheetName = "Results"
	}

	var f *xlsx.File
	if _, err := os.Stat(path); err == nil {
		f, err = xlsx.OpenFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: open %s", path)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = xlsx.NewFile()
	} else {
		return nil, eris.Wrapf(err, "sheet: stat %s", path)
	}

	sheet, ok := f.Sheet[sheetName]
	if !ok {
		var err error
		sheet, err = f.AddSheet(sheetName)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: add sheet %q", sheetName)
		}
	}

	s := &XLSXSink{
		path:         path,
		file:         f,
		sheet:        sheet,
		schema:       schema,
		k:            k,
		blankPadding: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append writes the header if the sheet is empty, then row, then saves.
func (s *XLSXSink) Append(row *model.OutputRow) error {
	if row == nil {
		return eris.New("sheet: nil row")
	}
	if len(s.sheet.Rows) == 0 {
		addStrings(s.sheet, s.schema.Header(s.k))
	}

	r := s.sheet.AddRow()
	for _, v := range s.values(row) {
		r.AddCell().SetString(v)
	}
	r.AddCell().SetFloat(row.TotalCost)

	if err := s.file.Save(s.path); err != nil {
		return eris.Wrapf(err, "sheet: save %s", s.path)
	}
	s.written++
	return nil
}

// Written is the number of rows appended by this sink.
func (s *XLSXSink) Written() int { return s.written }

// values renders every column but the trailing cost.
func (s *XLSXSink) values(row *model.OutputRow) []string {
	if s.schema == model.SchemaReduced {
		return []string{
			row.Company.Name,
			row.HomepageURL,
			row.FullDescription,
			row.Classification.IsAIStartup,
		}
	}

	out := []string{
		row.Company.Name,
		row.HomepageURL,
		row.RedirectedURL,
		strings.Join(row.AdditionalURLs, ", "),
	}
	for _, p := range model.NormalizePages(row.Pages, s.k) {
		if s.blankPadding && p == model.PageErrNoAdditionalPages {
			p = ""
		}
		out = append(out, p)
	}
	c := row.Classification
	return append(out,
		row.FullDescription,
		c.ShortDescription,
		c.FocusType,
		c.Industry,
		c.RevenueModels,
	)
}

func addStrings(sheet *xlsx.Sheet, values []string) {
	r := sheet.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}
