package sheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/company-profiler/internal/model"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCompanies_Defaults(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"AISL2025": {
			{"Startup", "Website"},
			{"Acme AI", " acme.ai "},
			{"", ""},
			{"NoURL Inc", ""},
		},
	})

	got, err := ReadCompanies(path, DefaultReadOptions())
	require.NoError(t, err)
	assert.Equal(t, []model.Company{
		{Row: 2, Name: "Acme AI", RawURL: "acme.ai"},
		{Row: 4, Name: "NoURL Inc"},
	}, got)
}

func TestReadCompanies_CustomColumns(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First": {{"ignored"}},
		"Leads": {
			{"title"},
			{"header"},
			{"Blurb", "Beta Labs", "ops@betalabs.io"},
		},
	})

	opts := ReadOptions{
		SheetName:         "Leads",
		HeaderRows:        2,
		NameColumn:        1,
		URLColumn:         5,
		EmailColumn:       2,
		DescriptionColumn: 0,
	}
	got, err := ReadCompanies(path, opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Company{
		Row:              3,
		Name:             "Beta Labs",
		Email:            "ops@betalabs.io",
		KnownDescription: "Blurb",
	}, got[0])
}

func TestReadCompanies_Errors(t *testing.T) {
	_, err := ReadCompanies(filepath.Join(t.TempDir(), "missing.xlsx"), DefaultReadOptions())
	assert.Error(t, err)

	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})
	opts := DefaultReadOptions()
	opts.SheetName = "Nope"
	_, err = ReadCompanies(path, opts)
	assert.Error(t, err)
}
