package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/company-profiler/internal/config"
	"github.com/sells-group/company-profiler/internal/store"
)

func writeInput(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("AISL2025")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func readOutput(t *testing.T, path, sheetName string) [][]string {
	t.Helper()
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[sheetName]
	require.True(t, ok)
	var out [][]string
	for _, row := range sheet.Rows {
		var vals []string
		for _, c := range row.Cells {
			vals = append(vals, c.Value)
		}
		out = append(out, vals)
	}
	return out
}

func testProfileConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			MainModel:           "claude-sonnet-4-5-20250929",
			ShortenerModel:      "claude-haiku-4-5-20251001",
			ClassificationModel: "claude-sonnet-4-5-20250929",
		},
		Pipeline: config.PipelineConfig{
			TotalPages:        4,
			LinkRetries:       8,
			MaxCandidateLinks: 200,
			MaxPageChars:      20000,
			RecycleEvery:      4,
			Schema:            "full",
			BlankPadding:      true,
		},
		Input:  config.InputConfig{HeaderRows: 1, NameColumn: 0, URLColumn: 1, EmailColumn: 2, DescriptionColumn: -1},
		Output: config.OutputConfig{Sheet: "Results"},
		Store: config.StoreConfig{
			Driver:        "sqlite",
			DatabaseURL:   filepath.Join(t.TempDir(), "profiler.db"),
			CacheTTLHours: 24,
		},
	}
}

func TestRunProfile_Offline(t *testing.T) {
	cfg := testProfileConfig(t)
	input := writeInput(t, [][]string{
		{"Startup", "Website", "Email"},
		{"Acme AI", "acme.ai", ""},
		{"Ghost", "nan", ""},
		{"Mail Co", "", "jane@mailco.io"},
	})
	output := filepath.Join(t.TempDir(), "out.xlsx")

	var buf bytes.Buffer
	err := runProfile(context.Background(), cfg, profileOptions{
		Input:   input,
		Output:  output,
		Schema:  "full",
		Offline: true,
	}, &buf)
	require.NoError(t, err)

	rows := readOutput(t, output, "Results")
	require.Len(t, rows, 3)
	assert.Equal(t, "Startup Name", rows[0][0])
	assert.Equal(t, "Acme AI", rows[1][0])
	assert.Equal(t, "https://acme.ai", rows[1][1])
	assert.Equal(t, "Mail Co", rows[2][0])
	assert.Equal(t, "https://www.mailco.io", rows[2][1])
	assert.Contains(t, buf.String(), "Rows written:")
	assert.Contains(t, buf.String(), "Skipped:")

	st, err := store.Open(context.Background(), "sqlite", cfg.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunProfile_ReducedSchemaAppends(t *testing.T) {
	cfg := testProfileConfig(t)
	cfg.Store.Driver = "none"
	input := writeInput(t, [][]string{
		{"Startup", "Website"},
		{"Acme AI", "acme.ai"},
	})
	output := filepath.Join(t.TempDir(), "out.xlsx")
	opts := profileOptions{Input: input, Output: output, Schema: "reduced", Offline: true}

	require.NoError(t, runProfile(context.Background(), cfg, opts, &bytes.Buffer{}))
	require.NoError(t, runProfile(context.Background(), cfg, opts, &bytes.Buffer{}))

	rows := readOutput(t, output, "Results")
	require.Len(t, rows, 3, "one header, then one row per run")
	assert.Equal(t, []string{"Startup Name", "Homepage URL", "Full Description", "Is AI Startup", "Total Token Cost ($)"}, rows[0])
	assert.Equal(t, "No", rows[1][3])
}

func TestRunProfile_Errors(t *testing.T) {
	cfg := testProfileConfig(t)
	cfg.Store.Driver = "none"
	output := filepath.Join(t.TempDir(), "out.xlsx")

	err := runProfile(context.Background(), cfg, profileOptions{Input: "missing.xlsx", Output: output, Schema: "full", Offline: true}, &bytes.Buffer{})
	assert.Error(t, err)

	input := writeInput(t, [][]string{{"Startup", "Website"}, {"Acme", "acme.ai"}})
	err = runProfile(context.Background(), cfg, profileOptions{Input: input, Output: output, Schema: "wide", Offline: true}, &bytes.Buffer{})
	assert.Error(t, err)

	err = runProfile(context.Background(), cfg, profileOptions{Input: input, Output: output, Schema: "full"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")
}
