package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTaxonomies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax.yaml")
	require.NoError(t, os.WriteFile(path, []byte("industries:\n  - Fintech\n  - Biotech\n"), 0o600))

	tax, err := LoadTaxonomies(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fintech", "Biotech"}, tax.Industries)
	assert.Equal(t, DefaultTaxonomies().RevenueModels, tax.RevenueModels)
	assert.Equal(t, DefaultTaxonomies().AICriteria, tax.AICriteria)
}

func TestLoadTaxonomies_Errors(t *testing.T) {
	_, err := LoadTaxonomies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("industries: [unterminated"), 0o600))
	_, err = LoadTaxonomies(path)
	assert.Error(t, err)
}

func TestDefaultTaxonomies(t *testing.T) {
	tax := DefaultTaxonomies()
	assert.NotEmpty(t, tax.FocusTypes)
	assert.NotEmpty(t, tax.Industries)
	assert.NotEmpty(t, tax.RevenueModels)
	assert.Len(t, tax.AICriteria, 4)
}
