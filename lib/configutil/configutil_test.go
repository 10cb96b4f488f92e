package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Country string   `json:"country"`
	Brands  []string `json:"brands"`
	Rate    float64  `json:"rate"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfigOver(filepath.Join(t.TempDir(), "novawatch.json5"), testConfig{})
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "novawatch.json5"), `{
		// comments and trailing commas are fine
		country: "India",
		brands: ["amul", "parle"],
	}`)
	writeFile(t, filepath.Join(dir, "novawatch.local.json5"), `{brands: ["nestle"]}`)

	cfg, err := ReadConfigOver(filepath.Join(dir, "novawatch.json5"), testConfig{})
	require.NoError(t, err)
	require.Equal(t, "India", cfg.Country)
	require.Equal(t, []string{"nestle"}, cfg.Brands)
}

func TestReadConfigOverKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "novawatch.json5"), `{rate: 2}`)

	defaults := testConfig{Country: "India", Brands: []string{"amul"}, Rate: 1}
	cfg, err := ReadConfigOver(filepath.Join(dir, "novawatch.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, testConfig{Country: "India", Brands: []string{"amul"}, Rate: 2}, cfg)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "novawatch.json5"), `{country: `)

	_, err := ReadConfigOver(filepath.Join(dir, "novawatch.json5"), testConfig{})
	require.Error(t, err)
	require.False(t, errors.Is(err, os.ErrNotExist))
}
