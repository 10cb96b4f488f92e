package statusfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const readme = "# Brand NOVA tracker\n" +
	"\n" +
	"**Last updated for `amul`**: 2025-01-01\n" +
	"**Last updated for `nestle`**: 2025-03-04\n" +
	"\n" +
	"Data from Open Food Facts.\n"

func TestApplyReplacesInPlace(t *testing.T) {
	patched := Apply(readme, "amul", "2025-07-21")

	before := strings.Split(readme, "\n")
	after := strings.Split(patched, "\n")
	require.Len(t, after, len(before))
	require.Equal(t, "**Last updated for `amul`**: 2025-07-21", after[2])
	for i := range before {
		if i == 2 {
			continue
		}
		require.Equal(t, before[i], after[i])
	}
}

func TestApplyAppendsMissingBrand(t *testing.T) {
	patched := Apply(readme, "britannia", "2025-07-21")
	require.Equal(t, readme+"\n**Last updated for `britannia`**: 2025-07-21\n", patched)
	require.True(t, strings.HasPrefix(patched, readme))
}

func TestApplyOnlyMatchesExactBrand(t *testing.T) {
	contents := "**Last updated for `amul dairy`**: 2025-01-01\n"
	patched := Apply(contents, "amul", "2025-07-21")
	require.True(t, strings.HasPrefix(patched, contents))
	require.Equal(t, 1, strings.Count(patched, "`amul`"))
}

func TestApplyLastLineWithoutNewline(t *testing.T) {
	patched := Apply("intro\n**Last updated for `amul`**: 2025-01-01", "amul", "2025-07-21")
	require.Equal(t, "intro\n**Last updated for `amul`**: 2025-07-21\n", patched)
}

func TestApplyIsIdempotent(t *testing.T) {
	once := Apply(readme, "britannia", "2025-07-21")
	twice := Apply(once, "britannia", "2025-07-21")
	require.Equal(t, once, twice)
	require.Equal(t, 1, strings.Count(twice, "`britannia`"))
}

func TestPatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte(readme), 0o644))

	require.NoError(t, Patch(path, "amul", "2025-07-21"))
	require.NoError(t, Patch(path, "britannia", "2025-07-21"))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "**Last updated for `amul`**: 2025-07-21\n")
	require.Contains(t, string(contents), "**Last updated for `nestle`**: 2025-03-04\n")
	require.True(t, strings.HasSuffix(string(contents), "\n\n**Last updated for `britannia`**: 2025-07-21\n"))
}

func TestPatchMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "README.md")
	require.NoError(t, Patch(path, "amul", "2025-07-21"))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "\n**Last updated for `amul`**: 2025-07-21\n", string(contents))
}
