package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
}

func TestFindEptDatasets(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "ept.json"))
	touch(t, filepath.Join(root, "a", "ept.json"))
	touch(t, filepath.Join(root, "a", "ept-hierarchy", "0-0-0-0.json"))
	touch(t, filepath.Join(root, "b", "c", "ept.json"))
	touch(t, filepath.Join(root, "b", "notes.txt"))

	finder := NewStandardFileFinder()

	flat, err := finder.FindEptDatasets(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, flat)

	all, err := finder.FindEptDatasets(root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{root, filepath.Join(root, "a"), filepath.Join(root, "b", "c")}, all)

	_, err = finder.FindEptDatasets(filepath.Join(root, "missing"), true)
	assert.Error(t, err)
}

func TestGetPointFilesToProcess(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.xyz"))
	touch(t, filepath.Join(root, "b.CSV"))
	touch(t, filepath.Join(root, "ignored.las"))
	touch(t, filepath.Join(root, "sub", "c.txt"))

	finder := NewStandardFileFinder()

	single, err := finder.GetPointFilesToProcess(filepath.Join(root, "a.xyz"), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.xyz")}, single)

	flat, err := finder.GetPointFilesToProcess(root, true, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(root, "a.xyz"), filepath.Join(root, "b.CSV")}, flat)

	all, err := finder.GetPointFilesToProcess(root, true, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestParseIntList(t *testing.T) {
	codes, err := ParseIntList("2, 7,,18")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 7, 18}, codes)

	codes, err = ParseIntList("")
	require.NoError(t, err)
	assert.Empty(t, codes)

	_, err = ParseIntList("2,ground")
	assert.Error(t, err)
}
