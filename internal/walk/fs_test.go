package walk_test

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/CZERTAINLY/Sniffer/internal/walk"

	"github.com/stretchr/testify/require"
)

func tree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app.js":                    "eval(x)",
		"lib/util.py":               "input()",
		"lib/util.min.js":           "x",
		"src/Main.java":             "class Main {}",
		"README.md":                 "# readme",
		"node_modules/dep/index.js": "eval(y)",
		".git/config":               "[core]",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func relPaths(t *testing.T, f walk.Filter, paths ...string) []string {
	t.Helper()
	var ret []string
	for entry, err := range f.Seq(walk.Paths(t.Context(), paths...)) {
		require.NoError(t, err)
		ret = append(ret, entry.RelPath())
	}
	sort.Strings(ret)
	return ret
}

func TestPaths(t *testing.T) {
	t.Parallel()
	dir := tree(t)

	var got []string
	for entry, err := range walk.Paths(t.Context(), dir) {
		require.NoError(t, err)
		require.False(t, entry.Explicit())
		require.Equal(t, filepath.Join(dir, filepath.FromSlash(entry.RelPath())), entry.Path())
		got = append(got, entry.RelPath())

		info, err := entry.Stat()
		require.NoError(t, err)
		require.True(t, info.Mode().IsRegular())
	}
	sort.Strings(got)
	require.Equal(t, []string{"README.md", "app.js", "lib/util.min.js", "lib/util.py", "src/Main.java"}, got)
}

func TestPaths_OpenAfterWalk(t *testing.T) {
	t.Parallel()
	dir := tree(t)

	var entries []walk.Entry
	for entry, err := range walk.Paths(t.Context(), dir) {
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	require.Len(t, entries, 5)

	for _, entry := range entries {
		f, err := entry.Open()
		require.NoError(t, err, entry.Path())
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		want, err := os.ReadFile(entry.Path())
		require.NoError(t, err)
		require.Equal(t, want, b)
	}
}

func TestPaths_File(t *testing.T) {
	t.Parallel()
	dir := tree(t)
	path := filepath.Join(dir, "lib", "util.py")

	var entries []walk.Entry
	for entry, err := range walk.Paths(t.Context(), path) {
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	require.Len(t, entries, 1)
	require.True(t, entries[0].Explicit())
	require.Equal(t, path, entries[0].Path())

	f, err := entries[0].Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "input()", string(b))
}

func TestPaths_Missing(t *testing.T) {
	t.Parallel()

	var errs int
	for entry, err := range walk.Paths(t.Context(), filepath.Join(t.TempDir(), "missing.js")) {
		require.Error(t, err)
		_, oerr := entry.Open()
		require.Error(t, oerr)
		errs++
	}
	require.Equal(t, 1, errs)
}

func TestFilter(t *testing.T) {
	t.Parallel()
	dir := tree(t)

	def, err := walk.NewFilter(nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"app.js", "lib/util.min.js", "lib/util.py", "src/Main.java"}, relPaths(t, def, dir))

	noMin, err := walk.NewFilter(nil, []string{"**/*.min.js"})
	require.NoError(t, err)
	require.Equal(t, []string{"app.js", "lib/util.py", "src/Main.java"}, relPaths(t, noMin, dir))

	onlyLib, err := walk.NewFilter([]string{"lib/**"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"lib/util.min.js", "lib/util.py"}, relPaths(t, onlyLib, dir))

	// explicit files skip include
	require.Equal(t, []string{"README.md"}, relPaths(t, def, filepath.Join(dir, "README.md")))
	// but not exclude
	require.Empty(t, relPaths(t, noMin, filepath.Join(dir, "lib", "util.min.js")))

	_, err = walk.NewFilter([]string{"[a-"}, nil)
	require.Error(t, err)
}

func TestBytes(t *testing.T) {
	t.Parallel()
	entry := walk.Bytes("stdin/app.js", []byte("eval(x)"))
	require.True(t, entry.Explicit())
	require.Equal(t, "stdin/app.js", entry.Path())
	require.Equal(t, "app.js", entry.RelPath())

	info, err := entry.Stat()
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
	require.Equal(t, int64(7), info.Size())

	f, err := entry.Open()
	require.NoError(t, err)
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "eval(x)", string(b))
	require.NoError(t, f.Close())
}
