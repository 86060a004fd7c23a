// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRuleFilesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.rules")
	require.NoError(t, os.WriteFile(path, []byte("# empty\n"), 0o644))

	got, err := ResolveRuleFiles(path)
	require.NoError(t, err)
	require.Equal(t, []string{path}, got)
}

func TestResolveRuleFilesDirectorySortedNonRecursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.rules"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.rules"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.rules"), nil, 0o644))

	got, err := ResolveRuleFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "a.rules"),
		filepath.Join(dir, "b.rules"),
	}, got)
}

func TestResolveRuleFilesMissingPath(t *testing.T) {
	_, err := ResolveRuleFiles(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
