// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(logging.DefaultConfig())
}

func TestRotateIfNeededDisabledByZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fast.log")
	require.NoError(t, os.WriteFile(path, []byte("some alert line\n"), 0o644))

	require.NoError(t, rotateIfNeeded(path, 0, testLogger(t)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Size())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRotateIfNeededMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fast.log")
	require.NoError(t, rotateIfNeeded(path, 10, testLogger(t)))
}

func TestRotateIfNeededBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fast.log")
	require.NoError(t, os.WriteFile(path, []byte("short\n"), 0o644))

	require.NoError(t, rotateIfNeeded(path, 1<<20, testLogger(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRotateIfNeededAboveThresholdGzipsAndTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fast.log")
	content := []byte("[**] [1:1:0] t1 [**]\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	require.NoError(t, rotateIfNeeded(path, int64(len(content)-1), testLogger(t)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var rotated string
	for _, e := range entries {
		if e.Name() != "fast.log" {
			rotated = e.Name()
		}
	}
	require.NotEmpty(t, rotated)

	f, err := os.Open(filepath.Join(dir, rotated))
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	got, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, content, got)
}
