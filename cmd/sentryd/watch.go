// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"os"
	"path/filepath"
)

// watchTarget resolves the directory an fsnotify watch should be placed
// on for path: path itself if it's already a directory, or its parent if
// it's a single rule file (editors commonly replace a file by rename
// rather than in-place write, which only a directory watch observes).
func watchTarget(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}
