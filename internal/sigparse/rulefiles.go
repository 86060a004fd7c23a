// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"os"
	"path/filepath"
	"sort"
)

// ResolveRuleFiles expands a -rules argument into a sorted list of files
// to load: path itself if it names a single file, or every *.rules entry
// directly under it if it names a directory (no recursion, matching the
// flat rule directory layout spec.md §6 assumes). Shared by cmd/sentryd
// and cmd/sentryctl so both resolve a -rules argument identically.
func ResolveRuleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != ".rules" {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
