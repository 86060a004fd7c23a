// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"

	"grimm.is/sentryd/internal/logging"
)

// rotateIfNeeded gzips path to path.<timestamp>.gz and truncates it when it
// has grown past maxBytes. maxBytes <= 0 disables rotation.
func rotateIfNeeded(path string, maxBytes int64, log *logging.Logger) error {
	if maxBytes <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxBytes {
		return nil
	}

	rotated := path + "." + time.Now().UTC().Format("20060102T150405") + ".gz"
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(rotated)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := os.Truncate(path, 0); err != nil {
		return err
	}
	log.Info("rotated fast log", "path", path, "rotated", rotated, "size", info.Size())
	return nil
}
