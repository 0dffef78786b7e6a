// Package file implements the durable state stores as JSON documents on
// local disk: open positions, the token blacklist, and trade statistics.
// Each document is rewritten atomically (temp file + rename) on every
// mutation so a crash never leaves a half-written file behind.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// loadJSON reads a JSON document into dst. A missing or empty file is not
// an error: dst is left untouched so the caller starts from its zero state.
// A corrupt file must not stop the process either; it is moved aside with a
// .corrupt suffix for inspection and reported through the corrupt flag so
// the caller can reset to its zero state (a failed unmarshal may have
// partially filled dst).
func loadJSON(path string, dst any) (corrupt bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("store/file: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		quarantine := path + ".corrupt"
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			return false, fmt.Errorf("store/file: quarantine %s: %w", path, renameErr)
		}
		return true, nil
	}
	return false, nil
}

// saveJSON writes a JSON document atomically: marshal, write to a temp file
// in the same directory, fsync, rename over the target.
func saveJSON(path string, src any) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("store/file: marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store/file: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store/file: temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store/file: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store/file: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store/file: close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store/file: rename %s: %w", path, err)
	}
	return nil
}
