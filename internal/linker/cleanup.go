package linker

import (
	"fmt"
	"os"
	"path/filepath"
)

// CleanupEmptyDirs removes every directory below root that is empty, deepest
// first, so chains of empty parents disappear too. root itself is kept.
func CleanupEmptyDirs(root string) error {
	_, err := pruneDir(root, true)
	return err
}

// pruneDir reports whether dir was removed
func pruneDir(dir string, keep bool) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", dir, err)
	}

	remaining := len(entries)
	for _, e := range entries {
		// Symlinked directories are entries, not directories to descend into
		if !e.IsDir() {
			continue
		}
		removed, err := pruneDir(filepath.Join(dir, e.Name()), false)
		if err != nil {
			return false, err
		}
		if removed {
			remaining--
		}
	}

	if keep || remaining > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, fmt.Errorf("removing empty dir %s: %w", dir, err)
	}
	return true, nil
}
