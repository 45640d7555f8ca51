package linker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DonovanMods/starmod/internal/pathutil"
)

// BackupExt marks a foreign file that was moved out of a mod's way
const BackupExt = "starmod_bkp"

// BackupPath returns the primary backup name for p: <name>.<ext>.starmod_bkp
func BackupPath(p string) string {
	return pathutil.WithSuffix(p, BackupExt)
}

// Backup renames the foreign file at p aside and returns the new path.
// An older backup is never replaced; later ones get a numeric component.
func Backup(p string) (string, error) {
	target := BackupPath(p)
	for n := 1; exists(target); n++ {
		target = pathutil.WithSuffix(pathutil.WithSuffix(p, strconv.Itoa(n)), BackupExt)
	}

	if err := os.Rename(p, target); err != nil {
		return "", fmt.Errorf("backing up %s: %w", p, err)
	}
	return target, nil
}

// Restore moves the primary backup of p back into place when p is free.
// It reports whether a file was restored.
func Restore(p string) (bool, error) {
	backup := BackupPath(p)
	if !exists(backup) || exists(p) {
		return false, nil
	}
	if err := os.Rename(backup, p); err != nil {
		return false, fmt.Errorf("restoring %s: %w", p, err)
	}
	return true, nil
}

// RestoreAll restores every primary backup below root whose original path is free
func RestoreAll(root string) ([]string, error) {
	var restored []string
	suffix := "." + BackupExt

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, suffix) {
			return nil
		}
		original := strings.TrimSuffix(path, suffix)
		// Numbered backups only exist beside a primary one; leave them for the user
		if ext := filepath.Ext(original); len(ext) > 1 {
			if _, err := strconv.Atoi(ext[1:]); err == nil {
				return nil
			}
		}
		ok, err := Restore(original)
		if err != nil {
			return err
		}
		if ok {
			restored = append(restored, original)
		}
		return nil
	})
	if err != nil {
		return restored, fmt.Errorf("restoring backups: %w", err)
	}
	return restored, nil
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
