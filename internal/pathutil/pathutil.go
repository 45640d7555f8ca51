// Package pathutil holds the naming helpers shared by intake and deployment.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// compositeExts are suffixes that count as one extension
var compositeExts = []string{".tar.gz", ".tar.xz"}

// Ext returns the extension of name, treating .tar.gz and .tar.xz as one
func Ext(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range compositeExts {
		if strings.HasSuffix(lower, ext) {
			return name[len(name)-len(ext):]
		}
	}
	return filepath.Ext(name)
}

// Stem returns the base name of p without its (composite) extension
func Stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, Ext(base))
}

// BareName is the lowercase stem of an archive, used as the mod's key
func BareName(archive string) string {
	return strings.ToLower(Stem(archive))
}

// ToSlash converts Windows separators to forward slashes regardless of host OS
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// WithSuffix appends ext as an extra extension component: a.dds -> a.dds.ext
func WithSuffix(p, ext string) string {
	return p + "." + strings.TrimPrefix(ext, ".")
}

// LowercaseTree renames every entry below root to lowercase.
// Children are renamed before their parents so paths stay valid during the walk.
// Directories whose names collide after folding are merged.
func LowercaseTree(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("reading %s: %w", root, err)
	}

	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if e.IsDir() {
			if err := LowercaseTree(p); err != nil {
				return err
			}
		}

		lower := strings.ToLower(e.Name())
		if lower == e.Name() {
			continue
		}
		target := filepath.Join(root, lower)
		if err := renameOrMerge(p, target, e.IsDir()); err != nil {
			return err
		}
	}

	return nil
}

func renameOrMerge(src, dst string, isDir bool) error {
	info, err := os.Lstat(dst)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("checking %s: %w", dst, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("renaming %s: %w", src, err)
		}
		return nil
	}

	if !isDir || !info.IsDir() {
		// Same name after folding; the lowercase one wins
		if err := os.RemoveAll(src); err != nil {
			return fmt.Errorf("removing duplicate %s: %w", src, err)
		}
		return nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	for _, e := range entries {
		if err := renameOrMerge(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name()), e.IsDir()); err != nil {
			return err
		}
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing merged %s: %w", src, err)
	}
	return nil
}

// IsWithin reports whether p is root or lies below it
func IsWithin(root, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
