package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SidecarExt is the extension of the downloader metadata copied next to a mod
const SidecarExt = "dmodman"

// Cache manages the directory holding extracted mods. Each mod lives in a
// subdirectory named for its bare name, with its manifest and sidecar as siblings.
type Cache struct {
	basePath string
}

// New creates a cache manager rooted at basePath, made absolute
func New(basePath string) *Cache {
	if basePath != "" {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
	}
	return &Cache{basePath: basePath}
}

// Root returns the cache directory
func (c *Cache) Root() string {
	return c.basePath
}

// ModPath returns the directory holding a mod's extracted files
func (c *Cache) ModPath(bareName string) string {
	return filepath.Join(c.basePath, bareName)
}

// SidecarPath returns where a mod's downloader metadata is kept
func (c *Cache) SidecarPath(bareName string) string {
	return filepath.Join(c.basePath, bareName+"."+SidecarExt)
}

// FilePath returns the absolute path of a file inside a mod's directory
func (c *Cache) FilePath(bareName, relativePath string) string {
	return filepath.Join(c.ModPath(bareName), filepath.FromSlash(relativePath))
}

// Exists checks if a mod directory is present
func (c *Cache) Exists(bareName string) bool {
	info, err := os.Stat(c.ModPath(bareName))
	return err == nil && info.IsDir()
}

// Contains reports whether path lies inside the cache directory
func (c *Cache) Contains(path string) bool {
	rel, err := filepath.Rel(filepath.Clean(c.basePath), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CopyFile copies a file from one mod's directory into another's, keeping the relative path
func (c *Cache) CopyFile(fromBare, relativePath, toBare string) (err error) {
	src, err := os.Open(c.FilePath(fromBare, relativePath))
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dstPath := c.FilePath(toBare, relativePath)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", dstPath, cerr)
		}
	}()

	if _, err = io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}
	return nil
}

// ListFiles returns every regular file below a mod's directory as
// slash-separated paths relative to it, in lexical order.
func (c *Cache) ListFiles(bareName string) ([]string, error) {
	return c.ListFilesUnder(bareName, "")
}

// ListFilesUnder is ListFiles restricted to a subdirectory; returned paths
// stay relative to the mod's directory.
func (c *Cache) ListFilesUnder(bareName, subDir string) ([]string, error) {
	modPath := c.ModPath(bareName)
	// Custom mods may be a symlink to a directory elsewhere
	if resolved, err := filepath.EvalSymlinks(modPath); err == nil {
		modPath = resolved
	}
	root := filepath.Join(modPath, filepath.FromSlash(subDir))

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(modPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing cached files: %w", err)
	}

	return files, nil
}

// Delete removes a mod's directory and its sidecar
func (c *Cache) Delete(bareName string) error {
	modPath := c.ModPath(bareName)
	info, err := os.Lstat(modPath)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		// Only drop the link for custom mods pointing elsewhere
		if err := os.Remove(modPath); err != nil {
			return fmt.Errorf("removing mod link: %w", err)
		}
	} else if err := os.RemoveAll(modPath); err != nil {
		return fmt.Errorf("deleting cached mod: %w", err)
	}

	if err := os.Remove(c.SidecarPath(bareName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting sidecar: %w", err)
	}
	return nil
}

// Size returns the total size of a mod's files. A mod without a directory
// has size zero.
func (c *Cache) Size(bareName string) (int64, error) {
	modPath := c.ModPath(bareName)
	resolved, err := filepath.EvalSymlinks(modPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err == nil {
		modPath = resolved
	}

	var totalSize int64
	err = filepath.WalkDir(modPath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		totalSize += info.Size()
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("calculating cache size: %w", err)
	}

	return totalSize, nil
}
