// Package manifest persists one YAML record per mod next to its cache directory.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Ext is the extension of every manifest file in the cache directory
const Ext = "yaml"

// Path returns the manifest path for a mod
func Path(cacheDir, bareName string) string {
	return filepath.Join(cacheDir, bareName+"."+Ext)
}

// Save writes the manifest, replacing any previous one
func Save(cacheDir string, mod *domain.Mod) error {
	data, err := yaml.Marshal(mod)
	if err != nil {
		return fmt.Errorf("marshaling manifest %s: %w", mod.BareName, err)
	}

	path := Path(cacheDir, mod.BareName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Load reads the manifest for a single mod
func Load(cacheDir, bareName string) (*domain.Mod, error) {
	return read(Path(cacheDir, bareName))
}

func read(path string) (*domain.Mod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var mod domain.Mod
	if err := yaml.Unmarshal(data, &mod); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filepath.Base(path), err)
	}
	if mod.BareName == "" {
		mod.BareName = strings.TrimSuffix(filepath.Base(path), "."+Ext)
	}
	return &mod, nil
}

// Exists reports whether a manifest is present for a mod
func Exists(cacheDir, bareName string) bool {
	info, err := os.Stat(Path(cacheDir, bareName))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes a mod's manifest
func Remove(cacheDir, bareName string) error {
	if err := os.Remove(Path(cacheDir, bareName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing manifest: %w", err)
	}
	return nil
}

// Gather loads every manifest in cacheDir, sorted by priority then bare name.
// Manifests that fail to parse are skipped with a warning.
func Gather(cacheDir string, logger *log.Logger) ([]*domain.Mod, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache dir: %w", err)
	}

	var mods []*domain.Mod
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != "."+Ext {
			continue
		}
		mod, err := read(filepath.Join(cacheDir, e.Name()))
		if err != nil {
			if logger != nil {
				logger.Warn("skipping manifest", "file", e.Name(), "err", err)
			}
			continue
		}
		mods = append(mods, mod)
	}

	slices.SortStableFunc(mods, domain.Compare)
	return mods, nil
}
