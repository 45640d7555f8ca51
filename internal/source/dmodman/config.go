package dmodman

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// Config is the part of the downloader's own settings we care about
type Config struct {
	DownloadDir string `toml:"download_dir"`
	Profile     string `toml:"profile"`
}

// ConfigPath returns where the downloader keeps its configuration
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "dmodman", "config.toml")
}

// LoadConfig reads the downloader configuration. A missing file yields (nil, nil).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading dmodman config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing dmodman config: %w", err)
	}
	return &cfg, nil
}

// ProfileDownloadDir is the directory the downloader stores archives for the
// configured profile in, or "" if unknown.
func (c *Config) ProfileDownloadDir() string {
	if c == nil || c.DownloadDir == "" {
		return ""
	}
	if c.Profile == "" {
		return c.DownloadDir
	}
	return filepath.Join(c.DownloadDir, c.Profile)
}
