package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/source/dmodman"
	"github.com/DonovanMods/starmod/internal/source/steam"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	appName  = "starmod"
	fileName = "config.yaml"
)

// Config holds the directories starmod works with and a few tool settings
type Config struct {
	CacheDir    string `yaml:"cache_dir"`
	DownloadDir string `yaml:"download_dir"`
	GameDir     string `yaml:"game_dir"`
	DataDir     string `yaml:"data_dir,omitempty"` // Deployment ledger location
	Editor      string `yaml:"editor,omitempty"`
	SteamDir    string `yaml:"steam_dir,omitempty"`
	CompatDir   string `yaml:"compat_dir,omitempty"`
	ProtonDir   string `yaml:"proton_dir,omitempty"`

	// FuzzyThreshold is the lowest fuzzy score accepted when resolving
	// names. Unset accepts any match; scores can be negative.
	FuzzyThreshold *int `yaml:"fuzzy_threshold,omitempty"`
}

// DefaultDir is where the config file lives unless overridden
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// Default returns settings derived from the XDG base directories. The
// download directory follows dmodman's configuration when it has one, and
// the game directories come from Steam when Starfield is installed there.
func Default() *Config {
	downloads := xdg.UserDirs.Download
	if dm, err := dmodman.LoadConfig(dmodman.ConfigPath()); err == nil {
		if dir := dm.ProfileDownloadDir(); dir != "" {
			downloads = dir
		}
	}

	cfg := &Config{
		CacheDir:    filepath.Join(xdg.CacheHome, appName),
		DataDir:     filepath.Join(xdg.DataHome, appName),
		DownloadDir: downloads,
	}
	if inst, err := steam.Locate(steam.StarfieldAppID); err == nil {
		cfg.GameDir = inst.GameDir
		cfg.SteamDir = inst.SteamDir
		cfg.CompatDir = inst.CompatDir
	}
	return cfg
}

// Load reads configuration from the given directory.
// Missing file or missing keys fall back to Default.
func Load(configDir string) (*Config, error) {
	return LoadFile(filepath.Join(configDir, fileName))
}

// LoadFile reads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.expand()
	return cfg, nil
}

func (c *Config) expand() {
	for _, p := range []*string{&c.CacheDir, &c.DownloadDir, &c.GameDir, &c.DataDir, &c.SteamDir, &c.CompatDir, &c.ProtonDir} {
		*p = AbsPath(*p)
	}
}

// Save writes configuration to the given directory
func (c *Config) Save(configDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	configPath := filepath.Join(configDir, fileName)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks the settings needed to touch the game directory
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("%w: cache_dir is empty", domain.ErrInvalidConfig)
	}
	if c.GameDir == "" {
		return domain.ErrGameDirNotSet
	}
	info, err := os.Stat(c.GameDir)
	if err != nil {
		return fmt.Errorf("game directory %s: %w", c.GameDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: game_dir %s is not a directory", domain.ErrInvalidConfig, c.GameDir)
	}
	return nil
}

// EditorCommand returns the editor to open manifests with
func (c *Config) EditorCommand() string {
	if c.Editor != "" {
		return c.Editor
	}
	if v := os.Getenv("VISUAL"); v != "" {
		return v
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}

func (c *Config) fields() map[string]*string {
	return map[string]*string{
		"cache_dir":    &c.CacheDir,
		"download_dir": &c.DownloadDir,
		"game_dir":     &c.GameDir,
		"data_dir":     &c.DataDir,
		"editor":       &c.Editor,
		"steam_dir":    &c.SteamDir,
		"compat_dir":   &c.CompatDir,
		"proton_dir":   &c.ProtonDir,
	}
}

// Set updates a single setting by its YAML key
func (c *Config) Set(key, value string) error {
	if key == "fuzzy_threshold" {
		if value == "" {
			c.FuzzyThreshold = nil
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: fuzzy_threshold must be an integer", domain.ErrInvalidConfig)
		}
		c.FuzzyThreshold = &n
		return nil
	}
	field, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidConfig, key)
	}
	if key == "editor" {
		*field = value
	} else {
		*field = AbsPath(value)
	}
	return nil
}

// Entries returns every setting as key/value pairs sorted by key
func (c *Config) Entries() [][2]string {
	fields := c.fields()
	values := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		values[k] = *v
	}
	values["fuzzy_threshold"] = ""
	if c.FuzzyThreshold != nil {
		values["fuzzy_threshold"] = strconv.Itoa(*c.FuzzyThreshold)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([][2]string, len(keys))
	for i, k := range keys {
		entries[i] = [2]string{k, values[k]}
	}
	return entries
}
