// Package config loads and saves starmod's settings.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// AbsPath expands ~ and makes path absolute. Symlinks planted in the game
// directory point at these paths, so a relative one would dangle. Empty
// stays empty.
func AbsPath(path string) string {
	if path == "" {
		return ""
	}
	path = ExpandPath(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ParseConfigPath validates an explicit config file path and returns it cleaned.
// It returns an error if:
//   - The path is empty
//   - The path contains parent directory traversal (..)
//   - The file does not exist or is a directory
//   - The file does not have a .yaml or .yml extension
func ParseConfigPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("config path cannot be empty")
	}

	path = ExpandPath(path)
	if strings.Contains(path, "..") {
		return "", errors.New("config path contains invalid traversal")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("config file does not exist")
		}
		return "", err
	}

	if info.IsDir() {
		return "", errors.New("config path is a directory, not a file")
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if ext != ".yaml" && ext != ".yml" {
		return "", errors.New("config file must have .yaml or .yml extension")
	}

	return abs, nil
}
