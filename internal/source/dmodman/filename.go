package dmodman

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedFilename holds what can be read from a Nexus-style archive name when no sidecar exists
type ParsedFilename struct {
	ModID    uint32
	Version  string
	BaseName string
}

// nexusPattern matches Name-ModID-Version[-Timestamp].ext
// e.g. Starfield Engine Fixes-12345-1-2-0-1703618069.7z.
// The mod id needs at least two digits so it is not mistaken for a version component.
var nexusPattern = regexp.MustCompile(`^(.+?)-(\d{2,})-(.+?)\.(?:tar\.gz|tar\.xz|[a-zA-Z0-9]+)$`)

// timestampSuffix matches the trailing upload timestamp
var timestampSuffix = regexp.MustCompile(`-\d{10,}$`)

// ParseFilename extracts mod id and version from a Nexus-style archive name.
// Returns nil if the name does not follow that layout.
func ParseFilename(filename string) *ParsedFilename {
	matches := nexusPattern.FindStringSubmatch(filepath.Base(filename))
	if matches == nil {
		return nil
	}

	id, err := strconv.ParseUint(matches[2], 10, 32)
	if err != nil {
		return nil
	}

	version := timestampSuffix.ReplaceAllString(matches[3], "")
	return &ParsedFilename{
		ModID:    uint32(id),
		Version:  strings.ReplaceAll(version, "-", "."),
		BaseName: matches[1],
	}
}
