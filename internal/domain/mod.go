package domain

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// DataDir is the game subdirectory every normalised destination lives under
const DataDir = "data"

// CustomPriority is the priority given to freshly created custom mods so they
// sort after everything extracted from an archive.
const CustomPriority = 1000

// ModKind identifies which installer produced a mod's file list
type ModKind int

const (
	KindData   ModKind = iota // Plain data layout
	KindFoMod                 // FOMOD scripted installer
	KindLoader                // Script extender / loader, installs to the game root
	KindCustom                // Created by the user, not from an archive
)

func (k ModKind) String() string {
	switch k {
	case KindData:
		return "Data"
	case KindFoMod:
		return "FoMod"
	case KindLoader:
		return "Loader"
	case KindCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// ParseModKind converts a string to ModKind (case-insensitive)
func ParseModKind(s string) (ModKind, error) {
	switch strings.ToLower(s) {
	case "data":
		return KindData, nil
	case "fomod":
		return KindFoMod, nil
	case "loader":
		return KindLoader, nil
	case "custom":
		return KindCustom, nil
	default:
		return KindData, fmt.Errorf("unknown mod kind %q", s)
	}
}

func (k ModKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ModKind) UnmarshalText(text []byte) error {
	kind, err := ParseModKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ModState is whether a mod is deployed to the game directory
type ModState int

const (
	StateDisabled ModState = iota
	StateEnabled
)

func (s ModState) String() string {
	if s == StateEnabled {
		return "Enabled"
	}
	return "Disabled"
}

func (s ModState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ModState) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "enabled":
		*s = StateEnabled
	case "disabled", "":
		*s = StateDisabled
	default:
		return fmt.Errorf("unknown mod state %q", text)
	}
	return nil
}

// InstallFile maps a file in the mod's cache directory to its place in the game directory
type InstallFile struct {
	Source      string `yaml:"source" json:"source"`           // Relative to the mod's cache directory
	Destination string `yaml:"destination" json:"destination"` // Relative to the game directory, forward slashes
}

// NewInstallFile builds a pair with a normalised destination: lowercase,
// forward slashes, and always rooted at data/.
func NewInstallFile(source, destination string) InstallFile {
	dst := strings.ToLower(strings.ReplaceAll(destination, `\`, "/"))
	dst = strings.TrimPrefix(path.Clean("/"+dst), "/")
	if dst == DataDir {
		dst = ""
	}
	dst = strings.TrimPrefix(dst, DataDir+"/")
	if dst == "" {
		dst = DataDir + "/"
	} else {
		dst = DataDir + "/" + dst
	}
	return InstallFile{Source: normaliseSource(source), Destination: dst}
}

// NewRawInstallFile keeps the destination as given. Only loaders use this,
// since they install next to the game executable instead of under data/.
func NewRawInstallFile(source, destination string) InstallFile {
	return InstallFile{Source: normaliseSource(source), Destination: destination}
}

func normaliseSource(source string) string {
	return strings.TrimPrefix(strings.ToLower(strings.ReplaceAll(source, `\`, "/")), "./")
}

// Matches reports whether name refers to this file by source, destination or basename
func (f InstallFile) Matches(name string) bool {
	name = strings.ToLower(strings.ReplaceAll(name, `\`, "/"))
	return f.Source == name || f.Destination == name || path.Base(f.Source) == name
}

// Mod is a single extracted mod and its deployment metadata
type Mod struct {
	BareName      string        `yaml:"bare_name" json:"bare_name"`
	DisplayName   string        `yaml:"display_name" json:"display_name"`
	Kind          ModKind       `yaml:"kind" json:"kind"`
	Version       string        `yaml:"version,omitempty" json:"version,omitempty"`
	NexusID       uint32        `yaml:"nexus_id,omitempty" json:"nexus_id,omitempty"`
	State         ModState      `yaml:"state" json:"state"`
	Priority      int           `yaml:"priority" json:"priority"`
	Files         []InstallFile `yaml:"files" json:"files"`
	DisabledFiles []InstallFile `yaml:"disabled_files,omitempty" json:"disabled_files,omitempty"`
	Tags          []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Name returns the display name, falling back to the bare name
func (m *Mod) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.BareName
}

// IsEnabled reports whether the mod is enabled
func (m *Mod) IsEnabled() bool {
	return m.State == StateEnabled
}

// Destinations returns the destination of every active file, in file order
func (m *Mod) Destinations() []string {
	dests := make([]string, len(m.Files))
	for i, f := range m.Files {
		dests[i] = f.Destination
	}
	return dests
}

// HasTag reports whether the mod carries tag
func (m *Mod) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// AddTag adds tag, keeping Tags sorted
func (m *Mod) AddTag(tag string) error {
	if m.HasTag(tag) {
		return fmt.Errorf("%w: %s on %s", ErrDuplicateTag, tag, m.BareName)
	}
	m.Tags = append(m.Tags, tag)
	slices.Sort(m.Tags)
	return nil
}

// RemoveTag removes tag
func (m *Mod) RemoveTag(tag string) error {
	idx := slices.Index(m.Tags, tag)
	if idx < 0 {
		return fmt.Errorf("%w: %s on %s", ErrTagNotFound, tag, m.BareName)
	}
	m.Tags = slices.Delete(m.Tags, idx, idx+1)
	return nil
}

// DisableFile moves every active file matching name to DisabledFiles
func (m *Mod) DisableFile(name string) error {
	var kept []InstallFile
	found := false
	for _, f := range m.Files {
		if f.Matches(name) {
			m.DisabledFiles = append(m.DisabledFiles, f)
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return fmt.Errorf("%w: %s in %s", ErrFileNotFound, name, m.BareName)
	}
	m.Files = kept
	return nil
}

// EnableFile moves every disabled file matching name back to Files
func (m *Mod) EnableFile(name string) error {
	var kept []InstallFile
	found := false
	for _, f := range m.DisabledFiles {
		if f.Matches(name) {
			m.Files = append(m.Files, f)
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return fmt.Errorf("%w: %s in %s", ErrFileNotFound, name, m.BareName)
	}
	m.DisabledFiles = kept
	return nil
}

// Compare orders mods by priority, then bare name
func Compare(a, b *Mod) int {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	return strings.Compare(a.BareName, b.BareName)
}
