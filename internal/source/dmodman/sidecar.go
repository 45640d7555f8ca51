// Package dmodman reads the JSON metadata the dmodman downloader writes next
// to every archive it fetches from Nexus Mods.
package dmodman

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// UpdateKind is the downloader's view of whether a newer file exists
type UpdateKind int

const (
	UpToDate UpdateKind = iota
	HasNewFile
	OutOfDate
	IgnoredUntil
)

var updateKindNames = map[UpdateKind]string{
	UpToDate:     "UpToDate",
	HasNewFile:   "HasNewFile",
	OutOfDate:    "OutOfDate",
	IgnoredUntil: "IgnoredUntil",
}

func (k UpdateKind) String() string {
	if name, ok := updateKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

func parseUpdateKind(s string) (UpdateKind, error) {
	for k, name := range updateKindNames {
		if name == s {
			return k, nil
		}
	}
	return UpToDate, fmt.Errorf("unknown update status %q", s)
}

// UpdateStatus carries the kind and the timestamp (seconds) it refers to.
// On the wire it is an externally tagged object: {"HasNewFile": 1700000000}.
type UpdateStatus struct {
	Kind      UpdateKind
	Timestamp uint64
}

func (s UpdateStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]uint64{s.Kind.String(): s.Timestamp})
}

func (s *UpdateStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		kind, err := parseUpdateKind(name)
		if err != nil {
			return err
		}
		*s = UpdateStatus{Kind: kind}
		return nil
	}

	var tagged map[string]uint64
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("parsing update status: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("update status must have exactly one variant, got %d", len(tagged))
	}
	for name, ts := range tagged {
		kind, err := parseUpdateKind(name)
		if err != nil {
			return err
		}
		*s = UpdateStatus{Kind: kind, Timestamp: ts}
	}
	return nil
}

// Sidecar is one downloader metadata record
type Sidecar struct {
	Game         string       `json:"game"`
	FileName     string       `json:"file_name"`
	ModID        uint32       `json:"mod_id"`
	FileID       uint64       `json:"file_id"`
	UpdateStatus UpdateStatus `json:"update_status"`
}

// Read parses a sidecar file
func Read(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}

	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", filepath.Base(path), err)
	}
	return &s, nil
}

// Gather reads every *.json sidecar up to two levels below dir.
// Files that are not sidecars are skipped.
func Gather(dir string) ([]*Sidecar, error) {
	root := filepath.Clean(dir)
	var list []*Sidecar

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		depth := strings.Count(strings.TrimPrefix(path, root), string(filepath.Separator))
		if d.IsDir() {
			if depth >= 2 {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		s, err := Read(path)
		if err != nil {
			return nil
		}
		list = append(list, s)
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("gathering sidecars: %w", err)
	}

	return list, nil
}

// split returns the lowercase file name around the "-<mod_id>-" marker
func (s *Sidecar) split() (name, rest string, ok bool) {
	return strings.Cut(strings.ToLower(s.FileName), fmt.Sprintf("-%d-", s.ModID))
}

// versionAndTimestamp splits the remainder (minus extension) at its last hyphen
func (s *Sidecar) versionAndTimestamp() (version, timestamp string, ok bool) {
	_, rest, ok := s.split()
	if !ok {
		return "", "", false
	}
	dot := strings.LastIndex(rest, ".")
	if dot < 0 {
		return "", "", false
	}
	rest = rest[:dot]
	dash := strings.LastIndex(rest, "-")
	if dash < 0 {
		return "", "", false
	}
	return rest[:dash], rest[dash+1:], true
}

// Name is the lowercase file name before the mod id marker
func (s *Sidecar) Name() string {
	name, _, ok := s.split()
	if !ok {
		return ""
	}
	return name
}

// Version is the version encoded in the file name, with hyphens as dots
func (s *Sidecar) Version() string {
	version, _, ok := s.versionAndTimestamp()
	if !ok {
		return ""
	}
	return strings.ReplaceAll(version, "-", ".")
}

// Timestamp is the upload timestamp encoded in the file name
func (s *Sidecar) Timestamp() string {
	_, ts, ok := s.versionAndTimestamp()
	if !ok {
		return ""
	}
	return ts
}

// IsNewerThan reports whether s describes a later upload of the same mod file than other
func (s *Sidecar) IsNewerThan(other *Sidecar) bool {
	if other == nil {
		return true
	}
	if s.ModID != other.ModID || s.Name() != other.Name() {
		return false
	}
	a, errA := strconv.ParseUint(s.Timestamp(), 10, 64)
	b, errB := strconv.ParseUint(other.Timestamp(), 10, 64)
	if errA == nil && errB == nil {
		return a > b
	}
	return s.FileID > other.FileID
}
