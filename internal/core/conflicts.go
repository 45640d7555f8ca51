package core

import (
	"slices"

	"github.com/DonovanMods/starmod/internal/domain"
)

// ModConflicts lists one mod's overlaps with the rest of the catalogue
type ModConflicts struct {
	Files       []string // contested destinations
	LosingTo    []string // higher-ranked mods that overwrite this one
	WinningOver []string // lower-ranked mods this one overwrites
}

// Conflicts is the overlap of enabled mods' destinations
type Conflicts struct {
	// ByFile maps a destination to the bare names of its providers in rank order.
	// Only destinations with at least two providers are kept.
	ByFile map[string][]string
	ByMod  map[string]*ModConflicts
}

// AnalyzeConflicts computes file and mod overlaps for enabled mods in rank order
func AnalyzeConflicts(mods []*domain.Mod) *Conflicts {
	byFile := make(map[string][]string)
	for _, m := range mods {
		if !m.IsEnabled() {
			continue
		}
		for _, dest := range m.Destinations() {
			byFile[dest] = append(byFile[dest], m.BareName)
		}
	}
	for dest, owners := range byFile {
		if len(owners) < 2 {
			delete(byFile, dest)
		}
	}

	byMod := make(map[string]*ModConflicts)
	for _, dest := range sortedKeys(byFile) {
		owners := byFile[dest]
		for pos, name := range owners {
			mc := byMod[name]
			if mc == nil {
				mc = &ModConflicts{}
				byMod[name] = mc
			}
			mc.Files = append(mc.Files, dest)
			for _, other := range owners[:pos] {
				mc.WinningOver = appendUnique(mc.WinningOver, other)
			}
			for _, other := range owners[pos+1:] {
				mc.LosingTo = appendUnique(mc.LosingTo, other)
			}
		}
	}

	return &Conflicts{ByFile: byFile, ByMod: byMod}
}

// Tag classifies mod from its conflict relations
func (c *Conflicts) Tag(mod *domain.Mod) domain.Tag {
	if !mod.IsEnabled() {
		return domain.TagDisabled
	}
	mc := c.ByMod[mod.BareName]
	if mc == nil {
		return domain.TagEnabled
	}

	losing := len(mc.LosingTo) > 0
	winning := len(mc.WinningOver) > 0
	switch {
	case losing && c.overwrittenEverywhere(mod):
		return domain.TagCompleteLoser
	case losing && winning:
		return domain.TagConflict
	case losing:
		return domain.TagLoser
	case winning:
		return domain.TagWinner
	default:
		return domain.TagEnabled
	}
}

// overwrittenEverywhere reports whether every file of mod is provided by a higher-ranked mod
func (c *Conflicts) overwrittenEverywhere(mod *domain.Mod) bool {
	if len(mod.Files) == 0 {
		return false
	}
	for _, dest := range mod.Destinations() {
		owners, ok := c.ByFile[dest]
		if !ok || owners[len(owners)-1] == mod.BareName {
			return false
		}
	}
	return true
}

// Winner returns the mod whose link ends up at dest, or "" when uncontested
func (c *Conflicts) Winner(dest string) string {
	owners := c.ByFile[dest]
	if len(owners) == 0 {
		return ""
	}
	return owners[len(owners)-1]
}

// Files returns the contested destinations in sorted order
func (c *Conflicts) Files() []string {
	return sortedKeys(c.ByFile)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
