package core

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/storage/manifest"

	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"
)

// Matcher picks the best candidate for a loose query
type Matcher interface {
	// Match returns the index of the best candidate, or false when none fits
	Match(pattern string, candidates []string) (int, bool)
}

// FuzzyMatcher scores candidates by subsequence match. The highest score
// wins; equal scores go to the earliest candidate. Scores may be negative, so
// a nil MinScore accepts every match.
type FuzzyMatcher struct {
	MinScore *int
}

func (f FuzzyMatcher) Match(pattern string, candidates []string) (int, bool) {
	best, bestScore := -1, 0
	for _, m := range fuzzy.Find(pattern, candidates) {
		if f.MinScore != nil && m.Score < *f.MinScore {
			continue
		}
		if best < 0 || m.Score > bestScore || (m.Score == bestScore && m.Index < best) {
			best, bestScore = m.Index, m.Score
		}
	}
	return best, best >= 0
}

// Catalogue is the ordered list of mods in the cache. Index is deployment rank.
type Catalogue struct {
	cacheDir string
	mods     []*domain.Mod
	matcher  Matcher
	log      *log.Logger
}

// GatherCatalogue loads every manifest in cacheDir
func GatherCatalogue(cacheDir string, logger *log.Logger) (*Catalogue, error) {
	if logger == nil {
		logger = log.Default()
	}
	mods, err := manifest.Gather(cacheDir, logger)
	if err != nil {
		return nil, err
	}
	return &Catalogue{cacheDir: cacheDir, mods: mods, matcher: FuzzyMatcher{}, log: logger}, nil
}

// NewCatalogue wraps an in-memory list, sorting it by rank
func NewCatalogue(cacheDir string, mods []*domain.Mod) *Catalogue {
	c := &Catalogue{cacheDir: cacheDir, mods: mods, matcher: FuzzyMatcher{}, log: log.Default()}
	c.sort()
	return c
}

// SetMatcher replaces the fuzzy fallback used by Find
func (c *Catalogue) SetMatcher(m Matcher) {
	c.matcher = m
}

// Root returns the cache directory holding the manifests
func (c *Catalogue) Root() string {
	return c.cacheDir
}

// Mods returns the mods in rank order
func (c *Catalogue) Mods() []*domain.Mod {
	return c.mods
}

// Len returns the number of mods
func (c *Catalogue) Len() int {
	return len(c.mods)
}

// At returns the mod at rank idx
func (c *Catalogue) At(idx int) *domain.Mod {
	return c.mods[idx]
}

// Index returns the rank of mod, or -1
func (c *Catalogue) Index(mod *domain.Mod) int {
	return slices.Index(c.mods, mod)
}

// Reload re-reads every manifest from disk
func (c *Catalogue) Reload() error {
	mods, err := manifest.Gather(c.cacheDir, c.log)
	if err != nil {
		return err
	}
	c.mods = mods
	return nil
}

// Find resolves query by bare or display name, then rank, then fuzzy match on display names
func (c *Catalogue) Find(query string) (int, error) {
	for idx, m := range c.mods {
		if m.BareName == query || m.Name() == query {
			return idx, nil
		}
	}

	if idx, err := strconv.Atoi(query); err == nil {
		if idx >= 0 && idx < len(c.mods) {
			return idx, nil
		}
		return -1, fmt.Errorf("%w: index %d", domain.ErrModNotFound, idx)
	}

	names := make([]string, len(c.mods))
	for idx, m := range c.mods {
		names[idx] = m.Name()
	}
	if idx, ok := c.matcher.Match(query, names); ok {
		return idx, nil
	}
	return -1, fmt.Errorf("%w: %s", domain.ErrModNotFound, query)
}

// FindMod is Find returning the mod itself
func (c *Catalogue) FindMod(query string) (*domain.Mod, error) {
	idx, err := c.Find(query)
	if err != nil {
		return nil, err
	}
	return c.mods[idx], nil
}

// Save writes a single mod's manifest
func (c *Catalogue) Save(mod *domain.Mod) error {
	return manifest.Save(c.cacheDir, mod)
}

// SetName changes the display name
func (c *Catalogue) SetName(mod *domain.Mod, name string) error {
	mod.DisplayName = name
	return c.Save(mod)
}

// SetPriority changes a mod's priority and re-sorts the catalogue
func (c *Catalogue) SetPriority(mod *domain.Mod, priority int) error {
	mod.Priority = priority
	if err := c.Save(mod); err != nil {
		return err
	}
	c.sort()
	return nil
}

// AddTag adds a tag and saves
func (c *Catalogue) AddTag(mod *domain.Mod, tag string) error {
	if err := mod.AddTag(tag); err != nil {
		return err
	}
	return c.Save(mod)
}

// RemoveTag removes a tag and saves
func (c *Catalogue) RemoveTag(mod *domain.Mod, tag string) error {
	if err := mod.RemoveTag(tag); err != nil {
		return err
	}
	return c.Save(mod)
}

// EnableFile moves a disabled file back into the active list and saves
func (c *Catalogue) EnableFile(mod *domain.Mod, name string) error {
	if err := mod.EnableFile(name); err != nil {
		return err
	}
	return c.Save(mod)
}

// DisableFile moves an active file to the disabled list and saves
func (c *Catalogue) DisableFile(mod *domain.Mod, name string) error {
	if err := mod.DisableFile(name); err != nil {
		return err
	}
	return c.Save(mod)
}

// Renumber rewrites priorities to 0..n-1 in rank order. Custom mods and
// negatively prioritised mods keep their values.
func (c *Catalogue) Renumber() error {
	next := 0
	for _, m := range c.mods {
		if m.Kind == domain.KindCustom || m.Priority < 0 {
			continue
		}
		if m.Priority != next {
			m.Priority = next
			if err := c.Save(m); err != nil {
				return err
			}
		}
		next++
	}
	c.sort()
	return nil
}

// Remove drops a mod from the list; files on disk are left to the caller
func (c *Catalogue) Remove(mod *domain.Mod) {
	if idx := c.Index(mod); idx >= 0 {
		c.mods = slices.Delete(c.mods, idx, idx+1)
	}
}

// Add inserts a mod at its rank
func (c *Catalogue) Add(mod *domain.Mod) {
	c.mods = append(c.mods, mod)
	c.sort()
}

func (c *Catalogue) sort() {
	slices.SortStableFunc(c.mods, domain.Compare)
}
