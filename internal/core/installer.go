package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/linker"
	"github.com/DonovanMods/starmod/internal/storage/cache"
	"github.com/DonovanMods/starmod/internal/storage/db"
	"github.com/DonovanMods/starmod/internal/storage/manifest"

	"github.com/charmbracelet/log"
)

// Deployer links mod files from the cache into the game directory
type Deployer struct {
	cache   *cache.Cache
	linker  linker.Linker
	ledger  *db.DB
	gameDir string
	log     *log.Logger
}

// NewDeployer creates a deployer for gameDir.
// The ledger is optional - if nil, deployed files are not recorded.
func NewDeployer(c *cache.Cache, l linker.Linker, ledger *db.DB, gameDir string, logger *log.Logger) *Deployer {
	if logger == nil {
		logger = log.Default()
	}
	if gameDir != "" {
		if abs, err := filepath.Abs(gameDir); err == nil {
			gameDir = abs
		}
	}
	return &Deployer{cache: c, linker: l, ledger: ledger, gameDir: gameDir, log: logger}
}

// GameDir returns the directory mods are deployed into
func (d *Deployer) GameDir() string {
	return d.gameDir
}

// outranks reports whether the mod owning a cache file must keep its link
type outranks func(owner string) bool

// Enable links every active file of mod into the game directory. Existing
// links into the cache are overruled; foreign files are backed up first.
// A mod with negative priority is disabled instead.
func (d *Deployer) Enable(ctx context.Context, mod *domain.Mod) error {
	if err := d.enable(ctx, mod, nil); err != nil {
		return err
	}
	if mod.Priority < 0 {
		d.prune()
	}
	return nil
}

func (d *Deployer) enable(ctx context.Context, mod *domain.Mod, keep outranks) error {
	if mod.Priority < 0 {
		d.log.Debug("negative priority, disabling", "mod", mod.BareName)
		return d.disable(ctx, mod)
	}
	if mod.IsEnabled() {
		return nil
	}
	if d.gameDir == "" {
		return domain.ErrGameDirNotSet
	}

	linked := 0
	for _, f := range mod.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := d.link(mod, f, keep)
		if err != nil {
			return err
		}
		if ok {
			linked++
		}
	}

	mod.State = domain.StateEnabled
	if err := manifest.Save(d.cache.Root(), mod); err != nil {
		return err
	}
	d.log.Info("enabled mod", "mod", mod.Name(), "files", linked)
	return nil
}

// link places a single file and reports whether a link was created
func (d *Deployer) link(mod *domain.Mod, f domain.InstallFile, keep outranks) (bool, error) {
	src := d.cache.FilePath(mod.BareName, f.Source)
	dst := d.destPath(f.Destination)

	if _, err := os.Stat(src); err != nil {
		return false, fmt.Errorf("missing source for %s: %w", mod.BareName, err)
	}

	info, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return false, fmt.Errorf("checking %s: %w", dst, err)
	case info.Mode()&fs.ModeSymlink != 0 && d.ownsLink(dst):
		if keep != nil {
			if owner := d.linkOwner(dst); owner != mod.BareName && keep(owner) {
				d.log.Debug("kept higher ranked link", "file", f.Destination, "owner", owner)
				return false, nil
			}
		}
		if err := d.linker.Undeploy(dst); err != nil {
			return false, err
		}
	default:
		if st, err := os.Stat(dst); err == nil && st.IsDir() {
			d.log.Debug("skipping directory destination", "file", f.Destination)
			return false, nil
		}
		backup, err := linker.Backup(dst)
		if err != nil {
			return false, err
		}
		d.log.Info("backed up existing file", "file", f.Destination, "backup", filepath.Base(backup))
		if d.ledger != nil {
			if err := d.ledger.SaveBackup(d.gameDir, f.Destination, backup); err != nil {
				return false, err
			}
		}
	}

	if err := d.linker.Deploy(src, dst); err != nil {
		return false, err
	}
	if d.ledger != nil {
		if err := d.ledger.SaveDeployedFile(d.gameDir, f.Destination, mod.BareName, f.Source); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Disable removes every link of mod that still points at its own files and
// puts any backed up foreign file back.
func (d *Deployer) Disable(ctx context.Context, mod *domain.Mod) error {
	if err := d.disable(ctx, mod); err != nil {
		return err
	}
	d.prune()
	return nil
}

// disable leaves empty directories in place; callers prune once when done
func (d *Deployer) disable(ctx context.Context, mod *domain.Mod) error {
	if d.gameDir == "" {
		return domain.ErrGameDirNotSet
	}

	// Files disabled while the mod was deployed may still be linked
	files := append(append([]domain.InstallFile{}, mod.Files...), mod.DisabledFiles...)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.unlink(mod, f); err != nil {
			return err
		}
	}

	wasEnabled := mod.IsEnabled()
	mod.State = domain.StateDisabled
	if err := manifest.Save(d.cache.Root(), mod); err != nil {
		return err
	}
	if wasEnabled {
		d.log.Info("disabled mod", "mod", mod.Name())
	}
	return nil
}

func (d *Deployer) unlink(mod *domain.Mod, f domain.InstallFile) error {
	dst := d.destPath(f.Destination)
	src := d.cache.FilePath(mod.BareName, f.Source)

	if target, err := d.linker.Target(dst); err == nil && target == filepath.Clean(src) {
		if err := d.linker.Undeploy(dst); err != nil {
			return err
		}
		if d.ledger != nil {
			if err := d.ledger.DeleteDeployedFile(d.gameDir, f.Destination, mod.BareName); err != nil {
				return err
			}
		}
	}

	restored, err := linker.Restore(dst)
	if err != nil {
		return err
	}
	if restored {
		d.log.Info("restored backup", "file", f.Destination)
		if d.ledger != nil {
			if err := d.ledger.DeleteBackup(d.gameDir, f.Destination); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnableAll enables every mod with a non-negative priority, lowest rank first
func (d *Deployer) EnableAll(ctx context.Context, cat *Catalogue) error {
	for _, m := range cat.Mods() {
		if m.Priority >= 0 {
			m.State = domain.StateEnabled
		}
	}
	return d.ReEnable(ctx, cat, 0, cat.Len()-1)
}

// DisableAll disables every mod, highest rank first
func (d *Deployer) DisableAll(ctx context.Context, cat *Catalogue) error {
	mods := cat.Mods()
	defer d.prune()
	for idx := len(mods) - 1; idx >= 0; idx-- {
		if err := d.disable(ctx, mods[idx]); err != nil {
			return err
		}
	}
	return nil
}

// ReEnable disables the mods ranked from..to and enables the ones that were
// enabled again in ascending rank, so the last writer wins every destination.
// Links owned by enabled mods ranked above to are left alone.
func (d *Deployer) ReEnable(ctx context.Context, cat *Catalogue, from, to int) error {
	mods := cat.Mods()
	if len(mods) == 0 {
		return nil
	}
	from = max(from, 0)
	to = min(to, len(mods)-1)

	var enabled []*domain.Mod
	for _, m := range mods[from : to+1] {
		if m.IsEnabled() {
			enabled = append(enabled, m)
		}
	}
	defer d.prune()
	for idx := to; idx >= from; idx-- {
		if err := d.disable(ctx, mods[idx]); err != nil {
			return err
		}
	}

	higher := make(map[string]struct{})
	for _, m := range mods[to+1:] {
		if m.IsEnabled() {
			higher[m.BareName] = struct{}{}
		}
	}
	keep := func(owner string) bool {
		_, ok := higher[owner]
		return ok
	}

	for _, m := range enabled {
		if err := d.enable(ctx, m, keep); err != nil {
			return err
		}
	}
	return nil
}

// EnableMod marks the mod at idx enabled and re-layers everything up to it
func (d *Deployer) EnableMod(ctx context.Context, cat *Catalogue, idx int) error {
	if idx < 0 || idx >= cat.Len() {
		return fmt.Errorf("%w: index %d", domain.ErrModNotFound, idx)
	}
	cat.At(idx).State = domain.StateEnabled
	return d.ReEnable(ctx, cat, 0, idx)
}

// DisableMod marks the mod at idx disabled and re-layers everything up to it
func (d *Deployer) DisableMod(ctx context.Context, cat *Catalogue, idx int) error {
	if idx < 0 || idx >= cat.Len() {
		return fmt.Errorf("%w: index %d", domain.ErrModNotFound, idx)
	}
	mod := cat.At(idx)
	if err := d.disable(ctx, mod); err != nil {
		return err
	}
	return d.ReEnable(ctx, cat, 0, idx)
}

// SetPriority moves mod to a new priority and re-layers the affected ranks
func (d *Deployer) SetPriority(ctx context.Context, cat *Catalogue, mod *domain.Mod, priority int) error {
	before := cat.Index(mod)
	if err := cat.SetPriority(mod, priority); err != nil {
		return err
	}
	after := cat.Index(mod)
	return d.ReEnable(ctx, cat, 0, max(before, after))
}

// SwapPriority exchanges the ranks of the mods at i and j and re-layers both.
// Mods sharing a priority are separated by raising the lower-ranked one.
func (d *Deployer) SwapPriority(ctx context.Context, cat *Catalogue, i, j int) error {
	if i < 0 || j < 0 || i >= cat.Len() || j >= cat.Len() {
		return fmt.Errorf("%w: index %d or %d", domain.ErrModNotFound, i, j)
	}
	if i == j {
		return nil
	}
	lo, hi := cat.At(min(i, j)), cat.At(max(i, j))

	loPriority, hiPriority := hi.Priority, lo.Priority
	if loPriority == hiPriority {
		loPriority, hiPriority = lo.Priority+1, hi.Priority
	}
	if err := cat.SetPriority(lo, loPriority); err != nil {
		return err
	}
	if err := cat.SetPriority(hi, hiPriority); err != nil {
		return err
	}
	return d.ReEnable(ctx, cat, 0, max(i, j))
}

// Purge disables every mod, then removes any remaining link into the cache
// and restores every backup whose original place is free. It returns the
// stray links it removed.
func (d *Deployer) Purge(ctx context.Context, cat *Catalogue) ([]string, error) {
	if err := d.DisableAll(ctx, cat); err != nil {
		return nil, err
	}

	var stray []string
	err := filepath.WalkDir(d.gameDir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.Type()&fs.ModeSymlink == 0 || !d.ownsLink(p) {
			return nil
		}
		if err := d.linker.Undeploy(p); err != nil {
			return err
		}
		rel, _ := filepath.Rel(d.gameDir, p)
		stray = append(stray, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return stray, fmt.Errorf("purging %s: %w", d.gameDir, err)
	}

	if d.ledger != nil {
		for _, dest := range stray {
			if owner, err := d.ledger.GetFileOwner(d.gameDir, dest); err == nil && owner != nil {
				if err := d.ledger.DeleteDeployedFile(d.gameDir, dest, owner.Mod); err != nil {
					return stray, err
				}
			}
		}
	}

	restored, err := linker.RestoreAll(d.gameDir)
	if err != nil {
		return stray, err
	}
	for _, p := range restored {
		d.log.Info("restored backup", "file", p)
		if d.ledger != nil {
			rel, _ := filepath.Rel(d.gameDir, p)
			if err := d.ledger.DeleteBackup(d.gameDir, filepath.ToSlash(rel)); err != nil {
				return stray, err
			}
		}
	}

	if err := linker.CleanupEmptyDirs(d.gameDir); err != nil {
		d.log.Warn("failed to clean up empty directories", "err", err)
	}
	return stray, nil
}

// Problem is a recorded link or backup that no longer matches the game
// directory. Mod is empty for backups.
type Problem struct {
	Destination string
	Mod         string
	Issue       string
}

// Verify compares the deployment ledger against the game directory: every
// recorded link must still point at its cache file, and every recorded
// backup must still exist.
func (d *Deployer) Verify() ([]Problem, error) {
	if d.ledger == nil {
		return nil, errors.New("verify needs the deployment ledger")
	}
	files, err := d.ledger.ListDeployedFiles(d.gameDir)
	if err != nil {
		return nil, err
	}

	var problems []Problem
	for _, f := range files {
		if issue := d.checkLink(f.Destination, d.cache.FilePath(f.Mod, f.Source)); issue != "" {
			problems = append(problems, Problem{Destination: f.Destination, Mod: f.Mod, Issue: issue})
		}
	}

	backups, err := d.ledger.ListBackups(d.gameDir)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		if _, err := os.Lstat(b.Backup); err != nil {
			problems = append(problems, Problem{Destination: b.Destination, Issue: "backup missing"})
		}
	}
	return problems, nil
}

func (d *Deployer) checkLink(dest, want string) string {
	dst := d.destPath(dest)
	want = filepath.Clean(want)

	deployed, err := d.linker.IsDeployed(dst)
	switch {
	case err != nil:
		return err.Error()
	case !deployed:
		if _, err := os.Lstat(dst); err != nil {
			return "missing"
		}
		return "replaced by a regular file"
	}
	if target, err := d.linker.Target(dst); err != nil || target != want {
		return "points elsewhere"
	}
	if _, err := os.Stat(want); err != nil {
		return "source missing from cache"
	}
	return ""
}

// Deployed returns the destinations the ledger records for mod. Without a
// ledger it returns nil.
func (d *Deployer) Deployed(mod *domain.Mod) ([]string, error) {
	if d.ledger == nil {
		return nil, nil
	}
	return d.ledger.GetDeployedFilesForMod(d.gameDir, mod.BareName)
}

func (d *Deployer) prune() {
	if err := linker.CleanupEmptyDirs(d.gameDir); err != nil {
		d.log.Warn("failed to clean up empty directories", "err", err)
	}
}

func (d *Deployer) destPath(dest string) string {
	return filepath.Join(d.gameDir, filepath.FromSlash(dest))
}

// ownsLink reports whether the symlink at p points into the cache
func (d *Deployer) ownsLink(p string) bool {
	target, err := d.linker.Target(p)
	return err == nil && d.cache.Contains(target)
}

// linkOwner returns the bare name of the mod a cache link points into
func (d *Deployer) linkOwner(p string) string {
	target, err := d.linker.Target(p)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(filepath.Clean(d.cache.Root()), target)
	if err != nil {
		return ""
	}
	owner, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return owner
}
