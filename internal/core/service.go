package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/fomod"
	"github.com/DonovanMods/starmod/internal/linker"
	"github.com/DonovanMods/starmod/internal/storage/cache"
	"github.com/DonovanMods/starmod/internal/storage/config"
	"github.com/DonovanMods/starmod/internal/storage/db"
	"github.com/DonovanMods/starmod/internal/storage/manifest"

	"github.com/charmbracelet/log"
)

// ledgerFile is the deployment ledger's name inside the data directory
const ledgerFile = "starmod.db"

// ServiceConfig holds configuration for the core service
type ServiceConfig struct {
	Config   *config.Config
	Prompter fomod.Prompter // Defaults to stdin/stdout
	Logger   *log.Logger
}

// Service is the main orchestrator for mod management operations
type Service struct {
	config    *config.Config
	ledger    *db.DB
	cache     *cache.Cache
	catalogue *Catalogue
	importer  *Importer
	deployer  *Deployer
	log       *log.Logger
}

// NewService opens the ledger, loads the catalogue and wires the importer
// and deployer to the configured directories.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("%w: no configuration", domain.ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	cacheDir, err := filepath.Abs(cfg.Config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache dir: %w", err)
	}
	c := cache.New(cacheDir)

	var ledger *db.DB
	if cfg.Config.DataDir != "" {
		if err := os.MkdirAll(cfg.Config.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		ledger, err = db.New(filepath.Join(cfg.Config.DataDir, ledgerFile))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
	}

	cat, err := GatherCatalogue(cacheDir, logger)
	if err != nil {
		if ledger != nil {
			ledger.Close()
		}
		return nil, fmt.Errorf("loading catalogue: %w", err)
	}

	matcher := FuzzyMatcher{MinScore: cfg.Config.FuzzyThreshold}
	cat.SetMatcher(matcher)

	opts := []ImporterOption{WithImportLogger(logger), WithMatcher(matcher)}
	if cfg.Prompter != nil {
		opts = append(opts, WithPrompter(cfg.Prompter))
	}
	if cfg.Config.GameDir != "" {
		opts = append(opts, WithGameDataDir(filepath.Join(cfg.Config.GameDir, domain.DataDir)))
	}

	return &Service{
		config:    cfg.Config,
		ledger:    ledger,
		cache:     c,
		catalogue: cat,
		importer:  NewImporter(c, cfg.Config.DownloadDir, opts...),
		deployer:  NewDeployer(c, linker.New(), ledger, cfg.Config.GameDir, logger),
		log:       logger,
	}, nil
}

// Close releases resources held by the service
func (s *Service) Close() error {
	if s.ledger != nil {
		return s.ledger.Close()
	}
	return nil
}

// Config returns the settings the service was built from
func (s *Service) Config() *config.Config { return s.config }

// Catalogue returns the mod list
func (s *Service) Catalogue() *Catalogue { return s.catalogue }

// Importer returns the archive importer
func (s *Service) Importer() *Importer { return s.importer }

// Deployer returns the deployment engine
func (s *Service) Deployer() *Deployer { return s.deployer }

// Cache returns the mod cache
func (s *Service) Cache() *cache.Cache { return s.cache }

// Ledger returns the deployment ledger, or nil when none is configured
func (s *Service) Ledger() *db.DB { return s.ledger }

// ManifestPath returns the manifest file of a mod
func (s *Service) ManifestPath(mod *domain.Mod) string {
	return manifest.Path(s.cache.Root(), mod.BareName)
}

// Conflicts analyses the current catalogue
func (s *Service) Conflicts() *Conflicts {
	return AnalyzeConflicts(s.catalogue.Mods())
}

// Status summarises the catalogue by state and conflict tag
type Status struct {
	Total     int
	Enabled   int
	Disabled  int
	Tags      map[domain.Tag]int
	CacheSize int64 // Bytes across every mod directory that could be read
}

// Status counts mods per state and tag and sums their cache size
func (s *Service) Status() Status {
	conflicts := s.Conflicts()
	st := Status{Total: s.catalogue.Len(), Tags: make(map[domain.Tag]int)}
	for _, m := range s.catalogue.Mods() {
		if m.IsEnabled() {
			st.Enabled++
		} else {
			st.Disabled++
		}
		st.Tags[conflicts.Tag(m)]++
		if size, err := s.cache.Size(m.BareName); err == nil {
			st.CacheSize += size
		} else {
			s.log.Debug("sizing mod failed", "mod", m.BareName, "err", err)
		}
	}
	return st
}

// Extract imports the archive matching query and adds it to the catalogue
func (s *Service) Extract(ctx context.Context, query string, force bool) (*ImportResult, error) {
	d, err := s.importer.FindArchive(query)
	if err != nil {
		return nil, err
	}

	if force {
		if old, err := s.catalogue.FindMod(d.BareName()); err == nil && old.BareName == d.BareName() {
			if err := s.deployer.Disable(ctx, old); err != nil {
				return nil, err
			}
		}
	}

	res, err := s.importer.Import(ctx, d.Path, force)
	if err != nil {
		return nil, err
	}
	if !res.Skipped {
		s.replace(res.Mod)
	}
	return res, nil
}

// ExtractAll imports every archive not yet in the cache
func (s *Service) ExtractAll(ctx context.Context) ([]*ImportResult, error) {
	results, err := s.importer.ImportAll(ctx)
	for _, res := range results {
		if !res.Skipped {
			s.replace(res.Mod)
		}
	}
	return results, err
}

// Reinstall reruns the installer of an extracted mod, re-enabling it afterwards
// when it was enabled.
func (s *Service) Reinstall(ctx context.Context, mod *domain.Mod) (*domain.Mod, error) {
	wasEnabled := mod.IsEnabled()
	if err := s.deployer.Disable(ctx, mod); err != nil {
		return nil, err
	}

	rebuilt, err := s.importer.Rebuild(ctx, mod)
	if err != nil {
		return nil, err
	}
	s.replace(rebuilt)

	if wasEnabled {
		if err := s.deployer.EnableMod(ctx, s.catalogue, s.catalogue.Index(rebuilt)); err != nil {
			return nil, err
		}
	}
	return rebuilt, nil
}

// Upgrade replaces mod with a newer download of it. Returns nil when there is
// nothing newer.
func (s *Service) Upgrade(ctx context.Context, mod *domain.Mod) (*Upgrade, error) {
	up, err := s.importer.FindUpgrade(mod)
	if err != nil || up == nil {
		return nil, err
	}
	s.log.Info("upgrading mod", "mod", mod.Name(), "to", up.Sidecar.Version())

	wasEnabled := mod.IsEnabled()
	if err := s.Remove(ctx, mod); err != nil {
		return nil, err
	}

	res, err := s.importer.Import(ctx, up.Archive, true)
	if err != nil {
		return nil, err
	}
	res.Mod.Priority = mod.Priority
	res.Mod.Tags = mod.Tags
	if err := s.catalogue.Save(res.Mod); err != nil {
		return nil, err
	}
	s.replace(res.Mod)
	up.Mod = res.Mod

	if wasEnabled {
		if err := s.deployer.EnableMod(ctx, s.catalogue, s.catalogue.Index(res.Mod)); err != nil {
			return nil, err
		}
	}
	return up, nil
}

// UpgradeAll upgrades every mod with a newer download
func (s *Service) UpgradeAll(ctx context.Context) ([]*Upgrade, error) {
	var done []*Upgrade
	// Upgrade mutates the catalogue, so walk a snapshot
	mods := append([]*domain.Mod{}, s.catalogue.Mods()...)
	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		up, err := s.Upgrade(ctx, m)
		if err != nil {
			return done, fmt.Errorf("upgrading %s: %w", m.Name(), err)
		}
		if up != nil {
			done = append(done, up)
		}
	}
	return done, nil
}

// Remove disables mod and deletes its cache directory, manifest and sidecar
func (s *Service) Remove(ctx context.Context, mod *domain.Mod) error {
	if mod.IsEnabled() {
		// Re-layer so lower mods take back the destinations mod was hiding
		if err := s.deployer.DisableMod(ctx, s.catalogue, s.catalogue.Index(mod)); err != nil {
			return err
		}
	}
	if err := s.cache.Delete(mod.BareName); err != nil {
		return err
	}
	if err := manifest.Remove(s.cache.Root(), mod.BareName); err != nil {
		return err
	}
	if s.ledger != nil && s.config.GameDir != "" {
		if err := s.ledger.DeleteDeployedFiles(s.config.GameDir, mod.BareName); err != nil {
			return err
		}
	}
	s.catalogue.Remove(mod)
	s.log.Info("removed mod", "mod", mod.Name())
	return nil
}

// Enable deploys mod, optionally moving it to priority first
func (s *Service) Enable(ctx context.Context, mod *domain.Mod, priority *int) error {
	if priority != nil {
		if err := s.catalogue.SetPriority(mod, *priority); err != nil {
			return err
		}
	}
	return s.deployer.EnableMod(ctx, s.catalogue, s.catalogue.Index(mod))
}

// Disable removes the mod's links and uncovers whatever it was hiding
func (s *Service) Disable(ctx context.Context, mod *domain.Mod) error {
	return s.deployer.DisableMod(ctx, s.catalogue, s.catalogue.Index(mod))
}

// EnableAll deploys every mod with a non-negative priority
func (s *Service) EnableAll(ctx context.Context) error {
	return s.deployer.EnableAll(ctx, s.catalogue)
}

// DisableAll removes every deployed mod
func (s *Service) DisableAll(ctx context.Context) error {
	return s.deployer.DisableAll(ctx, s.catalogue)
}

// ReEnableAll rebuilds the links of every enabled mod
func (s *Service) ReEnableAll(ctx context.Context) error {
	return s.deployer.ReEnable(ctx, s.catalogue, 0, s.catalogue.Len()-1)
}

// SetPriority moves mod and re-layers the game directory
func (s *Service) SetPriority(ctx context.Context, mod *domain.Mod, priority int) error {
	return s.deployer.SetPriority(ctx, s.catalogue, mod, priority)
}

// SwapPriority exchanges the ranks of two neighbouring mods
func (s *Service) SwapPriority(ctx context.Context, i, j int) error {
	return s.deployer.SwapPriority(ctx, s.catalogue, i, j)
}

// EnableFile re-activates a file of mod and redeploys it when enabled
func (s *Service) EnableFile(ctx context.Context, mod *domain.Mod, name string) error {
	if err := s.catalogue.EnableFile(mod, name); err != nil {
		return err
	}
	return s.relayer(ctx, mod)
}

// DisableFile deactivates a file of mod and removes its link when enabled
func (s *Service) DisableFile(ctx context.Context, mod *domain.Mod, name string) error {
	if err := s.catalogue.DisableFile(mod, name); err != nil {
		return err
	}
	return s.relayer(ctx, mod)
}

// CreateCustom makes a new custom mod and adds it to the catalogue
func (s *Service) CreateCustom(name, origin string) (*domain.Mod, error) {
	mod, err := s.importer.CreateCustom(name, origin)
	if err != nil {
		return nil, err
	}
	s.catalogue.Add(mod)
	return mod, nil
}

// CopyToCustom copies files of mod into custom and redeploys custom when enabled
func (s *Service) CopyToCustom(ctx context.Context, mod, custom *domain.Mod, names []string) error {
	if err := s.importer.CopyToCustom(mod, custom, names); err != nil {
		return err
	}
	return s.relayer(ctx, custom)
}

// Purge removes every link into the cache from the game directory
func (s *Service) Purge(ctx context.Context) ([]string, error) {
	return s.deployer.Purge(ctx, s.catalogue)
}

// Verify checks recorded links against the game directory
func (s *Service) Verify() ([]Problem, error) {
	return s.deployer.Verify()
}

// Deployed returns the destinations the ledger records for mod
func (s *Service) Deployed(mod *domain.Mod) ([]string, error) {
	return s.deployer.Deployed(mod)
}

// ModSize returns the bytes a mod occupies in the cache
func (s *Service) ModSize(mod *domain.Mod) (int64, error) {
	return s.cache.Size(mod.BareName)
}

// Reload re-reads the manifests, picking up edits made outside starmod
func (s *Service) Reload() error {
	return s.catalogue.Reload()
}

func (s *Service) relayer(ctx context.Context, mod *domain.Mod) error {
	if !mod.IsEnabled() {
		return nil
	}
	return s.deployer.ReEnable(ctx, s.catalogue, 0, s.catalogue.Index(mod))
}

// replace swaps the catalogue entry with the same bare name for mod
func (s *Service) replace(mod *domain.Mod) {
	for _, m := range s.catalogue.Mods() {
		if m.BareName == mod.BareName {
			s.catalogue.Remove(m)
			break
		}
	}
	s.catalogue.Add(mod)
}
