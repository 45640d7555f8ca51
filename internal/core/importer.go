package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/fomod"
	"github.com/DonovanMods/starmod/internal/pathutil"
	"github.com/DonovanMods/starmod/internal/source/dmodman"
	"github.com/DonovanMods/starmod/internal/storage/cache"
	"github.com/DonovanMods/starmod/internal/storage/manifest"

	"github.com/charmbracelet/log"
)

// sidecarSuffix is appended to an archive name by the downloader for its metadata
const sidecarSuffix = ".json"

// ImportResult contains the outcome of importing one archive
type ImportResult struct {
	Archive string
	Mod     *domain.Mod
	Skipped bool // already extracted with a valid manifest
}

// Download is an archive found in the download directory
type Download struct {
	Name      string
	Path      string
	Kind      domain.ArchiveKind
	Extracted bool
}

// BareName is the cache key the archive extracts to
func (d Download) BareName() string {
	return pathutil.BareName(d.Name)
}

// Importer extracts archives from the download directory into the cache and
// produces their manifests.
type Importer struct {
	cache       *cache.Cache
	downloadDir string
	extractor   *Extractor
	prompter    fomod.Prompter
	matcher     Matcher
	gameDataDir string
	log         *log.Logger
}

// ImporterOption configures an Importer
type ImporterOption func(*Importer)

// WithPrompter sets where FOMOD installers ask their questions
func WithPrompter(p fomod.Prompter) ImporterOption {
	return func(i *Importer) { i.prompter = p }
}

// WithMatcher replaces the fuzzy archive matcher
func WithMatcher(m Matcher) ImporterOption {
	return func(i *Importer) { i.matcher = m }
}

// WithGameDataDir lets FOMOD file dependencies look at the game's data dir
func WithGameDataDir(dir string) ImporterOption {
	return func(i *Importer) { i.gameDataDir = dir }
}

// WithImportLogger sets the logger
func WithImportLogger(l *log.Logger) ImporterOption {
	return func(i *Importer) { i.log = l }
}

// NewImporter creates a new Importer
func NewImporter(c *cache.Cache, downloadDir string, opts ...ImporterOption) *Importer {
	i := &Importer{
		cache:       c,
		downloadDir: downloadDir,
		prompter:    fomod.NewLinePrompter(os.Stdin, os.Stdout),
		matcher:     FuzzyMatcher{},
		log:         log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.extractor = NewExtractor(i.log)
	return i
}

// Import extracts archivePath into the cache and installs it. An archive that
// is already extracted with a readable manifest is skipped unless force is set.
func (i *Importer) Import(ctx context.Context, archivePath string, force bool) (result *ImportResult, err error) {
	if _, err := DetectArchive(archivePath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, archivePath)
	}

	bare := pathutil.BareName(archivePath)
	result = &ImportResult{Archive: archivePath}

	if !force && i.cache.Exists(bare) {
		if mod, err := manifest.Load(i.cache.Root(), bare); err == nil {
			i.log.Debug("skipping already extracted archive", "archive", filepath.Base(archivePath))
			result.Mod = mod
			result.Skipped = true
			return result, nil
		}
	}

	if err := i.extract(ctx, archivePath, bare); err != nil {
		return nil, err
	}

	if err := i.copySidecar(archivePath, bare); err != nil {
		return nil, err
	}

	mod, err := i.Install(ctx, bare)
	if err != nil {
		return nil, err
	}
	result.Mod = mod
	return result, nil
}

// extract unpacks into a temporary directory inside the cache and moves the
// result into place, so a failed extraction never leaves a half-filled mod.
func (i *Importer) extract(ctx context.Context, archivePath, bare string) (err error) {
	if err := os.MkdirAll(i.cache.Root(), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tempDir, err := os.MkdirTemp(i.cache.Root(), ".extract-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() {
		if cerr := os.RemoveAll(tempDir); err == nil && cerr != nil {
			err = fmt.Errorf("removing temp directory: %w", cerr)
		}
	}()

	extracted := filepath.Join(tempDir, "extracted")
	if err := i.extractor.Extract(ctx, archivePath, extracted); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}

	// Stale directory or manifest from an earlier, broken import
	modPath := i.cache.ModPath(bare)
	if err := os.RemoveAll(modPath); err != nil {
		return fmt.Errorf("removing existing cache for re-import: %w", err)
	}
	if err := manifest.Remove(i.cache.Root(), bare); err != nil {
		return err
	}

	if err := os.Rename(extracted, modPath); err != nil {
		return fmt.Errorf("moving to cache: %w", err)
	}
	return nil
}

// copySidecar keeps the downloader's <archive>.json next to the mod
func (i *Importer) copySidecar(archivePath, bare string) error {
	src := archivePath + sidecarSuffix
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	i.log.Debug("copying sidecar", "from", src)
	return copyFileStreaming(src, i.cache.SidecarPath(bare))
}

// Install classifies an extracted mod, runs its installer and saves the manifest
func (i *Importer) Install(ctx context.Context, bare string) (*domain.Mod, error) {
	kind, err := DetectKind(i.cache.ModPath(bare))
	if err != nil {
		return nil, err
	}
	i.log.Debug("detected mod kind", "mod", bare, "kind", kind)

	mod, err := i.build(ctx, kind, bare)
	if err != nil {
		return nil, err
	}
	if err := manifest.Save(i.cache.Root(), mod); err != nil {
		return nil, err
	}
	i.log.Info("installed mod", "mod", mod.Name(), "kind", mod.Kind, "files", len(mod.Files))
	return mod, nil
}

// Rebuild reruns the installer on an extracted mod, keeping its priority,
// tags and custom name when it had one.
func (i *Importer) Rebuild(ctx context.Context, old *domain.Mod) (*domain.Mod, error) {
	kind := old.Kind
	if kind != domain.KindCustom {
		detected, err := DetectKind(i.cache.ModPath(old.BareName))
		if err != nil {
			return nil, err
		}
		kind = detected
	}

	mod, err := i.build(ctx, kind, old.BareName)
	if err != nil {
		return nil, err
	}
	mod.Priority = old.Priority
	mod.Tags = old.Tags
	if err := manifest.Save(i.cache.Root(), mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// ImportAll imports every supported archive that is not yet in the cache, in name order
func (i *Importer) ImportAll(ctx context.Context) ([]*ImportResult, error) {
	downloads, err := i.Downloads()
	if err != nil {
		return nil, err
	}

	var results []*ImportResult
	for _, d := range downloads {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if d.Extracted {
			continue
		}
		res, err := i.Import(ctx, d.Path, false)
		if err != nil {
			return results, fmt.Errorf("importing %s: %w", d.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Downloads lists the supported archives in the download directory
func (i *Importer) Downloads() ([]Download, error) {
	entries, err := os.ReadDir(i.downloadDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading download directory: %w", err)
	}

	var downloads []Download
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, err := DetectArchive(e.Name())
		if err != nil {
			continue
		}
		bare := pathutil.BareName(e.Name())
		downloads = append(downloads, Download{
			Name:      e.Name(),
			Path:      filepath.Join(i.downloadDir, e.Name()),
			Kind:      kind,
			Extracted: i.cache.Exists(bare) && manifest.Exists(i.cache.Root(), bare),
		})
	}
	return downloads, nil
}

// FindArchive resolves query to a download by file name, index, then fuzzy match
func (i *Importer) FindArchive(query string) (*Download, error) {
	// A path to an archive outside the download dir is taken as is
	if strings.ContainsRune(query, filepath.Separator) {
		if kind, err := DetectArchive(query); err == nil {
			if _, err := os.Stat(query); err == nil {
				return &Download{Name: filepath.Base(query), Path: query, Kind: kind}, nil
			}
		}
	}

	downloads, err := i.Downloads()
	if err != nil {
		return nil, err
	}

	for n := range downloads {
		if downloads[n].Name == query {
			return &downloads[n], nil
		}
	}
	if idx, err := strconv.Atoi(query); err == nil && idx >= 0 && idx < len(downloads) {
		return &downloads[idx], nil
	}

	names := make([]string, len(downloads))
	for n, d := range downloads {
		names[n] = d.Name
	}
	if idx, ok := i.matcher.Match(query, names); ok {
		return &downloads[idx], nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, query)
}

// CreateCustom makes an empty custom mod, or one backed by an existing
// directory when origin is given.
func (i *Importer) CreateCustom(name, origin string) (*domain.Mod, error) {
	bare := strings.ToLower(strings.TrimSpace(name))
	if bare == "" || strings.ContainsRune(bare, filepath.Separator) {
		return nil, fmt.Errorf("invalid mod name %q", name)
	}
	if i.cache.Exists(bare) || manifest.Exists(i.cache.Root(), bare) {
		return nil, fmt.Errorf("mod %s already exists", bare)
	}

	modPath := i.cache.ModPath(bare)
	if origin != "" {
		abs, err := filepath.Abs(origin)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", origin, err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("origin %s is not a directory", origin)
		}
		if err := os.MkdirAll(i.cache.Root(), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		if err := os.Symlink(abs, modPath); err != nil {
			return nil, fmt.Errorf("linking %s: %w", origin, err)
		}
	} else if err := os.MkdirAll(modPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", modPath, err)
	}

	files, err := i.customFiles(bare)
	if err != nil {
		return nil, err
	}
	mod := &domain.Mod{
		BareName:    bare,
		DisplayName: name,
		Kind:        domain.KindCustom,
		Version:     "Custom",
		Priority:    domain.CustomPriority,
		Files:       files,
	}
	if err := manifest.Save(i.cache.Root(), mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// CopyToCustom copies the files of mod matching names into a custom mod,
// keeping their destinations. An existing entry for the same destination is replaced.
func (i *Importer) CopyToCustom(mod, custom *domain.Mod, names []string) error {
	if custom.Kind != domain.KindCustom {
		return fmt.Errorf("%s is not a custom mod", custom.Name())
	}

	all := append(append([]domain.InstallFile{}, mod.Files...), mod.DisabledFiles...)
	for _, name := range names {
		matched := false
		for _, f := range all {
			if !f.Matches(name) {
				continue
			}
			matched = true
			if err := i.cache.CopyFile(mod.BareName, f.Source, custom.BareName); err != nil {
				return err
			}
			custom.Files = replaceDestination(custom.Files, f)
		}
		if !matched {
			return fmt.Errorf("%w: %s in %s", domain.ErrFileNotFound, name, mod.BareName)
		}
	}

	return manifest.Save(i.cache.Root(), custom)
}

func replaceDestination(files []domain.InstallFile, f domain.InstallFile) []domain.InstallFile {
	for n := range files {
		if files[n].Destination == f.Destination {
			files[n] = f
			return files
		}
	}
	return append(files, f)
}

// Upgrade is a newer download of an installed mod
type Upgrade struct {
	Mod     *domain.Mod
	Archive string
	Sidecar *dmodman.Sidecar
}

// FindUpgrade looks for a download of mod newer than the one it was extracted
// from. Returns nil when the mod has no sidecar or nothing newer exists.
func (i *Importer) FindUpgrade(mod *domain.Mod) (*Upgrade, error) {
	current, err := dmodman.Read(i.cache.SidecarPath(mod.BareName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	candidates, err := dmodman.Gather(i.downloadDir)
	if err != nil {
		return nil, err
	}

	var best *dmodman.Sidecar
	for _, sc := range candidates {
		if !sc.IsNewerThan(current) {
			continue
		}
		if best != nil && !sc.IsNewerThan(best) {
			continue
		}
		if _, err := os.Stat(filepath.Join(i.downloadDir, sc.FileName)); err != nil {
			i.log.Debug("newer sidecar without archive", "file", sc.FileName)
			continue
		}
		best = sc
	}
	if best == nil {
		return nil, nil
	}
	return &Upgrade{Mod: mod, Archive: filepath.Join(i.downloadDir, best.FileName), Sidecar: best}, nil
}

// copyFileStreaming copies a file using streaming to avoid loading it all into memory
func copyFileStreaming(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer func() {
		if cerr := dstFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("copying: %w", err)
	}
	return nil
}
