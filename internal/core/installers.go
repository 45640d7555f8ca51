package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/fomod"
	"github.com/DonovanMods/starmod/internal/source/dmodman"
)

// DetectKind classifies an extracted mod directory
func DetectKind(dir string) (domain.ModKind, error) {
	if _, err := os.Stat(dir); err != nil {
		return domain.KindData, fmt.Errorf("reading mod directory: %w", err)
	}

	// fomod/ at the root or one level down
	for _, d := range append([]string{""}, listSubdirs(dir)...) {
		if fomod.HasInstaller(filepath.Join(dir, d)) {
			return domain.KindFoMod, nil
		}
	}

	found := false
	err := walkDepth(dir, 3, func(rel string, d fs.DirEntry) error {
		if !d.IsDir() && strings.EqualFold(path.Ext(rel), ".exe") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return domain.KindData, err
	}
	if found {
		return domain.KindLoader, nil
	}
	return domain.KindData, nil
}

// listSubdirs returns the names of the immediate subdirectories of dir
func listSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// walkDepth visits entries below root up to maxDepth levels deep.
// rel is slash-separated and relative to root.
func walkDepth(root string, maxDepth int, fn func(rel string, d fs.DirEntry) error) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1
		if depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(rel, d)
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

// findDirs returns every directory called name between minDepth and maxDepth
func findDirs(root, name string, minDepth, maxDepth int) ([]string, error) {
	var found []string
	err := walkDepth(root, maxDepth, func(rel string, d fs.DirEntry) error {
		if d.IsDir() && path.Base(rel) == name && strings.Count(rel, "/")+1 >= minDepth {
			found = append(found, rel)
		}
		return nil
	})
	return found, err
}

// findPluginDirs returns the distinct directories holding files with ext
func findPluginDirs(root, ext string, maxDepth int) ([]string, error) {
	seen := make(map[string]struct{})
	var found []string
	err := walkDepth(root, maxDepth, func(rel string, d fs.DirEntry) error {
		if d.IsDir() || path.Ext(rel) != ext {
			return nil
		}
		dir := path.Dir(rel)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			found = append(found, dir)
		}
		return nil
	})
	return found, err
}

// dataPrefix locates the directory whose content maps onto the game's data dir.
// An empty prefix means the mod root.
func dataPrefix(root, bare string) (string, error) {
	search := []func() ([]string, error){
		func() ([]string, error) { return findDirs(root, domain.DataDir, 1, 2) },
		func() ([]string, error) { return findDirs(root, domain.DataDir, 3, 5) },
		func() ([]string, error) { return findPluginDirs(root, ".esm", 5) },
		func() ([]string, error) { return findPluginDirs(root, ".esl", 5) },
	}

	for _, find := range search {
		dirs, err := find()
		if err != nil {
			return "", err
		}
		switch len(dirs) {
		case 0:
			continue
		case 1:
			if dirs[0] == "." {
				return "", nil
			}
			return dirs[0], nil
		default:
			return "", fmt.Errorf("%w: %s (%s)", domain.ErrMultipleDataDirectories, bare, strings.Join(dirs, ", "))
		}
	}
	return "", nil
}

// dataFiles maps every file under the data prefix
func (i *Importer) dataFiles(bare string) ([]domain.InstallFile, error) {
	prefix, err := dataPrefix(i.cache.ModPath(bare), bare)
	if err != nil {
		return nil, err
	}
	i.log.Debug("data prefix", "mod", bare, "prefix", prefix)

	sources, err := i.cache.ListFilesUnder(bare, prefix)
	if err != nil {
		return nil, err
	}

	files := make([]domain.InstallFile, 0, len(sources))
	for _, src := range sources {
		dst := src
		if prefix != "" {
			dst = strings.TrimPrefix(src, prefix+"/")
		}
		files = append(files, domain.NewInstallFile(src, dst))
	}
	return files, nil
}

// loaderFiles keeps executables and libraries, installed next to the game binary
func (i *Importer) loaderFiles(bare string) ([]domain.InstallFile, error) {
	sources, err := i.cache.ListFiles(bare)
	if err != nil {
		return nil, err
	}

	var files []domain.InstallFile
	for _, src := range sources {
		switch strings.ToLower(path.Ext(src)) {
		case ".dll", ".exe":
			files = append(files, domain.NewRawInstallFile(src, path.Base(src)))
		}
	}
	return files, nil
}

// customFiles takes every file as is
func (i *Importer) customFiles(bare string) ([]domain.InstallFile, error) {
	sources, err := i.cache.ListFiles(bare)
	if err != nil {
		return nil, err
	}

	files := make([]domain.InstallFile, 0, len(sources))
	for _, src := range sources {
		files = append(files, domain.NewInstallFile(src, src))
	}
	return files, nil
}

// fomodMod runs the interactive installer. The description may sit one level
// below the mod root, in which case sources are rebased onto the mod root.
func (i *Importer) fomodMod(ctx context.Context, bare string) (*domain.Mod, error) {
	root := i.cache.ModPath(bare)
	sub := ""
	if !fomod.HasInstaller(root) {
		for _, d := range listSubdirs(root) {
			if fomod.HasInstaller(filepath.Join(root, d)) {
				sub = d
				break
			}
		}
	}

	var opts []fomod.Option
	opts = append(opts, fomod.WithLogger(i.log))
	if i.gameDataDir != "" {
		opts = append(opts, fomod.WithDataDir(i.gameDataDir))
	}
	res, err := fomod.NewInstaller(filepath.Join(root, sub), i.prompter, opts...).Run(ctx)
	if err != nil {
		return nil, err
	}

	files := res.Files
	if sub != "" {
		for n := range files {
			files[n].Source = path.Join(sub, files[n].Source)
		}
	}
	return &domain.Mod{
		BareName:    bare,
		DisplayName: res.Name,
		Kind:        domain.KindFoMod,
		Version:     res.Version,
		Files:       files,
	}, nil
}

// build runs the installer for kind on an extracted mod
func (i *Importer) build(ctx context.Context, kind domain.ModKind, bare string) (*domain.Mod, error) {
	var (
		mod   *domain.Mod
		files []domain.InstallFile
		err   error
	)

	switch kind {
	case domain.KindFoMod:
		mod, err = i.fomodMod(ctx, bare)
	case domain.KindLoader:
		files, err = i.loaderFiles(bare)
	case domain.KindCustom:
		files, err = i.customFiles(bare)
	default:
		files, err = i.dataFiles(bare)
	}
	if err != nil {
		return nil, err
	}

	if mod == nil {
		mod = &domain.Mod{BareName: bare, Kind: kind, Files: files}
	}
	if kind == domain.KindCustom {
		mod.Priority = domain.CustomPriority
		mod.Version = "Custom"
	}

	disableReadmes(mod)
	i.applyMetadata(mod)
	return mod, nil
}

// disableReadmes moves files whose name mentions readme out of the active list
func disableReadmes(mod *domain.Mod) {
	var kept []domain.InstallFile
	for _, f := range mod.Files {
		if strings.Contains(strings.ToLower(path.Base(f.Source)), "readme") {
			mod.DisabledFiles = append(mod.DisabledFiles, f)
			continue
		}
		kept = append(kept, f)
	}
	mod.Files = kept
}

// applyMetadata fills name, version and nexus id from the copied sidecar or,
// failing that, from the archive name itself.
func (i *Importer) applyMetadata(mod *domain.Mod) {
	sc, err := dmodman.Read(i.cache.SidecarPath(mod.BareName))
	if err == nil {
		mod.NexusID = sc.ModID
		if v := sc.Version(); v != "" && mod.Kind != domain.KindCustom {
			mod.Version = v
		}
		if n := sc.Name(); n != "" && mod.DisplayName == "" {
			mod.DisplayName = n
		}
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		i.log.Warn("ignoring unreadable sidecar", "mod", mod.BareName, "err", err)
	}

	if parsed := dmodman.ParseFilename(mod.BareName + ".zip"); parsed != nil {
		mod.NexusID = parsed.ModID
		if mod.Version == "" {
			mod.Version = parsed.Version
		}
		if mod.DisplayName == "" {
			mod.DisplayName = parsed.BaseName
		}
	}
	if mod.DisplayName == "" {
		mod.DisplayName = mod.BareName
	}
}
