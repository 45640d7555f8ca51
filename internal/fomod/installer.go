package fomod

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/pathutil"

	"github.com/charmbracelet/log"
)

// Result is what a finished installer run produced
type Result struct {
	Name    string
	Version string
	Files   []domain.InstallFile
}

// Installer drives a FOMOD description for an extracted mod directory
type Installer struct {
	dir      string
	prompter Prompter
	dataDir  string
	log      *log.Logger
}

// Option configures an Installer
type Option func(*Installer)

// WithDataDir sets the game data directory used for file dependencies
func WithDataDir(dir string) Option {
	return func(i *Installer) { i.dataDir = dir }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) { i.log = l }
}

// NewInstaller creates an installer for the mod extracted at dir
func NewInstaller(dir string, p Prompter, opts ...Option) *Installer {
	i := &Installer{dir: dir, prompter: p, log: log.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run reads the description, asks the user for every group and returns the
// chosen files with duplicate destinations removed.
func (i *Installer) Run(ctx context.Context) (*Result, error) {
	info, err := ReadInfo(i.dir)
	if err != nil {
		return nil, err
	}
	cfg, err := ReadConfig(i.dir)
	if err != nil {
		return nil, err
	}

	res := &Result{Name: info.Name, Version: info.Version}
	if res.Name == "" {
		res.Name = cfg.Name
	}
	if res.Name == "" {
		res.Name, _, _ = strings.Cut(filepath.Base(i.dir), "-")
	}

	env := NewEnv(i.dataDir)
	if !satisfied(cfg.Dependencies, env) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDependenciesNotMet, res.Name)
	}

	i.log.Info("running installer", "mod", res.Name)

	directives := slices.Clone(cfg.RequiredFiles)

	for _, step := range cfg.Steps {
		if !satisfied(step.Visible, env) {
			i.log.Debug("skipping hidden step", "step", step.Name)
			continue
		}
		for gi := range step.Groups {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			g := &step.Groups[gi]
			choices, err := i.choose(step.Name, g)
			if err != nil {
				if errors.Is(err, domain.ErrInstallerCancelled) || errors.Is(err, ErrInputClosed) {
					return nil, fmt.Errorf("%w: %s", domain.ErrInstallerCancelled, res.Name)
				}
				return nil, err
			}
			for _, c := range choices {
				p := g.Plugins[c]
				directives = append(directives, p.Files...)
				for _, f := range p.Flags {
					env.Set(f)
				}
			}
		}
	}

	for _, ci := range cfg.ConditionalInstalls {
		if satisfied(ci.Dependency, env) {
			directives = append(directives, ci.Files...)
		}
	}

	files, err := i.expand(directives)
	if err != nil {
		return nil, err
	}
	res.Files = Dedupe(files)
	return res, nil
}

// choose applies the group's selection rule and returns plugin indices
func (i *Installer) choose(step string, g *Group) ([]int, error) {
	if g.Type == SelectAll {
		i.prompter.Show(step, g, false)
		idx := make([]int, len(g.Plugins))
		for n := range idx {
			idx[n] = n
		}
		return idx, nil
	}
	if len(g.Plugins) == 0 {
		return nil, nil
	}

	allowDone := g.Type != SelectExactlyOne
	i.prompter.Show(step, g, allowDone)

	var chosen []int
	for {
		in, err := i.prompter.Read(allowDone)
		if err != nil {
			return nil, err
		}

		switch in.Kind {
		case InputExit:
			return nil, domain.ErrInstallerCancelled
		case InputDone:
			if g.Type == SelectAtLeastOne && len(chosen) == 0 {
				i.prompter.Notify("Please select at least one option")
				continue
			}
			return chosen, nil
		case InputIndex:
			if in.Index >= len(g.Plugins) {
				i.prompter.Notify("Invalid choice")
				continue
			}
			switch g.Type {
			case SelectExactlyOne, SelectAtMostOne:
				return []int{in.Index}, nil
			default:
				if !slices.Contains(chosen, in.Index) {
					chosen = append(chosen, in.Index)
				}
			}
		}
	}
}

// expand turns directives into install pairs relative to the mod directory
func (i *Installer) expand(directives []Directive) ([]domain.InstallFile, error) {
	var files []domain.InstallFile
	for _, d := range directives {
		src := strings.Trim(strings.ToLower(pathutil.ToSlash(d.Source)), "/")
		dst := stripDataPrefix(strings.ToLower(pathutil.ToSlash(d.Destination)))

		switch d.Kind {
		case DirectiveFile:
			if dst == "" {
				dst = src
			}
			if _, err := os.Stat(filepath.Join(i.dir, filepath.FromSlash(src))); err != nil {
				i.log.Warn("skipping missing file", "source", src)
				continue
			}
			files = append(files, domain.NewInstallFile(src, dst))
		case DirectiveFolder:
			folder, err := i.expandFolder(src, dst)
			if err != nil {
				return nil, err
			}
			files = append(files, folder...)
		}
	}
	return files, nil
}

func (i *Installer) expandFolder(src, dst string) ([]domain.InstallFile, error) {
	root := filepath.Join(i.dir, filepath.FromSlash(src))
	if _, err := os.Stat(root); err != nil {
		i.log.Warn("skipping missing folder", "source", src)
		return nil, nil
	}

	var files []domain.InstallFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files = append(files, domain.NewInstallFile(path.Join(src, rel), path.Join(dst, rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func stripDataPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == domain.DataDir {
		return ""
	}
	return strings.TrimPrefix(p, domain.DataDir+"/")
}

// Dedupe drops every entry whose destination was already seen, keeping the first
func Dedupe(files []domain.InstallFile) []domain.InstallFile {
	seen := make(map[string]struct{}, len(files))
	out := make([]domain.InstallFile, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f.Destination]; ok {
			continue
		}
		seen[f.Destination] = struct{}{}
		out = append(out, f)
	}
	return out
}
