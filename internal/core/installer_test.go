package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/starmod/internal/core"
	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/linker"
	"github.com/DonovanMods/starmod/internal/logging"
	"github.com/DonovanMods/starmod/internal/storage/cache"
	"github.com/DonovanMods/starmod/internal/storage/db"
	"github.com/DonovanMods/starmod/internal/storage/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deployFixture struct {
	cache   *cache.Cache
	gameDir string
	ledger  *db.DB
	deploy  *core.Deployer
}

func newDeployFixture(t *testing.T, withLedger bool) *deployFixture {
	t.Helper()
	f := &deployFixture{
		cache:   cache.New(t.TempDir()),
		gameDir: t.TempDir(),
	}
	if withLedger {
		ledger, err := db.New(filepath.Join(t.TempDir(), "starmod.db"))
		require.NoError(t, err)
		t.Cleanup(func() { ledger.Close() })
		f.ledger = ledger
	}
	f.deploy = core.NewDeployer(f.cache, linker.New(), f.ledger, f.gameDir, logging.Discard())
	return f
}

// addMod stores one file per destination under the mod and saves its manifest
func (f *deployFixture) addMod(t *testing.T, bare string, priority int, dests ...string) *domain.Mod {
	t.Helper()
	mod := &domain.Mod{BareName: bare, Kind: domain.KindData, Priority: priority}
	for _, dest := range dests {
		storeFile(t, f.cache, bare, dest, []byte(bare+":"+dest))
		mod.Files = append(mod.Files, domain.NewInstallFile(dest, dest))
	}
	require.NoError(t, manifest.Save(f.cache.Root(), mod))
	return mod
}

func (f *deployFixture) game(dest string) string {
	return filepath.Join(f.gameDir, filepath.FromSlash(dest))
}

func (f *deployFixture) assertLinkedTo(t *testing.T, dest, bare string) {
	t.Helper()
	target, err := os.Readlink(f.game(dest))
	require.NoError(t, err, "%s should be a symlink", dest)
	assert.Equal(t, f.cache.FilePath(bare, dest), target)
}

// countCacheLinks walks the game dir for symlinks into the cache
func (f *deployFixture) countCacheLinks(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.Walk(f.gameDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			require.NoError(t, err)
			if f.cache.Contains(target) {
				n++
			}
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestDeployer_EnableAll_LastWriterWins(t *testing.T) {
	f := newDeployFixture(t, false)
	alpha := f.addMod(t, "alpha", 0, "data/textures/a.dds")
	beta := f.addMod(t, "beta", 1, "data/textures/a.dds", "data/textures/b.dds")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{beta, alpha})

	require.NoError(t, f.deploy.EnableAll(context.Background(), cat))

	f.assertLinkedTo(t, "data/textures/a.dds", "beta")
	f.assertLinkedTo(t, "data/textures/b.dds", "beta")
	assert.True(t, alpha.IsEnabled())
	assert.True(t, beta.IsEnabled())

	saved, err := manifest.Load(f.cache.Root(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.StateEnabled, saved.State)
}

func TestDeployer_DisableAll_RemovesEveryCacheLink(t *testing.T) {
	f := newDeployFixture(t, false)
	alpha := f.addMod(t, "alpha", 0, "data/textures/a.dds", "data/meshes/deep/m.nif")
	beta := f.addMod(t, "beta", 1, "data/textures/a.dds", "data/b.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta})

	ctx := context.Background()
	require.NoError(t, f.deploy.EnableAll(ctx, cat))
	require.NoError(t, f.deploy.DisableAll(ctx, cat))

	assert.Zero(t, f.countCacheLinks(t))
	assert.False(t, alpha.IsEnabled())
	assert.False(t, beta.IsEnabled())

	// Empty parents are pruned, the game dir itself stays
	_, err := os.Stat(f.game("data"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.gameDir)
	assert.NoError(t, err)
}

func TestDeployer_Enable_BacksUpForeignFile(t *testing.T) {
	f := newDeployFixture(t, true)
	mod := f.addMod(t, "alpha", 0, "data/textures/a.dds")

	foreign := f.game("data/textures/a.dds")
	require.NoError(t, os.MkdirAll(filepath.Dir(foreign), 0755))
	require.NoError(t, os.WriteFile(foreign, []byte("original"), 0644))

	ctx := context.Background()
	require.NoError(t, f.deploy.Enable(ctx, mod))

	content, err := os.ReadFile(foreign + ".starmod_bkp")
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
	f.assertLinkedTo(t, "data/textures/a.dds", "alpha")

	backups, err := f.ledger.ListBackups(f.gameDir)
	require.NoError(t, err)
	require.Len(t, backups, 1)

	require.NoError(t, f.deploy.Disable(ctx, mod))

	content, err = os.ReadFile(foreign)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content), "backup is restored on disable")
	_, err = os.Lstat(foreign + ".starmod_bkp")
	assert.True(t, os.IsNotExist(err))

	backups, err = f.ledger.ListBackups(f.gameDir)
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestDeployer_Enable_NegativePriorityDisables(t *testing.T) {
	f := newDeployFixture(t, false)
	mod := f.addMod(t, "alpha", -1, "data/a.esp")

	require.NoError(t, f.deploy.Enable(context.Background(), mod))

	assert.False(t, mod.IsEnabled())
	_, err := os.Lstat(f.game("data/a.esp"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeployer_Enable_SkipsDirectoryDestination(t *testing.T) {
	f := newDeployFixture(t, false)
	mod := f.addMod(t, "alpha", 0, "data/scripts", "data/a.esp")
	require.NoError(t, os.MkdirAll(f.game("data/scripts"), 0755))

	require.NoError(t, f.deploy.Enable(context.Background(), mod))

	info, err := os.Lstat(f.game("data/scripts"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	f.assertLinkedTo(t, "data/a.esp", "alpha")
}

func TestDeployer_Enable_MissingSource(t *testing.T) {
	f := newDeployFixture(t, false)
	mod := f.addMod(t, "alpha", 0, "data/a.esp")
	require.NoError(t, os.Remove(f.cache.FilePath("alpha", "data/a.esp")))

	err := f.deploy.Enable(context.Background(), mod)
	assert.ErrorContains(t, err, "missing source")
	assert.False(t, mod.IsEnabled())
}

func TestDeployer_Enable_NoGameDir(t *testing.T) {
	c := cache.New(t.TempDir())
	d := core.NewDeployer(c, linker.New(), nil, "", nil)

	err := d.Enable(context.Background(), &domain.Mod{BareName: "alpha"})
	assert.ErrorIs(t, err, domain.ErrGameDirNotSet)
}

func TestDeployer_Enable_RelativeDirectories(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir("game", 0755))

	c := cache.New("relcache")
	require.True(t, filepath.IsAbs(c.Root()))
	d := core.NewDeployer(c, linker.New(), nil, "game", logging.Discard())
	require.True(t, filepath.IsAbs(d.GameDir()))

	storeFile(t, c, "alpha", "data/a.esm", []byte("alpha"))
	mod := &domain.Mod{BareName: "alpha", Kind: domain.KindData, Files: []domain.InstallFile{domain.NewInstallFile("data/a.esm", "data/a.esm")}}
	require.NoError(t, manifest.Save(c.Root(), mod))

	ctx := context.Background()
	require.NoError(t, d.Enable(ctx, mod))
	require.NoError(t, d.Enable(ctx, mod))

	link := filepath.Join(d.GameDir(), "data", "a.esm")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(target))
	content, err := os.ReadFile(link)
	require.NoError(t, err, "link resolves")
	assert.Equal(t, "alpha", string(content))

	_, err = os.Lstat(link + ".starmod_bkp")
	assert.True(t, os.IsNotExist(err), "own link is never backed up")
}

func TestDeployer_SetPriority_ReLayers(t *testing.T) {
	f := newDeployFixture(t, false)
	alpha := f.addMod(t, "alpha", 0, "data/textures/a.dds")
	beta := f.addMod(t, "beta", 1, "data/textures/a.dds")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta})

	ctx := context.Background()
	require.NoError(t, f.deploy.EnableAll(ctx, cat))
	f.assertLinkedTo(t, "data/textures/a.dds", "beta")

	require.NoError(t, f.deploy.SetPriority(ctx, cat, alpha, 2))

	assert.Equal(t, 1, cat.Index(alpha))
	f.assertLinkedTo(t, "data/textures/a.dds", "alpha")
	assert.True(t, beta.IsEnabled())
}

func TestDeployer_SwapPriority(t *testing.T) {
	tests := []struct {
		name       string
		alphaPrio  int
		betaPrio   int
		wantWinner string
	}{
		{name: "distinct priorities", alphaPrio: 0, betaPrio: 5, wantWinner: "alpha"},
		{name: "equal priorities", alphaPrio: 3, betaPrio: 3, wantWinner: "alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDeployFixture(t, false)
			alpha := f.addMod(t, "alpha", tt.alphaPrio, "data/a.esp")
			beta := f.addMod(t, "beta", tt.betaPrio, "data/a.esp")
			cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta})

			ctx := context.Background()
			require.NoError(t, f.deploy.EnableAll(ctx, cat))
			f.assertLinkedTo(t, "data/a.esp", "beta")

			require.NoError(t, f.deploy.SwapPriority(ctx, cat, 0, 1))

			assert.Equal(t, 1, cat.Index(alpha))
			assert.Equal(t, 0, cat.Index(beta))
			f.assertLinkedTo(t, "data/a.esp", tt.wantWinner)
		})
	}
}

func TestDeployer_SwapPriority_OutOfRange(t *testing.T) {
	f := newDeployFixture(t, false)
	alpha := f.addMod(t, "alpha", 0, "data/a.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha})

	err := f.deploy.SwapPriority(context.Background(), cat, 0, 1)
	assert.ErrorIs(t, err, domain.ErrModNotFound)
}

func TestDeployer_ReEnable_KeepsHigherRankedLinks(t *testing.T) {
	f := newDeployFixture(t, false)
	alpha := f.addMod(t, "alpha", 0, "data/a.esp")
	beta := f.addMod(t, "beta", 1, "data/b.esp")
	gamma := f.addMod(t, "gamma", 2, "data/a.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta, gamma})

	ctx := context.Background()
	require.NoError(t, f.deploy.EnableAll(ctx, cat))
	require.NoError(t, f.deploy.ReEnable(ctx, cat, 0, 1))

	f.assertLinkedTo(t, "data/a.esp", "gamma")
	f.assertLinkedTo(t, "data/b.esp", "beta")
}

func TestDeployer_DisableMod_UncoversLowerMod(t *testing.T) {
	f := newDeployFixture(t, false)
	alpha := f.addMod(t, "alpha", 0, "data/a.esp")
	beta := f.addMod(t, "beta", 1, "data/a.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta})

	ctx := context.Background()
	require.NoError(t, f.deploy.EnableAll(ctx, cat))
	require.NoError(t, f.deploy.DisableMod(ctx, cat, 1))

	assert.False(t, beta.IsEnabled())
	f.assertLinkedTo(t, "data/a.esp", "alpha")

	require.NoError(t, f.deploy.EnableMod(ctx, cat, 1))
	f.assertLinkedTo(t, "data/a.esp", "beta")
}

func TestDeployer_Disable_RemovesLinksOfDisabledFiles(t *testing.T) {
	f := newDeployFixture(t, false)
	mod := f.addMod(t, "alpha", 0, "data/a.esp", "data/readme.txt")

	ctx := context.Background()
	require.NoError(t, f.deploy.Enable(ctx, mod))
	require.NoError(t, mod.DisableFile("readme.txt"))
	require.NoError(t, f.deploy.Disable(ctx, mod))

	assert.Zero(t, f.countCacheLinks(t))
}

func TestDeployer_Ledger(t *testing.T) {
	f := newDeployFixture(t, true)
	alpha := f.addMod(t, "alpha", 0, "data/a.esp")
	beta := f.addMod(t, "beta", 1, "data/a.esp", "data/b.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta})

	ctx := context.Background()
	require.NoError(t, f.deploy.EnableAll(ctx, cat))

	owner, err := f.ledger.GetFileOwner(f.gameDir, "data/a.esp")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "beta", owner.Mod)

	require.NoError(t, f.deploy.DisableAll(ctx, cat))
	files, err := f.ledger.ListDeployedFiles(f.gameDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDeployer_Verify(t *testing.T) {
	f := newDeployFixture(t, true)
	mod := f.addMod(t, "alpha", 0, "data/a.esp", "data/b.esp", "data/c.esp")

	require.NoError(t, f.deploy.Enable(context.Background(), mod))

	problems, err := f.deploy.Verify()
	require.NoError(t, err)
	assert.Empty(t, problems)

	require.NoError(t, os.Remove(f.game("data/a.esp")))
	require.NoError(t, os.Remove(f.game("data/b.esp")))
	require.NoError(t, os.WriteFile(f.game("data/b.esp"), []byte("manual"), 0644))

	problems, err = f.deploy.Verify()
	require.NoError(t, err)
	require.Len(t, problems, 2)
	issues := map[string]string{}
	for _, p := range problems {
		assert.Equal(t, "alpha", p.Mod)
		issues[p.Destination] = p.Issue
	}
	assert.Equal(t, "missing", issues["data/a.esp"])
	assert.Equal(t, "replaced by a regular file", issues["data/b.esp"])
}

func TestDeployer_Verify_MissingBackup(t *testing.T) {
	f := newDeployFixture(t, true)
	mod := f.addMod(t, "alpha", 0, "data/a.esp")

	foreign := f.game("data/a.esp")
	require.NoError(t, os.MkdirAll(filepath.Dir(foreign), 0755))
	require.NoError(t, os.WriteFile(foreign, []byte("vanilla"), 0644))
	require.NoError(t, f.deploy.Enable(context.Background(), mod))

	problems, err := f.deploy.Verify()
	require.NoError(t, err)
	assert.Empty(t, problems)

	require.NoError(t, os.Remove(foreign+".starmod_bkp"))

	problems, err = f.deploy.Verify()
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, core.Problem{Destination: "data/a.esp", Issue: "backup missing"}, problems[0])
}

func TestDeployer_Deployed(t *testing.T) {
	f := newDeployFixture(t, true)
	alpha := f.addMod(t, "alpha", 0, "data/a.esp", "data/shared.esp")
	beta := f.addMod(t, "beta", 1, "data/shared.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{alpha, beta})
	require.NoError(t, f.deploy.EnableAll(context.Background(), cat))

	dests, err := f.deploy.Deployed(alpha)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/a.esp"}, dests)

	dests, err = f.deploy.Deployed(beta)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/shared.esp"}, dests)

	noLedger := newDeployFixture(t, false)
	dests, err = noLedger.deploy.Deployed(alpha)
	require.NoError(t, err)
	assert.Nil(t, dests)
}

func TestDeployer_Verify_NeedsLedger(t *testing.T) {
	f := newDeployFixture(t, false)
	_, err := f.deploy.Verify()
	assert.Error(t, err)
}

func TestDeployer_Purge(t *testing.T) {
	f := newDeployFixture(t, false)
	mod := f.addMod(t, "alpha", 0, "data/a.esp")
	cat := core.NewCatalogue(f.cache.Root(), []*domain.Mod{mod})

	// A stray link left behind by a mod that is no longer in the catalogue
	storeFile(t, f.cache, "gone", "data/x.esp", []byte("x"))
	require.NoError(t, os.MkdirAll(f.game("data/old"), 0755))
	require.NoError(t, os.Symlink(f.cache.FilePath("gone", "data/x.esp"), f.game("data/old/x.esp")))

	// A foreign link that must survive
	outside := filepath.Join(t.TempDir(), "keep.esp")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0644))
	require.NoError(t, os.Symlink(outside, f.game("data/keep.esp")))

	ctx := context.Background()
	require.NoError(t, f.deploy.Enable(ctx, mod))

	stray, err := f.deploy.Purge(ctx, cat)
	require.NoError(t, err)

	assert.Equal(t, []string{"data/old/x.esp"}, stray)
	assert.Zero(t, f.countCacheLinks(t))
	_, err = os.Lstat(f.game("data/keep.esp"))
	assert.NoError(t, err)
}

// storeFile writes content at relPath inside a mod's cache directory
func storeFile(t *testing.T, c *cache.Cache, bare, relPath string, content []byte) {
	t.Helper()
	full := c.FilePath(bare, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, content, 0644))
}
