package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/starmod/internal/core"
	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/logging"
	"github.com/DonovanMods/starmod/internal/storage/config"
	"github.com/DonovanMods/starmod/internal/storage/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*core.Service, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		CacheDir:    filepath.Join(root, "cache"),
		DownloadDir: filepath.Join(root, "downloads"),
		GameDir:     filepath.Join(root, "game"),
		DataDir:     filepath.Join(root, "data"),
	}
	for _, dir := range []string{cfg.DownloadDir, cfg.GameDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	svc, err := core.NewService(core.ServiceConfig{Config: cfg, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, cfg
}

func writeDownload(t *testing.T, cfg *config.Config, name string, files ...string) {
	t.Helper()
	entries := make([]zipEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, zipEntry{name: f, content: name + ":" + f})
	}
	createTestZip(t, cfg.DownloadDir, name, entries)
}

func TestNewService_RequiresConfig(t *testing.T) {
	_, err := core.NewService(core.ServiceConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewService_OpensLedger(t *testing.T) {
	svc, cfg := newTestService(t)

	require.NotNil(t, svc.Ledger())
	_, err := os.Stat(filepath.Join(cfg.DataDir, "starmod.db"))
	assert.NoError(t, err)
	assert.Equal(t, 0, svc.Catalogue().Len())
}

func TestService_ExtractEnableDisable(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/textures/a.dds")
	writeDownload(t, cfg, "beta.zip", "data/textures/a.dds", "data/textures/b.dds")
	ctx := context.Background()

	results, err := svc.ExtractAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 2, svc.Catalogue().Len())

	alpha, err := svc.Catalogue().FindMod("alpha")
	require.NoError(t, err)
	beta, err := svc.Catalogue().FindMod("beta")
	require.NoError(t, err)
	require.NoError(t, svc.SetPriority(ctx, beta, 1))

	require.NoError(t, svc.EnableAll(ctx))

	dest := filepath.Join(cfg.GameDir, "data", "textures", "a.dds")
	target, err := os.Readlink(dest)
	require.NoError(t, err)
	assert.Equal(t, svc.Cache().FilePath("beta", "data/textures/a.dds"), target)

	st := svc.Status()
	assert.Equal(t, 2, st.Enabled)
	assert.Equal(t, 1, st.Tags[domain.TagWinner])
	assert.Equal(t, 1, st.Tags[domain.TagCompleteLoser])

	// Disabling the winner hands the file back to alpha
	require.NoError(t, svc.Disable(ctx, beta))
	target, err = os.Readlink(dest)
	require.NoError(t, err)
	assert.Equal(t, svc.Cache().FilePath("alpha", "data/textures/a.dds"), target)
	assert.True(t, alpha.IsEnabled())

	problems, err := svc.Verify()
	require.NoError(t, err)
	assert.Empty(t, problems)

	require.NoError(t, svc.DisableAll(ctx))
	_, err = os.Lstat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestService_Enable_WithPriority(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/a.esp")
	ctx := context.Background()

	res, err := svc.Extract(ctx, "alpha.zip", false)
	require.NoError(t, err)

	priority := 4
	require.NoError(t, svc.Enable(ctx, res.Mod, &priority))

	saved, err := manifest.Load(svc.Cache().Root(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Priority)
	assert.Equal(t, domain.StateEnabled, saved.State)
}

func TestService_DisableFile_RemovesLink(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/a.esp", "data/b.esp")
	ctx := context.Background()

	res, err := svc.Extract(ctx, "alpha", false)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, res.Mod, nil))

	require.NoError(t, svc.DisableFile(ctx, res.Mod, "b.esp"))
	_, err = os.Lstat(filepath.Join(cfg.GameDir, "data", "b.esp"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, svc.EnableFile(ctx, res.Mod, "b.esp"))
	_, err = os.Lstat(filepath.Join(cfg.GameDir, "data", "b.esp"))
	assert.NoError(t, err)
}

func TestService_Reinstall_KeepsDeployment(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/a.esp")
	ctx := context.Background()

	res, err := svc.Extract(ctx, "alpha.zip", false)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, res.Mod, nil))
	require.NoError(t, svc.Catalogue().AddTag(res.Mod, "core"))

	rebuilt, err := svc.Reinstall(ctx, res.Mod)
	require.NoError(t, err)

	assert.True(t, rebuilt.IsEnabled())
	assert.Equal(t, []string{"core"}, rebuilt.Tags)
	assert.Equal(t, 1, svc.Catalogue().Len())
	_, err = os.Readlink(filepath.Join(cfg.GameDir, "data", "a.esp"))
	assert.NoError(t, err)
}

func TestService_Remove(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/a.esp")
	ctx := context.Background()

	res, err := svc.Extract(ctx, "alpha.zip", false)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, res.Mod, nil))

	require.NoError(t, svc.Remove(ctx, res.Mod))

	assert.Equal(t, 0, svc.Catalogue().Len())
	assert.False(t, svc.Cache().Exists("alpha"))
	assert.False(t, manifest.Exists(svc.Cache().Root(), "alpha"))
	_, err = os.Lstat(filepath.Join(cfg.GameDir, "data", "a.esp"))
	assert.True(t, os.IsNotExist(err))
}

func TestService_Upgrade(t *testing.T) {
	svc, cfg := newTestService(t)
	ctx := context.Background()

	oldName := "Cool Mod-123-1-0-1700000000.zip"
	writeDownload(t, cfg, oldName, "data/cool.esp")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DownloadDir, oldName+".json"), []byte(sidecarJSON(oldName, 123, 1)), 0644))

	res, err := svc.Extract(ctx, oldName, false)
	require.NoError(t, err)
	require.NoError(t, svc.Catalogue().SetPriority(res.Mod, 3))
	require.NoError(t, svc.Enable(ctx, res.Mod, nil))

	up, err := svc.Upgrade(ctx, res.Mod)
	require.NoError(t, err)
	assert.Nil(t, up)

	newName := "Cool Mod-123-1-1-1700100000.zip"
	writeDownload(t, cfg, newName, "data/cool.esp")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DownloadDir, newName+".json"), []byte(sidecarJSON(newName, 123, 2)), 0644))

	ups, err := svc.UpgradeAll(ctx)
	require.NoError(t, err)
	require.Len(t, ups, 1)

	mod := ups[0].Mod
	assert.Equal(t, "1.1", mod.Version)
	assert.Equal(t, 3, mod.Priority)
	assert.True(t, mod.IsEnabled())
	assert.Equal(t, 1, svc.Catalogue().Len())
	assert.False(t, svc.Cache().Exists(res.Mod.BareName))

	target, err := os.Readlink(filepath.Join(cfg.GameDir, "data", "cool.esp"))
	require.NoError(t, err)
	assert.Equal(t, svc.Cache().FilePath(mod.BareName, "data/cool.esp"), target)
}

func TestService_CustomMods(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/a.esp", "data/textures/t.dds")
	ctx := context.Background()

	res, err := svc.Extract(ctx, "alpha.zip", false)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, res.Mod, nil))

	custom, err := svc.CreateCustom("Patches", "")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Catalogue().Len())
	assert.Equal(t, 1, svc.Catalogue().Index(custom), "custom mods rank last")

	require.NoError(t, svc.Enable(ctx, custom, nil))
	require.NoError(t, svc.CopyToCustom(ctx, res.Mod, custom, []string{"t.dds"}))

	target, err := os.Readlink(filepath.Join(cfg.GameDir, "data", "textures", "t.dds"))
	require.NoError(t, err)
	assert.Equal(t, svc.Cache().FilePath("patches", "data/textures/t.dds"), target)
}

func TestService_Purge(t *testing.T) {
	svc, cfg := newTestService(t)
	writeDownload(t, cfg, "alpha.zip", "data/a.esp")
	ctx := context.Background()

	res, err := svc.Extract(ctx, "alpha.zip", false)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, res.Mod, nil))

	stray, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Empty(t, stray)
	assert.False(t, res.Mod.IsEnabled())
}
