package linker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/starmod/internal/linker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup_KeepsFullName(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.dds")
	require.NoError(t, os.WriteFile(p, []byte("original"), 0644))

	backup, err := linker.Backup(p)
	require.NoError(t, err)
	assert.Equal(t, p+".starmod_bkp", backup)
	assert.NoFileExists(t, p)

	content, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), content)
}

func TestBackup_NeverOverwritesOlderBackup(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.dds")
	require.NoError(t, os.WriteFile(p+".starmod_bkp", []byte("first"), 0644))
	require.NoError(t, os.WriteFile(p, []byte("second"), 0644))

	backup, err := linker.Backup(p)
	require.NoError(t, err)
	assert.Equal(t, p+".1.starmod_bkp", backup)

	first, err := os.ReadFile(p + ".starmod_bkp")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), first)
}

func TestRestore(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.dds")
	require.NoError(t, os.WriteFile(p, []byte("original"), 0644))
	_, err := linker.Backup(p)
	require.NoError(t, err)

	ok, err := linker.Restore(p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, p)
	assert.NoFileExists(t, linker.BackupPath(p))

	// Nothing left to restore
	ok, err = linker.Restore(p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestore_OccupiedDestination(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.dds")
	require.NoError(t, os.WriteFile(linker.BackupPath(p), []byte("old"), 0644))
	require.NoError(t, os.Symlink("/somewhere", p))

	ok, err := linker.Restore(p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, linker.BackupPath(p))
}

func TestRestoreAll(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "data", "textures")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.dds.starmod_bkp"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.dds.1.starmod_bkp"), []byte("b"), 0644))

	restored, err := linker.RestoreAll(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(sub, "a.dds")}, restored)
	assert.FileExists(t, filepath.Join(sub, "a.dds"))
	assert.FileExists(t, filepath.Join(sub, "b.dds.1.starmod_bkp"))
}

func TestCleanupEmptyDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data", "textures", "armor"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data", "meshes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "meshes", "keep.nif"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	require.NoError(t, linker.CleanupEmptyDirs(root))

	assert.NoDirExists(t, filepath.Join(root, "data", "textures"))
	assert.NoDirExists(t, filepath.Join(root, "empty"))
	assert.FileExists(t, filepath.Join(root, "data", "meshes", "keep.nif"))
	assert.DirExists(t, root)
}

func TestCleanupEmptyDirs_KeepsEmptyRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, linker.CleanupEmptyDirs(root))
	assert.DirExists(t, root)
}
