package linker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/starmod/internal/linker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymlinkLinker_Deploy(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "src", "test.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(srcFile), 0755))
	require.NoError(t, os.WriteFile(srcFile, []byte("content"), 0644))

	l := linker.NewSymlink()
	dstFile := filepath.Join(dir, "dst", "nested", "test.txt")
	require.NoError(t, l.Deploy(srcFile, dstFile))

	info, err := os.Lstat(dstFile)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	content, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), content)

	target, err := l.Target(dstFile)
	require.NoError(t, err)
	assert.Equal(t, srcFile, target)
}

func TestSymlinkLinker_DeployRefusesOccupiedDestination(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "src.txt")
	dstFile := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(dstFile, []byte("old"), 0644))

	assert.Error(t, linker.NewSymlink().Deploy(srcFile, dstFile))

	content, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), content)
}

func TestSymlinkLinker_Undeploy(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "src.txt")
	dstFile := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("content"), 0644))

	l := linker.New()
	require.NoError(t, l.Deploy(srcFile, dstFile))

	deployed, err := l.IsDeployed(dstFile)
	require.NoError(t, err)
	assert.True(t, deployed)

	require.NoError(t, l.Undeploy(dstFile))
	_, err = os.Lstat(dstFile)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(srcFile)
	assert.NoError(t, err)

	// Already gone is not an error
	require.NoError(t, l.Undeploy(dstFile))
}

func TestSymlinkLinker_UndeployRegularFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "real.txt")
	require.NoError(t, os.WriteFile(dst, []byte("x"), 0644))

	assert.Error(t, linker.NewSymlink().Undeploy(dst))
	assert.FileExists(t, dst)
}

func TestSymlinkLinker_TargetRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Symlink("../src/a.txt", filepath.Join(dir, "a.txt")))

	target, err := linker.NewSymlink().Target(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "src", "a.txt"), target)
}
