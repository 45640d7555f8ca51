package dmodman_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/starmod/internal/source/dmodman"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "download_dir = \"/home/user/downloads\"\nprofile = \"starfield\"\napi_key = \"ignored\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := dmodman.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/user/downloads", cfg.DownloadDir)
	assert.Equal(t, filepath.Join("/home/user/downloads", "starfield"), cfg.ProfileDownloadDir())
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := dmodman.LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, "", cfg.ProfileDownloadDir())
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("download_dir = ["), 0644))

	_, err := dmodman.LoadConfig(path)
	assert.Error(t, err)
}
