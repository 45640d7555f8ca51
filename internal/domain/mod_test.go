package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstallFile(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		dest     string
		wantSrc  string
		wantDest string
	}{
		{"plain", "Data/Textures/A.dds", "Textures/A.dds", "data/textures/a.dds", "data/textures/a.dds"},
		{"already prefixed", "x.esp", "data/x.esp", "x.esp", "data/x.esp"},
		{"uppercase prefix", "x.esp", "DATA/x.esp", "x.esp", "data/x.esp"},
		{"backslashes", `Meshes\Armor\a.nif`, `Meshes\Armor\a.nif`, "meshes/armor/a.nif", "data/meshes/armor/a.nif"},
		{"double slashes", "a//b.txt", "a//b.txt", "a//b.txt", "data/a/b.txt"},
		{"leading slash", "/x.esm", "/x.esm", "/x.esm", "data/x.esm"},
		{"nested textures", "t.dds", "Interface/TEXTURES/t.dds", "t.dds", "data/interface/textures/t.dds"},
		{"dot prefix", "./readme.txt", "./readme.txt", "readme.txt", "data/readme.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewInstallFile(tt.source, tt.dest)
			assert.Equal(t, tt.wantSrc, f.Source)
			assert.Equal(t, tt.wantDest, f.Destination)
		})
	}
}

func TestNewInstallFile_DestinationIsNormalised(t *testing.T) {
	inputs := []string{
		"", "data", "Data", "DATA/", `data\\Sub\\File.ESP`, "a/../b/C.txt",
		"Textures//x.DDS", "/data//data/x", `\\server\share`, "Ünïcode/Ä.txt",
	}

	for _, in := range inputs {
		f := NewInstallFile(in, in)
		assert.True(t, strings.HasPrefix(f.Destination, "data/"), "prefix of %q", f.Destination)
		assert.Equal(t, strings.ToLower(f.Destination), f.Destination)
		assert.NotContains(t, f.Destination, `\`)
		assert.NotContains(t, f.Destination, "//")
	}
}

func TestNewRawInstallFile_KeepsDestination(t *testing.T) {
	f := NewRawInstallFile("SFSE/sfse_loader.exe", "sfse_loader.exe")
	assert.Equal(t, "sfse/sfse_loader.exe", f.Source)
	assert.Equal(t, "sfse_loader.exe", f.Destination)
}

func TestModKind_Text(t *testing.T) {
	for _, kind := range []ModKind{KindData, KindFoMod, KindLoader, KindCustom} {
		text, err := kind.MarshalText()
		require.NoError(t, err)

		var got ModKind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, kind, got)
	}

	var k ModKind
	assert.Error(t, k.UnmarshalText([]byte("bogus")))
}

func TestModState_Text(t *testing.T) {
	var s ModState
	require.NoError(t, s.UnmarshalText([]byte("Enabled")))
	assert.Equal(t, StateEnabled, s)
	require.NoError(t, s.UnmarshalText([]byte("disabled")))
	assert.Equal(t, StateDisabled, s)
	assert.Error(t, s.UnmarshalText([]byte("maybe")))
}

func TestMod_Tags(t *testing.T) {
	m := &Mod{BareName: "alpha"}

	require.NoError(t, m.AddTag("ui"))
	require.NoError(t, m.AddTag("audio"))
	assert.Equal(t, []string{"audio", "ui"}, m.Tags)

	err := m.AddTag("ui")
	assert.ErrorIs(t, err, ErrDuplicateTag)

	require.NoError(t, m.RemoveTag("audio"))
	assert.Equal(t, []string{"ui"}, m.Tags)

	err = m.RemoveTag("audio")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestMod_DisableEnableFile(t *testing.T) {
	m := &Mod{
		BareName: "alpha",
		Files: []InstallFile{
			NewInstallFile("data/a.esp", "a.esp"),
			NewInstallFile("data/textures/b.dds", "textures/b.dds"),
		},
	}

	require.NoError(t, m.DisableFile("b.dds"))
	assert.Equal(t, []string{"data/a.esp"}, m.Destinations())
	require.Len(t, m.DisabledFiles, 1)
	assert.Equal(t, "data/textures/b.dds", m.DisabledFiles[0].Source)

	assert.ErrorIs(t, m.DisableFile("missing.txt"), ErrFileNotFound)

	require.NoError(t, m.EnableFile("data/textures/b.dds"))
	assert.Empty(t, m.DisabledFiles)
	assert.Len(t, m.Files, 2)

	assert.ErrorIs(t, m.EnableFile("b.dds"), ErrFileNotFound)
}

func TestMod_Name(t *testing.T) {
	assert.Equal(t, "alpha", (&Mod{BareName: "alpha"}).Name())
	assert.Equal(t, "Alpha Mod", (&Mod{BareName: "alpha", DisplayName: "Alpha Mod"}).Name())
}

func TestCompare(t *testing.T) {
	a := &Mod{BareName: "a", Priority: 1}
	b := &Mod{BareName: "b", Priority: 0}
	c := &Mod{BareName: "c", Priority: 1}

	assert.Equal(t, 1, Compare(a, b))
	assert.Equal(t, -1, Compare(a, c))
	assert.Equal(t, 0, Compare(a, a))
}

func TestTag_Char(t *testing.T) {
	assert.Equal(t, "L", TagCompleteLoser.Char())
	assert.Equal(t, "All Files Overwritten", TagCompleteLoser.String())
	assert.Equal(t, "w", TagWinner.Char())
}
