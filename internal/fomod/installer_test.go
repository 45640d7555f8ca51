package fomod_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/fomod"
	"github.com/DonovanMods/starmod/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInfo = `<?xml version="1.0" encoding="UTF-8"?>
<fomod>
	<Name>Better Textures</Name>
	<Version>1.2.0</Version>
</fomod>`

const testConfig = `<?xml version="1.0" encoding="UTF-8"?>
<config>
	<moduleName>Better Textures</moduleName>
	<requiredInstallFiles>
		<file source="Core\Core.esp" destination="Core.esp"/>
	</requiredInstallFiles>
	<installSteps order="Explicit">
		<installStep name="Resolution">
			<optionalFileGroups order="Explicit">
				<group name="Size" type="SelectExactlyOne">
					<plugins order="Explicit">
						<plugin name="P0">
							<description>Small</description>
							<files><folder source="2K" destination="Data\Textures"/></files>
							<conditionFlags><flag name="size">2k</flag></conditionFlags>
						</plugin>
						<plugin name="P1">
							<description>Large</description>
							<files><folder source="4K" destination="textures"/></files>
							<conditionFlags><flag name="size">4k</flag></conditionFlags>
						</plugin>
					</plugins>
				</group>
			</optionalFileGroups>
		</installStep>
		<installStep name="Extras">
			<visible><flagDependency flag="size" value="4k"/></visible>
			<optionalFileGroups>
				<group name="Extras" type="SelectAny">
					<plugins>
						<plugin name="Normals">
							<description>Normal maps</description>
							<files><file source="extra/n.dds" destination="textures/a.dds"/></files>
							<conditionFlags><flag name="normals">on</flag></conditionFlags>
						</plugin>
					</plugins>
				</group>
			</optionalFileGroups>
		</installStep>
	</installSteps>
	<conditionalFileInstalls>
		<patterns>
			<pattern>
				<dependencies operator="And">
					<flagDependency flag="size" value="4k"/>
					<flagDependency flag="normals" value="on"/>
				</dependencies>
				<files><file source="extra/patch.esp"/></files>
			</pattern>
			<pattern>
				<dependencies operator="Or">
					<flagDependency flag="size" value="2k"/>
					<flagDependency flag="missing" value="x"/>
				</dependencies>
				<files><file source="extra/lite.esp"/></files>
			</pattern>
		</patterns>
	</conditionalFileInstalls>
</config>`

func writeMod(t *testing.T, name, info, config string, files ...string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fomod"), 0o755))
	if info != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fomod", "info.xml"), []byte(info), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fomod", "moduleconfig.xml"), []byte(config), 0o644))
	for _, f := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
	return dir
}

func testFiles() []string {
	return []string{"core/core.esp", "2k/a.dds", "4k/a.dds", "4k/sub/b.dds", "extra/n.dds", "extra/patch.esp", "extra/lite.esp"}
}

func run(t *testing.T, dir, input string) (*fomod.Result, string, error) {
	t.Helper()
	var out bytes.Buffer
	p := fomod.NewLinePrompter(strings.NewReader(input), &out)
	res, err := fomod.NewInstaller(dir, p, fomod.WithLogger(logging.Discard())).Run(context.Background())
	return res, out.String(), err
}

func TestInstaller_SelectExactlyOne(t *testing.T) {
	dir := writeMod(t, "better-textures-123-1-0", testInfo, testConfig, testFiles()...)

	// Choosing P1 reveals the Extras step, finished here without a pick
	res, _, err := run(t, dir, "1\nd\n")
	require.NoError(t, err)

	assert.Equal(t, "Better Textures", res.Name)
	assert.Equal(t, "1.2.0", res.Version)
	assert.Equal(t, []domain.InstallFile{
		{Source: "core/core.esp", Destination: "data/core.esp"},
		{Source: "4k/a.dds", Destination: "data/textures/a.dds"},
		{Source: "4k/sub/b.dds", Destination: "data/textures/sub/b.dds"},
	}, res.Files)
}

func TestInstaller_HiddenStepAndConditionalInstall(t *testing.T) {
	dir := writeMod(t, "better-textures", testInfo, testConfig, testFiles()...)

	res, out, err := run(t, dir, "0\n")
	require.NoError(t, err)
	assert.NotContains(t, out, "Install Step: Extras")

	assert.Equal(t, []domain.InstallFile{
		{Source: "core/core.esp", Destination: "data/core.esp"},
		{Source: "2k/a.dds", Destination: "data/textures/a.dds"},
		{Source: "extra/lite.esp", Destination: "data/extra/lite.esp"},
	}, res.Files)
}

func TestInstaller_DuplicateDestinationKeepsFirst(t *testing.T) {
	dir := writeMod(t, "better-textures", testInfo, testConfig, testFiles()...)

	res, _, err := run(t, dir, "1\n0\nd\n")
	require.NoError(t, err)

	var sources []string
	for _, f := range res.Files {
		if f.Destination == "data/textures/a.dds" {
			sources = append(sources, f.Source)
		}
	}
	assert.Equal(t, []string{"4k/a.dds"}, sources)
	assert.Contains(t, res.Files, domain.InstallFile{Source: "extra/patch.esp", Destination: "data/extra/patch.esp"})
}

func TestInstaller_InvalidChoiceReprompts(t *testing.T) {
	dir := writeMod(t, "better-textures", testInfo, testConfig, testFiles()...)

	res, out, err := run(t, dir, "7\nd\n0\n")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Invalid choice"))
	assert.Contains(t, res.Files, domain.InstallFile{Source: "2k/a.dds", Destination: "data/textures/a.dds"})
}

func TestInstaller_Exit(t *testing.T) {
	dir := writeMod(t, "better-textures", testInfo, testConfig, testFiles()...)

	_, _, err := run(t, dir, "e\n")
	assert.ErrorIs(t, err, domain.ErrInstallerCancelled)

	_, _, err = run(t, dir, "")
	assert.ErrorIs(t, err, domain.ErrInstallerCancelled)
}

const atLeastOneConfig = `<config>
	<installSteps>
		<installStep name="Main">
			<optionalFileGroups>
				<group name="Pick" type="SelectAtLeastOne">
					<plugins>
						<plugin name="A"><files><file source="a.esp"/></files></plugin>
						<plugin name="B"><files><file source="b.esp"/></files></plugin>
					</plugins>
				</group>
				<group name="Maybe" type="SelectAtMostOne">
					<plugins>
						<plugin name="C"><files><file source="c.esp"/></files></plugin>
					</plugins>
				</group>
				<group name="Always" type="SelectAll">
					<plugins>
						<plugin name="D"><files><file source="d.esp" destination="data/d.esp"/></files></plugin>
					</plugins>
				</group>
			</optionalFileGroups>
		</installStep>
	</installSteps>
</config>`

func TestInstaller_GroupRules(t *testing.T) {
	dir := writeMod(t, "simple-mod-42-1-0", "", atLeastOneConfig, "a.esp", "b.esp", "c.esp", "d.esp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fomod", "info.xml"), []byte("<fomod/>"), 0o644))

	// Groups run in name order: Always, Maybe, Pick
	res, out, err := run(t, dir, "d\nd\n1\n0\n1\nd\n")
	require.NoError(t, err)

	assert.Contains(t, out, "Please select at least one option")
	assert.Equal(t, "simple", res.Name)
	assert.Equal(t, []domain.InstallFile{
		{Source: "d.esp", Destination: "data/d.esp"},
		{Source: "b.esp", Destination: "data/b.esp"},
		{Source: "a.esp", Destination: "data/a.esp"},
	}, res.Files)
}

func TestInstaller_ModuleDependencies(t *testing.T) {
	config := `<config>
	<moduleDependencies operator="And">
		<fileDependency file="Starfield.esm" state="Active"/>
	</moduleDependencies>
</config>`
	dir := writeMod(t, "needs-base", testInfo, config)

	var out bytes.Buffer
	inst := fomod.NewInstaller(dir, fomod.NewLinePrompter(strings.NewReader(""), &out),
		fomod.WithDataDir(t.TempDir()), fomod.WithLogger(logging.Discard()))
	_, err := inst.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrDependenciesNotMet)
}

func TestDedupe(t *testing.T) {
	files := []domain.InstallFile{
		{Source: "a", Destination: "data/x"},
		{Source: "b", Destination: "data/x"},
		{Source: "c", Destination: "data/y"},
		{Source: "d", Destination: "data/x"},
	}
	assert.Equal(t, []domain.InstallFile{
		{Source: "a", Destination: "data/x"},
		{Source: "c", Destination: "data/y"},
	}, fomod.Dedupe(files))
}

func TestHasInstaller(t *testing.T) {
	dir := writeMod(t, "m", testInfo, testConfig)
	assert.True(t, fomod.HasInstaller(dir))
	assert.False(t, fomod.HasInstaller(t.TempDir()))
}
