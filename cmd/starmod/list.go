package main

import (
	"strconv"
	"strings"

	"github.com/DonovanMods/starmod/internal/core"
	"github.com/DonovanMods/starmod/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed mods",
	Long: `List the mods in the cache in priority order, with their conflict tag.

Tags: e = enabled, w = winner, l = loser, L = all files overwritten,
c = conflict, D = disabled.

Examples:
  starmod list
  starmod list conflicts
  starmod list files "Cool Mod"`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listModsCmd = &cobra.Command{
	Use:   "mods",
	Short: "List installed mods (default)",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var listConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List files provided by more than one enabled mod",
	Args:  cobra.NoArgs,
	RunE:  runListConflicts,
}

var listFilesCmd = &cobra.Command{
	Use:   "files <mod>",
	Short: "List the active files of a mod",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListFiles(cmd, args[0], false)
	},
}

var listDisabledFilesCmd = &cobra.Command{
	Use:   "disabled-files <mod>",
	Short: "List the disabled files of a mod",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListFiles(cmd, args[0], true)
	},
}

var listDownloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List archives in the download directory",
	Args:  cobra.NoArgs,
	RunE:  runListDownloads,
}

func init() {
	listCmd.AddCommand(listModsCmd, listConflictsCmd, listFilesCmd, listDisabledFilesCmd, listDownloadsCmd)
	rootCmd.AddCommand(listCmd)
}

type modJSON struct {
	Index    int    `json:"index"`
	Priority int    `json:"priority"`
	Tag      string `json:"tag"`
	Kind     string `json:"kind"`
	Version  string `json:"version,omitempty"`
	NexusID  uint32 `json:"nexus_id,omitempty"`
	Name     string `json:"name"`
	BareName string `json:"bare_name"`
}

func runList(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := newPrinter(cmd.OutOrStdout())
	mods := svc.Catalogue().Mods()
	conflicts := svc.Conflicts()

	if jsonOutput {
		list := make([]modJSON, len(mods))
		for i, m := range mods {
			list[i] = modJSON{
				Index:    i,
				Priority: m.Priority,
				Tag:      conflicts.Tag(m).String(),
				Kind:     m.Kind.String(),
				Version:  m.Version,
				NexusID:  m.NexusID,
				Name:     m.Name(),
				BareName: m.BareName,
			}
		}
		return out.JSON(list)
	}

	if len(mods) == 0 {
		out.Println("No mods installed. Use 'starmod extract' to add one.")
		return nil
	}

	rows := make([][]string, len(mods))
	tags := make([]domain.Tag, len(mods))
	for i, m := range mods {
		tag := conflicts.Tag(m)
		tags[i] = tag
		nexus := ""
		if m.NexusID != 0 {
			nexus = strconv.FormatUint(uint64(m.NexusID), 10)
		}
		rows[i] = []string{
			strconv.Itoa(i),
			strconv.Itoa(m.Priority),
			tag.Char(),
			m.Kind.String(),
			m.Version,
			nexus,
			truncate(m.Name(), 60),
		}
	}
	out.Table([]string{"#", "PRIORITY", "TAG", "KIND", "VERSION", "NEXUS", "NAME"}, rows, tags)

	if verbosity > 0 {
		out.Printf("\nTotal: %d mod(s)\n", len(mods))
	}
	return nil
}

type conflictJSON struct {
	File   string   `json:"file"`
	Winner string   `json:"winner"`
	Losers []string `json:"losers"`
}

func runListConflicts(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := newPrinter(cmd.OutOrStdout())
	conflicts := svc.Conflicts()
	files := conflicts.Files()

	if jsonOutput {
		list := make([]conflictJSON, len(files))
		for i, f := range files {
			owners := conflicts.ByFile[f]
			list[i] = conflictJSON{File: f, Winner: owners[len(owners)-1], Losers: owners[:len(owners)-1]}
		}
		return out.JSON(list)
	}

	if len(files) == 0 {
		out.Println(out.ok("No conflicts between enabled mods."))
		return nil
	}

	rows := make([][]string, len(files))
	for i, f := range files {
		owners := conflicts.ByFile[f]
		rows[i] = []string{f, owners[len(owners)-1], strings.Join(owners[:len(owners)-1], ", ")}
	}
	out.Table([]string{"FILE", "WINNER", "OVERWRITES"}, rows, nil)
	return nil
}

func runListFiles(cmd *cobra.Command, query string, disabled bool) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mod, err := findMod(svc, query)
	if err != nil {
		return err
	}

	files := mod.Files
	if disabled {
		files = mod.DisabledFiles
	}

	out := newPrinter(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(files)
	}
	if len(files) == 0 {
		what := "active"
		if disabled {
			what = "disabled"
		}
		out.Printf("%s has no %s files.\n", mod.Name(), what)
		return nil
	}

	conflicts := svc.Conflicts()
	rows := make([][]string, len(files))
	tags := make([]domain.Tag, len(files))
	for i, f := range files {
		state, tag := fileState(conflicts, mod, f, disabled)
		rows[i] = []string{f.Source, f.Destination, state}
		tags[i] = tag
	}
	out.Table([]string{"SOURCE", "DESTINATION", "STATE"}, rows, tags)
	return nil
}

// fileState describes who provides a destination in the game directory
func fileState(c *core.Conflicts, mod *domain.Mod, f domain.InstallFile, disabled bool) (string, domain.Tag) {
	switch {
	case disabled:
		return "disabled", domain.TagDisabled
	case !mod.IsEnabled():
		return "", domain.TagDisabled
	}
	winner := c.Winner(f.Destination)
	switch winner {
	case "":
		return "", domain.TagEnabled
	case mod.BareName:
		return "wins", domain.TagWinner
	default:
		return "overwritten by " + winner, domain.TagLoser
	}
}

func runListDownloads(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	downloads, err := svc.Importer().Downloads()
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(downloads)
	}
	if len(downloads) == 0 {
		out.Printf("No archives in %s.\n", svc.Config().DownloadDir)
		return nil
	}

	rows := make([][]string, len(downloads))
	tags := make([]domain.Tag, len(downloads))
	for i, d := range downloads {
		status := "new"
		tags[i] = domain.TagWinner
		if d.Extracted {
			status = "extracted"
			tags[i] = domain.TagDisabled
		}
		rows[i] = []string{strconv.Itoa(i), d.Kind.String(), status, d.Name}
	}
	out.Table([]string{"#", "TYPE", "STATUS", "ARCHIVE"}, rows, tags)
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show <mod>",
	Short: "Show a mod's manifest and conflicts",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

type showJSON struct {
	*domain.Mod
	Tag         string   `json:"tag"`
	Manifest    string   `json:"manifest"`
	LosingTo    []string `json:"losing_to,omitempty"`
	WinningOver []string `json:"winning_over,omitempty"`
	Deployed    []string `json:"deployed,omitempty"`
	Bytes       int64    `json:"size_bytes"`
}

func runShow(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}

	conflicts := svc.Conflicts()
	tag := conflicts.Tag(mod)
	rel := conflicts.ByMod[mod.BareName]
	if rel == nil {
		rel = &core.ModConflicts{}
	}

	deployed, err := svc.Deployed(mod)
	if err != nil {
		return err
	}
	size, err := svc.ModSize(mod)
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(showJSON{
			Mod:         mod,
			Tag:         tag.String(),
			Manifest:    svc.ManifestPath(mod),
			LosingTo:    rel.LosingTo,
			WinningOver: rel.WinningOver,
			Deployed:    deployed,
			Bytes:       size,
		})
	}

	out.Printf("Name:      %s\n", mod.Name())
	out.Printf("Bare name: %s\n", mod.BareName)
	out.Printf("Kind:      %s\n", mod.Kind)
	if mod.Version != "" {
		out.Printf("Version:   %s\n", mod.Version)
	}
	if mod.NexusID != 0 {
		out.Printf("Nexus ID:  %d\n", mod.NexusID)
	}
	out.Printf("Priority:  %d (rank %d)\n", mod.Priority, svc.Catalogue().Index(mod))
	out.Printf("State:     %s\n", out.tag(tag, tag.String()))
	out.Printf("Files:     %d active, %d disabled (%s)\n", len(mod.Files), len(mod.DisabledFiles), humanize.Bytes(uint64(size)))
	if len(deployed) > 0 {
		out.Printf("Deployed:  %d link(s) owned\n", len(deployed))
	}
	if len(mod.Tags) > 0 {
		out.Printf("Tags:      %s\n", strings.Join(mod.Tags, ", "))
	}
	out.Printf("Manifest:  %s\n", svc.ManifestPath(mod))

	if len(rel.WinningOver) > 0 {
		out.Printf("\n%s\n", out.ok("Overwrites:"))
		for _, name := range rel.WinningOver {
			out.Printf("  %s\n", name)
		}
	}
	if len(rel.LosingTo) > 0 {
		out.Printf("\n%s\n", out.warn("Overwritten by:"))
		for _, name := range rel.LosingTo {
			out.Printf("  %s\n", name)
		}
	}
	if len(rel.Files) > 0 {
		out.Printf("\nContested files:\n")
		for _, f := range rel.Files {
			out.Printf("  %s (won by %s)\n", f, conflicts.Winner(f))
		}
	}
	return nil
}
