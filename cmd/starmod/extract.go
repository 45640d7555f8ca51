package main

import (
	"github.com/DonovanMods/starmod/internal/core"

	"github.com/spf13/cobra"
)

var extractForce bool

var extractCmd = &cobra.Command{
	Use:   "extract <archive>",
	Short: "Extract a downloaded archive into the cache",
	Long: `Extract an archive from the download directory into the cache and build
its manifest. The archive can be named by file name, by its index in
'starmod list downloads', by a fuzzy match, or by a path.

FOMOD installers are run interactively. Answer with the option numbers,
'd' to finish a step early, or 'e' to cancel (exit code 2).

Examples:
  starmod extract "Cool Mod-123-1-0-1700000000.zip"
  starmod extract 4
  starmod extract --force cool`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var extractAllCmd = &cobra.Command{
	Use:   "extract-all",
	Short: "Extract every archive not yet in the cache",
	Args:  cobra.NoArgs,
	RunE:  runExtractAll,
}

var reinstallCmd = &cobra.Command{
	Use:   "reinstall <mod>",
	Short: "Rebuild a mod's manifest from its extracted files",
	Long: `Run the installer of an already extracted mod again. FOMOD mods are
asked their questions again. Priority, tags and enabled state are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runReinstall,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [mod]",
	Short: "Replace a mod with a newer download of it",
	Long: `Look in the download directory for a newer archive of the same Nexus
mod and file, as recorded by dmodman, and swap it in. Without an argument
every mod is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpgrade,
}

var upgradeAllCmd = &cobra.Command{
	Use:   "upgrade-all",
	Short: "Upgrade every mod with a newer download",
	Args:  cobra.NoArgs,
	RunE:  runUpgrade,
}

func init() {
	extractCmd.Flags().BoolVarP(&extractForce, "force", "f", false, "extract again even when already in the cache")

	rootCmd.AddCommand(extractCmd, extractAllCmd, reinstallCmd, upgradeCmd, upgradeAllCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Extract(cmd.Context(), args[0], extractForce)
	if err != nil {
		return err
	}
	printImport(newPrinter(cmd.OutOrStdout()), res)
	return nil
}

func runExtractAll(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	results, err := svc.ExtractAll(cmd.Context())
	out := newPrinter(cmd.OutOrStdout())
	extracted := 0
	for _, res := range results {
		if !res.Skipped {
			printImport(out, res)
			extracted++
		}
	}
	if err != nil {
		return err
	}
	out.Printf("Extracted %d archive(s).\n", extracted)
	return nil
}

func printImport(out *printer, res *core.ImportResult) {
	if res.Skipped {
		out.Printf("%s is already extracted; use --force to extract again\n", res.Mod.Name())
		return
	}
	out.Printf("%s %s (%s, %d file(s))\n", out.ok("Extracted"), res.Mod.Name(), res.Mod.Kind, len(res.Mod.Files))
}

func runReinstall(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}
	if mod.IsEnabled() {
		if err := requireGameDir(svc); err != nil {
			return err
		}
	}

	rebuilt, err := svc.Reinstall(cmd.Context(), mod)
	if err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Reinstalled %s (%d file(s))\n", rebuilt.Name(), len(rebuilt.Files))
	return nil
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := newPrinter(cmd.OutOrStdout())
	if len(args) == 0 {
		ups, err := svc.UpgradeAll(cmd.Context())
		for _, up := range ups {
			out.Printf("%s %s to %s\n", out.ok("Upgraded"), up.Mod.Name(), up.Mod.Version)
		}
		if err != nil {
			return err
		}
		if len(ups) == 0 {
			out.Println("Everything is up to date.")
		}
		return nil
	}

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}
	up, err := svc.Upgrade(cmd.Context(), mod)
	if err != nil {
		return err
	}
	if up == nil {
		out.Printf("%s is up to date.\n", mod.Name())
		return nil
	}
	out.Printf("%s %s to %s\n", out.ok("Upgraded"), up.Mod.Name(), up.Mod.Version)
	return nil
}
