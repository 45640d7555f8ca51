package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/DonovanMods/starmod/internal/core"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <mod> <name>",
	Short: "Change a mod's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage free-form mod tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <mod> <tag>",
	Short: "Add a tag to a mod",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTag(cmd, args, func(svc *core.Service, args []string) error {
			mod, err := findMod(svc, args[0])
			if err != nil {
				return err
			}
			return svc.Catalogue().AddTag(mod, args[1])
		})
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <mod> <tag>",
	Short: "Remove a tag from a mod",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTag(cmd, args, func(svc *core.Service, args []string) error {
			mod, err := findMod(svc, args[0])
			if err != nil {
				return err
			}
			return svc.Catalogue().RemoveTag(mod, args[1])
		})
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list <mod>",
	Short: "List the tags of a mod",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTag(cmd, args, nil)
	},
}

var enableFileCmd = &cobra.Command{
	Use:   "enable-file <mod> <file>",
	Short: "Re-activate a disabled file of a mod",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggleFile(cmd, args, true)
	},
}

var disableFileCmd = &cobra.Command{
	Use:   "disable-file <mod> <file>",
	Short: "Stop deploying one file of a mod",
	Long: `Disable a single file of a mod. The file can be named by its source
path, its destination, or its base name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggleFile(cmd, args, false)
	},
}

var createCustomCmd = &cobra.Command{
	Use:   "create-custom <name> [origin]",
	Short: "Create a custom mod, optionally from an existing directory",
	Long: `Create a custom mod ranked after every other mod. When origin is given,
its contents become the mod's files.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCreateCustom,
}

var copyToCustomCmd = &cobra.Command{
	Use:   "copy-to-custom <mod> <custom> <file>...",
	Short: "Copy files of a mod into a custom mod",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runCopyToCustom,
}

var editConfigCmd = &cobra.Command{
	Use:   "edit-config <mod>",
	Short: "Open a mod's manifest in your editor",
	Long: `Open the manifest of a mod in the configured editor, falling back to
$VISUAL, $EDITOR, then vi. The catalogue is reloaded afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runEditConfig,
}

var removeCmd = &cobra.Command{
	Use:     "remove <mod>",
	Aliases: []string{"rm"},
	Short:   "Disable a mod and delete it from the cache",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

func init() {
	tagCmd.AddCommand(tagAddCmd, tagRemoveCmd, tagListCmd)
	rootCmd.AddCommand(renameCmd, tagCmd, enableFileCmd, disableFileCmd)
	rootCmd.AddCommand(createCustomCmd, copyToCustomCmd, editConfigCmd, removeCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}
	old := mod.Name()
	if err := svc.Catalogue().SetName(mod, args[1]); err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Renamed %s to %s\n", old, mod.Name())
	return nil
}

// runTag applies change, when given, then prints the mod's tags
func runTag(cmd *cobra.Command, args []string, change func(*core.Service, []string) error) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	if change != nil {
		if err := change(svc, args); err != nil {
			return err
		}
	}

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(mod.Tags)
	}
	if len(mod.Tags) == 0 {
		out.Printf("%s has no tags.\n", mod.Name())
		return nil
	}
	out.Printf("%s: %s\n", mod.Name(), strings.Join(mod.Tags, ", "))
	return nil
}

func runToggleFile(cmd *cobra.Command, args []string, enable bool) error {
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

	verb := "Disabled"
	if enable {
		verb = "Enabled"
		err = svc.EnableFile(cmd.Context(), mod, args[1])
	} else {
		err = svc.DisableFile(cmd.Context(), mod, args[1])
	}
	if err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("%s %s in %s\n", verb, args[1], mod.Name())
	return nil
}

func runCreateCustom(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	origin := ""
	if len(args) == 2 {
		origin = args[1]
	}
	mod, err := svc.CreateCustom(args[0], origin)
	if err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Created custom mod %s with %d file(s) at priority %d\n",
		mod.Name(), len(mod.Files), mod.Priority)
	return nil
}

func runCopyToCustom(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}
	custom, err := findMod(svc, args[1])
	if err != nil {
		return err
	}
	if custom.IsEnabled() {
		if err := requireGameDir(svc); err != nil {
			return err
		}
	}

	if err := svc.CopyToCustom(cmd.Context(), mod, custom, args[2:]); err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Copied %d file(s) from %s to %s\n", len(args)-2, mod.Name(), custom.Name())
	return nil
}

func runEditConfig(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mod, err := findMod(svc, args[0])
	if err != nil {
		return err
	}

	editor := strings.Fields(svc.Config().EditorCommand())
	if len(editor) == 0 {
		return fmt.Errorf("no editor configured")
	}
	c := exec.CommandContext(cmd.Context(), editor[0], append(editor[1:], svc.ManifestPath(mod))...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("running editor: %w", err)
	}
	return svc.Reload()
}

func runRemove(cmd *cobra.Command, args []string) error {
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
	if err := svc.Remove(cmd.Context(), mod); err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Removed %s\n", mod.Name())
	return nil
}
