package main

import (
	"fmt"
	"strconv"

	"github.com/DonovanMods/starmod/internal/core"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <mod> [priority]",
	Short: "Link a mod into the game directory",
	Long: `Enable a mod by linking its files into the game directory. When a
priority is given the mod is moved there first. Files of lower-ranked mods
are overwritten; files of higher-ranked mods are left alone.

Examples:
  starmod enable "Cool Mod"
  starmod enable 3 10`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEnable,
}

var disableCmd = &cobra.Command{
	Use:   "disable <mod>",
	Short: "Remove a mod's links from the game directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisable,
}

var enableAllCmd = &cobra.Command{
	Use:   "enable-all",
	Short: "Enable every mod with a non-negative priority",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeployment(cmd, "Enabled all mods.", func(svc *core.Service) error {
			return svc.EnableAll(cmd.Context())
		})
	},
}

var disableAllCmd = &cobra.Command{
	Use:   "disable-all",
	Short: "Disable every mod",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeployment(cmd, "Disabled all mods.", func(svc *core.Service) error {
			return svc.DisableAll(cmd.Context())
		})
	},
}

var reEnableAllCmd = &cobra.Command{
	Use:   "re-enable-all",
	Short: "Rebuild the links of every enabled mod",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeployment(cmd, "Re-enabled all enabled mods.", func(svc *core.Service) error {
			return svc.ReEnableAll(cmd.Context())
		})
	},
}

var setPriorityCmd = &cobra.Command{
	Use:   "set-priority <mod> <priority>",
	Short: "Move a mod to a new priority and re-layer the game directory",
	Long: `Set the priority of a mod. Higher priorities win file conflicts.
A negative priority keeps the mod disabled by enable-all.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetPriority,
}

var renumberCmd = &cobra.Command{
	Use:   "renumber",
	Short: "Rewrite priorities as 0..n-1 in the current order",
	Args:  cobra.NoArgs,
	RunE:  runRenumber,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Disable all mods and remove any stray links into the cache",
	Long: `Purge disables every mod, then walks the game directory and removes
every remaining symlink into the cache. Backed-up game files are restored.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check deployed links against the game directory",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(enableCmd, disableCmd, enableAllCmd, disableAllCmd, reEnableAllCmd)
	rootCmd.AddCommand(setPriorityCmd, renumberCmd, purgeCmd, verifyCmd)
}

// withDeployment runs fn against a service whose game directory is valid
func withDeployment(cmd *cobra.Command, done string, fn func(svc *core.Service) error) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := requireGameDir(svc); err != nil {
		return err
	}
	if err := fn(svc); err != nil {
		return err
	}
	if done != "" {
		newPrinter(cmd.OutOrStdout()).Println(done)
	}
	return nil
}

func runEnable(cmd *cobra.Command, args []string) error {
	var priority *int
	if len(args) == 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid priority %q: %w", args[1], err)
		}
		priority = &p
	}

	return withDeployment(cmd, "", func(svc *core.Service) error {
		mod, err := findMod(svc, args[0])
		if err != nil {
			return err
		}
		if err := svc.Enable(cmd.Context(), mod, priority); err != nil {
			return err
		}
		out := newPrinter(cmd.OutOrStdout())
		out.Printf("%s %s (priority %d)\n", out.ok("Enabled"), mod.Name(), mod.Priority)
		return nil
	})
}

func runDisable(cmd *cobra.Command, args []string) error {
	return withDeployment(cmd, "", func(svc *core.Service) error {
		mod, err := findMod(svc, args[0])
		if err != nil {
			return err
		}
		if err := svc.Disable(cmd.Context(), mod); err != nil {
			return err
		}
		newPrinter(cmd.OutOrStdout()).Printf("Disabled %s\n", mod.Name())
		return nil
	})
}

func runSetPriority(cmd *cobra.Command, args []string) error {
	priority, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid priority %q: %w", args[1], err)
	}

	return withDeployment(cmd, "", func(svc *core.Service) error {
		mod, err := findMod(svc, args[0])
		if err != nil {
			return err
		}
		if err := svc.SetPriority(cmd.Context(), mod, priority); err != nil {
			return err
		}
		newPrinter(cmd.OutOrStdout()).Printf("%s is now priority %d (rank %d)\n",
			mod.Name(), mod.Priority, svc.Catalogue().Index(mod))
		return nil
	})
}

func runRenumber(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Catalogue().Renumber(); err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Renumbered %d mod(s).\n", svc.Catalogue().Len())
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	return withDeployment(cmd, "", func(svc *core.Service) error {
		stray, err := svc.Purge(cmd.Context())
		if err != nil {
			return err
		}
		out := newPrinter(cmd.OutOrStdout())
		for _, p := range stray {
			out.Printf("removed stray link %s\n", p)
		}
		out.Printf("Purged game directory (%d stray link(s)).\n", len(stray))
		return nil
	})
}

type problemJSON struct {
	Destination string `json:"destination"`
	Mod         string `json:"mod"`
	Issue       string `json:"issue"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	return withDeployment(cmd, "", func(svc *core.Service) error {
		problems, err := svc.Verify()
		if err != nil {
			return err
		}

		out := newPrinter(cmd.OutOrStdout())
		if jsonOutput {
			list := make([]problemJSON, len(problems))
			for i, p := range problems {
				list[i] = problemJSON(p)
			}
			return out.JSON(list)
		}

		if len(problems) == 0 {
			out.Println(out.ok("All deployed links are intact."))
			return nil
		}
		rows := make([][]string, len(problems))
		for i, p := range problems {
			rows[i] = []string{p.Destination, p.Mod, out.bad(p.Issue)}
		}
		out.Table([]string{"DESTINATION", "MOD", "ISSUE"}, rows, nil)
		return fmt.Errorf("%d deployed link(s) need attention; run 're-enable-all' to repair", len(problems))
	})
}
