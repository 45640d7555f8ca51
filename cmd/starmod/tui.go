package main

import (
	"github.com/DonovanMods/starmod/internal/tui"

	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse and reorder mods interactively",
	Long: `Open the catalogue browser.

Keys: j/k move, space enables or disables, J/K change rank, c shows
conflicts, / filters, q quits.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := requireGameDir(svc); err != nil {
		return err
	}
	return tui.Run(svc)
}
