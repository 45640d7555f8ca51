package main

import (
	"fmt"
	"path/filepath"

	"github.com/DonovanMods/starmod/internal/storage/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change starmod settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save it",
	Long: `Change one setting and write it to the config file.

Keys: cache_dir, download_dir, game_dir, data_dir, editor, steam_dir,
compat_dir, proton_dir.

Examples:
  starmod config set game_dir ~/.steam/steam/steamapps/common/Starfield
  starmod config set editor "code --wait"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout())
	entries := cfg.Entries()
	if jsonOutput {
		m := make(map[string]string, len(entries))
		for _, e := range entries {
			m[e[0]] = e[1]
		}
		return out.JSON(m)
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e[0], e[1]}
	}
	out.Table([]string{"KEY", "VALUE"}, rows, nil)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}

	dir := config.DefaultDir()
	if configPath != "" {
		path, err := config.ParseConfigPath(configPath)
		if err != nil {
			return err
		}
		if filepath.Base(path) != "config.yaml" {
			return fmt.Errorf("config set can only write config.yaml files, not %s", filepath.Base(path))
		}
		dir = filepath.Dir(path)
	}
	if err := cfg.Save(dir); err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).Printf("Set %s\n", args[0])
	return nil
}
