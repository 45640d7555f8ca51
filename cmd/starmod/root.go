package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DonovanMods/starmod/internal/core"
	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/fomod"
	"github.com/DonovanMods/starmod/internal/logging"
	"github.com/DonovanMods/starmod/internal/storage/config"

	"github.com/spf13/cobra"
)

var (
	version = "0.9.0"

	// Global flags
	configPath  string
	cacheDir    string
	downloadDir string
	gameDir     string
	verbosity   int
	quiet       bool
	noColor     bool
	jsonOutput  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "starmod",
	Short: "starmod - symlink mod manager for Starfield on Linux",
	Long: `starmod extracts downloaded mod archives into a cache and deploys them
into the game directory as symlinks, ordered by priority.

Running starmod without a subcommand lists the installed mods.`,
	Version:       version,
	SilenceUsage:  true, // Runtime errors should not print usage
	SilenceErrors: true, // We handle error output in Execute()
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(cmd.ErrOrStderr(), verbosity, quiet)
	},
	RunE: runList,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/starmod/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "", "override the cache directory")
	rootCmd.PersistentFlags().StringVar(&downloadDir, "downloads", "", "override the download directory")
	rootCmd.PersistentFlags().StringVar(&gameDir, "game-dir", "", "override the game directory")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-vv adds callers)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format (list, show, status, verify, config show)")
}

// Execute runs the root command. Exit codes: 0 = success, 1 = error, 2 = installer cancelled.
// When --json is set and an error occurs, prints {"error":"..."} to stdout before exiting.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, domain.ErrInstallerCancelled) {
		fmt.Fprintln(os.Stderr, "Installer cancelled.")
		return 2
	}
	if jsonOutput {
		fmt.Printf(`{"error":%q}`+"\n", err.Error())
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}

// loadConfig reads the settings file and applies flag overrides
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		path, perr := config.ParseConfigPath(configPath)
		if perr != nil {
			return nil, fmt.Errorf("--config: %w", perr)
		}
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(config.DefaultDir())
	}
	if err != nil {
		return nil, err
	}

	if cacheDir != "" {
		cfg.CacheDir = config.AbsPath(cacheDir)
	}
	if downloadDir != "" {
		cfg.DownloadDir = config.AbsPath(downloadDir)
	}
	if gameDir != "" {
		cfg.GameDir = config.AbsPath(gameDir)
	}
	return cfg, nil
}

// initService creates the core service for a command
func initService(cmd *cobra.Command) (*core.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	svc, err := core.NewService(core.ServiceConfig{
		Config:   cfg,
		Prompter: fomod.NewLinePrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		Logger:   logging.For(cmd.Name()),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing service: %w", err)
	}
	return svc, nil
}

// requireGameDir fails early for commands that touch the game directory
func requireGameDir(svc *core.Service) error {
	return svc.Config().Validate()
}

// findMod resolves a mod argument by name, index, or fuzzy match
func findMod(svc *core.Service, query string) (*domain.Mod, error) {
	return svc.Catalogue().FindMod(query)
}
