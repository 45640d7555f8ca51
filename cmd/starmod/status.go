package main

import (
	"strconv"

	"github.com/DonovanMods/starmod/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mod counts per state and conflict tag",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusTags is the display order of tag counts
var statusTags = []domain.Tag{
	domain.TagEnabled,
	domain.TagWinner,
	domain.TagLoser,
	domain.TagConflict,
	domain.TagCompleteLoser,
	domain.TagDisabled,
}

type statusJSON struct {
	GameDir  string         `json:"game_dir"`
	CacheDir string         `json:"cache_dir"`
	Total    int            `json:"total"`
	Enabled  int            `json:"enabled"`
	Disabled int            `json:"disabled"`
	Tags     map[string]int `json:"tags"`
	Bytes    int64          `json:"cache_bytes"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := initService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	st := svc.Status()
	cfg := svc.Config()
	out := newPrinter(cmd.OutOrStdout())

	if jsonOutput {
		tags := make(map[string]int, len(st.Tags))
		for t, n := range st.Tags {
			tags[t.String()] = n
		}
		return out.JSON(statusJSON{
			GameDir:  cfg.GameDir,
			CacheDir: cfg.CacheDir,
			Total:    st.Total,
			Enabled:  st.Enabled,
			Disabled: st.Disabled,
			Tags:     tags,
			Bytes:    st.CacheSize,
		})
	}

	game := cfg.GameDir
	if game == "" {
		game = out.warn("(not set; use 'starmod config set game_dir <path>')")
	}
	out.Printf("Game:      %s\n", game)
	out.Printf("Cache:     %s (%s)\n", cfg.CacheDir, humanize.Bytes(uint64(st.CacheSize)))
	out.Printf("Downloads: %s\n", cfg.DownloadDir)
	out.Printf("\nMods: %d total, %d enabled, %d disabled\n\n", st.Total, st.Enabled, st.Disabled)

	var rows [][]string
	var tags []domain.Tag
	for _, t := range statusTags {
		if st.Tags[t] == 0 {
			continue
		}
		rows = append(rows, []string{t.Char(), t.String(), strconv.Itoa(st.Tags[t])})
		tags = append(tags, t)
	}
	if len(rows) > 0 {
		out.Table([]string{"TAG", "STATE", "MODS"}, rows, tags)
	}
	return nil
}
