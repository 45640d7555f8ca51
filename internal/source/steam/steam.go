// Package steam locates a Steam game install and its Proton prefix.
package steam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// StarfieldAppID is Starfield's Steam application id
const StarfieldAppID = "1716740"

// ErrNotInstalled is returned when no Steam library holds the game
var ErrNotInstalled = errors.New("game not found in any steam library")

// Install describes where Steam put a game
type Install struct {
	AppID     string
	SteamDir  string // Steam root the library was found through
	Library   string
	GameDir   string // steamapps/common/<installdir>
	CompatDir string // steamapps/compatdata/<appid>, empty when absent
}

// Roots returns candidate Steam roots that exist, in search order
func Roots() []string {
	var candidates []string
	if p := os.Getenv("STEAM_ROOT"); p != "" {
		candidates = append(candidates, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".steam", "steam"),
			filepath.Join(home, ".local", "share", "Steam"),
		)
	}

	var roots []string
	seen := map[string]bool{}
	for _, p := range candidates {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil || seen[resolved] {
			continue
		}
		if info, err := os.Stat(resolved); err == nil && info.IsDir() {
			seen[resolved] = true
			roots = append(roots, p)
		}
	}
	return roots
}

// Libraries lists the library folders registered under a Steam root. A root
// without libraryfolders.vdf is its own only library.
func Libraries(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, "steamapps", "libraryfolders.vdf"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{root}, nil
		}
		return nil, fmt.Errorf("reading libraryfolders: %w", err)
	}
	defer f.Close()

	kv, err := DecodeKeyValues(f)
	if err != nil {
		return nil, fmt.Errorf("parsing libraryfolders: %w", err)
	}
	folders := kv.Block("libraryfolders")
	if folders == nil {
		return []string{root}, nil
	}

	// Entries are keyed "0", "1", ... and must stay in that order
	var libs []string
	for i := 0; ; i++ {
		entry, ok := folders[strconv.Itoa(i)]
		if !ok {
			break
		}
		switch v := entry.(type) {
		case KeyValues:
			if p := v.String("path"); p != "" {
				libs = append(libs, p)
			}
		case string:
			libs = append(libs, v)
		}
	}
	if len(libs) == 0 {
		return []string{root}, nil
	}
	return libs, nil
}

// Locate searches every Steam library for appID
func Locate(appID string) (*Install, error) {
	return LocateIn(Roots(), appID)
}

// LocateIn searches the libraries of the given Steam roots for appID
func LocateIn(roots []string, appID string) (*Install, error) {
	for _, root := range roots {
		libs, err := Libraries(root)
		if err != nil {
			continue
		}
		for _, lib := range libs {
			if inst, ok := probe(root, lib, appID); ok {
				return inst, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: app %s", ErrNotInstalled, appID)
}

func probe(root, lib, appID string) (*Install, bool) {
	steamapps := filepath.Join(lib, "steamapps")
	f, err := os.Open(filepath.Join(steamapps, "appmanifest_"+appID+".acf"))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	kv, err := DecodeKeyValues(f)
	if err != nil {
		return nil, false
	}
	dir := kv.Block("AppState").String("installdir")
	if dir == "" {
		return nil, false
	}
	gameDir := filepath.Join(steamapps, "common", dir)
	if info, err := os.Stat(gameDir); err != nil || !info.IsDir() {
		return nil, false
	}

	inst := &Install{AppID: appID, SteamDir: root, Library: lib, GameDir: gameDir}
	compat := filepath.Join(steamapps, "compatdata", appID)
	if info, err := os.Stat(compat); err == nil && info.IsDir() {
		inst.CompatDir = compat
	}
	return inst, true
}
