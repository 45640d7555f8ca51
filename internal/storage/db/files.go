package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// FileOwner is the mod whose link currently sits at a destination
type FileOwner struct {
	Mod    string
	Source string
}

// DeployedFile is one ledger row
type DeployedFile struct {
	Destination string
	Mod         string
	Source      string
}

// SaveDeployedFile records that a link at destination belongs to mod.
// An existing row is taken over, since the later mod overrules the earlier one.
func (d *DB) SaveDeployedFile(gameDir, destination, mod, source string) error {
	_, err := d.Exec(`
		INSERT INTO deployed_files (game_dir, destination, mod, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game_dir, destination) DO UPDATE SET
			mod = excluded.mod,
			source = excluded.source,
			deployed_at = CURRENT_TIMESTAMP
	`, gameDir, destination, mod, source)
	if err != nil {
		return fmt.Errorf("saving deployed file: %w", err)
	}
	return nil
}

// GetFileOwner returns the mod recorded for a destination, or nil
func (d *DB) GetFileOwner(gameDir, destination string) (*FileOwner, error) {
	var owner FileOwner
	err := d.QueryRow(`
		SELECT mod, source FROM deployed_files
		WHERE game_dir = ? AND destination = ?
	`, gameDir, destination).Scan(&owner.Mod, &owner.Source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting file owner: %w", err)
	}
	return &owner, nil
}

// DeleteDeployedFile forgets a destination, but only if mod still owns it
func (d *DB) DeleteDeployedFile(gameDir, destination, mod string) error {
	_, err := d.Exec(`
		DELETE FROM deployed_files
		WHERE game_dir = ? AND destination = ? AND mod = ?
	`, gameDir, destination, mod)
	if err != nil {
		return fmt.Errorf("deleting deployed file: %w", err)
	}
	return nil
}

// DeleteDeployedFiles removes every record for a mod
func (d *DB) DeleteDeployedFiles(gameDir, mod string) error {
	_, err := d.Exec(`
		DELETE FROM deployed_files
		WHERE game_dir = ? AND mod = ?
	`, gameDir, mod)
	if err != nil {
		return fmt.Errorf("deleting deployed files: %w", err)
	}
	return nil
}

// GetDeployedFilesForMod returns the destinations a mod currently owns
func (d *DB) GetDeployedFilesForMod(gameDir, mod string) ([]string, error) {
	rows, err := d.Query(`
		SELECT destination FROM deployed_files
		WHERE game_dir = ? AND mod = ?
		ORDER BY destination
	`, gameDir, mod)
	if err != nil {
		return nil, fmt.Errorf("querying deployed files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// ListDeployedFiles returns every record for a game directory
func (d *DB) ListDeployedFiles(gameDir string) ([]DeployedFile, error) {
	rows, err := d.Query(`
		SELECT destination, mod, source FROM deployed_files
		WHERE game_dir = ?
		ORDER BY destination
	`, gameDir)
	if err != nil {
		return nil, fmt.Errorf("listing deployed files: %w", err)
	}
	defer rows.Close()

	var files []DeployedFile
	for rows.Next() {
		var f DeployedFile
		if err := rows.Scan(&f.Destination, &f.Mod, &f.Source); err != nil {
			return nil, fmt.Errorf("scanning deployed file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// OwnersOf returns the current owner of each of paths that is owned by a mod other than mod
func (d *DB) OwnersOf(gameDir, mod string, paths []string) ([]DeployedFile, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(paths))
	args := make([]any, 0, len(paths)+2)
	args = append(args, gameDir, mod)
	for i, p := range paths {
		placeholders[i] = "?"
		args = append(args, p)
	}

	query := fmt.Sprintf(`
		SELECT destination, mod, source FROM deployed_files
		WHERE game_dir = ? AND mod != ? AND destination IN (%s)
		ORDER BY destination
	`, strings.Join(placeholders, ","))

	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying owners: %w", err)
	}
	defer rows.Close()

	var owners []DeployedFile
	for rows.Next() {
		var f DeployedFile
		if err := rows.Scan(&f.Destination, &f.Mod, &f.Source); err != nil {
			return nil, fmt.Errorf("scanning owner: %w", err)
		}
		owners = append(owners, f)
	}
	return owners, rows.Err()
}
