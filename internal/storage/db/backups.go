package db

import "fmt"

// Backup is a foreign file that was renamed aside
type Backup struct {
	Destination string
	Backup      string
}

// SaveBackup records that the file at destination was moved to backup
func (d *DB) SaveBackup(gameDir, destination, backup string) error {
	_, err := d.Exec(`
		INSERT INTO backups (game_dir, destination, backup) VALUES (?, ?, ?)
		ON CONFLICT(game_dir, destination) DO UPDATE SET backup = excluded.backup
	`, gameDir, destination, backup)
	if err != nil {
		return fmt.Errorf("saving backup: %w", err)
	}
	return nil
}

// DeleteBackup forgets a restored backup
func (d *DB) DeleteBackup(gameDir, destination string) error {
	if _, err := d.Exec(`DELETE FROM backups WHERE game_dir = ? AND destination = ?`, gameDir, destination); err != nil {
		return fmt.Errorf("deleting backup: %w", err)
	}
	return nil
}

// ListBackups returns every recorded backup for a game directory
func (d *DB) ListBackups(gameDir string) ([]Backup, error) {
	rows, err := d.Query(`
		SELECT destination, backup FROM backups
		WHERE game_dir = ?
		ORDER BY destination
	`, gameDir)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	var backups []Backup
	for rows.Next() {
		var b Backup
		if err := rows.Scan(&b.Destination, &b.Backup); err != nil {
			return nil, fmt.Errorf("scanning backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}
