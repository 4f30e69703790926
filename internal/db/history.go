package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// HistoryDatabase is the audit log of every console command issued
// through this tool, whatever surface it came from.
type HistoryDatabase struct {
	db *Database
}

// HistoryEntry is one recorded command exchange.
type HistoryEntry struct {
	ID        int       `json:"id"`
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	Source    string    `json:"source"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// Command sources recorded in the audit log.
const (
	SourceCLI       = "cli"
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
)

// NewHistoryDatabase creates and initializes the history database.
func NewHistoryDatabase(dbPath string) (*HistoryDatabase, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	hdb := &HistoryDatabase{db: database}

	if err := hdb.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return hdb, nil
}

// migrate creates the database schema. The statements run in one
// transaction so a half-created schema never survives a crash.
func (hdb *HistoryDatabase) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS command_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'cli',
			success INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created_at ON command_history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_source ON command_history(source)`,
	}

	err := hdb.db.Transaction(func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("history database schema migrated")
	return nil
}

// Record stores one command exchange. The response is truncated so a
// pathological server reply cannot bloat the log.
func (hdb *HistoryDatabase) Record(command, response, source string, success bool) error {
	const maxStoredResponse = 4096
	if len(response) > maxStoredResponse {
		response = response[:maxStoredResponse]
	}

	_, err := hdb.db.Exec(
		"INSERT INTO command_history (command, response, source, success) VALUES (?, ?, ?, ?)",
		command, response, source, success)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (hdb *HistoryDatabase) Recent(n int) ([]HistoryEntry, error) {
	rows, err := hdb.db.Query(
		"SELECT id, command, response, source, success, created_at FROM command_history ORDER BY id DESC LIMIT ?",
		n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Command, &e.Response, &e.Source, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of recorded entries.
func (hdb *HistoryDatabase) Count() (int, error) {
	var count int
	err := hdb.db.QueryRow("SELECT COUNT(*) FROM command_history").Scan(&count)
	return count, err
}

// PruneOlderThan removes entries older than the given number of days
// and returns how many were deleted.
func (hdb *HistoryDatabase) PruneOlderThan(days int) (int64, error) {
	res, err := hdb.db.Exec(
		"DELETE FROM command_history WHERE created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, err
	}

	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		log.Debug().Int64("deleted", deleted).Msg("pruned command history")
	}
	return deleted, nil
}

// Close closes the database.
func (hdb *HistoryDatabase) Close() error {
	return hdb.db.Close()
}
