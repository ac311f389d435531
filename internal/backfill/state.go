// Package backfill keeps a small local SQLite database recording which
// remote sessions have already been imported, keyed by session id and a
// hash of the raw payload. The backfill CLI uses it to skip sessions whose
// remote data has not changed since the last run; the server never needs
// it because the upsert itself is idempotent.
package backfill

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB tracks imported session payloads to avoid redundant re-imports.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS imported_sessions (
		session_id  TEXT PRIMARY KEY,
		hash        TEXT NOT NULL,
		imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsCurrent checks whether a session was already imported with the same
// payload hash. A changed hash means the remote data was edited and the
// session must be re-imported.
func (s *StateDB) IsCurrent(sessionID, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM imported_sessions WHERE session_id = ? AND hash = ?`,
		sessionID, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkCurrent records that a session's payload was successfully imported.
func (s *StateDB) MarkCurrent(sessionID, hash string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO imported_sessions (session_id, hash) VALUES (?, ?)`,
		sessionID, hash,
	)
	return err
}

// Clear drops all recorded imports. Must be called whenever the main
// store is reset, otherwise the next backfill would skip sessions the
// reset just removed.
func (s *StateDB) Clear() error {
	_, err := s.db.Exec(`DELETE FROM imported_sessions`)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}
