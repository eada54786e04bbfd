package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"imagededup/logging"

	_ "github.com/mattn/go-sqlite3"
)

// JournalFilename is the journal database file kept inside the quarantine
// directory
const JournalFilename = "relocations.db"

// Journal is a per-quarantine SQLite log of every relocation the engine
// performs. It exists to make deduplication reversible: the undo command
// replays a session's moves backwards. It is not an index of image hashes;
// every run rescans from scratch.
type Journal struct {
	db *sql.DB
}

// Move is one journaled relocation of an image (and optionally its sidecar)
type Move struct {
	ID                 int64
	SessionID          string
	Layer              string
	Reason             string
	Source             string
	Destination        string
	SidecarSource      string
	SidecarDestination string
	Bytes              int64
	MovedAt            string
}

// Open opens (or creates) the journal inside the given quarantine directory
func Open(quarantineDir string) (*Journal, error) {
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create quarantine directory %s: %v", quarantineDir, err)
	}

	dbPath := filepath.Join(quarantineDir, JournalFilename)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open journal %s: %v", dbPath, err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS moves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		layer TEXT NOT NULL,
		reason TEXT,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		sidecar_source TEXT,
		sidecar_destination TEXT,
		bytes INTEGER,
		moved_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session ON moves(session_id);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize journal schema: %v", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordMove appends one relocation to the journal
func (j *Journal) RecordMove(m Move) error {
	stmt, err := j.db.Prepare(`
		INSERT INTO moves (
			session_id, layer, reason, source, destination,
			sidecar_source, sidecar_destination, bytes, moved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare journal insert for %s: %v", m.Source, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		m.SessionID,
		m.Layer,
		m.Reason,
		m.Source,
		m.Destination,
		m.SidecarSource,
		m.SidecarDestination,
		m.Bytes,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cannot journal move of %s: %v", m.Source, err)
	}

	return nil
}

// LastSession returns the most recently journaled session ID
func (j *Journal) LastSession() (string, error) {
	var sessionID string
	err := j.db.QueryRow("SELECT session_id FROM moves ORDER BY id DESC LIMIT 1").Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("journal is empty")
	}
	if err != nil {
		return "", fmt.Errorf("cannot read journal: %v", err)
	}
	return sessionID, nil
}

// MovesForSession returns a session's moves in the order they were applied
func (j *Journal) MovesForSession(sessionID string) ([]Move, error) {
	rows, err := j.db.Query(`
		SELECT id, session_id, layer, reason, source, destination,
		       sidecar_source, sidecar_destination, bytes, moved_at
		FROM moves WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("cannot query session %s: %v", sessionID, err)
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		var m Move
		err := rows.Scan(&m.ID, &m.SessionID, &m.Layer, &m.Reason, &m.Source, &m.Destination,
			&m.SidecarSource, &m.SidecarDestination, &m.Bytes, &m.MovedAt)
		if err != nil {
			return nil, fmt.Errorf("cannot scan journal row: %v", err)
		}
		moves = append(moves, m)
	}

	return moves, rows.Err()
}

// Revert moves a session's files back to their original locations, newest
// move first, deleting each journal row as its files are restored. Failures
// are reported through onError and leave their rows in place so a later
// revert can retry.
func (j *Journal) Revert(sessionID string, onError func(Move, error)) (int, error) {
	moves, err := j.MovesForSession(sessionID)
	if err != nil {
		return 0, err
	}
	if len(moves) == 0 {
		return 0, fmt.Errorf("no journaled moves for session %s", sessionID)
	}

	restored := 0
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]

		if err := restoreFile(m.Destination, m.Source); err != nil {
			if onError != nil {
				onError(m, err)
			}
			continue
		}
		if m.SidecarDestination != "" {
			if err := restoreFile(m.SidecarDestination, m.SidecarSource); err != nil {
				// The image is already back; surface the orphaned
				// sidecar but keep going
				if onError != nil {
					onError(m, err)
				}
			}
		}

		if _, err := j.db.Exec("DELETE FROM moves WHERE id = ?", m.ID); err != nil {
			logging.LogWarning("Restored %s but could not clear journal row %d: %v", m.Source, m.ID, err)
		}
		restored++
	}

	return restored, nil
}

// restoreFile moves a quarantined file back, refusing to overwrite anything
// that has appeared at the original location since
func restoreFile(from, to string) error {
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("original location %s is occupied", to)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("cannot restore %s to %s: %v", from, to, err)
	}
	return nil
}
