package store

import (
	"fmt"
	"time"
)

// cascadeTables lists child tables in delete order, innermost-dependent
// first, so that no foreign key ever outlives its parent despite the
// schema carrying no FK constraints of its own.
var cascadeTables = []string{
	"fact_conflicts",
	"citations",
	"relationships",
	"entities",
	"facts",
	"got_operations",
	"got_paths",
	"checkpoints",
	"session_metrics",
	"activity_log",
	"ingest_queue",
	"agents",
}

// DeleteSessionCascade removes a session and every record that references
// it, in dependency order, within a single transaction. There are no FK
// constraints in the schema, so ordering is enforced here at the
// application layer rather than left to the database.
func (s *Store) DeleteSessionCascade(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: delete session cascade: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range cascadeTables {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, table), sessionID); err != nil {
			return fmt.Errorf("store: delete session cascade: %s: %w", table, err)
		}
	}

	res, err := tx.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete session cascade: sessions: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: delete session cascade %s: %w", sessionID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: delete session cascade: commit: %w", err)
	}
	return nil
}

// orphanStaleAfter bounds how long a completed or failed session's records
// are kept before CleanupOrphanRecords considers them eligible for removal.
const orphanStaleAfter = 30 * 24 * time.Hour

// CleanupOrphanRecords deletes records belonging to sessions that reached a
// terminal status more than orphanStaleAfter ago. It is driven by a
// recurring schedule rather than invoked per-request, and returns the
// number of sessions it swept.
func (s *Store) CleanupOrphanRecords() (int, error) {
	cutoff := time.Now().UTC().Add(-orphanStaleAfter).Format("2006-01-02T15:04:05.000Z")

	rows, err := s.db.Query(`
		SELECT session_id FROM sessions
		WHERE status IN ('completed', 'failed') AND completed_at IS NOT NULL AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup orphan records: select: %w", err)
	}
	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: cleanup orphan records: scan: %w", err)
		}
		sessionIDs = append(sessionIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("store: cleanup orphan records: %w", err)
	}

	for _, id := range sessionIDs {
		if err := s.DeleteSessionCascade(id); err != nil {
			return 0, fmt.Errorf("store: cleanup orphan records: %w", err)
		}
	}
	return len(sessionIDs), nil
}
