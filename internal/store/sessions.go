package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a single research task and its GoT state-machine fields.
type Session struct {
	SessionID           string         `json:"session_id"`
	ResearchTopic       string         `json:"research_topic"`
	ResearchType        string         `json:"research_type"`
	OutputDirectory     string         `json:"output_directory"`
	Status              string         `json:"status"`
	CurrentPhase        int            `json:"current_phase"`
	IterationCount      int            `json:"iteration_count"`
	Confidence          float64        `json:"confidence"`
	IsAggregated        bool           `json:"is_aggregated"`
	BudgetExhausted     bool           `json:"budget_exhausted"`
	MaxIterations       int            `json:"max_iterations"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	LockedAt            sql.NullString `json:"locked_at"`
	LockedBy            sql.NullString `json:"locked_by"`
	CreatedAt           string         `json:"created_at"`
	UpdatedAt           string         `json:"updated_at"`
	CompletedAt         sql.NullString `json:"completed_at"`
	Metadata            sql.NullString `json:"metadata"`
}

// ErrNotFound is returned (wrapped) when a lookup by ID matches no row.
var ErrNotFound = fmt.Errorf("not found")

// LockError reports that a session's advisory lock is held by someone else.
type LockError struct {
	SessionID string
	LockedBy  string
	LockedAt  string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("session %s is locked by %s since %s", e.SessionID, e.LockedBy, e.LockedAt)
}

// lockStaleAfter is the advisory lock staleness window before a lock is
// treated as abandoned and may be stolen by a new locker.
const lockStaleAfter = 5 * time.Minute

var allowedStatuses = map[string]bool{
	"initializing": true,
	"planning":     true,
	"executing":    true,
	"synthesizing": true,
	"validating":   true,
	"completed":    true,
	"failed":       true,
}

// CreateSession inserts a new session with research-type defaults.
func (s *Store) CreateSession(sessionID, topic, outputDir, researchType string) (*Session, error) {
	if researchType == "" {
		researchType = "deep"
	}
	maxIterations := 10
	confidenceThreshold := 0.9
	if researchType == "quick" {
		maxIterations = 3
		confidenceThreshold = 0.7
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions
			(session_id, research_topic, research_type, output_directory, status, current_phase,
			 iteration_count, confidence, is_aggregated, budget_exhausted, max_iterations, confidence_threshold)
		VALUES (?, ?, ?, ?, 'initializing', 0, 0, 0.0, 0, 0, ?, ?)
	`, sessionID, topic, researchType, outputDir, maxIterations, confidenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return s.GetSession(sessionID)
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, research_topic, research_type, output_directory, status, current_phase,
		       iteration_count, confidence, is_aggregated, budget_exhausted,
		       max_iterations, confidence_threshold,
		       locked_at, locked_by, created_at, updated_at, completed_at, metadata
		FROM sessions WHERE session_id = ?
	`, sessionID)

	var sess Session
	var isAgg, budgetEx int
	err := row.Scan(
		&sess.SessionID, &sess.ResearchTopic, &sess.ResearchType, &sess.OutputDirectory,
		&sess.Status, &sess.CurrentPhase, &sess.IterationCount, &sess.Confidence,
		&isAgg, &budgetEx, &sess.MaxIterations, &sess.ConfidenceThreshold,
		&sess.LockedAt, &sess.LockedBy, &sess.CreatedAt, &sess.UpdatedAt, &sess.CompletedAt, &sess.Metadata,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: get session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	sess.IsAggregated = isAgg == 1
	sess.BudgetExhausted = budgetEx == 1
	return &sess, nil
}

// UpdateSessionStatus constrains the status to the allowed set and is
// idempotent when the target status already matches the current one.
func (s *Store) UpdateSessionStatus(sessionID, status string) error {
	if !allowedStatuses[status] {
		return fmt.Errorf("store: update session status: invalid status %q", status)
	}

	var completedAt any
	if status == "completed" || status == "failed" {
		completedAt = nowStamp()
	}

	query := `UPDATE sessions SET status = ?, updated_at = ?`
	args := []any{status, nowStamp()}
	if completedAt != nil {
		query += `, completed_at = ?`
		args = append(args, completedAt)
	}
	query += ` WHERE session_id = ?`
	args = append(args, sessionID)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("store: update session status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: update session status %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// IncrementIteration atomically increments and returns the new iteration
// count in a single statement, relying on SQLite's own serialization.
func (s *Store) IncrementIteration(sessionID string) (int, error) {
	res, err := s.db.Exec(`
		UPDATE sessions SET iteration_count = iteration_count + 1, updated_at = ?
		WHERE session_id = ?
	`, nowStamp(), sessionID)
	if err != nil {
		return 0, fmt.Errorf("store: increment iteration: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return 0, fmt.Errorf("store: increment iteration %s: %w", sessionID, ErrNotFound)
	}

	var count int
	if err := s.db.QueryRow(`SELECT iteration_count FROM sessions WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: read iteration count: %w", err)
	}
	return count, nil
}

// UpdateConfidence clamps the value to [0, 1] before persisting it.
func (s *Store) UpdateConfidence(sessionID string, confidence float64) error {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	_, err := s.db.Exec(`UPDATE sessions SET confidence = ?, updated_at = ? WHERE session_id = ?`,
		confidence, nowStamp(), sessionID)
	if err != nil {
		return fmt.Errorf("store: update confidence: %w", err)
	}
	return nil
}

// SetAggregated records whether the session has produced an aggregation.
func (s *Store) SetAggregated(sessionID string, aggregated bool) error {
	_, err := s.db.Exec(`UPDATE sessions SET is_aggregated = ?, updated_at = ? WHERE session_id = ?`,
		boolInt(aggregated), nowStamp(), sessionID)
	if err != nil {
		return fmt.Errorf("store: set aggregated: %w", err)
	}
	return nil
}

// SetBudgetExhausted records the budget-enforcement hook's verdict.
func (s *Store) SetBudgetExhausted(sessionID string, exhausted bool) error {
	_, err := s.db.Exec(`UPDATE sessions SET budget_exhausted = ?, updated_at = ? WHERE session_id = ?`,
		boolInt(exhausted), nowStamp(), sessionID)
	if err != nil {
		return fmt.Errorf("store: set budget exhausted: %w", err)
	}
	return nil
}

// AcquireLock takes the advisory lock for lockerID, failing only if a
// different, non-stale locker currently holds it. Re-acquiring with the
// same lockerID refreshes locked_at (reentrant).
func (s *Store) AcquireLock(sessionID, lockerID string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}

	if sess.LockedBy.Valid && sess.LockedBy.String != "" && sess.LockedBy.String != lockerID {
		if sess.LockedAt.Valid {
			lockedAt, err := time.Parse(time.RFC3339Nano, sess.LockedAt.String)
			if err == nil && time.Since(lockedAt) < lockStaleAfter {
				return &LockError{SessionID: sessionID, LockedBy: sess.LockedBy.String, LockedAt: sess.LockedAt.String}
			}
		}
	}

	_, err = s.db.Exec(`UPDATE sessions SET locked_at = ?, locked_by = ?, updated_at = ? WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), lockerID, nowStamp(), sessionID)
	if err != nil {
		return fmt.Errorf("store: acquire lock: %w", err)
	}
	return nil
}

// ReleaseLock clears the lock only if it is unheld or held by lockerID.
func (s *Store) ReleaseLock(sessionID, lockerID string) error {
	_, err := s.db.Exec(`
		UPDATE sessions SET locked_at = NULL, locked_by = NULL, updated_at = ?
		WHERE session_id = ? AND (locked_by = ? OR locked_by IS NULL)
	`, nowStamp(), sessionID, lockerID)
	if err != nil {
		return fmt.Errorf("store: release lock: %w", err)
	}
	return nil
}

// IsLocked reports whether a non-stale lock is currently held, and by whom.
func (s *Store) IsLocked(sessionID string) (bool, string, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return false, "", err
	}
	if sess.LockedBy.Valid && sess.LockedBy.String != "" && sess.LockedAt.Valid {
		lockedAt, err := time.Parse(time.RFC3339Nano, sess.LockedAt.String)
		if err == nil && time.Since(lockedAt) < lockStaleAfter {
			return true, sess.LockedBy.String, nil
		}
	}
	return false, "", nil
}

// UpdateCurrentPhase writes the session's advisory phase number. Phase
// transitions are free-form: no progression DAG is validated server-side.
func (s *Store) UpdateCurrentPhase(sessionID string, phase int) error {
	res, err := s.db.Exec(`UPDATE sessions SET current_phase = ?, updated_at = ? WHERE session_id = ?`,
		phase, nowStamp(), sessionID)
	if err != nil {
		return fmt.Errorf("store: update current phase: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: update current phase %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func nowStamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
