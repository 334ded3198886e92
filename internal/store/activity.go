package store

import (
	"database/sql"
	"fmt"
)

// ActivityLogEntry records one notable event in a session's lifecycle.
type ActivityLogEntry struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Phase     int            `json:"phase"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	AgentID   sql.NullString `json:"agent_id"`
	Details   sql.NullString `json:"details"`
	CreatedAt string         `json:"created_at"`
}

// Checkpoint is a named, restorable snapshot marker for a session.
type Checkpoint struct {
	ID             int64  `json:"id"`
	SessionID      string `json:"session_id"`
	PhaseNumber    int    `json:"phase_number"`
	CheckpointType string `json:"checkpoint_type"`
	StateSnapshot  string `json:"state_snapshot"`
	CreatedAt      string `json:"created_at"`
}

// IngestQueueItem is one unit of work queued for the auto-process pipeline.
type IngestQueueItem struct {
	QueueID      string         `json:"queue_id"`
	SessionID    string         `json:"session_id"`
	Payload      string         `json:"payload"`
	SourceURL    sql.NullString `json:"source_url"`
	ContentType  string         `json:"content_type"`
	Status       string         `json:"status"`
	ErrorMessage sql.NullString `json:"error_message"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// SessionMetric is a single named, timestamped numeric observation.
type SessionMetric struct {
	ID          int64   `json:"id"`
	SessionID   string  `json:"session_id"`
	MetricName  string  `json:"metric_name"`
	MetricValue float64 `json:"metric_value"`
	RecordedAt  string  `json:"recorded_at"`
}

// InsertActivityLog appends one event to the session's activity log.
func (s *Store) InsertActivityLog(e ActivityLogEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO activity_log (session_id, phase, event_type, message, agent_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.Phase, e.EventType, e.Message, e.AgentID, e.Details, nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert activity log: %w", err)
	}
	return nil
}

// ListActivityLog returns every event recorded for a session, oldest first.
func (s *Store) ListActivityLog(sessionID string) ([]ActivityLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, phase, event_type, message, agent_id, details, created_at
		FROM activity_log WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list activity log: %w", err)
	}
	defer rows.Close()

	var entries []ActivityLogEntry
	for rows.Next() {
		var e ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Phase, &e.EventType, &e.Message, &e.AgentID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan activity log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertCheckpoint records a named snapshot marker.
func (s *Store) InsertCheckpoint(c Checkpoint) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (session_id, phase_number, checkpoint_type, state_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.SessionID, c.PhaseNumber, c.CheckpointType, c.StateSnapshot, nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns every checkpoint recorded for a session, oldest first.
func (s *Store) ListCheckpoints(sessionID string) ([]Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, phase_number, checkpoint_type, state_snapshot, created_at
		FROM checkpoints WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []Checkpoint
	for rows.Next() {
		var c Checkpoint
		if err := rows.Scan(&c.ID, &c.SessionID, &c.PhaseNumber, &c.CheckpointType, &c.StateSnapshot, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, c)
	}
	return checkpoints, rows.Err()
}

// EnqueueIngestItem adds one payload to the ingest queue in the pending state.
func (s *Store) EnqueueIngestItem(item IngestQueueItem) error {
	contentType := item.ContentType
	if contentType == "" {
		contentType = "text/markdown"
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_queue (queue_id, session_id, payload, source_url, content_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)
	`, item.QueueID, item.SessionID, item.Payload, item.SourceURL, contentType, nowStamp(), nowStamp())
	if err != nil {
		return fmt.Errorf("store: enqueue ingest item: %w", err)
	}
	return nil
}

// ListPendingIngestItems returns queued items not yet processed, oldest first.
func (s *Store) ListPendingIngestItems(sessionID string) ([]IngestQueueItem, error) {
	rows, err := s.db.Query(`
		SELECT queue_id, session_id, payload, source_url, content_type, status, error_message, created_at, updated_at
		FROM ingest_queue WHERE session_id = ? AND status = 'pending' ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list pending ingest items: %w", err)
	}
	defer rows.Close()
	return scanIngestItems(rows)
}

// MarkIngestItemProcessed sets a queue item's status (process_raw uses
// processing, completed and failed) and its error message.
func (s *Store) MarkIngestItemProcessed(queueID, status, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE ingest_queue SET status = ?, error_message = ?, updated_at = ? WHERE queue_id = ?
	`, status, nullIfEmpty(errMsg), nowStamp(), queueID)
	if err != nil {
		return fmt.Errorf("store: mark ingest item processed: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: mark ingest item processed %s: %w", queueID, ErrNotFound)
	}
	return nil
}

func scanIngestItems(rows *sql.Rows) ([]IngestQueueItem, error) {
	var items []IngestQueueItem
	for rows.Next() {
		var it IngestQueueItem
		if err := rows.Scan(&it.QueueID, &it.SessionID, &it.Payload, &it.SourceURL, &it.ContentType,
			&it.Status, &it.ErrorMessage, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan ingest item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RecordSessionMetric appends one named numeric observation.
func (s *Store) RecordSessionMetric(m SessionMetric) error {
	_, err := s.db.Exec(`
		INSERT INTO session_metrics (session_id, metric_name, metric_value, recorded_at)
		VALUES (?, ?, ?, ?)
	`, m.SessionID, m.MetricName, m.MetricValue, nowStamp())
	if err != nil {
		return fmt.Errorf("store: record session metric: %w", err)
	}
	return nil
}

// ListSessionMetrics returns every recorded metric for a session, oldest first.
func (s *Store) ListSessionMetrics(sessionID string) ([]SessionMetric, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, metric_name, metric_value, recorded_at
		FROM session_metrics WHERE session_id = ? ORDER BY recorded_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list session metrics: %w", err)
	}
	defer rows.Close()

	var metrics []SessionMetric
	for rows.Next() {
		var m SessionMetric
		if err := rows.Scan(&m.ID, &m.SessionID, &m.MetricName, &m.MetricValue, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("store: scan session metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
