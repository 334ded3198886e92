package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Path is a single node of the Graph-of-Thoughts exploration tree.
type Path struct {
	PathID           string
	SessionID        string
	ParentID         sql.NullString
	NodeType         string
	Content          string
	Summary          string
	QualityScore     float64
	CompressionRatio float64
	Status           string
	Depth            int
	CreatedAt        string
	UpdatedAt        string
}

// Operation is an audit record of a single GoT engine transition.
type Operation struct {
	OperationID   string
	SessionID     string
	OperationType string
	InputNodes    []string
	OutputNodes   []string
	Parameters    map[string]any
	CreatedAt     string
}

// InsertPath stores a new path node.
func (s *Store) InsertPath(p Path) error {
	_, err := s.db.Exec(`
		INSERT INTO got_paths
			(path_id, session_id, parent_id, node_type, content, summary,
			 quality_score, compression_ratio, status, depth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PathID, p.SessionID, p.ParentID, p.NodeType, p.Content, p.Summary,
		p.QualityScore, p.CompressionRatio, p.Status, p.Depth, nowStamp(), nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert path: %w", err)
	}
	return nil
}

// GetPath retrieves a single path by ID.
func (s *Store) GetPath(pathID string) (*Path, error) {
	row := s.db.QueryRow(`
		SELECT path_id, session_id, parent_id, node_type, content, summary,
		       quality_score, compression_ratio, status, depth, created_at, updated_at
		FROM got_paths WHERE path_id = ?
	`, pathID)
	p, err := scanPath(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: get path %s: %w", pathID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get path: %w", err)
	}
	return p, nil
}

// ListPaths returns every path belonging to a session, oldest first.
func (s *Store) ListPaths(sessionID string) ([]Path, error) {
	rows, err := s.db.Query(`
		SELECT path_id, session_id, parent_id, node_type, content, summary,
		       quality_score, compression_ratio, status, depth, created_at, updated_at
		FROM got_paths WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list paths: %w", err)
	}
	defer rows.Close()
	return scanPaths(rows)
}

// ListFrontier returns the non-pruned, non-aggregated, non-refined leaves
// currently eligible for expansion or aggregation.
func (s *Store) ListFrontier(sessionID string) ([]Path, error) {
	rows, err := s.db.Query(`
		SELECT path_id, session_id, parent_id, node_type, content, summary,
		       quality_score, compression_ratio, status, depth, created_at, updated_at
		FROM got_paths
		WHERE session_id = ? AND status NOT IN ('pruned', 'aggregated', 'refined')
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list frontier: %w", err)
	}
	defer rows.Close()
	return scanPaths(rows)
}

// ListPathsByStatus filters paths by one status within a session.
func (s *Store) ListPathsByStatus(sessionID, status string) ([]Path, error) {
	rows, err := s.db.Query(`
		SELECT path_id, session_id, parent_id, node_type, content, summary,
		       quality_score, compression_ratio, status, depth, created_at, updated_at
		FROM got_paths WHERE session_id = ? AND status = ? ORDER BY created_at ASC
	`, sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("store: list paths by status: %w", err)
	}
	defer rows.Close()
	return scanPaths(rows)
}

// UpdatePathStatus transitions a path to a new status.
func (s *Store) UpdatePathStatus(pathID, status string) error {
	res, err := s.db.Exec(`UPDATE got_paths SET status = ?, updated_at = ? WHERE path_id = ?`,
		status, nowStamp(), pathID)
	if err != nil {
		return fmt.Errorf("store: update path status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: update path status %s: %w", pathID, ErrNotFound)
	}
	return nil
}

// UpdatePathContent sets content (and optionally summary/compression_ratio)
// when an executor delivers results for a completed path.
func (s *Store) UpdatePathContent(pathID, content, summary string, compressionRatio float64) error {
	if compressionRatio <= 0 {
		compressionRatio = 1.0
	}
	res, err := s.db.Exec(`
		UPDATE got_paths SET content = ?, summary = ?, compression_ratio = ?, updated_at = ?
		WHERE path_id = ?
	`, content, summary, compressionRatio, nowStamp(), pathID)
	if err != nil {
		return fmt.Errorf("store: update path content: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: update path content %s: %w", pathID, ErrNotFound)
	}
	return nil
}

// SetPathScore records the quality score computed by the scoring rubric.
// This is the only path by which quality_score changes: a fresh Score
// operation, never an arbitrary field update.
func (s *Store) SetPathScore(pathID string, score float64) error {
	res, err := s.db.Exec(`UPDATE got_paths SET quality_score = ?, updated_at = ? WHERE path_id = ?`,
		score, nowStamp(), pathID)
	if err != nil {
		return fmt.Errorf("store: set path score: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: set path score %s: %w", pathID, ErrNotFound)
	}
	return nil
}

// HasRoot reports whether a session already has a root path. A session
// may have at most one root.
func (s *Store) HasRoot(sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM got_paths WHERE session_id = ? AND node_type = 'root'`, sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: has root: %w", err)
	}
	return count > 0, nil
}

// InsertOperation records an audit entry for a GoT engine transition.
func (s *Store) InsertOperation(op Operation) error {
	inputJSON, _ := json.Marshal(op.InputNodes)
	outputJSON, _ := json.Marshal(op.OutputNodes)
	paramsJSON, _ := json.Marshal(op.Parameters)

	_, err := s.db.Exec(`
		INSERT INTO got_operations (operation_id, session_id, operation_type, input_nodes, output_nodes, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, op.OperationID, op.SessionID, op.OperationType, string(inputJSON), string(outputJSON), string(paramsJSON), nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert operation: %w", err)
	}
	return nil
}

// ListOperations returns every recorded operation for a session, oldest first.
func (s *Store) ListOperations(sessionID string) ([]Operation, error) {
	rows, err := s.db.Query(`
		SELECT operation_id, session_id, operation_type, input_nodes, output_nodes, parameters, created_at
		FROM got_operations WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var inputJSON, outputJSON, paramsJSON string
		if err := rows.Scan(&op.OperationID, &op.SessionID, &op.OperationType, &inputJSON, &outputJSON, &paramsJSON, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan operation: %w", err)
		}
		json.Unmarshal([]byte(inputJSON), &op.InputNodes)
		json.Unmarshal([]byte(outputJSON), &op.OutputNodes)
		json.Unmarshal([]byte(paramsJSON), &op.Parameters)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPath(row rowScanner) (*Path, error) {
	var p Path
	err := row.Scan(
		&p.PathID, &p.SessionID, &p.ParentID, &p.NodeType, &p.Content, &p.Summary,
		&p.QualityScore, &p.CompressionRatio, &p.Status, &p.Depth, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPaths(rows *sql.Rows) ([]Path, error) {
	var paths []Path
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan path: %w", err)
		}
		paths = append(paths, *p)
	}
	return paths, rows.Err()
}
