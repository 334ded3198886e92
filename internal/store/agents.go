package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Agent is a worker registration inside a session.
type Agent struct {
	AgentID          string         `json:"agent_id"`
	SessionID        string         `json:"session_id"`
	AgentType        string         `json:"agent_type"`
	AgentRole        sql.NullString `json:"agent_role"`
	FocusDescription sql.NullString `json:"focus_description"`
	SearchQueries    sql.NullString `json:"search_queries"`
	Status           string         `json:"status"`
	OutputFile       sql.NullString `json:"output_file"`
	TokenUsage       int            `json:"token_usage"`
	ErrorMessage     sql.NullString `json:"error_message"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
	CompletedAt      sql.NullString `json:"completed_at"`
}

// RegisterAgent inserts a new agent in the deploying state.
func (s *Store) RegisterAgent(sessionID, agentID, agentType, role, focus string, queries []string) (*Agent, error) {
	var queriesJSON []byte
	if len(queries) > 0 {
		queriesJSON, _ = json.Marshal(queries)
	}

	_, err := s.db.Exec(`
		INSERT INTO agents (agent_id, session_id, agent_type, agent_role, focus_description, search_queries, status)
		VALUES (?, ?, ?, ?, ?, ?, 'deploying')
	`, agentID, sessionID, agentType, nullIfEmpty(role), nullIfEmpty(focus), nullIfEmpty(string(queriesJSON)))
	if err != nil {
		return nil, fmt.Errorf("store: register agent: %w", err)
	}
	return s.GetAgent(agentID)
}

// GetAgent retrieves a single agent by ID.
func (s *Store) GetAgent(agentID string) (*Agent, error) {
	row := s.db.QueryRow(`
		SELECT agent_id, session_id, agent_type, agent_role, focus_description, search_queries,
		       status, output_file, token_usage, error_message, created_at, updated_at, completed_at
		FROM agents WHERE agent_id = ?
	`, agentID)

	var a Agent
	err := row.Scan(
		&a.AgentID, &a.SessionID, &a.AgentType, &a.AgentRole, &a.FocusDescription, &a.SearchQueries,
		&a.Status, &a.OutputFile, &a.TokenUsage, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: get agent %s: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent: %w", err)
	}
	return &a, nil
}

// UpdateAgentStatus updates status and optional output/error fields;
// terminal statuses (completed, failed, timeout) also set completed_at.
func (s *Store) UpdateAgentStatus(agentID, status, outputFile, errorMessage string) error {
	query := `UPDATE agents SET status = ?, updated_at = ?`
	args := []any{status, nowStamp()}

	if outputFile != "" {
		query += `, output_file = ?`
		args = append(args, outputFile)
	}
	if errorMessage != "" {
		query += `, error_message = ?`
		args = append(args, errorMessage)
	}
	if status == "completed" || status == "failed" || status == "timeout" {
		query += `, completed_at = ?`
		args = append(args, nowStamp())
	}
	query += ` WHERE agent_id = ?`
	args = append(args, agentID)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("store: update agent status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("store: update agent status %s: %w", agentID, ErrNotFound)
	}
	return nil
}

// GetActiveAgents returns agents still deploying or running, oldest first.
func (s *Store) GetActiveAgents(sessionID string) ([]Agent, error) {
	rows, err := s.db.Query(`
		SELECT agent_id, session_id, agent_type, agent_role, focus_description, search_queries,
		       status, output_file, token_usage, error_message, created_at, updated_at, completed_at
		FROM agents
		WHERE session_id = ? AND status IN ('deploying', 'running')
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: get active agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(
			&a.AgentID, &a.SessionID, &a.AgentType, &a.AgentRole, &a.FocusDescription, &a.SearchQueries,
			&a.Status, &a.OutputFile, &a.TokenUsage, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
