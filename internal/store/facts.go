package store

import (
	"database/sql"
	"fmt"
)

// Fact is an atomic extracted claim.
type Fact struct {
	FactID        string
	SessionID     string
	Entity        string
	Attribute     string
	Value         string
	ValueType     string
	ValueNumeric  sql.NullFloat64
	Unit          sql.NullString
	SourceURL     sql.NullString
	SourceQuality sql.NullString
	Confidence    float64
	CreatedAt     string
}

// Entity is an open-vocabulary named entity extracted from text.
type Entity struct {
	EntityID   string
	SessionID  string
	Name       string
	EntityType string
	SourceURL  sql.NullString
	CreatedAt  string
}

// Relationship is a directed edge between two entity names.
type Relationship struct {
	RelationshipID   string
	SessionID        string
	SourceEntity     string
	TargetEntity     string
	RelationshipType string
	Evidence         sql.NullString
	Confidence       float64
	CreatedAt        string
}

// Citation is a single bibliographic reference and its validation state.
type Citation struct {
	CitationID      string
	SessionID       string
	Author          sql.NullString
	Title           sql.NullString
	Source          sql.NullString
	URL             sql.NullString
	PublicationDate sql.NullString
	QualityRating   string
	IsValid         bool
	ValidationNotes sql.NullString
	CreatedAt       string
}

// FactConflict links two facts that disagree.
type FactConflict struct {
	ConflictID   string
	SessionID    string
	FactAID      string
	FactBID      string
	ConflictType string
	Severity     string
	Resolved     bool
	CreatedAt    string
}

// InsertFact stores one extracted fact.
func (s *Store) InsertFact(f Fact) error {
	_, err := s.db.Exec(`
		INSERT INTO facts (fact_id, session_id, entity, attribute, value, value_type,
			value_numeric, unit, source_url, source_quality, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.FactID, f.SessionID, f.Entity, f.Attribute, f.Value, f.ValueType,
		f.ValueNumeric, f.Unit, f.SourceURL, f.SourceQuality, f.Confidence, nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert fact: %w", err)
	}
	return nil
}

// ListFacts returns every fact recorded for a session.
func (s *Store) ListFacts(sessionID string) ([]Fact, error) {
	rows, err := s.db.Query(`
		SELECT fact_id, session_id, entity, attribute, value, value_type,
		       value_numeric, unit, source_url, source_quality, confidence, created_at
		FROM facts WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.FactID, &f.SessionID, &f.Entity, &f.Attribute, &f.Value, &f.ValueType,
			&f.ValueNumeric, &f.Unit, &f.SourceURL, &f.SourceQuality, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// GetFact retrieves a single fact by ID.
func (s *Store) GetFact(factID string) (*Fact, error) {
	row := s.db.QueryRow(`
		SELECT fact_id, session_id, entity, attribute, value, value_type,
		       value_numeric, unit, source_url, source_quality, confidence, created_at
		FROM facts WHERE fact_id = ?
	`, factID)
	var f Fact
	err := row.Scan(&f.FactID, &f.SessionID, &f.Entity, &f.Attribute, &f.Value, &f.ValueType,
		&f.ValueNumeric, &f.Unit, &f.SourceURL, &f.SourceQuality, &f.Confidence, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: get fact %s: %w", factID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get fact: %w", err)
	}
	return &f, nil
}

// InsertEntity stores one extracted entity, deduplicating by (name, type)
// within the session.
func (s *Store) InsertEntity(e Entity) error {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entities WHERE session_id = ? AND name = ? AND entity_type = ?`,
		e.SessionID, e.Name, e.EntityType).Scan(&count)
	if err != nil {
		return fmt.Errorf("store: check entity dedup: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.db.Exec(`
		INSERT INTO entities (entity_id, session_id, name, entity_type, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.EntityID, e.SessionID, e.Name, e.EntityType, e.SourceURL, nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert entity: %w", err)
	}
	return nil
}

// ListEntities returns every entity recorded for a session.
func (s *Store) ListEntities(sessionID string) ([]Entity, error) {
	rows, err := s.db.Query(`
		SELECT entity_id, session_id, name, entity_type, source_url, created_at
		FROM entities WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.EntityID, &e.SessionID, &e.Name, &e.EntityType, &e.SourceURL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// InsertRelationship stores one directed relationship edge.
func (s *Store) InsertRelationship(r Relationship) error {
	_, err := s.db.Exec(`
		INSERT INTO relationships (relationship_id, session_id, source_entity, target_entity,
			relationship_type, evidence, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RelationshipID, r.SessionID, r.SourceEntity, r.TargetEntity, r.RelationshipType, r.Evidence, r.Confidence, nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert relationship: %w", err)
	}
	return nil
}

// ListRelationships returns every relationship recorded for a session.
func (s *Store) ListRelationships(sessionID string) ([]Relationship, error) {
	rows, err := s.db.Query(`
		SELECT relationship_id, session_id, source_entity, target_entity, relationship_type, evidence, confidence, created_at
		FROM relationships WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list relationships: %w", err)
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.RelationshipID, &r.SessionID, &r.SourceEntity, &r.TargetEntity,
			&r.RelationshipType, &r.Evidence, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// InsertCitation stores one citation.
func (s *Store) InsertCitation(c Citation) error {
	_, err := s.db.Exec(`
		INSERT INTO citations (citation_id, session_id, author, title, source, url, publication_date,
			quality_rating, is_valid, validation_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.CitationID, c.SessionID, c.Author, c.Title, c.Source, c.URL, c.PublicationDate,
		c.QualityRating, boolInt(c.IsValid), c.ValidationNotes, nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert citation: %w", err)
	}
	return nil
}

// ListCitations returns every citation recorded for a session.
func (s *Store) ListCitations(sessionID string) ([]Citation, error) {
	rows, err := s.db.Query(`
		SELECT citation_id, session_id, author, title, source, url, publication_date,
		       quality_rating, is_valid, validation_notes, created_at
		FROM citations WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list citations: %w", err)
	}
	defer rows.Close()

	var citations []Citation
	for rows.Next() {
		var c Citation
		var isValid int
		if err := rows.Scan(&c.CitationID, &c.SessionID, &c.Author, &c.Title, &c.Source, &c.URL,
			&c.PublicationDate, &c.QualityRating, &isValid, &c.ValidationNotes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan citation: %w", err)
		}
		c.IsValid = isValid == 1
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// InsertFactConflict stores one detected conflict between two facts.
func (s *Store) InsertFactConflict(c FactConflict) error {
	_, err := s.db.Exec(`
		INSERT INTO fact_conflicts (conflict_id, session_id, fact_a_id, fact_b_id, conflict_type, severity, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ConflictID, c.SessionID, c.FactAID, c.FactBID, c.ConflictType, c.Severity, boolInt(c.Resolved), nowStamp())
	if err != nil {
		return fmt.Errorf("store: insert fact conflict: %w", err)
	}
	return nil
}

// ListFactConflicts returns every conflict recorded for a session.
func (s *Store) ListFactConflicts(sessionID string) ([]FactConflict, error) {
	rows, err := s.db.Query(`
		SELECT conflict_id, session_id, fact_a_id, fact_b_id, conflict_type, severity, resolved, created_at
		FROM fact_conflicts WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list fact conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []FactConflict
	for rows.Next() {
		var c FactConflict
		var resolved int
		if err := rows.Scan(&c.ConflictID, &c.SessionID, &c.FactAID, &c.FactBID, &c.ConflictType,
			&c.Severity, &resolved, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan fact conflict: %w", err)
		}
		c.Resolved = resolved == 1
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}
