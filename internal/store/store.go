// Package store implements the embedded relational persistence layer (C1).
//
// A single SQLite database, opened in WAL mode, holds every table the
// research orchestration server touches: sessions, agents, GoT paths and
// operations, extracted facts/entities/relationships/citations, conflicts,
// the activity log, checkpoints, the ingest queue, and opportunistic
// metrics. Schema evolution is tracked with the database's own
// `user_version` pragma: on Open, if the stored version is behind the
// package's target, the full embedded DDL (all statements
// `CREATE TABLE IF NOT EXISTS`, so idempotent) runs and the version is
// bumped in the same transaction.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaVersion is the target user_version. Bump it (and append an
// additive ALTER TABLE migration below) whenever tables or columns change.
const schemaVersion = 1

// Store provides SQLite-backed persistence for the research orchestrator.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath, enabling WAL mode and a
// busy timeout so concurrent tool-call handlers don't trip over SQLite's
// writer lock, then ensures the schema is current.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for packages (the GoT engine, extraction
// operators) that need read-only point-in-time snapshots or transactions
// spanning more than one of this package's helpers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate brings a database from whatever user_version it carries up to
// schemaVersion. Failure here is fatal: the server refuses to start rather
// than run against a stale or partially-applied schema.
func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("bump user_version: %w", err)
	}
	return tx.Commit()
}

// schemaDDL is the full schema for version 1. Every statement is
// IF NOT EXISTS so re-running it against an already-current database is a
// no-op; future versions append ALTER TABLE statements guarded by
// pragma_table_info probes, in the same additive style the rest of the
// pack uses for schema evolution.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id           TEXT PRIMARY KEY,
	research_topic        TEXT NOT NULL,
	research_type         TEXT NOT NULL DEFAULT 'deep',
	output_directory      TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'initializing',
	current_phase         INTEGER NOT NULL DEFAULT 0,
	iteration_count       INTEGER NOT NULL DEFAULT 0,
	confidence            REAL NOT NULL DEFAULT 0.0,
	is_aggregated         INTEGER NOT NULL DEFAULT 0,
	budget_exhausted      INTEGER NOT NULL DEFAULT 0,
	max_iterations        INTEGER NOT NULL DEFAULT 10,
	confidence_threshold  REAL NOT NULL DEFAULT 0.9,
	locked_at             TEXT,
	locked_by             TEXT,
	created_at            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	completed_at          TEXT,
	metadata              TEXT
);

CREATE TABLE IF NOT EXISTS agents (
	agent_id          TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	agent_type        TEXT NOT NULL,
	agent_role        TEXT,
	focus_description TEXT,
	search_queries    TEXT,
	status            TEXT NOT NULL DEFAULT 'deploying',
	output_file       TEXT,
	token_usage       INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT,
	created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	completed_at      TEXT
);
CREATE INDEX IF NOT EXISTS idx_agents_session ON agents(session_id);

CREATE TABLE IF NOT EXISTS got_paths (
	path_id           TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	parent_id         TEXT,
	node_type         TEXT NOT NULL DEFAULT 'generated',
	content           TEXT NOT NULL DEFAULT '',
	summary           TEXT NOT NULL DEFAULT '',
	quality_score     REAL NOT NULL DEFAULT 0,
	compression_ratio REAL NOT NULL DEFAULT 1.0,
	status            TEXT NOT NULL DEFAULT 'pending',
	depth             INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_paths_session ON got_paths(session_id);
CREATE INDEX IF NOT EXISTS idx_paths_parent ON got_paths(parent_id);
CREATE INDEX IF NOT EXISTS idx_paths_status ON got_paths(session_id, status);

CREATE TABLE IF NOT EXISTS got_operations (
	operation_id   TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL,
	operation_type TEXT NOT NULL,
	input_nodes    TEXT NOT NULL DEFAULT '[]',
	output_nodes   TEXT NOT NULL DEFAULT '[]',
	parameters     TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_operations_session ON got_operations(session_id);

CREATE TABLE IF NOT EXISTS facts (
	fact_id         TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	entity          TEXT NOT NULL,
	attribute       TEXT NOT NULL,
	value           TEXT NOT NULL,
	value_type      TEXT NOT NULL DEFAULT 'text',
	value_numeric   REAL,
	unit            TEXT,
	source_url      TEXT,
	source_quality  TEXT,
	confidence      REAL NOT NULL DEFAULT 0.6,
	created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_facts_session ON facts(session_id);
CREATE INDEX IF NOT EXISTS idx_facts_entity_attr ON facts(session_id, entity, attribute);

CREATE TABLE IF NOT EXISTS entities (
	entity_id   TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT '',
	source_url  TEXT,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_entities_session ON entities(session_id);

CREATE TABLE IF NOT EXISTS relationships (
	relationship_id   TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	source_entity     TEXT NOT NULL,
	target_entity     TEXT NOT NULL,
	relationship_type TEXT NOT NULL DEFAULT '',
	evidence          TEXT,
	confidence        REAL NOT NULL DEFAULT 0.7,
	created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_relationships_session ON relationships(session_id);

CREATE TABLE IF NOT EXISTS citations (
	citation_id       TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	author            TEXT,
	title             TEXT,
	source            TEXT,
	url               TEXT,
	publication_date  TEXT,
	quality_rating    TEXT NOT NULL DEFAULT 'C',
	is_valid          INTEGER NOT NULL DEFAULT 1,
	validation_notes  TEXT,
	created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_citations_session ON citations(session_id);

CREATE TABLE IF NOT EXISTS fact_conflicts (
	conflict_id    TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL,
	fact_a_id      TEXT NOT NULL,
	fact_b_id      TEXT NOT NULL,
	conflict_type  TEXT NOT NULL,
	severity       TEXT NOT NULL,
	resolved       INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_conflicts_session ON fact_conflicts(session_id);

CREATE TABLE IF NOT EXISTS activity_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	phase       INTEGER NOT NULL DEFAULT 0,
	event_type  TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	agent_id    TEXT,
	details     TEXT,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_activity_session ON activity_log(session_id);

CREATE TABLE IF NOT EXISTS checkpoints (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	phase_number    INTEGER NOT NULL DEFAULT 0,
	checkpoint_type TEXT NOT NULL,
	state_snapshot  TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id);

CREATE TABLE IF NOT EXISTS ingest_queue (
	queue_id      TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	payload       TEXT NOT NULL,
	source_url    TEXT,
	content_type  TEXT NOT NULL DEFAULT 'text/markdown',
	status        TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_ingest_session ON ingest_queue(session_id, status);

CREATE TABLE IF NOT EXISTS session_metrics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	metric_name   TEXT NOT NULL,
	metric_value  REAL NOT NULL DEFAULT 0,
	recorded_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_metrics_session ON session_metrics(session_id);
`
