package store

import "fmt"

// migrations run in order inside one transaction. Statements must be
// idempotent; there is no down path.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		sections TEXT NOT NULL DEFAULT '[]',
		board_questions TEXT NOT NULL DEFAULT '[]',
		board_conclusions TEXT NOT NULL DEFAULT '[]',
		board_resolution TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		step TEXT NOT NULL,
		status TEXT NOT NULL,
		entity_count INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_case ON pipeline_runs(case_id, started_at)`,

	`CREATE TABLE IF NOT EXISTS extraction_sessions (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		pass_number INTEGER NOT NULL,
		section TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP,
		cleared INTEGER NOT NULL DEFAULT 0
	)`,
	// one open session per (case, pass, section)
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open
		ON extraction_sessions(case_id, pass_number, section)
		WHERE closed_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS extraction_prompts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES extraction_sessions(id),
		concept_type TEXT NOT NULL,
		prompt_text TEXT NOT NULL,
		raw_response TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_session ON extraction_prompts(session_id)`,

	`CREATE TABLE IF NOT EXISTS candidate_entities (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES extraction_sessions(id),
		extraction_type TEXT NOT NULL,
		label TEXT NOT NULL,
		definition TEXT NOT NULL,
		source_span TEXT NOT NULL DEFAULT '',
		matched_class_uri TEXT,
		status TEXT NOT NULL,
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_session ON candidate_entities(session_id, status)`,

	`CREATE TABLE IF NOT EXISTS decision_points (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		focus_description TEXT NOT NULL,
		decision_question TEXT NOT NULL,
		involved_role_ids TEXT NOT NULL DEFAULT '[]',
		applicable_provision_ids TEXT NOT NULL DEFAULT '[]',
		board_resolution TEXT NOT NULL DEFAULT '',
		board_reasoning TEXT NOT NULL DEFAULT '',
		alignment_score REAL,
		synthesis_method TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_points_case ON decision_points(case_id)`,

	`CREATE TABLE IF NOT EXISTS decision_options (
		id TEXT PRIMARY KEY,
		decision_point_id TEXT NOT NULL REFERENCES decision_points(id),
		description TEXT NOT NULL,
		moral_intensity_score REAL NOT NULL,
		is_board_choice INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_options_point ON decision_options(decision_point_id, position)`,
}

// initSchema applies all migrations in one transaction.
func (s *Store) initSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return tx.Commit()
}
