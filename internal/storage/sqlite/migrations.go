package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Served queries audit table
CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	model TEXT NOT NULL,
	date TEXT NOT NULL DEFAULT '',
	params_json TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT '',
	direction TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL DEFAULT 0,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_queries_kind ON queries(kind);
CREATE INDEX IF NOT EXISTS idx_queries_model ON queries(model);
CREATE INDEX IF NOT EXISTS idx_queries_outcome ON queries(outcome);
CREATE INDEX IF NOT EXISTS idx_queries_timestamp ON queries(timestamp DESC);

-- Latest load snapshot (one row per model)
CREATE TABLE IF NOT EXISTS load_snapshots (
	model TEXT PRIMARY KEY,
	supplies INTEGER NOT NULL,
	transfers INTEGER NOT NULL,
	baseline INTEGER NOT NULL,
	loaded_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
