package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/covidanalytics/ventdash/internal/storage"
)

// Store implements AuditStorage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Concurrent request handlers write here; let SQLite wait on its lock
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Verify interface compliance
var _ storage.AuditStorage = (*Store)(nil)

// RecordQuery persists one served query. A missing ID is generated.
func (s *Store) RecordQuery(record storage.QueryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	params := record.Params
	if params == nil {
		params = []string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	query := `
		INSERT INTO queries (
			id, request_id, kind, model, date, params_json, state, direction,
			outcome, row_count, error, duration_us, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		record.ID,
		record.RequestID,
		record.Kind,
		record.Model,
		record.Date,
		string(paramsJSON),
		record.State,
		record.Direction,
		string(record.Outcome),
		record.RowCount,
		record.Error,
		record.Duration.Microseconds(),
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store query record: %w", err)
	}

	return nil
}

// RecordLoad upserts the load snapshot of a model
func (s *Store) RecordLoad(snapshot storage.LoadSnapshot) error {
	query := `
		INSERT INTO load_snapshots (model, supplies, transfers, baseline, loaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model) DO UPDATE SET
			supplies = excluded.supplies,
			transfers = excluded.transfers,
			baseline = excluded.baseline,
			loaded_at = excluded.loaded_at,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		snapshot.Model,
		snapshot.Supplies,
		snapshot.Transfers,
		snapshot.Baseline,
		snapshot.LoadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record load snapshot: %w", err)
	}

	return nil
}

// QueryAudit retrieves query records with optional filtering
func (s *Store) QueryAudit(filter storage.AuditFilter) ([]storage.QueryRecord, error) {
	query := `
		SELECT id, request_id, kind, model, date, params_json, state, direction,
		       outcome, row_count, error, duration_us, timestamp, created_at
		FROM queries
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}

	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}

	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []storage.QueryRecord
	for rows.Next() {
		var record storage.QueryRecord
		var paramsJSON, outcome string
		var durationUS int64

		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.Kind,
			&record.Model,
			&record.Date,
			&paramsJSON,
			&record.State,
			&record.Direction,
			&outcome,
			&record.RowCount,
			&record.Error,
			&durationUS,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(paramsJSON), &record.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
		record.Outcome = storage.Outcome(outcome)
		record.Duration = time.Duration(durationUS) * time.Microsecond

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// GetLoadSnapshot retrieves the latest load snapshot of a model
func (s *Store) GetLoadSnapshot(model string) (*storage.LoadSnapshot, error) {
	query := `
		SELECT model, supplies, transfers, baseline, loaded_at, updated_at
		FROM load_snapshots
		WHERE model = ?
	`

	var snapshot storage.LoadSnapshot
	err := s.db.QueryRow(query, model).Scan(
		&snapshot.Model,
		&snapshot.Supplies,
		&snapshot.Transfers,
		&snapshot.Baseline,
		&snapshot.LoadedAt,
		&snapshot.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get load snapshot: %w", err)
	}

	return &snapshot, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
