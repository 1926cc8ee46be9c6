package storage

import (
	"time"
)

// Outcome classifies how a query ended
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeEmpty       Outcome = "empty"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeUnknown     Outcome = "unknown_model"
	OutcomeUnavailable Outcome = "unavailable"
)

// AuditStorage defines the interface for persisting query activity
type AuditStorage interface {
	// RecordQuery persists one served query
	RecordQuery(record QueryRecord) error

	// RecordLoad upserts the load snapshot of a model
	RecordLoad(snapshot LoadSnapshot) error

	// QueryAudit retrieves query records with optional filtering
	QueryAudit(filter AuditFilter) ([]QueryRecord, error)

	// GetLoadSnapshot retrieves the latest load snapshot of a model
	GetLoadSnapshot(model string) (*LoadSnapshot, error)

	// Close closes the storage connection
	Close() error
}

// AuditFilter defines filtering options for audit queries
type AuditFilter struct {
	Kind      string
	Model     string
	Outcome   string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// QueryRecord represents a single audit entry
type QueryRecord struct {
	ID        string
	RequestID string
	Kind      string
	Model     string
	Date      string
	Params    []string
	State     string
	Direction string
	Outcome   Outcome
	RowCount  int
	Error     string
	Duration  time.Duration
	Timestamp time.Time
	CreatedAt time.Time
}

// LoadSnapshot records the row counts of a model's last successful load
type LoadSnapshot struct {
	Model     string
	Supplies  int
	Transfers int
	Baseline  int
	LoadedAt  time.Time
	UpdatedAt time.Time
}
