package api

import (
	"time"

	"github.com/covidanalytics/ventdash/internal/allocation"
)

// ModelInfo describes one selectable forecasting model
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Default     bool   `json:"default,omitempty"`
	Loaded      bool   `json:"loaded"`
}

// ModelListResponse lists the catalog's models
type ModelListResponse struct {
	Models         []ModelInfo `json:"models"`
	DefaultDate    string      `json:"defaultDate,omitempty"`
	DefaultParams  []string    `json:"defaultParams,omitempty"`
	BaselineLabel  string      `json:"baselineLabel"`
	OptimizedLabel string      `json:"optimizedLabel"`
}

// SelectionInfo echoes the scenario a response was computed for
type SelectionInfo struct {
	Model     string    `json:"model"`
	ModelName string    `json:"modelName,omitempty"`
	Date      string    `json:"date,omitempty"`
	Params    [3]string `json:"params"`
	State     string    `json:"state,omitempty"`
	Direction string    `json:"direction,omitempty"`
}

// CounterpartiesResponse lists the partner states of a selection
type CounterpartiesResponse struct {
	Selection SelectionInfo `json:"selection"`
	States    []string      `json:"states"`
}

// TransfersResponse is a capped transfer table
type TransfersResponse struct {
	Selection  SelectionInfo            `json:"selection"`
	Rows       []allocation.TransferRow `json:"rows"`
	TotalUnits int64                    `json:"totalUnits"`
	Dropped    int                      `json:"dropped,omitempty"`
}

// ShortageResponse is the national before/after shortage timeline
type ShortageResponse struct {
	Selection SelectionInfo               `json:"selection"`
	Series    allocation.ComparisonSeries `json:"series"`
}

// StateShortagesResponse lists per-state shortages on one date
type StateShortagesResponse struct {
	Selection SelectionInfo              `json:"selection"`
	States    []allocation.StateShortage `json:"states"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing,omitempty"`
}

// AuditRecordResponse represents a single audit record
type AuditRecordResponse struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestID,omitempty"`
	Kind       string    `json:"kind"`
	Model      string    `json:"model"`
	Date       string    `json:"date,omitempty"`
	Params     []string  `json:"params,omitempty"`
	State      string    `json:"state,omitempty"`
	Direction  string    `json:"direction,omitempty"`
	Outcome    string    `json:"outcome"`
	RowCount   int       `json:"rowCount"`
	Error      string    `json:"error,omitempty"`
	DurationMS float64   `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuditResponse represents audit log query response
type AuditResponse struct {
	Records []AuditRecordResponse `json:"records"`
	Total   int                   `json:"total"`
}

// ErrorResponse represents an error response. Kind is set for errors the
// caller can fix by changing the selection.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
