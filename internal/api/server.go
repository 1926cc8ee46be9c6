package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/covidanalytics/ventdash/internal/export"
	"github.com/covidanalytics/ventdash/internal/query"
	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/storage"
	"github.com/covidanalytics/ventdash/internal/store"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// Server is the HTTP API server
type Server struct {
	service *query.Service
	logger  *zap.Logger
	router  *mux.Router
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(service *query.Service, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		service: service,
		logger:  logger,
	}

	r := mux.NewRouter()

	// Health endpoints
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// Model endpoints
	r.HandleFunc("/v1/models", s.handleModelList).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/scenarios", s.handleScenarios).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/counterparties", s.handleCounterparties).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/transfers", s.handleTransfers).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/transfers.xlsx", s.handleTransfersExport).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/shortage", s.handleShortage).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/shortage.xlsx", s.handleShortageExport).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{model}/shortage/states", s.handleStateShortages).Methods(http.MethodGet)

	// Audit endpoint
	r.HandleFunc("/v1/audit", s.handleAudit).Methods(http.MethodGet)

	r.Use(s.requestIDMiddleware, s.loggingMiddleware)
	s.router = r

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready, missing := s.service.Ready()

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{Ready: ready, Missing: missing})
}

// handleModelList handles GET /v1/models
func (s *Server) handleModelList(w http.ResponseWriter, r *http.Request) {
	cat := s.service.Catalog()
	_, missing := s.service.Ready()

	notLoaded := make(map[string]bool, len(missing))
	for _, m := range missing {
		notLoaded[m] = true
	}

	models := make([]ModelInfo, 0, len(cat.Models))
	for _, m := range cat.Models {
		models = append(models, ModelInfo{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			Default:     m.ID == string(cat.DefaultModel()),
			Loaded:      !notLoaded[m.ID],
		})
	}

	respondJSON(w, http.StatusOK, ModelListResponse{
		Models:         models,
		DefaultDate:    cat.Defaults.Date,
		DefaultParams:  cat.Defaults.Params,
		BaselineLabel:  cat.Series.BaselineLabel,
		OptimizedLabel: cat.Series.OptimizedLabel,
	})
}

// handleScenarios handles GET /v1/models/{model}/scenarios
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	idx, err := s.service.Scenarios(r.Context(), mux.Vars(r)["model"])
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, idx)
}

// handleCounterparties handles GET /v1/models/{model}/counterparties
func (s *Server) handleCounterparties(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromRequest(r)

	states, err := s.service.Counterparties(r.Context(), sel)
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CounterpartiesResponse{
		Selection: s.selectionInfo(sel),
		States:    states,
	})
}

// handleTransfers handles GET /v1/models/{model}/transfers
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromRequest(r)

	limit, err := parseLimit(r)
	if err != nil {
		respondSelectionError(w, err)
		return
	}

	table, err := s.service.TransferTable(r.Context(), sel, limit)
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, TransfersResponse{
		Selection:  s.selectionInfo(sel),
		Rows:       table.Rows,
		TotalUnits: table.TotalUnits(),
		Dropped:    table.Dropped,
	})
}

// handleTransfersExport handles GET /v1/models/{model}/transfers.xlsx
func (s *Server) handleTransfersExport(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromRequest(r)

	limit, err := parseLimit(r)
	if err != nil {
		respondSelectionError(w, err)
		return
	}

	table, err := s.service.TransferTable(r.Context(), sel, limit)
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTransferTable(&buf, table); err != nil {
		s.logger.Error("failed to export transfers", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}

	respondWorkbook(w, fmt.Sprintf("transfers-%s-%s.xlsx", sel.Model, sel.Date), buf.Bytes())
}

// handleShortage handles GET /v1/models/{model}/shortage
func (s *Server) handleShortage(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromRequest(r)

	series, err := s.service.Comparison(r.Context(), sel)
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ShortageResponse{
		Selection: s.selectionInfo(sel),
		Series:    series,
	})
}

// handleShortageExport handles GET /v1/models/{model}/shortage.xlsx
func (s *Server) handleShortageExport(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromRequest(r)

	series, err := s.service.Comparison(r.Context(), sel)
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteComparison(&buf, series); err != nil {
		s.logger.Error("failed to export shortage series", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}

	respondWorkbook(w, fmt.Sprintf("shortage-%s.xlsx", sel.Model), buf.Bytes())
}

// handleStateShortages handles GET /v1/models/{model}/shortage/states
func (s *Server) handleStateShortages(w http.ResponseWriter, r *http.Request) {
	sel := selectionFromRequest(r)

	states, err := s.service.StateShortages(r.Context(), sel)
	if err != nil {
		s.respondQueryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, StateShortagesResponse{
		Selection: s.selectionInfo(sel),
		States:    states,
	})
}

// handleAudit handles GET /v1/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	auditStorage := s.service.AuditStorage()
	if auditStorage == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	// Parse query parameters
	q := r.URL.Query()
	filter := storage.AuditFilter{
		Kind:    q.Get("kind"),
		Model:   q.Get("model"),
		Outcome: q.Get("outcome"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	if startTimeStr := q.Get("startTime"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := q.Get("endTime"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	records, err := auditStorage.QueryAudit(filter)
	if err != nil {
		s.logger.Error("failed to query audit", zap.Error(err))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query audit: %v", err))
		return
	}

	responseRecords := make([]AuditRecordResponse, len(records))
	for i, record := range records {
		responseRecords[i] = AuditRecordResponse{
			ID:         record.ID,
			RequestID:  record.RequestID,
			Kind:       record.Kind,
			Model:      record.Model,
			Date:       record.Date,
			Params:     record.Params,
			State:      record.State,
			Direction:  record.Direction,
			Outcome:    string(record.Outcome),
			RowCount:   record.RowCount,
			Error:      record.Error,
			DurationMS: float64(record.Duration) / float64(time.Millisecond),
			Timestamp:  record.Timestamp,
			CreatedAt:  record.CreatedAt,
		}
	}

	respondJSON(w, http.StatusOK, AuditResponse{
		Records: responseRecords,
		Total:   len(responseRecords),
	})
}

func selectionFromRequest(r *http.Request) query.Selection {
	q := r.URL.Query()
	return query.Selection{
		Model:     mux.Vars(r)["model"],
		Date:      q.Get("date"),
		Params:    [3]string{q.Get("p1"), q.Get("p2"), q.Get("p3")},
		State:     q.Get("state"),
		Direction: q.Get("direction"),
	}
}

func (s *Server) selectionInfo(sel query.Selection) SelectionInfo {
	info := SelectionInfo{
		Model:     sel.Model,
		Date:      sel.Date,
		Params:    sel.Params,
		State:     sel.State,
		Direction: sel.Direction,
	}
	if m, err := scenario.ParseModel(sel.Model); err == nil {
		info.ModelName = s.service.Catalog().DisplayName(m)
	}
	return info
}

func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", limitStr)
	}
	return limit, nil
}

// respondQueryError maps query errors to status codes. Source failures
// are logged in full and reported generically.
func (s *Server) respondQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scenario.ErrMalformedScenarioKey), errors.Is(err, scenario.ErrInvalidDirection):
		respondSelectionError(w, err)
	case errors.Is(err, scenario.ErrUnknownModel):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrSourceUnavailable):
		s.logger.Error("scenario data unavailable",
			zap.String("request_id", query.RequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "scenario data unavailable")
	default:
		s.logger.Error("query failed",
			zap.String("request_id", query.RequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func respondSelectionError(w http.ResponseWriter, err error) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "invalid_selection"})
}

func respondWorkbook(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(query.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", query.RequestID(r.Context())))
	})
}
