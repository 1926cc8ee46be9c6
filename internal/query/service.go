package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/covidanalytics/ventdash/internal/allocation"
	"github.com/covidanalytics/ventdash/internal/catalog"
	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/storage"
	"github.com/covidanalytics/ventdash/internal/store"
)

// Query kinds recorded in the audit log
const (
	KindCounterparties = "counterparties"
	KindTransfers      = "transfers"
	KindComparison     = "comparison"
	KindStateShortages = "state_shortages"
	KindScenarios      = "scenarios"
)

// TableLoader supplies the loaded tables of a model
type TableLoader interface {
	Load(ctx context.Context, model scenario.Model) (*store.Tables, error)
	Loaded(model scenario.Model) bool
}

// Options tunes how selections are matched and tables are cut
type Options struct {
	Matcher    scenario.ParamMatcher
	MaxRows    int
	Truncation allocation.TruncationPolicy
}

// Selection is a scenario choice as typed by a user. State and Direction
// are only read by the operations that need them.
type Selection struct {
	Model     string
	Date      string
	Params    [3]string
	State     string
	Direction string
}

// Service answers dashboard queries against the loaded scenario tables
type Service struct {
	tables  TableLoader
	catalog *catalog.Catalog
	opts    Options
	index   *IndexCache
	logger  *zap.Logger

	mu    sync.RWMutex
	audit storage.AuditStorage
}

// NewService creates a query service. A nil catalog selects the built-in
// catalog.
func NewService(tables TableLoader, cat *catalog.Catalog, opts Options, logger *zap.Logger) *Service {
	if cat == nil {
		cat = catalog.Default()
	}
	if opts.Matcher == nil {
		opts.Matcher = scenario.ExactMatch
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = allocation.DefaultMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tables:  tables,
		catalog: cat,
		opts:    opts,
		index:   NewIndexCache(),
		logger:  logger,
	}
}

// SetAuditStorage sets the audit storage backend (optional)
func (s *Service) SetAuditStorage(audit storage.AuditStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = audit
}

// AuditStorage returns the configured audit backend, or nil
func (s *Service) AuditStorage() storage.AuditStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// Catalog returns the model catalog the service was built with
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Counterparties lists the partner states of the selection. With a State
// set, only transfers touching that state on the selected side count.
func (s *Service) Counterparties(ctx context.Context, sel Selection) (states []string, err error) {
	start := time.Now()
	defer func() { s.record(ctx, KindCounterparties, sel, len(states), err, start) }()

	key, dir, err := s.parseSelection(sel)
	if err != nil {
		return nil, err
	}

	t, err := s.tables.Load(ctx, key.Model)
	if err != nil {
		return nil, err
	}

	view := scenario.FilterTransfers(t.Transfers, key, s.opts.Matcher)
	if sel.State != "" {
		return allocation.CounterpartiesOf(view, sel.State, dir), nil
	}
	return allocation.Counterparties(view, dir), nil
}

// TransferTable builds the capped transfer table of the selection. A
// positive limit narrows the configured row cap.
func (s *Service) TransferTable(ctx context.Context, sel Selection, limit int) (table allocation.TransferTable, err error) {
	start := time.Now()
	defer func() { s.record(ctx, KindTransfers, sel, len(table.Rows), err, start) }()

	key, dir, err := s.parseSelection(sel)
	if err != nil {
		return allocation.TransferTable{}, err
	}

	t, err := s.tables.Load(ctx, key.Model)
	if err != nil {
		return allocation.TransferTable{}, err
	}

	maxRows := s.opts.MaxRows
	if limit > 0 && limit < maxRows {
		maxRows = limit
	}

	view := scenario.FilterTransfers(t.Transfers, key, s.opts.Matcher)
	return allocation.BuildTransferTable(view, allocation.TableOptions{
		State:      sel.State,
		Direction:  dir,
		MaxRows:    maxRows,
		Truncation: s.opts.Truncation,
	}), nil
}

// Comparison builds the national before/after shortage timeline of one
// parameter tuple. The selection's date is ignored.
func (s *Service) Comparison(ctx context.Context, sel Selection) (series allocation.ComparisonSeries, err error) {
	start := time.Now()
	defer func() { s.record(ctx, KindComparison, sel, len(series.Points), err, start) }()

	model, err := s.parseModel(sel.Model)
	if err != nil {
		return allocation.ComparisonSeries{}, err
	}

	params, err := scenario.ParseParams(sel.Params[0], sel.Params[1], sel.Params[2])
	if err != nil {
		return allocation.ComparisonSeries{}, err
	}

	t, err := s.tables.Load(ctx, model)
	if err != nil {
		return allocation.ComparisonSeries{}, err
	}

	pre := scenario.SelectBaselineState(t.Baseline, scenario.USAggregate)
	post := scenario.FilterSuppliesByParams(t.Supplies, params, s.opts.Matcher).SelectState(scenario.USAggregate)

	return allocation.BuildComparison(
		allocation.BaselineSeries(pre),
		allocation.SupplySeries(post),
		s.catalog.Series.BaselineLabel,
		s.catalog.Series.OptimizedLabel,
	), nil
}

// StateShortages lists the per-state shortages of the selection
func (s *Service) StateShortages(ctx context.Context, sel Selection) (rows []allocation.StateShortage, err error) {
	start := time.Now()
	defer func() { s.record(ctx, KindStateShortages, sel, len(rows), err, start) }()

	model, err := s.parseModel(sel.Model)
	if err != nil {
		return nil, err
	}

	key, err := scenario.ParseKey(string(model), sel.Date, sel.Params[0], sel.Params[1], sel.Params[2])
	if err != nil {
		return nil, err
	}

	t, err := s.tables.Load(ctx, model)
	if err != nil {
		return nil, err
	}

	return allocation.ShortageByState(scenario.FilterSupplies(t.Supplies, key, s.opts.Matcher)), nil
}

// Scenarios returns the selectable dates and parameter tuples of a model
func (s *Service) Scenarios(ctx context.Context, modelID string) (idx *ScenarioIndex, err error) {
	start := time.Now()
	sel := Selection{Model: modelID}
	defer func() {
		n := 0
		if idx != nil {
			n = len(idx.Tuples)
		}
		s.record(ctx, KindScenarios, sel, n, err, start)
	}()

	model, err := s.parseModel(modelID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.index.Get(model); ok {
		return cached, nil
	}

	t, err := s.tables.Load(ctx, model)
	if err != nil {
		return nil, err
	}

	idx = BuildIndex(t)
	s.index.Set(model, idx)
	s.logger.Debug("cached scenario index",
		zap.String("model", model.String()),
		zap.Int("tuples", len(idx.Tuples)),
		zap.Int("cached_models", s.index.Size()))
	return idx, nil
}

// Warm loads the tables of every catalog model and records a load
// snapshot for each. Loading stops at the first failure.
func (s *Service) Warm(ctx context.Context) error {
	for _, m := range s.catalog.ModelIDs() {
		t, err := s.tables.Load(ctx, m)
		if err != nil {
			return fmt.Errorf("failed to load model %s: %w", m, err)
		}

		if audit := s.AuditStorage(); audit != nil {
			snapshot := storage.LoadSnapshot{
				Model:     string(m),
				Supplies:  len(t.Supplies),
				Transfers: len(t.Transfers),
				Baseline:  len(t.Baseline),
				LoadedAt:  t.LoadedAt,
			}
			if err := audit.RecordLoad(snapshot); err != nil {
				s.logger.Warn("failed to record load snapshot",
					zap.String("model", m.String()),
					zap.Error(err))
			}
		}
	}
	return nil
}

// Ready reports whether every catalog model is loaded, with the ids of
// the models still missing
func (s *Service) Ready() (bool, []string) {
	missing := []string{}
	for _, m := range s.catalog.ModelIDs() {
		if !s.tables.Loaded(m) {
			missing = append(missing, string(m))
		}
	}
	return len(missing) == 0, missing
}

func (s *Service) parseModel(id string) (scenario.Model, error) {
	m, err := scenario.ParseModel(id)
	if err != nil {
		return "", err
	}
	if !s.catalog.Offers(m) {
		return "", fmt.Errorf("%w: %q is not offered", scenario.ErrUnknownModel, id)
	}
	return m, nil
}

func (s *Service) parseSelection(sel Selection) (scenario.Key, scenario.Direction, error) {
	model, err := s.parseModel(sel.Model)
	if err != nil {
		return scenario.Key{}, scenario.Outgoing, err
	}

	key, err := scenario.ParseKey(string(model), sel.Date, sel.Params[0], sel.Params[1], sel.Params[2])
	if err != nil {
		return scenario.Key{}, scenario.Outgoing, err
	}

	dir := scenario.Outgoing
	if sel.Direction != "" {
		dir, err = scenario.ParseDirection(sel.Direction)
		if err != nil {
			return scenario.Key{}, scenario.Outgoing, err
		}
	}

	return key, dir, nil
}

// Classify maps a query error to its audit outcome
func Classify(err error, rows int) storage.Outcome {
	switch {
	case err == nil && rows == 0:
		return storage.OutcomeEmpty
	case err == nil:
		return storage.OutcomeOK
	case errors.Is(err, scenario.ErrMalformedScenarioKey), errors.Is(err, scenario.ErrInvalidDirection):
		return storage.OutcomeMalformed
	case errors.Is(err, scenario.ErrUnknownModel):
		return storage.OutcomeUnknown
	default:
		return storage.OutcomeUnavailable
	}
}

// record writes one audit entry. Audit failures never fail the query.
func (s *Service) record(ctx context.Context, kind string, sel Selection, rows int, err error, start time.Time) {
	outcome := Classify(err, rows)
	elapsed := time.Since(start)

	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("model", sel.Model),
		zap.String("date", sel.Date),
		zap.String("outcome", string(outcome)),
		zap.Int("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Debug("query served", fields...)

	audit := s.AuditStorage()
	if audit == nil {
		return
	}

	record := storage.QueryRecord{
		RequestID: RequestID(ctx),
		Kind:      kind,
		Model:     sel.Model,
		Date:      sel.Date,
		State:     sel.State,
		Direction: sel.Direction,
		Outcome:   outcome,
		RowCount:  rows,
		Duration:  elapsed,
		Timestamp: start,
	}
	if sel.Params != [3]string{} {
		record.Params = sel.Params[:]
	}
	if err != nil {
		record.Error = err.Error()
	}

	if err := audit.RecordQuery(record); err != nil {
		s.logger.Warn("failed to record query", zap.String("kind", kind), zap.Error(err))
	}
}
