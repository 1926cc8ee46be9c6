package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/source"
)

// ErrSourceUnavailable is returned when a backing table is missing or
// cannot be parsed. It is not retried within a request.
var ErrSourceUnavailable = errors.New("scenario source unavailable")

// Tables holds the immutable reference data of one model. Nothing may
// mutate a Tables value after Load returns it.
type Tables struct {
	Model     scenario.Model
	Supplies  []scenario.SupplyRecord
	Transfers []scenario.TransferRecord
	Baseline  []scenario.BaselineRecord
	LoadedAt  time.Time
}

// SuppliesFile is the name of a model's optimized state supplies table
func SuppliesFile(m scenario.Model) string {
	return fmt.Sprintf("state_supplies_table-%s.csv", m)
}

// TransfersFile is the name of a model's transfer plan table
func TransfersFile(m scenario.Model) string {
	return fmt.Sprintf("state_transfers_table-%s.csv", m)
}

// BaselineFile is the name of a model's pre-optimization projections table
func BaselineFile(m scenario.Model) string {
	return fmt.Sprintf("state_projections-%s.csv", m)
}

// Store loads each model's tables once and serves them read-only
type Store struct {
	src    source.Source
	layout string
	logger *zap.Logger

	tables *xsync.Map[scenario.Model, *Tables]
	group  singleflight.Group
}

// NewStore creates a store reading from src. An empty layout selects
// scenario.DateLayout.
func NewStore(src source.Source, layout string, logger *zap.Logger) *Store {
	if layout == "" {
		layout = scenario.DateLayout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		src:    src,
		layout: layout,
		logger: logger,
		tables: xsync.NewMap[scenario.Model, *Tables](),
	}
}

// Load returns the tables of model, reading them on first use. Concurrent
// first loads share one read, which is detached from any single caller's
// cancellation. Each caller still returns early when its own ctx is done.
// Failed loads are not cached.
func (s *Store) Load(ctx context.Context, model scenario.Model) (*Tables, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: %q", scenario.ErrUnknownModel, model)
	}

	if t, ok := s.tables.Load(model); ok {
		return t, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(string(model), func() (interface{}, error) {
		if t, ok := s.tables.Load(model); ok {
			return t, nil
		}

		start := time.Now()
		t, err := s.read(loadCtx, model)
		if err != nil {
			s.logger.Error("failed to load scenario tables",
				zap.String("model", model.String()),
				zap.String("source", s.src.Describe()),
				zap.Error(err))
			return nil, err
		}

		s.tables.Store(model, t)
		s.logger.Info("loaded scenario tables",
			zap.String("model", model.String()),
			zap.Int("supplies", len(t.Supplies)),
			zap.Int("transfers", len(t.Transfers)),
			zap.Int("baseline", len(t.Baseline)),
			zap.Duration("elapsed", time.Since(start)))
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Tables), nil
	}
}

// Preload loads every given model, stopping at the first failure
func (s *Store) Preload(ctx context.Context, models ...scenario.Model) error {
	for _, m := range models {
		if _, err := s.Load(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Loaded reports whether model's tables are in memory
func (s *Store) Loaded(model scenario.Model) bool {
	_, ok := s.tables.Load(model)
	return ok
}

// read fetches and parses the three tables of model in parallel
func (s *Store) read(ctx context.Context, model scenario.Model) (*Tables, error) {
	t := &Tables{Model: model}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.readTable(gctx, SuppliesFile(model), func(r io.Reader) (err error) {
			t.Supplies, err = ParseSupplies(r, s.layout)
			return err
		})
	})
	g.Go(func() error {
		return s.readTable(gctx, TransfersFile(model), func(r io.Reader) (err error) {
			t.Transfers, err = ParseTransfers(r, s.layout)
			return err
		})
	})
	g.Go(func() error {
		return s.readTable(gctx, BaselineFile(model), func(r io.Reader) (err error) {
			t.Baseline, err = ParseBaseline(r, s.layout)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.LoadedAt = time.Now()
	return t, nil
}

func (s *Store) readTable(ctx context.Context, name string, parse func(io.Reader) error) error {
	rc, err := s.src.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
	}
	defer rc.Close()

	if err := parse(rc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
	}
	return nil
}
