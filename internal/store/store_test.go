package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/source/file"
)

const suppliesCSV = `,Date,State,Param1,Param2,Param3,Supply,Demand,Shortage
0,2020-04-01,US,1.0,1.0,1.0,1000,1200,200
1,2020-04-01,NY,1.0,1.0,1.0,300,450,150
2,2020-04-02 00:00:00,US,1.0,1.0,1.0,1000,1100,100.5
`

const transfersCSV = `Date,Param1,Param2,Param3,State_From,State_To,Num_Units
2020-04-01,1,1,1,NY,NJ,50
2020-04-01,1,1,1,NY,CT,30
2020-04-01,2,1,1,TX,OK,10
`

const baselineCSV = `Date,State,Shortage
2020-04-01,US,800
2020-04-02,US,900
2020-04-03,US,950
`

func writeTables(t *testing.T, dir string, model scenario.Model) {
	t.Helper()
	files := map[string]string{
		SuppliesFile(model):  suppliesCSV,
		TransfersFile(model): transfersCSV,
		BaselineFile(model):  baselineCSV,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

// countingSource counts Open calls on the wrapped source
type countingSource struct {
	*file.Source
	opens int32
}

func (c *countingSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	atomic.AddInt32(&c.opens, 1)
	return c.Source.Open(ctx, name)
}

func TestStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, scenario.ModelCOVIDAnalytics)

	s := NewStore(file.NewSource(dir), "", zap.NewNop())
	tables, err := s.Load(context.Background(), scenario.ModelCOVIDAnalytics)
	require.NoError(t, err)

	require.Len(t, tables.Supplies, 3)
	require.Len(t, tables.Transfers, 3)
	require.Len(t, tables.Baseline, 3)

	us := tables.Supplies[2]
	assert.Equal(t, "US", us.State)
	assert.Equal(t, 2, us.Date.Day())
	assert.Equal(t, 0, us.Date.Hour())
	assert.Equal(t, int64(101), us.Shortage)
	assert.Equal(t, "1000", us.Fields["Supply"])
	assert.NotContains(t, us.Fields, "Shortage")

	tr := tables.Transfers[0]
	assert.Equal(t, "NY", tr.From)
	assert.Equal(t, "NJ", tr.To)
	assert.Equal(t, int64(50), tr.Units)
	assert.Equal(t, 1.0, tr.Params[0].Value)

	assert.True(t, s.Loaded(scenario.ModelCOVIDAnalytics))
	assert.False(t, s.Loaded(scenario.ModelIHME))
}

func TestStore_LoadOnce(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, scenario.ModelIHME)

	src := &countingSource{Source: file.NewSource(dir)}
	s := NewStore(src, scenario.DateLayout, nil)

	var wg sync.WaitGroup
	results := make([]*Tables, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables, err := s.Load(context.Background(), scenario.ModelIHME)
			assert.NoError(t, err)
			results[i] = tables
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.opens))

	_, err := s.Load(context.Background(), scenario.ModelIHME)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.opens))
}

// gatedSource blocks every Open until release is closed or ctx is done
type gatedSource struct {
	countingSource
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.countingSource.Open(ctx, name)
}

func TestStore_LoadSurvivesCallerCancel(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, scenario.ModelIHME)

	src := &gatedSource{
		countingSource: countingSource{Source: file.NewSource(dir)},
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	s := NewStore(src, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Load(ctx, scenario.ModelIHME)
		firstErr <- err
	}()

	<-src.started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	second := make(chan error, 1)
	go func() {
		tables, err := s.Load(context.Background(), scenario.ModelIHME)
		if err == nil && len(tables.Transfers) != 3 {
			err = errors.New("unexpected transfer count")
		}
		second <- err
	}()

	close(src.release)
	require.NoError(t, <-second)
	assert.True(t, s.Loaded(scenario.ModelIHME))
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.opens))
}

func TestStore_SourceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string)
	}{
		{
			name: "missing file",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, TransfersFile(scenario.ModelIHME))))
			},
		},
		{
			name: "missing column",
			mutate: func(t *testing.T, dir string) {
				body := "Date,Param1,Param2,Param3,State_From,State_To\n2020-04-01,1,1,1,NY,NJ\n"
				require.NoError(t, os.WriteFile(filepath.Join(dir, TransfersFile(scenario.ModelIHME)), []byte(body), 0o644))
			},
		},
		{
			name: "bad date",
			mutate: func(t *testing.T, dir string) {
				body := strings.Replace(baselineCSV, "2020-04-03", "04/03/2020", 1)
				require.NoError(t, os.WriteFile(filepath.Join(dir, BaselineFile(scenario.ModelIHME)), []byte(body), 0o644))
			},
		},
		{
			name: "non-numeric parameter",
			mutate: func(t *testing.T, dir string) {
				body := strings.Replace(transfersCSV, "2020-04-01,2,1,1", "2020-04-01,high,1,1", 1)
				require.NoError(t, os.WriteFile(filepath.Join(dir, TransfersFile(scenario.ModelIHME)), []byte(body), 0o644))
			},
		},
		{
			name: "empty table",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, SuppliesFile(scenario.ModelIHME)), nil, 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTables(t, dir, scenario.ModelIHME)
			tt.mutate(t, dir)

			s := NewStore(file.NewSource(dir), "", nil)
			_, err := s.Load(context.Background(), scenario.ModelIHME)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSourceUnavailable), "got %v", err)
			assert.False(t, s.Loaded(scenario.ModelIHME))
		})
	}
}

func TestStore_UnknownModel(t *testing.T) {
	s := NewStore(file.NewSource(t.TempDir()), "", nil)
	_, err := s.Load(context.Background(), scenario.Model("cdc"))
	assert.ErrorIs(t, err, scenario.ErrUnknownModel)
}

func TestStore_RetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(file.NewSource(dir), "", nil)

	_, err := s.Load(context.Background(), scenario.ModelIHME)
	require.ErrorIs(t, err, ErrSourceUnavailable)

	writeTables(t, dir, scenario.ModelIHME)
	require.NoError(t, s.Preload(context.Background(), scenario.ModelIHME))
	assert.True(t, s.Loaded(scenario.ModelIHME))
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  bool
	}{
		{"12", 12, false},
		{"12.0", 12, false},
		{"12.5", 13, false},
		{"-2.5", -3, false},
		{" 7 ", 7, false},
		{"", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCount("Num_Units", tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
