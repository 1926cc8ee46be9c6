package allocation

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidanalytics/ventdash/internal/scenario"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := scenario.ParseDate(scenario.DateLayout, s)
	require.NoError(t, err)
	return d
}

func tuple(p1, p2, p3 string) scenario.Params {
	return scenario.Params{scenario.MustParam(p1), scenario.MustParam(p2), scenario.MustParam(p3)}
}

func newYorkRows(t *testing.T) []scenario.TransferRecord {
	d := day(t, "2020-04-01")
	return []scenario.TransferRecord{
		{Date: d, Params: tuple("1", "1", "1"), From: "NY", To: "NJ", Units: 50},
		{Date: d, Params: tuple("1", "1", "1"), From: "NY", To: "CT", Units: 30},
		{Date: d, Params: tuple("2", "1", "1"), From: "TX", To: "OK", Units: 10},
	}
}

func TestNewYorkScenario(t *testing.T) {
	rows := newYorkRows(t)

	key, err := scenario.ParseKey("ode", "2020-04-01", "1", "1", "1")
	require.NoError(t, err)
	view := scenario.FilterTransfers(rows, key, scenario.ExactMatch)

	assert.Equal(t, []string{"CT", "NJ"}, CounterpartiesOf(view, "NY", scenario.Outgoing))
	assert.Equal(t, []string{"CT", "NJ"}, Counterparties(view, scenario.Outgoing))

	table := BuildTransferTable(view, TableOptions{})
	require.Len(t, table.Rows, 2)
	assert.Equal(t, int64(80), table.TotalUnits())
	assert.Equal(t, TransferRow{Origin: "NY", Destination: "NJ", Units: 50}, table.Rows[0])

	missing, err := scenario.ParseKey("ode", "2020-04-01", "9", "9", "9")
	require.NoError(t, err)
	empty := scenario.FilterTransfers(rows, missing, scenario.ExactMatch)
	assert.Empty(t, empty)
	assert.Empty(t, BuildTransferTable(empty, TableOptions{}).Rows)
	assert.Empty(t, Counterparties(empty, scenario.Outgoing))
}

func TestCounterparties_SortedDistinct(t *testing.T) {
	d := day(t, "2020-04-01")
	p := tuple("1", "1", "1")
	view := scenario.TransferView{
		{Date: d, Params: p, From: "NY", To: "NJ", Units: 1},
		{Date: d, Params: p, From: "MA", To: "CT", Units: 1},
		{Date: d, Params: p, From: "NY", To: "CT", Units: 1},
		{Date: d, Params: p, From: "CA", To: "NJ", Units: 1},
		{Date: d, Params: p, From: "NY", To: "AZ", Units: 1},
	}

	for _, dir := range []scenario.Direction{scenario.Outgoing, scenario.Incoming} {
		t.Run(dir.String(), func(t *testing.T) {
			got := Counterparties(view, dir)
			assert.True(t, sort.StringsAreSorted(got))

			seen := map[string]bool{}
			for _, s := range got {
				assert.False(t, seen[s], "duplicate %s", s)
				seen[s] = true
			}
		})
	}

	assert.Equal(t, []string{"AZ", "CT", "NJ"}, Counterparties(view, scenario.Outgoing))
	assert.Equal(t, []string{"CA", "MA", "NY"}, Counterparties(view, scenario.Incoming))
	assert.Equal(t, []string{"CA", "NY"}, CounterpartiesOf(view, "NJ", scenario.Incoming))
}

func TestCounterparties_Empty(t *testing.T) {
	got := Counterparties(nil, scenario.Incoming)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func manyTransfers(n int) scenario.TransferView {
	d := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	view := make(scenario.TransferView, 0, n)
	for i := 0; i < n; i++ {
		from := "NY"
		if i%2 == 1 {
			from = "CA"
		}
		view = append(view, scenario.TransferRecord{
			Date:  d,
			From:  from,
			To:    fmt.Sprintf("S%03d", i),
			Units: int64(i),
		})
	}
	return view
}

func TestBuildTransferTable_RowBound(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		opts     TableOptions
		wantRows int
	}{
		{name: "under default cap", rows: 40, wantRows: 40},
		{name: "at default cap", rows: 100, wantRows: 100},
		{name: "over default cap", rows: 250, wantRows: 100},
		{name: "custom cap", rows: 30, opts: TableOptions{MaxRows: 10}, wantRows: 10},
		{name: "restricted under cap", rows: 30, opts: TableOptions{State: "NY", Direction: scenario.Outgoing}, wantRows: 15},
		{name: "restricted over cap", rows: 300, opts: TableOptions{State: "CA", Direction: scenario.Outgoing}, wantRows: 100},
		{name: "incoming restriction", rows: 30, opts: TableOptions{State: "S007", Direction: scenario.Incoming}, wantRows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := BuildTransferTable(manyTransfers(tt.rows), tt.opts)
			assert.Len(t, table.Rows, tt.wantRows)
			assert.Zero(t, table.Dropped)
		})
	}
}

func TestBuildTransferTable_KeepsViewOrder(t *testing.T) {
	table := BuildTransferTable(manyTransfers(120), TableOptions{})
	require.Len(t, table.Rows, 100)
	for i, r := range table.Rows {
		assert.Equal(t, fmt.Sprintf("S%03d", i), r.Destination)
	}
}

func TestBuildTransferTable_ReportPolicy(t *testing.T) {
	table := BuildTransferTable(manyTransfers(130), TableOptions{MaxRows: 100, Truncation: TruncateAndReport})
	assert.Len(t, table.Rows, 100)
	assert.Equal(t, 30, table.Dropped)

	table = BuildTransferTable(manyTransfers(20), TableOptions{Truncation: TruncateAndReport})
	assert.Zero(t, table.Dropped)
}

func TestBuildComparison_InnerJoin(t *testing.T) {
	pre := []SeriesPoint{
		{Date: day(t, "2020-04-03"), Value: 300},
		{Date: day(t, "2020-04-01"), Value: 100},
		{Date: day(t, "2020-04-02"), Value: 200},
		{Date: day(t, "2020-03-31"), Value: 50},
	}
	post := []SeriesPoint{
		{Date: day(t, "2020-04-01"), Value: 10},
		{Date: day(t, "2020-04-03"), Value: 30},
		{Date: day(t, "2020-04-05"), Value: 0},
	}

	series := BuildComparison(pre, post, "Baseline Shortage", "Optimized Shortage")
	assert.Equal(t, "Baseline Shortage", series.BaselineLabel)
	assert.Equal(t, "Optimized Shortage", series.OptimizedLabel)

	require.Len(t, series.Points, 2)
	assert.Equal(t, ComparisonPoint{Date: day(t, "2020-04-01"), Baseline: 100, Optimized: 10}, series.Points[0])
	assert.Equal(t, ComparisonPoint{Date: day(t, "2020-04-03"), Baseline: 300, Optimized: 30}, series.Points[1])
}

func TestBuildComparison_DisjointAndDuplicates(t *testing.T) {
	series := BuildComparison(
		[]SeriesPoint{{Date: day(t, "2020-04-01"), Value: 1}},
		[]SeriesPoint{{Date: day(t, "2020-04-02"), Value: 2}},
		"a", "b",
	)
	assert.NotNil(t, series.Points)
	assert.Empty(t, series.Points)

	series = BuildComparison(
		[]SeriesPoint{{Date: day(t, "2020-04-01"), Value: 1}},
		[]SeriesPoint{{Date: day(t, "2020-04-01"), Value: 2}, {Date: day(t, "2020-04-01"), Value: 3}},
		"a", "b",
	)
	require.Len(t, series.Points, 2)
	assert.Equal(t, int64(2), series.Points[0].Optimized)
	assert.Equal(t, int64(3), series.Points[1].Optimized)
}

func TestShortageByState(t *testing.T) {
	d := day(t, "2020-04-01")
	view := scenario.SupplyView{
		{State: "US", Date: d, Shortage: 900},
		{State: "NY", Date: d, Shortage: 500},
		{State: "CA", Date: d, Shortage: 400},
	}

	got := ShortageByState(view)
	assert.Equal(t, []StateShortage{{State: "CA", Shortage: 400}, {State: "NY", Shortage: 500}}, got)
}

func TestSeriesConversions(t *testing.T) {
	d := day(t, "2020-04-01")
	supply := SupplySeries(scenario.SupplyView{{State: "US", Date: d, Shortage: 4}})
	assert.Equal(t, []SeriesPoint{{Date: d, Value: 4}}, supply)

	baseline := BaselineSeries([]scenario.BaselineRecord{{State: "US", Date: d, Shortage: 9}})
	assert.Equal(t, []SeriesPoint{{Date: d, Value: 9}}, baseline)
}
