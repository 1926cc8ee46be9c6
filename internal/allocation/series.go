package allocation

import (
	"sort"
	"time"

	"github.com/covidanalytics/ventdash/internal/scenario"
)

// SeriesPoint is one dated value of a shortage series
type SeriesPoint struct {
	Date  time.Time
	Value int64
}

// ComparisonPoint pairs the baseline and optimized shortage of one date
type ComparisonPoint struct {
	Date      time.Time `json:"date"`
	Baseline  int64     `json:"baseline"`
	Optimized int64     `json:"optimized"`
}

// ComparisonSeries is a before/after shortage series ready for a timeline
type ComparisonSeries struct {
	BaselineLabel  string            `json:"baselineLabel"`
	OptimizedLabel string            `json:"optimizedLabel"`
	Points         []ComparisonPoint `json:"points"`
}

// BuildComparison inner-joins pre and post on date. Dates missing from
// either side are dropped without error; a date repeated on one side pairs
// with every match on the other. Points are ordered by date ascending.
func BuildComparison(pre, post []SeriesPoint, labelPre, labelPost string) ComparisonSeries {
	byDate := make(map[time.Time][]int64, len(post))
	for _, p := range post {
		d := scenario.Day(p.Date)
		byDate[d] = append(byDate[d], p.Value)
	}

	points := []ComparisonPoint{}
	for _, p := range pre {
		d := scenario.Day(p.Date)
		for _, v := range byDate[d] {
			points = append(points, ComparisonPoint{Date: d, Baseline: p.Value, Optimized: v})
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return ComparisonSeries{
		BaselineLabel:  labelPre,
		OptimizedLabel: labelPost,
		Points:         points,
	}
}

// SupplySeries converts supply rows into shortage points
func SupplySeries(rows scenario.SupplyView) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, SeriesPoint{Date: r.Date, Value: r.Shortage})
	}
	return out
}

// BaselineSeries converts baseline rows into shortage points
func BaselineSeries(rows []scenario.BaselineRecord) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, SeriesPoint{Date: r.Date, Value: r.Shortage})
	}
	return out
}

// StateShortage is one state's shortage on the selected date
type StateShortage struct {
	State    string `json:"state"`
	Shortage int64  `json:"shortage"`
}

// ShortageByState lists per-state shortages of a filtered supply view,
// excluding the US aggregate, sorted by state code.
func ShortageByState(view scenario.SupplyView) []StateShortage {
	out := []StateShortage{}
	for _, r := range view {
		if r.State == scenario.USAggregate {
			continue
		}
		out = append(out, StateShortage{State: r.State, Shortage: r.Shortage})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].State < out[j].State
	})
	return out
}
