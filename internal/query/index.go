package query

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/store"
)

// ParamTuple is one selectable scenario. Params hold the canonical decimal
// form of each parameter and parse back to the same values.
type ParamTuple struct {
	Params [3]string `json:"params"`
	Label  string    `json:"label"`
}

// ScenarioIndex describes the selectable dates and parameter tuples of a
// model's tables
type ScenarioIndex struct {
	Model     scenario.Model `json:"model"`
	FirstDate time.Time      `json:"firstDate"`
	LastDate  time.Time      `json:"lastDate"`
	Dates     []time.Time    `json:"dates"`
	Tuples    []ParamTuple   `json:"tuples"`
	BuiltAt   time.Time      `json:"builtAt"`
}

// BuildIndex collects the distinct dates and parameter tuples across the
// supplies and transfers of t. Tuples that cast to the same floats collapse
// into one entry.
func BuildIndex(t *store.Tables) *ScenarioIndex {
	idx := &ScenarioIndex{
		Model:   t.Model,
		Dates:   []time.Time{},
		Tuples:  []ParamTuple{},
		BuiltAt: time.Now(),
	}

	dates := make(map[time.Time]struct{})
	tuples := make(map[[3]float64]struct{})
	var values [][3]float64

	add := func(d time.Time, p scenario.Params) {
		dates[d] = struct{}{}
		v := p.Values()
		if _, ok := tuples[v]; !ok {
			tuples[v] = struct{}{}
			values = append(values, v)
		}
	}
	for _, r := range t.Supplies {
		add(r.Date, r.Params)
	}
	for _, r := range t.Transfers {
		add(r.Date, r.Params)
	}

	for d := range dates {
		idx.Dates = append(idx.Dates, d)
	}
	sort.Slice(idx.Dates, func(i, j int) bool {
		return idx.Dates[i].Before(idx.Dates[j])
	})
	if len(idx.Dates) > 0 {
		idx.FirstDate = idx.Dates[0]
		idx.LastDate = idx.Dates[len(idx.Dates)-1]
	}

	sort.Slice(values, func(i, j int) bool {
		a, b := values[i], values[j]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	for _, v := range values {
		idx.Tuples = append(idx.Tuples, newParamTuple(v))
	}

	return idx
}

func newParamTuple(v [3]float64) ParamTuple {
	var pt ParamTuple
	for i, f := range v {
		pt.Params[i] = decimal.NewFromFloat(f).String()
	}
	pt.Label = strings.Join(pt.Params[:], " / ")
	return pt
}

// IndexCache is a thread-safe cache of scenario indexes by model. Indexes
// derive from immutable tables, so an entry never goes stale within a
// process.
type IndexCache struct {
	mu      sync.RWMutex
	indexes map[scenario.Model]*ScenarioIndex
}

// NewIndexCache creates an empty index cache
func NewIndexCache() *IndexCache {
	return &IndexCache{
		indexes: make(map[scenario.Model]*ScenarioIndex),
	}
}

// Get retrieves the index of a model
func (c *IndexCache) Get(model scenario.Model) (*ScenarioIndex, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, exists := c.indexes[model]
	return idx, exists
}

// Set stores the index of a model
func (c *IndexCache) Set(model scenario.Model, idx *ScenarioIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.indexes[model] = idx
}

// Size returns the number of cached indexes
func (c *IndexCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.indexes)
}
