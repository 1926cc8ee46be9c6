package catalog

import "github.com/covidanalytics/ventdash/internal/scenario"

// Catalog is the static display configuration of the dashboard: which
// models are offered, their names and the labels of the comparison series.
type Catalog struct {
	APIVersion string       `yaml:"apiVersion" json:"apiVersion"`
	Kind       string       `yaml:"kind" json:"kind"`
	Models     []ModelEntry `yaml:"models" json:"models"`
	Series     SeriesLabels `yaml:"series" json:"series"`
	Defaults   Defaults     `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// ModelEntry describes one forecasting model
type ModelEntry struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"displayName" json:"displayName"`
	Default     bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// SeriesLabels are the human-readable names of the shortage series
type SeriesLabels struct {
	BaselineLabel  string `yaml:"baselineLabel" json:"baselineLabel"`
	OptimizedLabel string `yaml:"optimizedLabel" json:"optimizedLabel"`
}

// Defaults is the initial selection offered to the UI
type Defaults struct {
	Date   string   `yaml:"date,omitempty" json:"date,omitempty"`
	Params []string `yaml:"params,omitempty" json:"params,omitempty"`
}

// ValidationError represents a catalog problem at a specific path
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}

// ValidationErrors collects every problem found in one catalog file
type ValidationErrors []ValidationError

// Error implements the error interface
func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0].Error()
	default:
		return errs[0].Error() + " (and more)"
	}
}

// ModelIDs returns the catalog's models in listing order
func (c *Catalog) ModelIDs() []scenario.Model {
	ids := make([]scenario.Model, 0, len(c.Models))
	for _, m := range c.Models {
		ids = append(ids, scenario.Model(m.ID))
	}
	return ids
}

// DisplayName returns the configured name of m, or its id
func (c *Catalog) DisplayName(m scenario.Model) string {
	for _, e := range c.Models {
		if e.ID == string(m) {
			return e.DisplayName
		}
	}
	return string(m)
}

// Offers reports whether m is listed in the catalog
func (c *Catalog) Offers(m scenario.Model) bool {
	for _, e := range c.Models {
		if e.ID == string(m) {
			return true
		}
	}
	return false
}

// DefaultModel returns the model flagged default, or the first one
func (c *Catalog) DefaultModel() scenario.Model {
	for _, e := range c.Models {
		if e.Default {
			return scenario.Model(e.ID)
		}
	}
	if len(c.Models) > 0 {
		return scenario.Model(c.Models[0].ID)
	}
	return ""
}

// Default returns the built-in catalog used when no file is configured
func Default() *Catalog {
	return &Catalog{
		APIVersion: "ventdash/v1",
		Kind:       "Catalog",
		Models: []ModelEntry{
			{ID: string(scenario.ModelCOVIDAnalytics), DisplayName: "COVIDAnalytics", Default: true},
			{ID: string(scenario.ModelIHME), DisplayName: "Washington IHME"},
		},
		Series: SeriesLabels{
			BaselineLabel:  "Shortage (no transfers)",
			OptimizedLabel: "Shortage (optimized transfers)",
		},
	}
}
