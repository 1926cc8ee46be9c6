package allocation

import "github.com/covidanalytics/ventdash/internal/scenario"

// DefaultMaxRows bounds transfer tables handed to the rendering layer
const DefaultMaxRows = 100

// TruncationPolicy controls what happens when a table exceeds MaxRows
type TruncationPolicy int

const (
	// TruncateSilently cuts the table to MaxRows and reports nothing.
	TruncateSilently TruncationPolicy = iota
	// TruncateAndReport cuts the table and records the dropped row count.
	TruncateAndReport
)

// String method for TruncationPolicy enum
func (p TruncationPolicy) String() string {
	switch p {
	case TruncateSilently:
		return "silent"
	case TruncateAndReport:
		return "report"
	default:
		return "unknown"
	}
}

// TransferRow is one rendered table row
type TransferRow struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Units       int64  `json:"units"`
}

// TableOptions configures BuildTransferTable. An empty State disables the
// state restriction.
type TableOptions struct {
	State      string
	Direction  scenario.Direction
	MaxRows    int
	Truncation TruncationPolicy
}

// TransferTable is the output of BuildTransferTable. Dropped is only set
// under TruncateAndReport.
type TransferTable struct {
	Rows    []TransferRow `json:"rows"`
	Dropped int           `json:"dropped,omitempty"`
}

// TotalUnits sums the units of all rows
func (t TransferTable) TotalUnits() int64 {
	var total int64
	for _, r := range t.Rows {
		total += r.Units
	}
	return total
}

// BuildTransferTable projects a filtered view into origin/destination/units
// rows, optionally restricted to one state, keeping the first MaxRows rows
// in view order.
func BuildTransferTable(view scenario.TransferView, opts TableOptions) TransferTable {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	if opts.State != "" {
		view = view.RestrictToState(opts.State, opts.Direction)
	}

	n := len(view)
	if n > maxRows {
		n = maxRows
	}

	table := TransferTable{Rows: make([]TransferRow, 0, n)}
	for _, r := range view[:n] {
		table.Rows = append(table.Rows, TransferRow{
			Origin:      r.From,
			Destination: r.To,
			Units:       r.Units,
		})
	}

	if opts.Truncation == TruncateAndReport {
		table.Dropped = len(view) - n
	}

	return table
}
