package scenario

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformedScenarioKey is returned when a date or parameter token in a
	// scenario selection cannot be parsed.
	ErrMalformedScenarioKey = errors.New("malformed scenario key")

	// ErrUnknownModel is returned for model ids outside the supported set.
	ErrUnknownModel = errors.New("unknown forecasting model")

	// ErrInvalidDirection is returned when a direction string is neither
	// incoming nor outgoing.
	ErrInvalidDirection = errors.New("invalid transfer direction")
)

// USAggregate is the state code of the national aggregate row.
const USAggregate = "US"

// Model identifies the upstream forecasting model a table was produced from
type Model string

const (
	ModelIHME           Model = "ihme"
	ModelCOVIDAnalytics Model = "ode"
)

// Models lists every supported model in display order
var Models = []Model{ModelCOVIDAnalytics, ModelIHME}

// String returns the model id
func (m Model) String() string {
	return string(m)
}

// Valid reports whether m is a supported model
func (m Model) Valid() bool {
	switch m {
	case ModelIHME, ModelCOVIDAnalytics:
		return true
	}
	return false
}

// ParseModel resolves a model id. Display names ("Washington IHME",
// "COVIDAnalytics") are accepted as aliases.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ihme", "washington ihme":
		return ModelIHME, nil
	case "ode", "covidanalytics":
		return ModelCOVIDAnalytics, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
}

// Direction selects which end of a transfer a state is matched against
type Direction int

const (
	// Outgoing: units leave the selected state (State_From side).
	Outgoing Direction = iota
	// Incoming: units arrive at the selected state (State_To side).
	Incoming
)

// String method for Direction enum
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "unknown"
	}
}

// ParseDirection accepts "outgoing"/"out" and "incoming"/"in"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outgoing", "out":
		return Outgoing, nil
	case "incoming", "in":
		return Incoming, nil
	default:
		return Outgoing, fmt.Errorf("%w: %q (expected incoming or outgoing)", ErrInvalidDirection, s)
	}
}

// SupplyRecord is one row of a state supplies table: the optimized supply
// and shortage for one state, date and scenario.
type SupplyRecord struct {
	State    string
	Date     time.Time
	Params   Params
	Shortage int64
	Fields   map[string]string // remaining columns, verbatim
}

// TransferRecord is one recommended transfer between two states
type TransferRecord struct {
	Date   time.Time
	Params Params
	From   string
	To     string
	Units  int64
}

// BaselineRecord is a pre-optimization projection row
type BaselineRecord struct {
	State    string
	Date     time.Time
	Shortage int64
}

// TransferView is a request-scoped subset of transfer rows
type TransferView []TransferRecord

// SupplyView is a request-scoped subset of supply rows
type SupplyView []SupplyRecord
