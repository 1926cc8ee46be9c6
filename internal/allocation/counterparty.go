package allocation

import (
	"sort"

	"github.com/covidanalytics/ventdash/internal/scenario"
)

// Counterparties returns the distinct partner states of a filtered view,
// sorted ascending. Outgoing collects destinations (State_To), Incoming
// collects origins (State_From).
func Counterparties(view scenario.TransferView, dir scenario.Direction) []string {
	seen := make(map[string]struct{}, len(view))
	states := []string{}

	for _, r := range view {
		s := r.To
		if dir == scenario.Incoming {
			s = r.From
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		states = append(states, s)
	}

	sort.Strings(states)
	return states
}

// CounterpartiesOf restricts view to transfers touching state on the side
// given by dir, then resolves the partners on the opposite side.
func CounterpartiesOf(view scenario.TransferView, state string, dir scenario.Direction) []string {
	return Counterparties(view.RestrictToState(state, dir), dir)
}
