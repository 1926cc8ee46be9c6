package scenario

import "time"

// FilterTransfers narrows rows to those matching key's date and all three
// parameters. Row order and duplicates are preserved; a key absent from the
// table yields an empty view, not an error.
func FilterTransfers(rows []TransferRecord, key Key, m ParamMatcher) TransferView {
	if m == nil {
		m = ExactMatch
	}

	view := TransferView{}
	for _, r := range rows {
		// date first: it is the most selective predicate
		if !r.Date.Equal(key.Date) {
			continue
		}
		if !MatchParams(m, r.Params, key.Params) {
			continue
		}
		view = append(view, r)
	}
	return view
}

// FilterSupplies narrows supply rows to key's date and parameters
func FilterSupplies(rows []SupplyRecord, key Key, m ParamMatcher) SupplyView {
	if m == nil {
		m = ExactMatch
	}

	view := SupplyView{}
	for _, r := range rows {
		if !r.Date.Equal(key.Date) {
			continue
		}
		if !MatchParams(m, r.Params, key.Params) {
			continue
		}
		view = append(view, r)
	}
	return view
}

// FilterSuppliesByParams keeps every date of one parameter tuple
func FilterSuppliesByParams(rows []SupplyRecord, params Params, m ParamMatcher) SupplyView {
	if m == nil {
		m = ExactMatch
	}

	view := SupplyView{}
	for _, r := range rows {
		if MatchParams(m, r.Params, params) {
			view = append(view, r)
		}
	}
	return view
}

// SelectState keeps the supply rows of a single state
func (v SupplyView) SelectState(state string) SupplyView {
	out := SupplyView{}
	for _, r := range v {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// SelectBaselineState keeps the baseline rows of a single state
func SelectBaselineState(rows []BaselineRecord, state string) []BaselineRecord {
	out := []BaselineRecord{}
	for _, r := range rows {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// RestrictToState keeps transfers whose state on the given side equals
// state: To for Incoming, From for Outgoing.
func (v TransferView) RestrictToState(state string, dir Direction) TransferView {
	out := TransferView{}
	for _, r := range v {
		switch dir {
		case Incoming:
			if r.To == state {
				out = append(out, r)
			}
		default:
			if r.From == state {
				out = append(out, r)
			}
		}
	}
	return out
}

// DateRange returns the earliest and latest transfer dates in rows
func DateRange(rows []TransferRecord) (first, last time.Time, ok bool) {
	for i, r := range rows {
		if i == 0 || r.Date.Before(first) {
			first = r.Date
		}
		if i == 0 || r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last, len(rows) > 0
}
