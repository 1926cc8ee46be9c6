package scenario

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the fixed textual date pattern of scenario dates
const DateLayout = "2006-01-02"

// Key identifies one forecast run: a model, a calendar date and the three
// scenario parameters.
type Key struct {
	Model  Model
	Date   time.Time
	Params Params
}

// String renders the key for logs and error messages
func (k Key) String() string {
	return fmt.Sprintf("%s@%s(%s,%s,%s)", k.Model, k.Date.Format(DateLayout),
		k.Params[0].Token, k.Params[1].Token, k.Params[2].Token)
}

// ParseKey builds a Key from user-selected strings. Any unparseable date or
// parameter token yields ErrMalformedScenarioKey; an unknown model yields
// ErrUnknownModel.
func ParseKey(model, date, p1, p2, p3 string) (Key, error) {
	m, err := ParseModel(model)
	if err != nil {
		return Key{}, err
	}

	d, err := ParseDate(DateLayout, date)
	if err != nil {
		return Key{}, err
	}

	params, err := ParseParams(p1, p2, p3)
	if err != nil {
		return Key{}, err
	}

	return Key{Model: m, Date: d, Params: params}, nil
}

// ParseDate parses s with layout and discards the time of day
func ParseDate(layout, s string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (expected %s)", ErrMalformedScenarioKey, s, layout)
	}
	return Day(t), nil
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
