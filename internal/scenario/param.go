package scenario

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Param is one scenario tuning parameter. Scenario identifiers are stored
// as free-form tokens; Value is the token cast to float64 and is what
// matching compares.
type Param struct {
	Token string
	Value float64
}

// Params is the (Param1, Param2, Param3) tuple of a scenario
type Params [3]Param

// ParseParam normalizes a token (NFKC, surrounding space) and casts it to
// float64. Non-numeric, NaN and infinite tokens are rejected.
func ParseParam(token string) (Param, error) {
	normalized := strings.TrimSpace(norm.NFKC.String(token))
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return Param{}, fmt.Errorf("%w: parameter %q is not numeric", ErrMalformedScenarioKey, token)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Param{}, fmt.Errorf("%w: parameter %q is not finite", ErrMalformedScenarioKey, token)
	}
	return Param{Token: token, Value: v}, nil
}

// MustParam is ParseParam for literals known to be valid
func MustParam(token string) Param {
	p, err := ParseParam(token)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseParams parses three tokens into a tuple
func ParseParams(p1, p2, p3 string) (Params, error) {
	var out Params
	for i, tok := range []string{p1, p2, p3} {
		p, err := ParseParam(tok)
		if err != nil {
			return Params{}, fmt.Errorf("param%d: %w", i+1, err)
		}
		out[i] = p
	}
	return out, nil
}

// Values returns the float values of the tuple
func (p Params) Values() [3]float64 {
	return [3]float64{p[0].Value, p[1].Value, p[2].Value}
}

// ParamMatcher decides whether a stored parameter equals a requested one
type ParamMatcher interface {
	Match(stored, requested Param) bool
}

type exactMatcher struct{}

func (exactMatcher) Match(stored, requested Param) bool {
	return stored.Value == requested.Value
}

// ExactMatch compares parameters after the string->float cast with plain
// float equality. Two textually different tokens that cast to the same
// float ("1", "1.0", "1e0") fall into the same bucket.
var ExactMatch ParamMatcher = exactMatcher{}

type toleranceMatcher struct {
	eps float64
}

func (m toleranceMatcher) Match(stored, requested Param) bool {
	return math.Abs(stored.Value-requested.Value) <= m.eps
}

// ToleranceMatch treats parameters within eps of each other as equal.
// A non-positive eps yields ExactMatch.
func ToleranceMatch(eps float64) ParamMatcher {
	if eps <= 0 {
		return ExactMatch
	}
	return toleranceMatcher{eps: eps}
}

// MatchParams applies m to all three positions
func MatchParams(m ParamMatcher, stored, requested Params) bool {
	for i := range stored {
		if !m.Match(stored[i], requested[i]) {
			return false
		}
	}
	return true
}
