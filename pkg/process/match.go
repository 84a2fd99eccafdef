package process

import "sort"

// MatchExpr yields the match value in force at a simulated time (seconds).
// ok is false when no value applies, meaning any item is eligible.
type MatchExpr interface {
	Next(simTime float64) (value string, ok bool)
}

// ConstantMatch always yields the same value
type ConstantMatch string

// Next returns the constant value
func (m ConstantMatch) Next(float64) (string, bool) {
	return string(m), true
}

// MatchFunc adapts a function into a MatchExpr
type MatchFunc func(simTime float64) (string, bool)

// Next calls the function
func (f MatchFunc) Next(simTime float64) (string, bool) {
	return f(simTime)
}

// MatchStep is a value that applies from From seconds onwards
type MatchStep struct {
	From  float64
	Value string
}

// TimeTableMatch yields the latest step at or before the requested time.
// Before the first step no value applies.
type TimeTableMatch struct {
	steps []MatchStep
}

// NewTimeTableMatch sorts steps by start time
func NewTimeTableMatch(steps []MatchStep) *TimeTableMatch {
	sorted := make([]MatchStep, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })
	return &TimeTableMatch{steps: sorted}
}

// Next returns the value in force at simTime
func (m *TimeTableMatch) Next(simTime float64) (string, bool) {
	i := sort.Search(len(m.steps), func(i int) bool { return m.steps[i].From > simTime })
	if i == 0 {
		return "", false
	}
	return m.steps[i-1].Value, true
}
