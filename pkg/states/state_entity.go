package states

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidState is returned when a state name is outside the entity's legal set
	ErrInvalidState = errors.New("invalid state")
	// ErrNoElapsedTime is returned when a fraction is requested over zero elapsed ticks
	ErrNoElapsedTime = errors.New("no elapsed time in any state")
	// ErrQueryBeforeStateStart is returned when ticks are requested before the present state began
	ErrQueryBeforeStateStart = errors.New("query tick precedes present state start")
)

// Validator decides which state names an entity accepts
type Validator interface {
	IsValidState(name string) bool
	IsValidWorkingState(name string) bool
}

// ListValidator accepts a fixed list of states, some of which count as working
type ListValidator struct {
	States  []string
	Working []string
}

// IsValidState reports whether name is in States
func (v ListValidator) IsValidState(name string) bool {
	return contains(v.States, name)
}

// IsValidWorkingState reports whether name is in Working
func (v ListValidator) IsValidWorkingState(name string) bool {
	return contains(v.Working, name)
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

// Clock reports the current simulated tick
type Clock interface {
	Now() int64
}

// StateRecord holds the accumulated ticks for one state
type StateRecord struct {
	Name    string
	Working bool
	Ticks   int64
}

// StateEntity is a timed state machine that accumulates the ticks spent
// in each state. Accumulators are finalized lazily at query time.
type StateEntity struct {
	name      string
	clock     Clock
	validator Validator

	records   map[string]*StateRecord
	order     []string
	present   *StateRecord
	startTick int64
	resetTick int64

	onChange []func(prev, next string)
}

// NewStateEntity creates a state machine; Reset must be called before use
func NewStateEntity(name string, clock Clock, validator Validator) *StateEntity {
	return &StateEntity{
		name:      name,
		clock:     clock,
		validator: validator,
		records:   make(map[string]*StateRecord),
	}
}

// Name returns the entity name
func (e *StateEntity) Name() string {
	return e.name
}

// OnStateChange registers a hook called after every real transition
func (e *StateEntity) OnStateChange(fn func(prev, next string)) {
	e.onChange = append(e.onChange, fn)
}

// Reset clears all accumulators and enters initial at startTick
func (e *StateEntity) Reset(initial string, startTick int64) error {
	if !e.validator.IsValidState(initial) {
		return fmt.Errorf("%s: reset to %q: %w", e.name, initial, ErrInvalidState)
	}
	e.records = make(map[string]*StateRecord)
	e.order = e.order[:0]
	e.present = e.record(initial)
	e.startTick = startTick
	e.resetTick = startTick
	return nil
}

// PresentState returns the current state name
func (e *StateEntity) PresentState() string {
	if e.present == nil {
		return ""
	}
	return e.present.Name
}

// StateStartTick returns the tick at which the present state began
func (e *StateEntity) StateStartTick() int64 {
	return e.startTick
}

// IsWorking reports whether the present state is a working state
func (e *StateEntity) IsWorking() bool {
	return e.present != nil && e.present.Working
}

// SetState moves to name. Setting the present state again is a no-op.
func (e *StateEntity) SetState(name string) error {
	if e.present != nil && e.present.Name == name {
		return nil
	}
	if !e.validator.IsValidState(name) {
		return fmt.Errorf("%s: set state %q: %w", e.name, name, ErrInvalidState)
	}

	now := e.clock.Now()
	prev := ""
	if e.present != nil {
		prev = e.present.Name
		e.present.Ticks += now - e.startTick
	}

	e.present = e.record(name)
	e.startTick = now

	for _, fn := range e.onChange {
		fn(prev, name)
	}
	return nil
}

func (e *StateEntity) record(name string) *StateRecord {
	if rec, ok := e.records[name]; ok {
		return rec
	}
	rec := &StateRecord{Name: name, Working: e.validator.IsValidWorkingState(name)}
	e.records[name] = rec
	e.order = append(e.order, name)
	return rec
}

// StateNames lists every state entered since the last reset, in first-entry order
func (e *StateEntity) StateNames() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// TicksInState returns the ticks spent in name up to upto, including the
// in-progress interval when name is the present state.
func (e *StateEntity) TicksInState(upto int64, name string) (int64, error) {
	if upto < e.startTick {
		return 0, fmt.Errorf("%s: ticks in %q at %d (state began %d): %w", e.name, name, upto, e.startTick, ErrQueryBeforeStateStart)
	}
	rec, ok := e.records[name]
	if !ok {
		return 0, nil
	}
	ticks := rec.Ticks
	if rec == e.present {
		ticks += upto - e.startTick
	}
	return ticks, nil
}

// TotalTicks returns the ticks elapsed in all states since the last reset
func (e *StateEntity) TotalTicks(upto int64) (int64, error) {
	var total int64
	for _, name := range e.order {
		ticks, err := e.TicksInState(upto, name)
		if err != nil {
			return 0, err
		}
		total += ticks
	}
	return total, nil
}

// WorkingTicks returns the ticks spent in working states
func (e *StateEntity) WorkingTicks(upto int64) (int64, error) {
	var total int64
	for _, name := range e.order {
		if !e.records[name].Working {
			continue
		}
		ticks, err := e.TicksInState(upto, name)
		if err != nil {
			return 0, err
		}
		total += ticks
	}
	return total, nil
}

// ResetTick returns the tick of the last reset
func (e *StateEntity) ResetTick() int64 {
	return e.resetTick
}

// Fraction returns the share of elapsed ticks spent in name. A zero
// denominator yields NaN and ErrNoElapsedTime.
func (e *StateEntity) Fraction(upto int64, name string) (float64, error) {
	ticks, err := e.TicksInState(upto, name)
	if err != nil {
		return math.NaN(), err
	}
	total, err := e.TotalTicks(upto)
	if err != nil {
		return math.NaN(), err
	}
	return Ratio(e.name, ticks, total)
}

// Ratio divides part by total, refusing a zero total
func Ratio(entity string, part, total int64) (float64, error) {
	if total == 0 {
		return math.NaN(), fmt.Errorf("%s: %w", entity, ErrNoElapsedTime)
	}
	return float64(part) / float64(total), nil
}
