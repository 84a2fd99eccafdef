package threshold

import (
	"context"
	"fmt"
	"math"

	"github.com/sherine-k/procflow/internal/logging"
	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/states"
)

// Threshold state names
const (
	StateOpen   = "Open"
	StateClosed = "Closed"
)

type validator struct{}

func (validator) IsValidState(name string) bool {
	return name == StateOpen || name == StateClosed
}

func (validator) IsValidWorkingState(name string) bool {
	return name == StateOpen
}

// Threshold is a two-state gate. The open flag is the source of truth and
// the state name is derived from it.
type Threshold struct {
	*states.StateEntity

	sched    *events.Scheduler
	notifier *Notifier
	log      logging.Logger

	users       []User
	open        bool
	initialOpen bool
}

// New creates a threshold that starts open
func New(name string, sched *events.Scheduler, notifier *Notifier, log logging.Logger) *Threshold {
	return &Threshold{
		StateEntity: states.NewStateEntity(name, sched, validator{}),
		sched:       sched,
		notifier:    notifier,
		log:         logging.OrNoop(log).With(logging.String("threshold", name)),
		open:        true,
		initialOpen: true,
	}
}

// SetInitialOpen sets the value the threshold takes at run start
func (t *Threshold) SetInitialOpen(open bool) {
	t.initialOpen = open
}

// InitialState returns the state entered at run start
func (t *Threshold) InitialState() string {
	if t.initialOpen {
		return StateOpen
	}
	return StateClosed
}

// EarlyInit resets the state machine and forgets registered users. Users are
// registered again by the model once every threshold has been reset.
func (t *Threshold) EarlyInit() error {
	t.open = t.initialOpen
	t.users = nil
	return t.Reset(t.InitialState(), t.sched.Now())
}

// AddUser registers u for notification; duplicates are ignored
func (t *Threshold) AddUser(u User) {
	for _, existing := range t.users {
		if existing == u {
			return
		}
	}
	t.users = append(t.users, u)
}

// ClearUsers forgets every registered user
func (t *Threshold) ClearUsers() {
	t.users = nil
}

// Users returns the registered users
func (t *Threshold) Users() []User {
	out := make([]User, len(t.users))
	copy(out, t.users)
	return out
}

// IsOpen reports whether the threshold is open
func (t *Threshold) IsOpen() bool {
	return t.open
}

// SetOpen changes the threshold. Setting the current value is a no-op.
func (t *Threshold) SetOpen(open bool) error {
	if t.open == open {
		return nil
	}
	t.log.Debug(context.Background(), "setOpen", logging.Bool("open", open), logging.Int64("tick", t.sched.Now()))

	t.open = open
	name := StateClosed
	if open {
		name = StateOpen
	}
	if err := t.SetState(name); err != nil {
		return err
	}

	for _, u := range t.users {
		t.notifier.Add(u)
	}
	if err := t.notifier.scheduleDrain(); err != nil {
		return fmt.Errorf("%s: setOpen(%t): %w", t.Name(), open, err)
	}
	return nil
}

// OpenFraction returns the share of open ticks among open and closed ticks
func (t *Threshold) OpenFraction(upto int64) (float64, error) {
	openTicks, closedTicks, err := t.openClosedTicks(upto)
	if err != nil {
		return math.NaN(), err
	}
	return states.Ratio(t.Name(), openTicks, openTicks+closedTicks)
}

// ClosedFraction returns the share of closed ticks among open and closed ticks
func (t *Threshold) ClosedFraction(upto int64) (float64, error) {
	openTicks, closedTicks, err := t.openClosedTicks(upto)
	if err != nil {
		return math.NaN(), err
	}
	return states.Ratio(t.Name(), closedTicks, openTicks+closedTicks)
}

func (t *Threshold) openClosedTicks(upto int64) (int64, int64, error) {
	openTicks, err := t.TicksInState(upto, StateOpen)
	if err != nil {
		return 0, 0, err
	}
	closedTicks, err := t.TicksInState(upto, StateClosed)
	if err != nil {
		return 0, 0, err
	}
	return openTicks, closedTicks, nil
}

// AllOpen reports whether every threshold in ths is open
func AllOpen(ths []*Threshold) bool {
	for _, th := range ths {
		if !th.IsOpen() {
			return false
		}
	}
	return true
}
