package threshold

import (
	"fmt"

	"github.com/sherine-k/procflow/pkg/events"
)

// NotifyDelayTicks is how far after a state change the pending users are told.
// Every threshold that changes in the same instant finishes mutating first.
const NotifyDelayTicks = 2

// User is an entity whose behaviour depends on one or more thresholds
type User interface {
	Name() string
	// Thresholds lists the thresholds this user depends on
	Thresholds() []*Threshold
	// ThresholdChanged is called once per instant in which any of them changed
	ThresholdChanged() error
}

// Notifier collects users awaiting a threshold-changed callback and keeps at
// most one drain event outstanding. One notifier is shared by every threshold
// in a model and is reset at the start of each run.
type Notifier struct {
	sched   *events.Scheduler
	handle  events.Handle
	pending []User
	index   map[User]struct{}

	// OnDrain is called after each drain with the number of users notified
	OnDrain func(tick int64, users []User)
}

// NewNotifier creates a notifier that schedules drains on sched
func NewNotifier(sched *events.Scheduler) *Notifier {
	return &Notifier{
		sched: sched,
		index: make(map[User]struct{}),
	}
}

// Reset drops pending users and cancels any outstanding drain
func (n *Notifier) Reset() {
	n.sched.Cancel(&n.handle)
	n.pending = nil
	n.index = make(map[User]struct{})
}

// Add queues u for notification; repeated adds collapse into one
func (n *Notifier) Add(u User) {
	if _, ok := n.index[u]; ok {
		return
	}
	n.index[u] = struct{}{}
	n.pending = append(n.pending, u)
}

// Pending returns the users awaiting notification, in the order added
func (n *Notifier) Pending() []User {
	out := make([]User, len(n.pending))
	copy(out, n.pending)
	return out
}

// IsScheduled reports whether a drain event is outstanding
func (n *Notifier) IsScheduled() bool {
	return n.handle.IsScheduled()
}

// scheduleDrain schedules the drain if users are waiting and none is outstanding
func (n *Notifier) scheduleDrain() error {
	if len(n.pending) == 0 || n.handle.IsScheduled() {
		return nil
	}
	return n.sched.ScheduleTicks(NotifyDelayTicks, events.PriorityThresholdChanged, drainTarget{n}, &n.handle)
}

func (n *Notifier) drain() error {
	users := n.pending
	n.pending = nil
	n.index = make(map[User]struct{})

	for _, u := range users {
		if err := u.ThresholdChanged(); err != nil {
			return fmt.Errorf("%s: threshold changed: %w", u.Name(), err)
		}
	}
	if n.OnDrain != nil {
		n.OnDrain(n.sched.Now(), users)
	}
	return nil
}

type drainTarget struct {
	n *Notifier
}

func (t drainTarget) Process() error {
	return t.n.drain()
}

func (t drainTarget) Description() string {
	return "UpdateAllThresholdUsers"
}
