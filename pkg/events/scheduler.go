package events

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
)

// Priorities used to break ties between events due at the same tick.
// Lower values run first.
const (
	PriorityThresholdChanged = 2
	PriorityDefault          = 5
)

var (
	// ErrInvalidSchedule is returned when an event is scheduled before the current tick
	ErrInvalidSchedule = errors.New("event scheduled in the past")
	// ErrHandleInUse is returned when a handle already tracks an outstanding event
	ErrHandleInUse = errors.New("handle already scheduled")
)

// Target is the callback run when a scheduled event fires
type Target interface {
	Process() error
	Description() string
}

// TargetFunc adapts a plain function into a Target
type TargetFunc struct {
	Name string
	Fn   func() error
}

// Process runs the wrapped function
func (t TargetFunc) Process() error {
	if t.Fn == nil {
		return nil
	}
	return t.Fn()
}

// Description returns the target name
func (t TargetFunc) Description() string {
	return t.Name
}

// Handle tracks whether an event of a given kind is outstanding.
// The zero value is an unscheduled handle.
type Handle struct {
	ev *scheduledEvent
}

// IsScheduled reports whether the handle refers to an event that has not fired yet
func (h *Handle) IsScheduled() bool {
	return h != nil && h.ev != nil
}

// Tick returns the due tick of the outstanding event, or -1 when none is scheduled
func (h *Handle) Tick() int64 {
	if !h.IsScheduled() {
		return -1
	}
	return h.ev.tick
}

// Observer is notified after each dispatched event
type Observer interface {
	OnDispatch(tick int64, description string)
}

type scheduledEvent struct {
	tick     int64
	priority int
	seq      uint64
	target   Target
	handle   *Handle
	index    int
}

// eventHeap is a min-heap ordered by (tick, priority, seq)
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].tick != h[j].tick {
		return h[i].tick < h[j].tick
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x interface{}) {
	ev := x.(*scheduledEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*h = old[:n-1]
	return ev
}

// Scheduler is a single-threaded discrete event dispatcher. It owns the
// current simulated tick and every event it holds.
type Scheduler struct {
	queue      eventHeap
	now        int64
	seq        uint64
	dispatched uint64
	stopped    bool
	observer   Observer
}

// NewScheduler creates a scheduler whose clock starts at startTick
func NewScheduler(startTick int64) *Scheduler {
	s := &Scheduler{now: startTick}
	heap.Init(&s.queue)
	return s
}

// SetObserver installs a dispatch observer; nil removes it
func (s *Scheduler) SetObserver(o Observer) {
	s.observer = o
}

// Now returns the current simulated tick
func (s *Scheduler) Now() int64 {
	return s.now
}

// Pending returns the number of outstanding events
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Dispatched returns the number of events executed since the last reset
func (s *Scheduler) Dispatched() uint64 {
	return s.dispatched
}

// Reset discards all outstanding events and moves the clock to startTick
func (s *Scheduler) Reset(startTick int64) {
	for _, ev := range s.queue {
		if ev.handle != nil {
			ev.handle.ev = nil
		}
	}
	s.queue = s.queue[:0]
	s.now = startTick
	s.seq = 0
	s.dispatched = 0
	s.stopped = false
}

// ScheduleAt registers t to run at the given tick. The handle may be nil.
func (s *Scheduler) ScheduleAt(tick int64, priority int, t Target, h *Handle) error {
	if tick < s.now {
		return fmt.Errorf("schedule %q at tick %d (now %d): %w", t.Description(), tick, s.now, ErrInvalidSchedule)
	}
	if h.IsScheduled() {
		return fmt.Errorf("schedule %q at tick %d: %w", t.Description(), tick, ErrHandleInUse)
	}

	s.seq++
	ev := &scheduledEvent{
		tick:     tick,
		priority: priority,
		seq:      s.seq,
		target:   t,
		handle:   h,
	}
	if h != nil {
		h.ev = ev
	}
	heap.Push(&s.queue, ev)
	return nil
}

// ScheduleTicks registers t to run delta ticks from now
func (s *Scheduler) ScheduleTicks(delta int64, priority int, t Target, h *Handle) error {
	return s.ScheduleAt(s.now+delta, priority, t, h)
}

// Cancel removes the event tracked by h. Unscheduled handles are ignored.
func (s *Scheduler) Cancel(h *Handle) {
	if !h.IsScheduled() {
		return
	}
	ev := h.ev
	h.ev = nil
	if ev.index >= 0 && ev.index < s.queue.Len() && s.queue[ev.index] == ev {
		heap.Remove(&s.queue, ev.index)
	}
}

// Stop makes the current Run or RunUntil return after the executing event
func (s *Scheduler) Stop() {
	s.stopped = true
}

// RunUntil executes every event due at or before tick, in (tick, priority,
// insertion) order, then advances the clock to tick. Events scheduled by
// callbacks are picked up by the same sweep when they fall inside the bound.
func (s *Scheduler) RunUntil(ctx context.Context, tick int64) error {
	if tick < s.now {
		return fmt.Errorf("run until tick %d (now %d): %w", tick, s.now, ErrInvalidSchedule)
	}
	s.stopped = false

	for s.queue.Len() > 0 && s.queue[0].tick <= tick {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.dispatchNext(); err != nil {
			return err
		}
		if s.stopped {
			return nil
		}
	}

	s.now = tick
	return nil
}

// Run executes events until none remain or Stop is called
func (s *Scheduler) Run(ctx context.Context) error {
	s.stopped = false
	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.dispatchNext(); err != nil {
			return err
		}
		if s.stopped {
			return nil
		}
	}
	return nil
}

func (s *Scheduler) dispatchNext() error {
	ev := heap.Pop(&s.queue).(*scheduledEvent)
	if ev.handle != nil {
		ev.handle.ev = nil
	}

	s.now = ev.tick
	s.dispatched++

	if err := ev.target.Process(); err != nil {
		return fmt.Errorf("event %q at tick %d: %w", ev.target.Description(), ev.tick, err)
	}
	if s.observer != nil {
		s.observer.OnDispatch(ev.tick, ev.target.Description())
	}
	return nil
}
