package threshold

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/states"
)

type fakeUser struct {
	name       string
	thresholds []*Threshold
	calls      []int64
	sched      *events.Scheduler
	err        error
}

func (u *fakeUser) Name() string             { return u.name }
func (u *fakeUser) Thresholds() []*Threshold { return u.thresholds }
func (u *fakeUser) ThresholdChanged() error {
	u.calls = append(u.calls, u.sched.Now())
	return u.err
}

func newThreshold(t *testing.T, sched *events.Scheduler, n *Notifier, name string) *Threshold {
	t.Helper()
	th := New(name, sched, n, nil)
	if err := th.EarlyInit(); err != nil {
		t.Fatalf("EarlyInit(%s): %v", name, err)
	}
	return th
}

func at(t *testing.T, sched *events.Scheduler, tick int64, fn func() error) {
	t.Helper()
	if err := sched.ScheduleAt(tick, events.PriorityDefault, events.TargetFunc{Name: "test", Fn: fn}, nil); err != nil {
		t.Fatalf("ScheduleAt(%d): %v", tick, err)
	}
}

func TestTicksInStateScenario(t *testing.T) {
	sched := events.NewScheduler(0)
	th := newThreshold(t, sched, NewNotifier(sched), "Gate")

	at(t, sched, 10, func() error { return th.SetOpen(false) })
	if err := sched.RunUntil(context.Background(), 20); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	open, err := th.TicksInState(20, StateOpen)
	if err != nil || open != 10 {
		t.Fatalf("TicksInState(20, Open) = %d, %v, want 10", open, err)
	}
	closed, err := th.TicksInState(20, StateClosed)
	if err != nil || closed != 10 {
		t.Fatalf("TicksInState(20, Closed) = %d, %v, want 10", closed, err)
	}
	if th.PresentState() != StateClosed || th.IsOpen() {
		t.Fatalf("state = %s open = %v, want Closed/false", th.PresentState(), th.IsOpen())
	}
}

func TestSetOpenSameValueIsNoop(t *testing.T) {
	sched := events.NewScheduler(0)
	n := NewNotifier(sched)
	th := newThreshold(t, sched, n, "Gate")
	user := &fakeUser{name: "Server1", thresholds: []*Threshold{th}, sched: sched}
	th.AddUser(user)

	at(t, sched, 5, func() error { return th.SetOpen(true) })
	if err := sched.RunUntil(context.Background(), 5); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	if th.StateStartTick() != 0 {
		t.Fatalf("StateStartTick() = %d, want 0", th.StateStartTick())
	}
	if sched.Pending() != 0 || n.IsScheduled() {
		t.Fatalf("no-op scheduled an event: pending=%d", sched.Pending())
	}
	if names := th.StateNames(); len(names) != 1 {
		t.Fatalf("StateNames() = %v, want only the initial state", names)
	}

	if err := sched.RunUntil(context.Background(), 20); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if len(user.calls) != 0 {
		t.Fatalf("user notified %d times, want 0", len(user.calls))
	}
}

func TestCoalescedNotification(t *testing.T) {
	sched := events.NewScheduler(0)
	n := NewNotifier(sched)
	th1 := newThreshold(t, sched, n, "Gate1")
	th2 := newThreshold(t, sched, n, "Gate2")
	th3 := newThreshold(t, sched, n, "Gate3")

	shared := &fakeUser{name: "Shared", thresholds: []*Threshold{th1, th2, th3}, sched: sched}
	only2 := &fakeUser{name: "Only2", thresholds: []*Threshold{th2}, sched: sched}
	for _, th := range shared.thresholds {
		th.AddUser(shared)
	}
	th2.AddUser(only2)

	var drained []string
	n.OnDrain = func(tick int64, users []User) {
		for _, u := range users {
			drained = append(drained, u.Name())
		}
	}

	at(t, sched, 5, func() error { return th1.SetOpen(false) })
	at(t, sched, 5, func() error { return th2.SetOpen(false) })
	at(t, sched, 5, func() error { return th3.SetOpen(false) })

	if err := sched.RunUntil(context.Background(), 6); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if len(shared.calls) != 0 {
		t.Fatalf("user notified at tick 5 re-entrantly: %v", shared.calls)
	}
	if !n.IsScheduled() {
		t.Fatalf("expected an outstanding drain event")
	}

	if err := sched.RunUntil(context.Background(), 20); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if len(shared.calls) != 1 || shared.calls[0] != 7 {
		t.Fatalf("shared user calls = %v, want one call at tick 7", shared.calls)
	}
	if len(only2.calls) != 1 || only2.calls[0] != 7 {
		t.Fatalf("only2 user calls = %v, want one call at tick 7", only2.calls)
	}
	if len(drained) != 2 || drained[0] != "Shared" || drained[1] != "Only2" {
		t.Fatalf("drain order = %v, want [Shared Only2]", drained)
	}
	if n.IsScheduled() || len(n.Pending()) != 0 {
		t.Fatalf("notifier not cleared after drain")
	}
}

func TestChangeDuringDrainIsDeferred(t *testing.T) {
	sched := events.NewScheduler(0)
	n := NewNotifier(sched)
	th1 := newThreshold(t, sched, n, "Gate1")
	th2 := newThreshold(t, sched, n, "Gate2")

	follower := &fakeUser{name: "Follower", thresholds: []*Threshold{th2}, sched: sched}
	th2.AddUser(follower)
	chain := &chainUser{fakeUser: fakeUser{name: "Chain", sched: sched}, next: th2}
	th1.AddUser(chain)

	at(t, sched, 1, func() error { return th1.SetOpen(false) })
	if err := sched.RunUntil(context.Background(), 10); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if len(chain.calls) != 1 || chain.calls[0] != 3 {
		t.Fatalf("chain calls = %v, want [3]", chain.calls)
	}
	if len(follower.calls) != 1 || follower.calls[0] != 5 {
		t.Fatalf("follower calls = %v, want [5]", follower.calls)
	}
}

type chainUser struct {
	fakeUser
	next *Threshold
}

func (u *chainUser) ThresholdChanged() error {
	if err := u.fakeUser.ThresholdChanged(); err != nil {
		return err
	}
	return u.next.SetOpen(false)
}

func TestFractionsSumToOne(t *testing.T) {
	sched := events.NewScheduler(0)
	th := newThreshold(t, sched, NewNotifier(sched), "Gate")

	toggles := []int64{3, 7, 8, 15, 21, 40}
	for i, tick := range toggles {
		open := i%2 == 1
		at(t, sched, tick, func() error { return th.SetOpen(open) })
	}

	for _, upto := range []int64{40, 45, 100} {
		if err := sched.RunUntil(context.Background(), upto); err != nil {
			t.Fatalf("RunUntil: %v", err)
		}
		open, err := th.OpenFraction(upto)
		if err != nil {
			t.Fatalf("OpenFraction(%d): %v", upto, err)
		}
		closed, err := th.ClosedFraction(upto)
		if err != nil {
			t.Fatalf("ClosedFraction(%d): %v", upto, err)
		}
		if math.Abs(open+closed-1) > 1e-12 {
			t.Fatalf("open %v + closed %v != 1 at tick %d", open, closed, upto)
		}
	}
}

func TestFractionsWithNoElapsedTime(t *testing.T) {
	sched := events.NewScheduler(0)
	th := newThreshold(t, sched, NewNotifier(sched), "Gate")

	f, err := th.OpenFraction(0)
	if !errors.Is(err, states.ErrNoElapsedTime) || !math.IsNaN(f) {
		t.Fatalf("OpenFraction(0) = %v, %v, want NaN/ErrNoElapsedTime", f, err)
	}
	f, err = th.ClosedFraction(0)
	if !errors.Is(err, states.ErrNoElapsedTime) || !math.IsNaN(f) {
		t.Fatalf("ClosedFraction(0) = %v, %v, want NaN/ErrNoElapsedTime", f, err)
	}
}

func TestEarlyInitRestoresInitialValue(t *testing.T) {
	sched := events.NewScheduler(0)
	n := NewNotifier(sched)
	th := New("Gate", sched, n, nil)
	th.SetInitialOpen(false)
	if err := th.EarlyInit(); err != nil {
		t.Fatalf("EarlyInit: %v", err)
	}
	if th.IsOpen() || th.PresentState() != StateClosed {
		t.Fatalf("initial state = %s open = %v, want Closed/false", th.PresentState(), th.IsOpen())
	}

	th.AddUser(&fakeUser{name: "u", sched: sched})
	at(t, sched, 3, func() error { return th.SetOpen(true) })
	if err := sched.RunUntil(context.Background(), 4); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	sched.Reset(0)
	n.Reset()
	if err := th.EarlyInit(); err != nil {
		t.Fatalf("EarlyInit: %v", err)
	}
	if th.IsOpen() || len(th.Users()) != 0 || n.IsScheduled() {
		t.Fatalf("EarlyInit left open=%v users=%d scheduled=%v", th.IsOpen(), len(th.Users()), n.IsScheduled())
	}
	ticks, err := th.TicksInState(5, StateOpen)
	if err != nil || ticks != 0 {
		t.Fatalf("TicksInState(5, Open) after reset = %d, %v, want 0", ticks, err)
	}
}

func TestUserErrorAbortsDrain(t *testing.T) {
	sched := events.NewScheduler(0)
	n := NewNotifier(sched)
	th := newThreshold(t, sched, n, "Gate")
	boom := errors.New("boom")
	th.AddUser(&fakeUser{name: "Faulty", sched: sched, err: boom})

	at(t, sched, 1, func() error { return th.SetOpen(false) })
	if err := sched.RunUntil(context.Background(), 10); !errors.Is(err, boom) {
		t.Fatalf("RunUntil error = %v, want boom", err)
	}
}

func TestAllOpen(t *testing.T) {
	sched := events.NewScheduler(0)
	n := NewNotifier(sched)
	a := newThreshold(t, sched, n, "A")
	b := newThreshold(t, sched, n, "B")

	if !AllOpen(nil) || !AllOpen([]*Threshold{a, b}) {
		t.Fatalf("AllOpen should be true for open thresholds")
	}
	if err := b.SetOpen(false); err != nil {
		t.Fatalf("SetOpen: %v", err)
	}
	if AllOpen([]*Threshold{a, b}) {
		t.Fatalf("AllOpen true with a closed threshold")
	}
}
