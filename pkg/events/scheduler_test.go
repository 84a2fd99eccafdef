package events

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func record(order *[]string, name string) Target {
	return TargetFunc{Name: name, Fn: func() error {
		*order = append(*order, name)
		return nil
	}}
}

func TestScheduler_OrdersByTickPriorityAndInsertion(t *testing.T) {
	s := NewScheduler(0)
	var order []string

	mustSchedule(t, s, 10, PriorityDefault, record(&order, "t10-default-a"))
	mustSchedule(t, s, 5, PriorityDefault, record(&order, "t5-default"))
	mustSchedule(t, s, 10, PriorityThresholdChanged, record(&order, "t10-high"))
	mustSchedule(t, s, 10, PriorityDefault, record(&order, "t10-default-b"))

	if err := s.RunUntil(context.Background(), 20); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	want := []string{"t5-default", "t10-high", "t10-default-a", "t10-default-b"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("execution order = %v, want %v", order, want)
	}
	if s.Now() != 20 {
		t.Fatalf("Now() = %d, want 20", s.Now())
	}
	if s.Dispatched() != 4 {
		t.Fatalf("Dispatched() = %d, want 4", s.Dispatched())
	}
}

func TestScheduler_CallbackSchedulesInsideSweep(t *testing.T) {
	s := NewScheduler(0)
	var order []string

	mustSchedule(t, s, 1, PriorityDefault, TargetFunc{Name: "parent", Fn: func() error {
		order = append(order, "parent")
		if err := s.ScheduleTicks(0, PriorityDefault, record(&order, "same-tick"), nil); err != nil {
			return err
		}
		return s.ScheduleTicks(3, PriorityDefault, record(&order, "later"), nil)
	}})

	if err := s.RunUntil(context.Background(), 2); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if want := []string{"parent", "same-tick"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("execution order = %v, want %v", order, want)
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", s.Pending())
	}

	if err := s.RunUntil(context.Background(), 4); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if len(order) != 3 || order[2] != "later" {
		t.Fatalf("execution order = %v, want later event last", order)
	}
}

func TestScheduler_PastScheduleFails(t *testing.T) {
	s := NewScheduler(0)
	if err := s.RunUntil(context.Background(), 10); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	err := s.ScheduleAt(9, PriorityDefault, TargetFunc{Name: "late"}, nil)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("ScheduleAt(9) error = %v, want ErrInvalidSchedule", err)
	}
	if err := s.ScheduleTicks(-1, PriorityDefault, TargetFunc{Name: "late"}, nil); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("ScheduleTicks(-1) error = %v, want ErrInvalidSchedule", err)
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", s.Pending())
	}
}

func TestScheduler_HandleLifecycle(t *testing.T) {
	s := NewScheduler(0)
	var h Handle
	var fired int

	target := TargetFunc{Name: "tracked", Fn: func() error {
		fired++
		return nil
	}}

	if h.IsScheduled() {
		t.Fatalf("zero handle reports scheduled")
	}
	mustScheduleHandle(t, s, 3, target, &h)
	if !h.IsScheduled() || h.Tick() != 3 {
		t.Fatalf("handle scheduled = %v tick = %d, want true/3", h.IsScheduled(), h.Tick())
	}
	if err := s.ScheduleAt(4, PriorityDefault, target, &h); !errors.Is(err, ErrHandleInUse) {
		t.Fatalf("second ScheduleAt error = %v, want ErrHandleInUse", err)
	}

	if err := s.RunUntil(context.Background(), 3); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if h.IsScheduled() {
		t.Fatalf("handle still scheduled after firing")
	}
	if err := s.RunUntil(context.Background(), 10); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// A fired handle can be rescheduled and cancelled.
	mustScheduleHandle(t, s, 12, target, &h)
	s.Cancel(&h)
	if h.IsScheduled() || s.Pending() != 0 {
		t.Fatalf("cancel left handle scheduled=%v pending=%d", h.IsScheduled(), s.Pending())
	}
	if err := s.RunUntil(context.Background(), 20); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if fired != 1 {
		t.Fatalf("cancelled event fired, count = %d", fired)
	}
}

func TestScheduler_CallbackErrorAbortsSweep(t *testing.T) {
	s := NewScheduler(0)
	boom := errors.New("boom")
	var order []string

	mustSchedule(t, s, 1, PriorityDefault, TargetFunc{Name: "faulty", Fn: func() error { return boom }})
	mustSchedule(t, s, 2, PriorityDefault, record(&order, "after"))

	err := s.RunUntil(context.Background(), 5)
	if !errors.Is(err, boom) {
		t.Fatalf("RunUntil error = %v, want boom", err)
	}
	if len(order) != 0 {
		t.Fatalf("events ran after fault: %v", order)
	}
	if s.Now() != 1 {
		t.Fatalf("Now() = %d, want 1", s.Now())
	}
}

func TestScheduler_StopAndReset(t *testing.T) {
	s := NewScheduler(0)
	var h Handle
	var order []string

	mustSchedule(t, s, 1, PriorityDefault, TargetFunc{Name: "stopper", Fn: func() error {
		order = append(order, "stopper")
		s.Stop()
		return nil
	}})
	mustScheduleHandle(t, s, 2, record(&order, "after"), &h)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"stopper"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("execution order = %v, want %v", order, want)
	}

	s.Reset(100)
	if s.Now() != 100 || s.Pending() != 0 || h.IsScheduled() {
		t.Fatalf("after Reset now=%d pending=%d scheduled=%v", s.Now(), s.Pending(), h.IsScheduled())
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s := NewScheduler(0)
	mustSchedule(t, s, 1, PriorityDefault, TargetFunc{Name: "noop"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RunUntil(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunUntil error = %v, want context.Canceled", err)
	}
}

type countingObserver struct {
	names []string
}

func (o *countingObserver) OnDispatch(_ int64, description string) {
	o.names = append(o.names, description)
}

func TestScheduler_Observer(t *testing.T) {
	s := NewScheduler(0)
	obs := &countingObserver{}
	s.SetObserver(obs)

	mustSchedule(t, s, 1, PriorityDefault, TargetFunc{Name: "a"})
	mustSchedule(t, s, 2, PriorityDefault, TargetFunc{Name: "b"})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(obs.names, want) {
		t.Fatalf("observed = %v, want %v", obs.names, want)
	}
}

func mustSchedule(t *testing.T, s *Scheduler, tick int64, priority int, target Target) {
	t.Helper()
	if err := s.ScheduleAt(tick, priority, target, nil); err != nil {
		t.Fatalf("ScheduleAt(%d): %v", tick, err)
	}
}

func mustScheduleHandle(t *testing.T, s *Scheduler, tick int64, target Target, h *Handle) {
	t.Helper()
	if err := s.ScheduleAt(tick, PriorityDefault, target, h); err != nil {
		t.Fatalf("ScheduleAt(%d): %v", tick, err)
	}
}
