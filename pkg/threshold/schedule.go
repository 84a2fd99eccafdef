package threshold

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sherine-k/procflow/pkg/clock"
	"github.com/sherine-k/procflow/pkg/events"
)

// Toggle sets a threshold open or closed at a tick offset from run start
type Toggle struct {
	At   int64
	Open bool
}

// Closure closes the threshold at each cron occurrence for a fixed span
type Closure struct {
	Schedule  cron.Schedule
	ClosedFor time.Duration
}

// Driver changes a threshold from a time table and/or a cron closure
// pattern. Each firing schedules the next one.
type Driver struct {
	threshold *Threshold
	sched     *events.Scheduler
	clk       *clock.Clock
	start     time.Time

	toggles []Toggle
	closure *Closure

	next       int
	runStart   int64
	handle     events.Handle
	cronNext   events.Handle
	cronReopen events.Handle
}

// NewDriver creates a driver for th. start maps tick zero of a run to a
// calendar time for cron evaluation.
func NewDriver(th *Threshold, sched *events.Scheduler, clk *clock.Clock, start time.Time, toggles []Toggle, closure *Closure) *Driver {
	sorted := make([]Toggle, len(toggles))
	copy(sorted, toggles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	return &Driver{
		threshold: th,
		sched:     sched,
		clk:       clk,
		start:     start,
		toggles:   sorted,
		closure:   closure,
	}
}

// Threshold returns the driven threshold
func (d *Driver) Threshold() *Threshold {
	return d.threshold
}

// Start schedules the first toggle and the first cron closure of a run
func (d *Driver) Start() error {
	d.next = 0
	d.runStart = d.sched.Now()
	if err := d.scheduleToggle(); err != nil {
		return err
	}
	if d.closure != nil {
		return d.scheduleClosure(d.start)
	}
	return nil
}

func (d *Driver) scheduleToggle() error {
	if d.next >= len(d.toggles) {
		return nil
	}
	tick := d.runStart + d.toggles[d.next].At
	target := events.TargetFunc{
		Name: d.threshold.Name() + ".toggle",
		Fn:   d.fireToggle,
	}
	return d.sched.ScheduleAt(tick, events.PriorityDefault, target, &d.handle)
}

func (d *Driver) fireToggle() error {
	tg := d.toggles[d.next]
	d.next++
	if err := d.threshold.SetOpen(tg.Open); err != nil {
		return err
	}
	return d.scheduleToggle()
}

func (d *Driver) scheduleClosure(after time.Time) error {
	at := d.closure.Schedule.Next(after)
	if at.IsZero() {
		return nil
	}
	tick := d.runStart + d.clk.DurationToTicks(at.Sub(d.start))
	target := events.TargetFunc{
		Name: d.threshold.Name() + ".close",
		Fn: func() error {
			return d.fireClosure(at)
		},
	}
	if err := d.sched.ScheduleAt(tick, events.PriorityDefault, target, &d.cronNext); err != nil {
		return fmt.Errorf("%s: cron closure at %s: %w", d.threshold.Name(), at.Format(time.RFC3339), err)
	}
	return nil
}

func (d *Driver) fireClosure(at time.Time) error {
	if err := d.threshold.SetOpen(false); err != nil {
		return err
	}

	// Overlapping closures extend the outstanding one.
	d.sched.Cancel(&d.cronReopen)
	reopen := events.TargetFunc{
		Name: d.threshold.Name() + ".reopen",
		Fn: func() error {
			return d.threshold.SetOpen(true)
		},
	}
	if err := d.sched.ScheduleTicks(d.clk.DurationToTicks(d.closure.ClosedFor), events.PriorityDefault, reopen, &d.cronReopen); err != nil {
		return err
	}
	return d.scheduleClosure(at)
}
