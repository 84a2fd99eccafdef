package simulation

import (
	"fmt"

	"github.com/sherine-k/procflow/internal/logging"
	"github.com/sherine-k/procflow/pkg/clock"
	"github.com/sherine-k/procflow/pkg/config"
	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/process"
	"github.com/sherine-k/procflow/pkg/queue"
	"github.com/sherine-k/procflow/pkg/threshold"
)

// Model is a process-flow network built once from a configuration and
// reset at the start of every replication.
type Model struct {
	cfg      *config.Config
	clk      *clock.Clock
	sched    *events.Scheduler
	notifier *threshold.Notifier
	log      logging.Logger

	thresholds []*threshold.Threshold
	drivers    []*threshold.Driver
	queues     []*queue.Queue
	monitors   []*queueMonitor
	servers    []*process.Server
	generators []*process.Generator
	sinks      []*process.Sink

	linkers map[string]process.Linker
}

// link resolves its destination when an item is handed on, so servers may
// forward to servers declared after them.
type link struct {
	name string
	m    *Model
}

func (l link) Name() string {
	return l.name
}

func (l link) AddEntity(item *queue.Item) error {
	dest, ok := l.m.linkers[l.name]
	if !ok {
		return fmt.Errorf("unknown destination %q", l.name)
	}
	return dest.AddEntity(item)
}

// buildModel creates every component named in cfg. rec receives item,
// threshold and queue notifications for reporting.
func buildModel(cfg *config.Config, rec *recorder, log logging.Logger) (*Model, error) {
	clk, err := clock.New(cfg.TicksPerSecond)
	if err != nil {
		return nil, err
	}
	log = logging.OrNoop(log)

	sched := events.NewScheduler(0)
	m := &Model{
		cfg:      cfg,
		clk:      clk,
		sched:    sched,
		notifier: threshold.NewNotifier(sched),
		log:      log,
		linkers:  make(map[string]process.Linker),
	}
	rec.attach(m)
	m.notifier.OnDrain = rec.usersNotified

	byThreshold := make(map[string]*threshold.Threshold)
	for _, tc := range cfg.Thresholds {
		th := threshold.New(tc.Name, sched, m.notifier, log)
		if tc.InitialOpen != nil {
			th.SetInitialOpen(*tc.InitialOpen)
		}
		th.OnStateChange(rec.thresholdChanged(tc.Name))
		byThreshold[tc.Name] = th
		m.thresholds = append(m.thresholds, th)

		var toggles []threshold.Toggle
		for _, tg := range tc.Toggles {
			toggles = append(toggles, threshold.Toggle{At: clk.DurationToTicks(tg.At), Open: tg.Open})
		}
		var closure *threshold.Closure
		if tc.CloseCron != "" {
			schedule, err := clock.ParseCron(tc.CloseCron)
			if err != nil {
				return nil, fmt.Errorf("threshold %s: %w", tc.Name, err)
			}
			closure = &threshold.Closure{Schedule: schedule, ClosedFor: tc.ClosedFor}
		}
		if len(toggles) > 0 || closure != nil {
			m.drivers = append(m.drivers, threshold.NewDriver(th, sched, clk, cfg.StartTime, toggles, closure))
		}
	}

	byQueue := make(map[string]*queue.Queue)
	for _, qc := range cfg.Queues {
		q := queue.New(qc.Name, sched)
		if attr := qc.MatchAttribute; attr != "" {
			q.SetKeyFunc(func(item *queue.Item) string {
				return item.Attributes[attr]
			})
		}
		// The monitor is the first user so it sees every item arrive.
		mon := &queueMonitor{q: q, rec: rec}
		q.AddUser(mon)
		byQueue[qc.Name] = q
		m.queues = append(m.queues, q)
		m.monitors = append(m.monitors, mon)
	}

	for _, sc := range cfg.Sinks {
		sink := process.NewSink(sc.Name, sched, rec)
		m.sinks = append(m.sinks, sink)
		m.linkers[sc.Name] = sink
	}

	for _, sc := range cfg.Servers {
		var ref queue.Ref
		switch {
		case sc.Queue != "":
			ref = queue.StaticRef{Queue: byQueue[sc.Queue]}
		case len(sc.QueueSchedule) > 0:
			entries := make([]queue.TableEntry, 0, len(sc.QueueSchedule))
			for _, e := range sc.QueueSchedule {
				entries = append(entries, queue.TableEntry{FromTick: clk.DurationToTicks(e.At), Queue: byQueue[e.Queue]})
			}
			ref = queue.NewTimeTableRef(entries)
		}

		var match process.MatchExpr
		switch {
		case sc.Match != "":
			match = process.ConstantMatch(sc.Match)
		case len(sc.MatchSchedule) > 0:
			steps := make([]process.MatchStep, 0, len(sc.MatchSchedule))
			for _, e := range sc.MatchSchedule {
				steps = append(steps, process.MatchStep{From: e.At.Seconds(), Value: e.Value})
			}
			match = process.NewTimeTableMatch(steps)
		}

		var ths []*threshold.Threshold
		for _, name := range sc.Thresholds {
			th, ok := byThreshold[name]
			if !ok {
				return nil, fmt.Errorf("server %s: unknown threshold %q", sc.Name, name)
			}
			ths = append(ths, th)
		}

		var next process.Linker
		if sc.Next != "" {
			next = link{name: sc.Next, m: m}
		}

		srv := process.NewServer(process.ServerConfig{
			Name:        sc.Name,
			ServiceTime: clk.DurationToTicks(sc.ServiceTime),
			Queue:       ref,
			Match:       match,
			Thresholds:  ths,
			Next:        next,
		}, sched, clk, rec)
		m.servers = append(m.servers, srv)
		m.linkers[sc.Name] = srv
	}

	for _, gc := range cfg.Generators {
		mode, err := process.ParseKeyMode(gc.KeyMode)
		if err != nil {
			return nil, fmt.Errorf("generator %s: %w", gc.Name, err)
		}
		gen := process.GeneratorConfig{
			Name:         gc.Name,
			Interval:     gc.Interval,
			FirstArrival: gc.FirstArrival,
			MaxCount:     gc.MaxCount,
			Keys:         gc.Keys,
			KeyMode:      mode,
			Attributes:   gc.Attributes,
			Next:         link{name: gc.Next, m: m},
		}
		if gc.CronSchedule != "" {
			if gen.Cron, err = clock.ParseCron(gc.CronSchedule); err != nil {
				return nil, fmt.Errorf("generator %s: %w", gc.Name, err)
			}
		}
		g, err := process.NewGenerator(gen, sched, clk, cfg.StartTime, rec)
		if err != nil {
			return nil, err
		}
		m.generators = append(m.generators, g)
	}

	return m, nil
}

// Clock returns the tick ratio used by the model
func (m *Model) Clock() *clock.Clock {
	return m.clk
}

// Scheduler returns the model's event scheduler
func (m *Model) Scheduler() *events.Scheduler {
	return m.sched
}

// Thresholds returns the model's thresholds in configuration order
func (m *Model) Thresholds() []*threshold.Threshold {
	return m.thresholds
}

// Queues returns the model's queues in configuration order
func (m *Model) Queues() []*queue.Queue {
	return m.queues
}

// Servers returns the model's servers in configuration order
func (m *Model) Servers() []*process.Server {
	return m.servers
}

// Sinks returns the model's sinks in configuration order
func (m *Model) Sinks() []*process.Sink {
	return m.sinks
}

// EarlyInit resets every component for a new replication and schedules
// the initial events. Threshold users are registered again from each
// server's declared thresholds.
func (m *Model) EarlyInit(seed int64) error {
	m.sched.Reset(0)
	m.notifier.Reset()

	for _, th := range m.thresholds {
		if err := th.EarlyInit(); err != nil {
			return err
		}
	}
	for _, srv := range m.servers {
		for _, th := range srv.Thresholds() {
			th.AddUser(srv)
		}
	}

	for _, q := range m.queues {
		q.EarlyInit()
	}
	for _, mon := range m.monitors {
		mon.reset()
	}
	for _, srv := range m.servers {
		if err := srv.EarlyInit(); err != nil {
			return err
		}
	}
	for i, g := range m.generators {
		g.EarlyInit(seed + int64(i))
	}
	for _, sink := range m.sinks {
		sink.EarlyInit()
	}

	for _, d := range m.drivers {
		if err := d.Start(); err != nil {
			return err
		}
	}
	for _, srv := range m.servers {
		if err := srv.StartUp(); err != nil {
			return err
		}
	}
	for _, g := range m.generators {
		if err := g.StartUp(); err != nil {
			return err
		}
	}
	return nil
}

// sample captures queue lengths and gate/server status at the present tick
func (m *Model) sample() TimePoint {
	p := TimePoint{
		Tick:         m.sched.Now(),
		Time:         m.cfg.StartTime.Add(m.clk.TicksToDuration(m.sched.Now())),
		QueueLengths: make(map[string]int, len(m.queues)),
	}
	for _, q := range m.queues {
		p.QueueLengths[q.Name()] = q.Count()
	}
	for _, th := range m.thresholds {
		if th.IsOpen() {
			p.OpenThresholds++
		}
	}
	for _, srv := range m.servers {
		if srv.Busy() {
			p.BusyServers++
		}
	}
	return p
}

// collect reads the statistics of every component up to the present tick
func (m *Model) collect(r *ReplicationResult) error {
	upto := m.sched.Now()

	for _, th := range m.thresholds {
		es, err := entityStates(th.StateEntity, upto)
		if err != nil {
			return err
		}
		r.Thresholds = append(r.Thresholds, es)
	}

	for _, srv := range m.servers {
		es, err := entityStates(srv.State(), upto)
		if err != nil {
			return err
		}
		r.Servers = append(r.Servers, ServerResult{EntityStates: es, Processed: srv.Processed()})
	}

	for _, q := range m.queues {
		st, err := q.Stats(upto)
		if err != nil {
			return err
		}
		r.Queues = append(r.Queues, QueueResult{
			Name:           q.Name(),
			NumberAdded:    st.NumberAdded,
			NumberRemoved:  st.NumberRemoved,
			MaxLength:      st.MaxLength,
			Length:         st.Length,
			AverageLength:  st.AverageLength,
			AverageWaitSec: st.AverageWait / m.clk.TicksPerSecond(),
		})
	}

	for _, sink := range m.sinks {
		r.Sinks = append(r.Sinks, SinkResult{
			Name:                   sink.Name(),
			Count:                  sink.Count(),
			AverageTimeInSystemSec: sink.AverageTimeInSystem() / m.clk.TicksPerSecond(),
		})
	}
	return nil
}

type stateQuerier interface {
	Name() string
	StateNames() []string
	TicksInState(upto int64, name string) (int64, error)
	Fraction(upto int64, name string) (float64, error)
}

func entityStates(e stateQuerier, upto int64) (EntityStates, error) {
	es := EntityStates{Name: e.Name()}
	for _, name := range e.StateNames() {
		ticks, err := e.TicksInState(upto, name)
		if err != nil {
			return es, err
		}
		frac, err := e.Fraction(upto, name)
		if err != nil {
			return es, err
		}
		es.States = append(es.States, StateFraction{State: name, Ticks: ticks, Fraction: frac})
	}
	return es, nil
}
