package process

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sherine-k/procflow/pkg/clock"
	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/queue"
)

// KeyMode selects how a generator assigns match keys
type KeyMode string

const (
	KeyModeRoundRobin KeyMode = "round-robin"
	KeyModeRandom     KeyMode = "random"
)

var (
	// ErrUnknownKeyMode is returned for a key mode other than round-robin or random
	ErrUnknownKeyMode = errors.New("unknown key mode")
	// ErrIntervalTooShort is returned for an interval that rounds to zero ticks
	ErrIntervalTooShort = errors.New("interval shorter than one tick")
)

// GeneratorConfig holds the resolved inputs of a generator
type GeneratorConfig struct {
	Name string
	// Exactly one of Interval and Cron drives arrivals
	Interval time.Duration
	Cron     cron.Schedule
	// FirstArrival delays the first interval-driven arrival
	FirstArrival time.Duration
	MaxCount     int64 // 0 means unlimited
	Keys         []string
	KeyMode      KeyMode
	Attributes   map[string]string
	Next         Linker
}

// Generator creates items and passes them to the next component
type Generator struct {
	cfg      GeneratorConfig
	sched    *events.Scheduler
	clk      *clock.Clock
	start    time.Time
	observer Observer

	rng      *rand.Rand
	count    int64
	runStart int64
	handle   events.Handle
}

// NewGenerator creates a generator. start maps tick zero of a run to a
// calendar time for cron evaluation.
func NewGenerator(cfg GeneratorConfig, sched *events.Scheduler, clk *clock.Clock, start time.Time, observer Observer) (*Generator, error) {
	if cfg.Next == nil {
		return nil, fmt.Errorf("generator %s: next component is required", cfg.Name)
	}
	if (cfg.Interval > 0) == (cfg.Cron != nil) {
		return nil, fmt.Errorf("generator %s: exactly one of interval and cron is required", cfg.Name)
	}
	if cfg.Interval > 0 && clk.DurationToTicks(cfg.Interval) < 1 {
		return nil, fmt.Errorf("generator %s: interval %s: %w", cfg.Name, cfg.Interval, ErrIntervalTooShort)
	}
	if cfg.KeyMode == "" {
		cfg.KeyMode = KeyModeRoundRobin
	}
	return &Generator{
		cfg:      cfg,
		sched:    sched,
		clk:      clk,
		start:    start,
		observer: orNoObserver(observer),
	}, nil
}

// Name returns the generator name
func (g *Generator) Name() string {
	return g.cfg.Name
}

// Count returns the number of items created since the last EarlyInit
func (g *Generator) Count() int64 {
	return g.count
}

// EarlyInit resets the generator; seed makes key selection reproducible
func (g *Generator) EarlyInit(seed int64) {
	g.sched.Cancel(&g.handle)
	g.rng = rand.New(rand.NewSource(seed))
	g.count = 0
	g.runStart = g.sched.Now()
}

// StartUp schedules the first arrival
func (g *Generator) StartUp() error {
	if g.cfg.Cron != nil {
		return g.scheduleCron(g.start)
	}
	return g.scheduleAt(g.runStart + g.clk.DurationToTicks(g.cfg.FirstArrival))
}

func (g *Generator) scheduleAt(tick int64) error {
	return g.sched.ScheduleAt(tick, events.PriorityDefault, events.TargetFunc{
		Name: g.cfg.Name + ".createEntity",
		Fn:   g.fire,
	}, &g.handle)
}

func (g *Generator) scheduleCron(after time.Time) error {
	at := g.cfg.Cron.Next(after)
	if at.IsZero() {
		return nil
	}
	return g.scheduleAt(g.runStart + g.clk.DurationToTicks(at.Sub(g.start)))
}

func (g *Generator) fire() error {
	if g.cfg.MaxCount > 0 && g.count >= g.cfg.MaxCount {
		return nil
	}

	g.count++
	item := &queue.Item{
		ID:          fmt.Sprintf("%s-%d", g.cfg.Name, g.count),
		MatchKey:    g.nextKey(),
		CreatedTick: g.sched.Now(),
	}
	if len(g.cfg.Attributes) > 0 {
		item.Attributes = make(map[string]string, len(g.cfg.Attributes))
		for k, v := range g.cfg.Attributes {
			item.Attributes[k] = v
		}
	}
	g.observer.ItemCreated(g.cfg.Name, item)
	if err := g.cfg.Next.AddEntity(item); err != nil {
		return fmt.Errorf("%s: send %s to %s: %w", g.cfg.Name, item.ID, g.cfg.Next.Name(), err)
	}

	if g.cfg.MaxCount > 0 && g.count >= g.cfg.MaxCount {
		return nil
	}
	if g.cfg.Cron != nil {
		now := g.start.Add(g.clk.TicksToDuration(g.sched.Now() - g.runStart))
		return g.scheduleCron(now)
	}
	return g.scheduleAt(g.sched.Now() + g.clk.DurationToTicks(g.cfg.Interval))
}

func (g *Generator) nextKey() string {
	if len(g.cfg.Keys) == 0 {
		return ""
	}
	switch g.cfg.KeyMode {
	case KeyModeRandom:
		return g.cfg.Keys[g.rng.Intn(len(g.cfg.Keys))]
	default:
		return g.cfg.Keys[int((g.count-1)%int64(len(g.cfg.Keys)))]
	}
}

// ParseKeyMode validates a configured key mode; empty selects round-robin
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(s) {
	case "", KeyModeRoundRobin:
		return KeyModeRoundRobin, nil
	case KeyModeRandom:
		return KeyModeRandom, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownKeyMode)
	}
}
