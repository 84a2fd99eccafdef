package simulation

import (
	"context"
	"fmt"

	"github.com/sherine-k/procflow/internal/logging"
	"github.com/sherine-k/procflow/internal/observability"
	"github.com/sherine-k/procflow/pkg/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Simulator runs a process-flow model for a number of replications
type Simulator struct {
	config  *config.Config
	log     logging.Logger
	metrics *observability.SimCollector

	model   *Model
	rec     *recorder
	results []ReplicationResult
}

// Option configures a Simulator
type Option func(*Simulator)

// WithLogger sets the simulator logger
func WithLogger(log logging.Logger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// WithMetrics records dispatch, notification and queue metrics into c
func WithMetrics(c *observability.SimCollector) Option {
	return func(s *Simulator) {
		s.metrics = c
	}
}

// NewSimulator builds the model described by cfg
func NewSimulator(cfg *config.Config, opts ...Option) (*Simulator, error) {
	s := &Simulator{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNoop(s.log)

	s.rec = newRecorder(s.metrics, s.log)
	model, err := buildModel(cfg, s.rec, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %w", err)
	}
	if s.metrics != nil {
		model.sched.SetObserver(s.metrics)
	}
	s.model = model
	return s, nil
}

// Model returns the simulated network
func (s *Simulator) Model() *Model {
	return s.model
}

// Run executes every replication in order. Replication i uses seed+i so a
// run is reproducible from the configuration alone.
func (s *Simulator) Run(ctx context.Context) error {
	ctx, span := observability.Tracer().Start(ctx, "simulation")
	defer span.End()
	span.SetAttributes(
		attribute.Int("replications", s.config.Replications),
		attribute.Int64("seed", s.config.Seed),
		attribute.String("run_duration", s.config.RunDuration.String()),
	)

	s.results = nil
	for i := 0; i < s.config.Replications; i++ {
		res, err := s.runReplication(ctx, i)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "replication failed")
			s.log.Error(ctx, "replication failed", logging.Int("replication", i), logging.Err(err))
			return fmt.Errorf("replication %d: %w", i, err)
		}
		s.results = append(s.results, res)
	}
	return nil
}

func (s *Simulator) runReplication(ctx context.Context, index int) (ReplicationResult, error) {
	seed := s.config.Seed + int64(index)
	ctx, span := observability.Tracer().Start(ctx, "replication")
	defer span.End()
	span.SetAttributes(attribute.Int("replication", index), attribute.Int64("seed", seed))

	m := s.model
	s.rec.take()
	if err := m.EarlyInit(seed); err != nil {
		return ReplicationResult{}, fmt.Errorf("early init: %w", err)
	}

	end := m.clk.DurationToTicks(s.config.RunDuration)
	step := m.clk.DurationToTicks(s.config.SampleInterval)
	if step <= 0 {
		step = end
	}

	res := ReplicationResult{Index: index, Seed: seed, EndTick: end}
	s.log.Info(ctx, "replication started",
		logging.Int("replication", index),
		logging.Int64("seed", seed),
		logging.Int64("end_tick", end))

	// Each sample is taken after every event due at its tick.
	for tick := int64(0); ; tick += step {
		if tick > end {
			tick = end
		}
		if err := m.sched.RunUntil(ctx, tick); err != nil {
			span.RecordError(err)
			return res, err
		}
		res.TimePoints = append(res.TimePoints, m.sample())
		if tick == end {
			break
		}
	}

	s.rec.backlog()
	if err := m.collect(&res); err != nil {
		return res, fmt.Errorf("collect statistics: %w", err)
	}
	res.Dispatched = m.sched.Dispatched()
	res.Events = s.rec.take()
	s.metrics.IncReplications()

	span.SetAttributes(
		attribute.Int64("events_dispatched", int64(res.Dispatched)),
		attribute.Int("timeline_events", len(res.Events)),
	)
	s.log.Info(ctx, "replication finished",
		logging.Int("replication", index),
		logging.Int64("events_dispatched", int64(res.Dispatched)),
		logging.Int("warnings", len(res.Warnings())))
	return res, nil
}

// Results returns one result per completed replication
func (s *Simulator) Results() []ReplicationResult {
	return s.results
}

// GetEvents returns the events of the first replication
func (s *Simulator) GetEvents() []Event {
	if len(s.results) == 0 {
		return nil
	}
	return s.results[0].Events
}

// GetTimePoints returns the samples of the first replication
func (s *Simulator) GetTimePoints() []TimePoint {
	if len(s.results) == 0 {
		return nil
	}
	return s.results[0].TimePoints
}

// GetWarnings returns the warning events of the first replication
func (s *Simulator) GetWarnings() []Event {
	if len(s.results) == 0 {
		return []Event{}
	}
	return s.results[0].Warnings()
}
