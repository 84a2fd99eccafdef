package process

import (
	"errors"
	"fmt"

	"github.com/sherine-k/procflow/pkg/clock"
	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/queue"
	"github.com/sherine-k/procflow/pkg/states"
	"github.com/sherine-k/procflow/pkg/threshold"
)

// Server state names
const (
	StateIdle    = "Idle"
	StateWorking = "Working"
	StateStopped = "Stopped"
)

// ErrBusy is returned when an item is handed straight to a server that cannot take it
var ErrBusy = errors.New("server cannot accept an item now")

var serverStates = states.ListValidator{
	States:  []string{StateIdle, StateWorking, StateStopped},
	Working: []string{StateWorking},
}

// ServerConfig holds the resolved inputs of a server
type ServerConfig struct {
	Name        string
	ServiceTime int64 // ticks
	Queue       queue.Ref
	Match       MatchExpr
	Thresholds  []*threshold.Threshold
	Next        Linker
}

// Server processes one item at a time for a fixed service time. It draws
// from its queue whenever it is idle and every threshold it depends on is
// open.
type Server struct {
	*LinkedService
	state *states.StateEntity

	sched       *events.Scheduler
	serviceTime int64
	thresholds  []*threshold.Threshold
	next        Linker
	observer    Observer

	busy      bool
	current   *queue.Item
	handle    events.Handle
	processed int64
}

// NewServer creates a server and registers it with every queue it may use
func NewServer(cfg ServerConfig, sched *events.Scheduler, clk *clock.Clock, observer Observer) *Server {
	s := &Server{
		state:       states.NewStateEntity(cfg.Name, sched, serverStates),
		sched:       sched,
		serviceTime: cfg.ServiceTime,
		thresholds:  cfg.Thresholds,
		next:        cfg.Next,
		observer:    orNoObserver(observer),
	}
	s.LinkedService = NewLinkedService(cfg.Name, sched, clk, s, cfg.Queue, cfg.Match)
	for _, q := range s.Queues() {
		q.AddUser(s)
	}
	return s
}

// Name returns the server name
func (s *Server) Name() string {
	return s.LinkedService.Name()
}

// State exposes the server's timed state machine
func (s *Server) State() *states.StateEntity {
	return s.state
}

// Thresholds lists the thresholds gating this server
func (s *Server) Thresholds() []*threshold.Threshold {
	return s.thresholds
}

// Processed returns the number of items completed since the last EarlyInit
func (s *Server) Processed() int64 {
	return s.processed
}

// Busy reports whether an item is in service
func (s *Server) Busy() bool {
	return s.busy
}

// EarlyInit resets the server for a new run
func (s *Server) EarlyInit() error {
	s.LinkedService.EarlyInit()
	s.sched.Cancel(&s.handle)
	s.busy = false
	s.current = nil
	s.processed = 0
	return s.state.Reset(StateIdle, s.sched.Now())
}

// StartUp schedules the first attempt to draw work at the present tick
func (s *Server) StartUp() error {
	return s.sched.ScheduleTicks(0, events.PriorityDefault, events.TargetFunc{
		Name: s.Name() + ".startUp",
		Fn:   s.restart,
	}, nil)
}

// QueueChanged re-evaluates whether work can start
func (s *Server) QueueChanged() error {
	return s.restart()
}

// ThresholdChanged re-evaluates whether work can start
func (s *Server) ThresholdChanged() error {
	return s.restart()
}

// restart starts the next eligible item. It does nothing while busy, while
// a threshold is closed, or when nothing eligible is queued.
func (s *Server) restart() error {
	if s.busy {
		return nil
	}
	if !threshold.AllOpen(s.thresholds) {
		return s.state.SetState(StateStopped)
	}

	m := s.NextMatchValue(s.SimTime())
	if !s.HasEligible(m) {
		return s.state.SetState(StateIdle)
	}

	// Claim the server first: removing the item notifies queue users again.
	s.busy = true
	item, err := s.NextEntityForMatch(m)
	if err != nil {
		if item != nil {
			s.ReleaseEntity(item)
		}
		s.busy = false
		return err
	}
	s.SetMatchValue(m)
	return s.start(item)
}

// Process takes item into service directly; used when no queue is configured
func (s *Server) Process(item *queue.Item) error {
	if s.busy || !threshold.AllOpen(s.thresholds) {
		return fmt.Errorf("%s: process %s: %w", s.Name(), item.ID, ErrBusy)
	}
	s.registerEntity(item)
	s.SetMatchValue(nil)
	return s.start(item)
}

func (s *Server) start(item *queue.Item) error {
	s.busy = true
	s.current = item
	if err := s.state.SetState(StateWorking); err != nil {
		return err
	}
	s.observer.ServiceStarted(s.Name(), item)

	return s.sched.ScheduleTicks(s.serviceTime, events.PriorityDefault, events.TargetFunc{
		Name: s.Name() + ".endProcessing",
		Fn:   s.finish,
	}, &s.handle)
}

func (s *Server) finish() error {
	item := s.current
	s.busy = false
	s.current = nil
	s.processed++
	s.ReleaseEntity(item)
	s.observer.ServiceCompleted(s.Name(), item)

	if s.next != nil {
		if err := s.next.AddEntity(item); err != nil {
			return fmt.Errorf("%s: send %s to %s: %w", s.Name(), item.ID, s.next.Name(), err)
		}
	}
	return s.restart()
}
