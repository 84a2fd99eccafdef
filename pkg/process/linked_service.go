package process

import (
	"fmt"

	"github.com/sherine-k/procflow/pkg/clock"
	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/queue"
)

// Linker accepts items handed on from an upstream component
type Linker interface {
	Name() string
	AddEntity(item *queue.Item) error
}

// Processor takes an item straight into processing when no queue is configured
type Processor interface {
	Process(item *queue.Item) error
}

// LinkedService is the queue hand-off shared by consumers. Items arriving
// while a queue is configured wait there; otherwise they are processed
// immediately.
type LinkedService struct {
	name      string
	sched     *events.Scheduler
	clk       *clock.Clock
	processor Processor

	queueRef queue.Ref
	match    MatchExpr

	matchValue *string
	inFlight   []*queue.Item
}

// NewLinkedService creates a service; ref and match may be nil
func NewLinkedService(name string, sched *events.Scheduler, clk *clock.Clock, p Processor, ref queue.Ref, match MatchExpr) *LinkedService {
	return &LinkedService{
		name:      name,
		sched:     sched,
		clk:       clk,
		processor: p,
		queueRef:  ref,
		match:     match,
	}
}

// Name returns the service name
func (s *LinkedService) Name() string {
	return s.name
}

// EarlyInit clears the reported match value and the in-flight list
func (s *LinkedService) EarlyInit() {
	s.matchValue = nil
	s.inFlight = nil
}

// SimTime returns the present simulated time in seconds
func (s *LinkedService) SimTime() float64 {
	return s.clk.TicksToSecs(s.sched.Now())
}

// AddEntity queues item, or processes it at once when there is no queue
func (s *LinkedService) AddEntity(item *queue.Item) error {
	q := s.Queue(s.sched.Now())
	if q == nil {
		if s.processor == nil {
			return fmt.Errorf("%s: add %s: no queue and no processor", s.name, item.ID)
		}
		return s.processor.Process(item)
	}
	return q.Enqueue(item)
}

// Queue returns the queue in force at tick, or nil
func (s *LinkedService) Queue(tick int64) *queue.Queue {
	if s.queueRef == nil {
		return nil
	}
	return s.queueRef.Resolve(tick)
}

// Queues lists every queue the service may draw from
func (s *LinkedService) Queues() []*queue.Queue {
	if s.queueRef == nil {
		return nil
	}
	return s.queueRef.Queues()
}

// NextMatchValue evaluates the match expression at simTime. nil means any
// queued item is eligible.
func (s *LinkedService) NextMatchValue(simTime float64) *string {
	if s.match == nil {
		return nil
	}
	v, ok := s.match.Next(simTime)
	if !ok {
		return nil
	}
	return &v
}

// NextEntityForMatch removes the next eligible item from the active queue
// and records it as in flight.
func (s *LinkedService) NextEntityForMatch(m *string) (*queue.Item, error) {
	q := s.Queue(s.sched.Now())
	if q == nil {
		return nil, fmt.Errorf("%s: next entity: no queue in force at tick %d", s.name, s.sched.Now())
	}
	item, err := q.RemoveFirstForMatch(m)
	if item != nil {
		s.registerEntity(item)
	}
	if err != nil {
		return item, fmt.Errorf("%s: next entity: %w", s.name, err)
	}
	return item, nil
}

// HasEligible reports whether the active queue holds an item for m
func (s *LinkedService) HasEligible(m *string) bool {
	q := s.Queue(s.sched.Now())
	return q != nil && q.CountForMatch(m) > 0
}

func (s *LinkedService) registerEntity(item *queue.Item) {
	s.inFlight = append(s.inFlight, item)
}

// ReleaseEntity removes item from the in-flight list
func (s *LinkedService) ReleaseEntity(item *queue.Item) {
	for i, it := range s.inFlight {
		if it == item {
			s.inFlight = append(s.inFlight[:i], s.inFlight[i+1:]...)
			return
		}
	}
}

// InFlight returns the items claimed and not yet released
func (s *LinkedService) InFlight() []*queue.Item {
	out := make([]*queue.Item, len(s.inFlight))
	copy(out, s.inFlight)
	return out
}

// SetMatchValue records the match value used for the in-flight item
func (s *LinkedService) SetMatchValue(m *string) {
	s.matchValue = m
}

// MatchValue returns the match value used for the in-flight item, if any
func (s *LinkedService) MatchValue() (string, bool) {
	if s.matchValue == nil {
		return "", false
	}
	return *s.matchValue, true
}
