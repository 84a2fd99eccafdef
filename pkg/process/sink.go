package process

import (
	"math"

	"github.com/sherine-k/procflow/pkg/events"
	"github.com/sherine-k/procflow/pkg/queue"
)

// Sink is the terminal component; it counts items and their time in system
type Sink struct {
	name     string
	sched    *events.Scheduler
	observer Observer

	count      int64
	totalTicks int64
}

// NewSink creates a sink
func NewSink(name string, sched *events.Scheduler, observer Observer) *Sink {
	return &Sink{name: name, sched: sched, observer: orNoObserver(observer)}
}

// Name returns the sink name
func (s *Sink) Name() string {
	return s.name
}

// EarlyInit clears the sink's counters
func (s *Sink) EarlyInit() {
	s.count = 0
	s.totalTicks = 0
}

// AddEntity disposes of item
func (s *Sink) AddEntity(item *queue.Item) error {
	s.count++
	s.totalTicks += s.sched.Now() - item.CreatedTick
	s.observer.ItemDisposed(s.name, item)
	return nil
}

// Count returns the number of items received
func (s *Sink) Count() int64 {
	return s.count
}

// AverageTimeInSystem returns mean ticks between creation and disposal, or
// NaN before the first item arrives.
func (s *Sink) AverageTimeInSystem() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return float64(s.totalTicks) / float64(s.count)
}
