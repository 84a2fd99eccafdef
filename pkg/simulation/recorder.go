package simulation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sherine-k/procflow/internal/logging"
	"github.com/sherine-k/procflow/internal/observability"
	"github.com/sherine-k/procflow/pkg/queue"
	"github.com/sherine-k/procflow/pkg/threshold"
)

// recorder turns component notifications into timeline events and metrics
type recorder struct {
	m       *Model
	metrics *observability.SimCollector
	log     logging.Logger
	events  []Event
}

func newRecorder(metrics *observability.SimCollector, log logging.Logger) *recorder {
	return &recorder{metrics: metrics, log: logging.OrNoop(log)}
}

func (r *recorder) attach(m *Model) {
	r.m = m
}

// take returns the recorded events and starts a new list
func (r *recorder) take() []Event {
	out := r.events
	r.events = nil
	return out
}

func (r *recorder) add(typ EventType, entity, message string, warning bool) {
	tick := r.m.sched.Now()
	r.events = append(r.events, Event{
		Tick:      tick,
		Time:      r.m.cfg.StartTime.Add(r.m.clk.TicksToDuration(tick)),
		Type:      typ,
		Entity:    entity,
		Message:   message,
		IsWarning: warning,
	})
}

func (r *recorder) ItemCreated(component string, item *queue.Item) {
	msg := fmt.Sprintf("Item '%s' created", item.ID)
	if item.MatchKey != "" {
		msg = fmt.Sprintf("Item '%s' created with key %s", item.ID, item.MatchKey)
	}
	r.add(EventTypeItemCreated, component, msg, false)
}

func (r *recorder) ServiceStarted(component string, item *queue.Item) {
	waited := r.m.clk.TicksToDuration(r.m.sched.Now() - item.CreatedTick)
	r.add(EventTypeServiceStarted, component, fmt.Sprintf("Server '%s' started item '%s' (%s since created)", component, item.ID, waited), false)
}

func (r *recorder) ServiceCompleted(component string, item *queue.Item) {
	r.add(EventTypeServiceCompleted, component, fmt.Sprintf("Server '%s' completed item '%s'", component, item.ID), false)
}

func (r *recorder) ItemDisposed(component string, item *queue.Item) {
	inSystem := r.m.clk.TicksToDuration(r.m.sched.Now() - item.CreatedTick)
	r.add(EventTypeItemCompleted, component, fmt.Sprintf("Item '%s' left through '%s' after %s", item.ID, component, inSystem), false)
	r.metrics.IncCompleted(component)
}

func (r *recorder) thresholdChanged(name string) func(prev, next string) {
	return func(_, next string) {
		if next == threshold.StateOpen {
			r.add(EventTypeThresholdOpened, name, fmt.Sprintf("Threshold '%s' opened", name), false)
			return
		}
		r.add(EventTypeThresholdClosed, name, fmt.Sprintf("Threshold '%s' closed", name), true)
	}
}

func (r *recorder) usersNotified(_ int64, users []threshold.User) {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name())
	}
	r.add(EventTypeUsersNotified, "UpdateAllThresholdUsers", fmt.Sprintf("Notified %d threshold users: %s", len(users), strings.Join(names, ", ")), false)
	r.metrics.ObserveDrain(len(users))
	r.log.Debug(context.Background(), "threshold users notified",
		logging.Int64("tick", r.m.sched.Now()),
		logging.Int("users", len(users)))
}

// backlog records a warning for every queue still holding items
func (r *recorder) backlog() {
	for _, q := range r.m.queues {
		if n := q.Count(); n > 0 {
			r.add(EventTypeBacklog, q.Name(), fmt.Sprintf("Queue '%s' ended with %d items waiting (keys: %s)", q.Name(), n, strings.Join(q.MatchKeys(), ", ")), true)
		}
	}
}

// queueMonitor follows a queue's length. It is registered ahead of the
// consumers so an arrival is seen before it can be removed.
type queueMonitor struct {
	q    *queue.Queue
	rec  *recorder
	last int
}

func (m *queueMonitor) Name() string {
	return m.q.Name() + ".monitor"
}

func (m *queueMonitor) QueueChanged() error {
	n := m.q.Count()
	if n > m.last {
		m.rec.add(EventTypeItemQueued, m.q.Name(), fmt.Sprintf("Queue '%s' length %d", m.q.Name(), n), false)
	}
	m.last = n
	m.rec.metrics.SetQueueLength(m.q.Name(), n)
	return nil
}

func (m *queueMonitor) reset() {
	m.last = 0
	m.rec.metrics.SetQueueLength(m.q.Name(), 0)
}
