package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SimCollector exposes simulation Prometheus metrics. All methods are
// nil-safe so components can run without metrics.
type SimCollector struct {
	gatherer prometheus.Gatherer

	EventsDispatched  *prometheus.CounterVec
	NotificationDrain prometheus.Counter
	UsersNotified     prometheus.Counter
	QueueLength       *prometheus.GaugeVec
	ItemsCompleted    *prometheus.CounterVec
	Replications      prometheus.Counter
}

// NewSimCollector registers simulation metrics against reg, defaulting to
// the global registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	dispatched, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_events_dispatched_total",
		Help: "Scheduled events executed, labeled by target.",
	}, []string{"target"}), "sim_events_dispatched_total")
	if err != nil {
		return nil, err
	}

	drains, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_threshold_notifications_total",
		Help: "Coalesced threshold-changed notification rounds.",
	}), "sim_threshold_notifications_total")
	if err != nil {
		return nil, err
	}

	notified, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_threshold_users_notified_total",
		Help: "Threshold users told about a change, summed over all rounds.",
	}), "sim_threshold_users_notified_total")
	if err != nil {
		return nil, err
	}

	queueLength, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_queue_length",
		Help: "Items currently held by each queue.",
	}, []string{"queue"}), "sim_queue_length")
	if err != nil {
		return nil, err
	}

	completed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_items_completed_total",
		Help: "Items disposed of, labeled by sink.",
	}, []string{"sink"}), "sim_items_completed_total")
	if err != nil {
		return nil, err
	}

	replications, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_replications_total",
		Help: "Completed simulation replications.",
	}), "sim_replications_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		EventsDispatched:  dispatched,
		NotificationDrain: drains,
		UsersNotified:     notified,
		QueueLength:       queueLength,
		ItemsCompleted:    completed,
		Replications:      replications,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// OnDispatch counts an executed event; it satisfies events.Observer.
func (c *SimCollector) OnDispatch(_ int64, description string) {
	if c == nil || c.EventsDispatched == nil {
		return
	}
	c.EventsDispatched.WithLabelValues(description).Inc()
}

// ObserveDrain records one notification round covering users users.
func (c *SimCollector) ObserveDrain(users int) {
	if c == nil {
		return
	}
	if c.NotificationDrain != nil {
		c.NotificationDrain.Inc()
	}
	if c.UsersNotified != nil {
		c.UsersNotified.Add(float64(users))
	}
}

// SetQueueLength updates the length gauge for a queue.
func (c *SimCollector) SetQueueLength(queue string, n int) {
	if c == nil || c.QueueLength == nil {
		return
	}
	c.QueueLength.WithLabelValues(queue).Set(float64(n))
}

// IncCompleted counts an item reaching a sink.
func (c *SimCollector) IncCompleted(sink string) {
	if c == nil || c.ItemsCompleted == nil {
		return
	}
	c.ItemsCompleted.WithLabelValues(sink).Inc()
}

// IncReplications counts a finished replication.
func (c *SimCollector) IncReplications() {
	if c == nil || c.Replications == nil {
		return
	}
	c.Replications.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
