package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSimCollectorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	c.OnDispatch(5, "Gen.createEntity")
	c.OnDispatch(7, "Gen.createEntity")
	c.ObserveDrain(3)
	c.SetQueueLength("Queue1", 4)
	c.IncCompleted("Sink1")
	c.IncReplications()

	if got := testutil.ToFloat64(c.EventsDispatched.WithLabelValues("Gen.createEntity")); got != 2 {
		t.Fatalf("sim_events_dispatched_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.NotificationDrain); got != 1 {
		t.Fatalf("sim_threshold_notifications_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.UsersNotified); got != 3 {
		t.Fatalf("sim_threshold_users_notified_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.QueueLength.WithLabelValues("Queue1")); got != 4 {
		t.Fatalf("sim_queue_length = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.ItemsCompleted.WithLabelValues("Sink1")); got != 1 {
		t.Fatalf("sim_items_completed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Replications); got != 1 {
		t.Fatalf("sim_replications_total = %v, want 1", got)
	}
	if c.Gatherer() != reg {
		t.Fatalf("Gatherer() did not return the registry")
	}
}

func TestSimCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}

	first.IncReplications()
	second.IncReplications()
	if got := testutil.ToFloat64(first.Replications); got != 2 {
		t.Fatalf("sim_replications_total = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.OnDispatch(1, "x")
	c.ObserveDrain(1)
	c.SetQueueLength("q", 1)
	c.IncCompleted("s")
	c.IncReplications()
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: true, ServiceName: "test", Output: &buf}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := Tracer().Start(ctx, "replication")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), `"Name": "replication"`) {
		t.Fatalf("exported spans missing replication span: %s", buf.String())
	}

	if _, err := InitTracing(ctx, TracingConfig{}, nil); err != nil {
		t.Fatalf("InitTracing disabled: %v", err)
	}
}
