package chart

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sherine-k/procflow/pkg/simulation"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func points(queued []int, busy []int, step time.Duration) []simulation.TimePoint {
	out := make([]simulation.TimePoint, len(queued))
	for i := range queued {
		out[i] = simulation.TimePoint{
			Tick:         int64(i),
			Time:         start.Add(time.Duration(i) * step),
			QueueLengths: map[string]int{"Q": queued[i]},
			BusyServers:  busy[i],
		}
	}
	return out
}

func TestGenerateQueueChart(t *testing.T) {
	g := NewGenerator()
	out := g.GenerateQueueChart(points([]int{0, 1, 2, 1}, []int{0, 1, 1, 0}, time.Hour), 1)

	if !strings.Contains(out, "Queue Length Over Time") {
		t.Fatalf("chart missing title:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	var top, slot string
	for _, l := range lines {
		if strings.HasPrefix(l, "  2 |") {
			top = l
		}
		if strings.HasPrefix(l, "  1 |") && strings.Contains(l, "█") {
			slot = l
		}
	}
	if top != "  2 |  * " {
		t.Fatalf("top queue row = %q, want %q", top, "  2 |  * ")
	}
	if slot != "  1 | ██ " {
		t.Fatalf("server row = %q, want %q", slot, "  1 | ██ ")
	}
	if !strings.Contains(out, "0h") || !strings.Contains(out, "2h") {
		t.Fatalf("axis missing hour markers:\n%s", out)
	}
}

func TestGenerateQueueChartEmpty(t *testing.T) {
	if got := NewGenerator().GenerateQueueChart(nil, 2); got != "No data to display" {
		t.Fatalf("GenerateQueueChart(nil) = %q", got)
	}
}

func TestAxisLabelsUnits(t *testing.T) {
	tests := []struct {
		span time.Duration
		want string
	}{
		{span: 30 * time.Minute, want: "15m"},
		{span: 6 * time.Hour, want: "5h"},
		{span: 7 * 24 * time.Hour, want: "6d"},
	}
	for _, tt := range tests {
		got := axisLabels(start, start.Add(tt.span), 74)
		if !strings.HasPrefix(got, "0") {
			t.Fatalf("axisLabels(%v) = %q, want a leading zero marker", tt.span, got)
		}
		if !strings.Contains(got, tt.want) {
			t.Fatalf("axisLabels(%v) = %q, want it to contain %q", tt.span, got, tt.want)
		}
		if len([]rune(got)) != 74 {
			t.Fatalf("axisLabels(%v) width = %d, want 74", tt.span, len([]rune(got)))
		}
	}
}

func TestGenerateStatisticsHandlesNaN(t *testing.T) {
	res := simulation.ReplicationResult{
		Index: 1,
		Seed:  8,
		Servers: []simulation.ServerResult{{
			EntityStates: simulation.EntityStates{
				Name:   "S",
				States: []simulation.StateFraction{{State: "Working", Fraction: 0.25}},
			},
			Processed: 4,
		}},
		Queues: []simulation.QueueResult{{Name: "Q", AverageLength: 1.5, AverageWaitSec: math.NaN()}},
		Sinks:  []simulation.SinkResult{{Name: "Out", Count: 4, AverageTimeInSystemSec: 90}},
	}
	out := NewGenerator().GenerateStatistics(res)

	for _, want := range []string{"Replication 1 (seed 8)", "25.0%", "1.50", "n/a", "1m"} {
		if !strings.Contains(out, want) {
			t.Fatalf("statistics missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateReplicationSummary(t *testing.T) {
	results := []simulation.ReplicationResult{
		{Index: 0, Seed: 1, Sinks: []simulation.SinkResult{{Name: "Out", Count: 3}}},
		{Index: 1, Seed: 2, Sinks: []simulation.SinkResult{{Name: "Out", Count: 4}}},
	}
	out := NewGenerator().GenerateReplicationSummary(results)
	if !strings.Contains(out, "3.50") {
		t.Fatalf("summary missing mean 3.50:\n%s", out)
	}
}

func TestGenerateWarningsAndTimeline(t *testing.T) {
	g := NewGenerator()
	if out := g.GenerateWarnings(nil); !strings.Contains(out, "No warnings!") {
		t.Fatalf("GenerateWarnings(nil) = %q", out)
	}

	events := []simulation.Event{
		{Tick: 1, Time: start.Add(time.Second), Type: simulation.EventTypeItemCreated, Message: "Item 'G-1' created"},
		{Tick: 5, Time: start.Add(5 * time.Second), Type: simulation.EventTypeThresholdClosed, Message: "Threshold 'Gate' closed", IsWarning: true},
		{Tick: 7, Time: start.Add(7 * time.Second), Type: simulation.EventTypeUsersNotified, Message: "Notified 1 threshold users: S"},
	}
	out := g.GenerateDetailedTimeline(events, 2)
	if !strings.Contains(out, "[00:00:05] X [5] Threshold 'Gate' closed") {
		t.Fatalf("timeline missing closed event:\n%s", out)
	}
	if !strings.Contains(out, "... and 1 more events") {
		t.Fatalf("timeline missing truncation note:\n%s", out)
	}

	summary := g.GenerateEventSummary(events)
	if !strings.Contains(summary, "Total Events: 3") || !strings.Contains(summary, "Threshold Notifications: 1") {
		t.Fatalf("event summary:\n%s", summary)
	}
}

func TestGenerateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sim_items_completed_total", Help: "x"}, []string{"sink"})
	reg.MustRegister(counter)
	counter.WithLabelValues("Out").Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := NewGenerator().GenerateMetrics(families)
	if !strings.Contains(out, `sim_items_completed_total{sink="Out"}`) || !strings.Contains(out, "3.00") {
		t.Fatalf("metrics output:\n%s", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h30m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
