package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/sherine-k/procflow/pkg/process"
	"github.com/sherine-k/procflow/pkg/simulation"
)

const (
	chartWidth  = 80
	chartHeight = 20
)

// Generator generates ASCII charts
type Generator struct {
	width  int
	height int
}

// NewGenerator creates a new chart generator
func NewGenerator() *Generator {
	return &Generator{
		width:  chartWidth,
		height: chartHeight,
	}
}

func (g *Generator) header(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")
}

// GenerateQueueChart generates an ASCII chart of busy servers and queued
// items over time
func (g *Generator) GenerateQueueChart(timePoints []simulation.TimePoint, servers int) string {
	if len(timePoints) == 0 {
		return "No data to display"
	}

	var sb strings.Builder
	g.header(&sb, "Queue Length Over Time")

	maxQueued := 0
	for _, tp := range timePoints {
		if n := tp.TotalQueued(); n > maxQueued {
			maxQueued = n
		}
	}

	// Queued rows are scaled down when they would not fit
	queueRows := maxQueued
	if queueRows > g.height {
		queueRows = g.height
	}
	perRow := 1.0
	if queueRows > 0 {
		perRow = float64(maxQueued) / float64(queueRows)
	}

	plotWidth := g.width - 6
	columns := len(timePoints)
	if columns > plotWidth {
		columns = plotWidth
	}
	point := func(x int) simulation.TimePoint {
		if columns == 1 {
			return timePoints[0]
		}
		return timePoints[x*(len(timePoints)-1)/(columns-1)]
	}

	for row := queueRows; row >= 1; row-- {
		label := int(math.Ceil(float64(row) * perRow))
		sb.WriteString(fmt.Sprintf("%3d |", label))
		for x := 0; x < columns; x++ {
			if point(x).TotalQueued() >= label {
				sb.WriteString("*")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	// Separator line between queued items and server slots
	if queueRows > 0 && servers > 0 {
		sb.WriteString("    ")
		sb.WriteString(strings.Repeat("-", g.width-4))
		sb.WriteString("\n")
	}

	for slot := servers; slot >= 1; slot-- {
		sb.WriteString(fmt.Sprintf("%3d |", slot))
		for x := 0; x < columns; x++ {
			if point(x).BusyServers >= slot {
				sb.WriteString("█")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	// X-axis
	sb.WriteString("    +")
	sb.WriteString(strings.Repeat("-", plotWidth))
	sb.WriteString("\n")
	sb.WriteString("    ")
	sb.WriteString(axisLabels(timePoints[0].Time, timePoints[len(timePoints)-1].Time, plotWidth))
	sb.WriteString("\n")

	// Legend
	sb.WriteString("\n")
	sb.WriteString("Legend:\n")
	if servers > 0 {
		sb.WriteString(fmt.Sprintf("  Server slots (1-%d):\n", servers))
		sb.WriteString("    █ - Server busy\n")
		sb.WriteString("    (space) - Server idle or stopped\n")
	}
	if queueRows > 0 {
		sb.WriteString("  Queue rows:\n")
		sb.WriteString("    * - Items waiting across all queues\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// axisLabels places a marker at every whole unit of elapsed time, choosing
// days, hours or minutes from the span of the chart
func axisLabels(start, end time.Time, width int) string {
	total := end.Sub(start)
	unit, suffix := time.Minute, "m"
	switch {
	case total >= 48*time.Hour:
		unit, suffix = 24*time.Hour, "d"
	case total >= 2*time.Hour:
		unit, suffix = time.Hour, "h"
	}

	line := []rune(strings.Repeat(" ", width))
	last := -1
	for n := 0; time.Duration(n)*unit <= total; n++ {
		position := 0
		if total > 0 {
			position = int(float64(time.Duration(n)*unit) / float64(total) * float64(width))
		}
		marker := fmt.Sprintf("%d%s", n, suffix)
		if position <= last || position+len(marker) > width {
			continue
		}
		for i, ch := range marker {
			line[position+i] = ch
		}
		last = position + len(marker)
	}
	return string(line)
}

// GenerateStateTable lists the share of the run each entity spent per state
func (g *Generator) GenerateStateTable(title string, entities []simulation.EntityStates) string {
	var sb strings.Builder
	g.header(&sb, title)

	if len(entities) == 0 {
		sb.WriteString("None defined\n")
		return sb.String()
	}

	for _, e := range entities {
		sb.WriteString(fmt.Sprintf("%-20s", e.Name))
		for _, st := range e.States {
			sb.WriteString(fmt.Sprintf("  %s %s", st.State, formatPercent(st.Fraction)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// GenerateStatistics reports servers, queues and sinks of one replication
func (g *Generator) GenerateStatistics(res simulation.ReplicationResult) string {
	var sb strings.Builder
	g.header(&sb, fmt.Sprintf("Replication %d (seed %d)", res.Index, res.Seed))

	sb.WriteString(fmt.Sprintf("Events dispatched: %d\n\n", res.Dispatched))

	if len(res.Servers) > 0 {
		sb.WriteString(fmt.Sprintf("%-20s %10s %10s\n", "Server", "Processed", "Working"))
		for _, s := range res.Servers {
			working := 0.0
			for _, st := range s.States {
				if st.State == process.StateWorking {
					working = st.Fraction
				}
			}
			sb.WriteString(fmt.Sprintf("%-20s %10d %10s\n", s.Name, s.Processed, formatPercent(working)))
		}
		sb.WriteString("\n")
	}

	if len(res.Queues) > 0 {
		sb.WriteString(fmt.Sprintf("%-20s %6s %8s %6s %6s %8s %10s\n", "Queue", "Added", "Removed", "Max", "Final", "AvgLen", "AvgWait"))
		for _, q := range res.Queues {
			sb.WriteString(fmt.Sprintf("%-20s %6d %8d %6d %6d %8s %10s\n",
				q.Name, q.NumberAdded, q.NumberRemoved, q.MaxLength, q.Length,
				formatFloat(q.AverageLength), formatSeconds(q.AverageWaitSec)))
		}
		sb.WriteString("\n")
	}

	if len(res.Sinks) > 0 {
		sb.WriteString(fmt.Sprintf("%-20s %8s %14s\n", "Sink", "Items", "TimeInSystem"))
		for _, s := range res.Sinks {
			sb.WriteString(fmt.Sprintf("%-20s %8d %14s\n", s.Name, s.Count, formatSeconds(s.AverageTimeInSystemSec)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// GenerateReplicationSummary compares sink throughput across replications
func (g *Generator) GenerateReplicationSummary(results []simulation.ReplicationResult) string {
	var sb strings.Builder
	g.header(&sb, "Replication Summary")

	if len(results) == 0 {
		sb.WriteString("No replications completed\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-6s %-8s", "Rep", "Seed"))
	for _, s := range results[0].Sinks {
		sb.WriteString(fmt.Sprintf(" %12s", s.Name))
	}
	sb.WriteString("\n")

	totals := make([]int64, len(results[0].Sinks))
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("%-6d %-8d", res.Index, res.Seed))
		for i, s := range res.Sinks {
			sb.WriteString(fmt.Sprintf(" %12d", s.Count))
			if i < len(totals) {
				totals[i] += s.Count
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("%-15s", "Mean"))
	for _, total := range totals {
		sb.WriteString(fmt.Sprintf(" %12.2f", float64(total)/float64(len(results))))
	}
	sb.WriteString("\n\n")

	return sb.String()
}

// GenerateEventSummary generates a summary of events
func (g *Generator) GenerateEventSummary(events []simulation.Event) string {
	var sb strings.Builder
	g.header(&sb, "Event Summary")

	// Group events by type
	eventsByType := make(map[simulation.EventType]int)
	for _, event := range events {
		eventsByType[event.Type]++
	}

	sb.WriteString(fmt.Sprintf("Total Events: %d\n", len(events)))
	sb.WriteString(fmt.Sprintf("  - Items Created: %d\n", eventsByType[simulation.EventTypeItemCreated]))
	sb.WriteString(fmt.Sprintf("  - Items Queued: %d\n", eventsByType[simulation.EventTypeItemQueued]))
	sb.WriteString(fmt.Sprintf("  - Services Started: %d\n", eventsByType[simulation.EventTypeServiceStarted]))
	sb.WriteString(fmt.Sprintf("  - Services Completed: %d\n", eventsByType[simulation.EventTypeServiceCompleted]))
	sb.WriteString(fmt.Sprintf("  - Items Completed: %d\n", eventsByType[simulation.EventTypeItemCompleted]))
	sb.WriteString(fmt.Sprintf("  - Thresholds Opened: %d\n", eventsByType[simulation.EventTypeThresholdOpened]))
	sb.WriteString(fmt.Sprintf("  - Thresholds Closed: %d\n", eventsByType[simulation.EventTypeThresholdClosed]))
	sb.WriteString(fmt.Sprintf("  - Threshold Notifications: %d\n", eventsByType[simulation.EventTypeUsersNotified]))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateWarnings generates a list of warnings
func (g *Generator) GenerateWarnings(warnings []simulation.Event) string {
	var sb strings.Builder
	g.header(&sb, "Warnings")

	if len(warnings) == 0 {
		sb.WriteString("No warnings!\n")
		return sb.String()
	}

	for _, warning := range warnings {
		timestamp := warning.Time.Format("2006-01-02 15:04:05")
		sb.WriteString(fmt.Sprintf("[%s] %s\n", timestamp, warning.Message))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Warnings: %d\n", len(warnings)))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateDetailedTimeline generates a detailed timeline of events
func (g *Generator) GenerateDetailedTimeline(events []simulation.Event, limit int) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("Detailed Timeline")
	if limit > 0 && limit < len(events) {
		sb.WriteString(fmt.Sprintf(" (showing first %d events)", limit))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")

	displayCount := len(events)
	if limit > 0 && limit < displayCount {
		displayCount = limit
	}

	for i := 0; i < displayCount; i++ {
		event := events[i]
		timestamp := event.Time.Format("15:04:05")

		typeIcon := " "
		switch event.Type {
		case simulation.EventTypeItemCreated:
			typeIcon = "+"
		case simulation.EventTypeItemQueued:
			typeIcon = "Q"
		case simulation.EventTypeServiceStarted:
			typeIcon = ">"
		case simulation.EventTypeServiceCompleted:
			typeIcon = "<"
		case simulation.EventTypeItemCompleted:
			typeIcon = "-"
		case simulation.EventTypeThresholdOpened:
			typeIcon = "O"
		case simulation.EventTypeThresholdClosed:
			typeIcon = "X"
		case simulation.EventTypeUsersNotified:
			typeIcon = "N"
		case simulation.EventTypeBacklog:
			typeIcon = "!"
		}

		sb.WriteString(fmt.Sprintf("[%s] %s [%d] %s\n",
			timestamp,
			typeIcon,
			event.Tick,
			event.Message))
	}

	if limit > 0 && limit < len(events) {
		sb.WriteString(fmt.Sprintf("\n... and %d more events\n", len(events)-limit))
	}

	sb.WriteString("\n")

	return sb.String()
}

// GenerateMetrics renders gathered Prometheus counters and gauges
func (g *Generator) GenerateMetrics(families []*dto.MetricFamily) string {
	var sb strings.Builder
	g.header(&sb, "Metrics")

	if len(families) == 0 {
		sb.WriteString("No metrics gathered\n")
		return sb.String()
	}

	sorted := make([]*dto.MetricFamily, len(families))
	copy(sorted, families)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GetName() < sorted[j].GetName() })

	for _, mf := range sorted {
		for _, m := range mf.GetMetric() {
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = m.GetGauge().GetValue()
			default:
				continue
			}

			name := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, lp := range labels {
					pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
				}
				name += "{" + strings.Join(pairs, ",") + "}"
			}
			sb.WriteString(fmt.Sprintf("%-60s %s\n", name, formatFloat(value)))
		}
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatPercent(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", f*100)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", f)
}

func formatSeconds(secs float64) string {
	if math.IsNaN(secs) {
		return "n/a"
	}
	return FormatDuration(time.Duration(secs * float64(time.Second)))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
