package simulation

import (
	"time"
)

// EventType defines the type of event in the simulation
type EventType string

const (
	EventTypeItemCreated      EventType = "item-created"
	EventTypeItemQueued       EventType = "item-queued"
	EventTypeServiceStarted   EventType = "service-started"
	EventTypeServiceCompleted EventType = "service-completed"
	EventTypeThresholdOpened  EventType = "threshold-opened"
	EventTypeThresholdClosed  EventType = "threshold-closed"
	EventTypeUsersNotified    EventType = "users-notified"
	EventTypeItemCompleted    EventType = "item-completed"
	EventTypeBacklog          EventType = "backlog"
)

// Event represents a point-in-time event in the simulation
type Event struct {
	Tick      int64
	Time      time.Time
	Type      EventType
	Entity    string
	Message   string
	IsWarning bool
}

// TimePoint represents the state at a specific point in time
type TimePoint struct {
	Tick           int64
	Time           time.Time
	QueueLengths   map[string]int
	OpenThresholds int
	BusyServers    int
}

// TotalQueued sums the queue lengths at this point
func (p TimePoint) TotalQueued() int {
	total := 0
	for _, n := range p.QueueLengths {
		total += n
	}
	return total
}

// StateFraction is the share of a run an entity spent in one state
type StateFraction struct {
	State    string
	Ticks    int64
	Fraction float64
}

// EntityStates lists the state fractions of one timed entity
type EntityStates struct {
	Name   string
	States []StateFraction
}

// ServerResult reports a server at the end of a replication
type ServerResult struct {
	EntityStates
	Processed int64
}

// QueueResult reports a queue at the end of a replication
type QueueResult struct {
	Name           string
	NumberAdded    int64
	NumberRemoved  int64
	MaxLength      int
	Length         int
	AverageLength  float64
	AverageWaitSec float64 // NaN when nothing left the queue
}

// SinkResult reports a sink at the end of a replication
type SinkResult struct {
	Name                   string
	Count                  int64
	AverageTimeInSystemSec float64 // NaN when nothing arrived
}

// ReplicationResult holds everything collected from one replication
type ReplicationResult struct {
	Index      int
	Seed       int64
	EndTick    int64
	Dispatched uint64

	Events     []Event
	TimePoints []TimePoint

	Thresholds []EntityStates
	Servers    []ServerResult
	Queues     []QueueResult
	Sinks      []SinkResult
}

// Warnings returns the warning events of the replication
func (r *ReplicationResult) Warnings() []Event {
	warnings := []Event{}
	for _, event := range r.Events {
		if event.IsWarning {
			warnings = append(warnings, event)
		}
	}
	return warnings
}
