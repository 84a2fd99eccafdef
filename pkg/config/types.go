package config

import (
	"time"
)

// Config represents a whole process-flow model and how to run it
type Config struct {
	TicksPerSecond float64       `yaml:"ticksPerSecond"`
	StartTime      time.Time     `yaml:"startTime"`
	RunDuration    time.Duration `yaml:"runDuration"`
	SampleInterval time.Duration `yaml:"sampleInterval"`
	Replications   int           `yaml:"replications"`
	Seed           int64         `yaml:"seed"`

	Thresholds []Threshold `yaml:"thresholds"`
	Queues     []Queue     `yaml:"queues"`
	Servers    []Server    `yaml:"servers"`
	Generators []Generator `yaml:"generators"`
	Sinks      []Sink      `yaml:"sinks"`
}

// Threshold represents a gate that servers may depend on
type Threshold struct {
	Name        string `yaml:"name"`
	InitialOpen *bool  `yaml:"initialOpen,omitempty"`

	// Toggles set the threshold at fixed offsets from run start
	Toggles []Toggle `yaml:"toggles,omitempty"`

	// For cron-driven closures
	CloseCron string        `yaml:"closeCron,omitempty"`
	ClosedFor time.Duration `yaml:"closedFor,omitempty"`
}

// Toggle opens or closes a threshold at an offset from run start
type Toggle struct {
	At   time.Duration `yaml:"at"`
	Open bool          `yaml:"open"`
}

// Queue represents a waiting area
type Queue struct {
	Name string `yaml:"name"`
	// MatchAttribute selects an item attribute as the match key instead of the generator-assigned key
	MatchAttribute string `yaml:"matchAttribute,omitempty"`
}

// Server represents a single-item processor fed from a queue
type Server struct {
	Name        string        `yaml:"name"`
	ServiceTime time.Duration `yaml:"serviceTime"`
	Next        string        `yaml:"next"`
	Thresholds  []string      `yaml:"thresholds,omitempty"`

	// Either a fixed queue or a schedule of queues
	Queue         string       `yaml:"queue,omitempty"`
	QueueSchedule []QueueEntry `yaml:"queueSchedule,omitempty"`

	// Either a fixed match value or a schedule of values
	Match         string       `yaml:"match,omitempty"`
	MatchSchedule []MatchEntry `yaml:"matchSchedule,omitempty"`
}

// QueueEntry switches a server to Queue from At onwards
type QueueEntry struct {
	At    time.Duration `yaml:"at"`
	Queue string        `yaml:"queue"`
}

// MatchEntry switches a server's match value from At onwards
type MatchEntry struct {
	At    time.Duration `yaml:"at"`
	Value string        `yaml:"value"`
}

// Generator represents an item source
type Generator struct {
	Name string `yaml:"name"`
	Next string `yaml:"next"`

	// Exactly one of Interval and CronSchedule
	Interval     time.Duration `yaml:"interval,omitempty"`
	CronSchedule string        `yaml:"cronSchedule,omitempty"`

	FirstArrival time.Duration     `yaml:"firstArrival,omitempty"`
	MaxCount     int64             `yaml:"maxCount,omitempty"`
	Keys         []string          `yaml:"keys,omitempty"`
	KeyMode      string            `yaml:"keyMode,omitempty"`
	Attributes   map[string]string `yaml:"attributes,omitempty"`
}

// Sink represents a terminal component
type Sink struct {
	Name string `yaml:"name"`
}
