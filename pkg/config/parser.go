package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sherine-k/procflow/pkg/clock"
	"github.com/sherine-k/procflow/pkg/process"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left unset in the model file
var (
	DefaultStartTime      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultTicksPerSecond = 1e6
)

// defaultSamples is the number of chart samples taken when no interval is set
const defaultSamples = 96

// LoadConfig loads and parses the configuration file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults, and validates a model
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Validate configuration
	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.TicksPerSecond == 0 {
		config.TicksPerSecond = DefaultTicksPerSecond
	}
	if config.StartTime.IsZero() {
		config.StartTime = DefaultStartTime
	}
	if config.Replications == 0 {
		config.Replications = 1
	}
	if config.SampleInterval == 0 && config.RunDuration > 0 {
		config.SampleInterval = config.RunDuration / defaultSamples
		if config.SampleInterval <= 0 {
			config.SampleInterval = config.RunDuration
		}
	}
}

// Validate checks the configuration, including every cross-reference
func Validate(config *Config) error {
	clk, err := clock.New(config.TicksPerSecond)
	if err != nil {
		return fmt.Errorf("ticksPerSecond must be greater than 0")
	}
	// Recurring spans must cover at least one tick
	wholeTick := func(d time.Duration) bool {
		return clk.DurationToTicks(d) >= 1
	}

	if config.RunDuration <= 0 {
		return fmt.Errorf("runDuration must be greater than 0")
	}

	if config.SampleInterval <= 0 {
		return fmt.Errorf("sampleInterval must be greater than 0")
	}

	if config.Replications <= 0 {
		return fmt.Errorf("replications must be greater than 0")
	}

	if len(config.Generators) == 0 {
		return fmt.Errorf("at least one generator must be defined")
	}

	kinds := map[string]string{}
	register := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%s: name is required", kind)
		}
		if other, ok := kinds[name]; ok {
			return fmt.Errorf("%s %s: name already used by a %s", kind, name, other)
		}
		kinds[name] = kind
		return nil
	}

	for _, th := range config.Thresholds {
		if err := register("threshold", th.Name); err != nil {
			return err
		}
		for i, tg := range th.Toggles {
			if tg.At < 0 {
				return fmt.Errorf("threshold %s: toggle %d: at must not be negative", th.Name, i)
			}
		}
		if th.CloseCron != "" {
			if _, err := clock.ParseCron(th.CloseCron); err != nil {
				return fmt.Errorf("threshold %s: invalid closeCron: %w", th.Name, err)
			}
			if th.ClosedFor <= 0 {
				return fmt.Errorf("threshold %s: closedFor must be greater than 0 when closeCron is set", th.Name)
			}
			if !wholeTick(th.ClosedFor) {
				return fmt.Errorf("threshold %s: closedFor %s is shorter than one tick", th.Name, th.ClosedFor)
			}
		}
	}
	for _, q := range config.Queues {
		if err := register("queue", q.Name); err != nil {
			return err
		}
	}
	for _, s := range config.Servers {
		if err := register("server", s.Name); err != nil {
			return err
		}
	}
	for _, s := range config.Sinks {
		if err := register("sink", s.Name); err != nil {
			return err
		}
	}
	for _, g := range config.Generators {
		if err := register("generator", g.Name); err != nil {
			return err
		}
	}

	isDestination := func(name string) bool {
		kind := kinds[name]
		return kind == "server" || kind == "sink"
	}

	for _, s := range config.Servers {
		if s.ServiceTime <= 0 {
			return fmt.Errorf("server %s: serviceTime must be greater than 0", s.Name)
		}
		if !wholeTick(s.ServiceTime) {
			return fmt.Errorf("server %s: serviceTime %s is shorter than one tick", s.Name, s.ServiceTime)
		}

		if s.Next != "" && !isDestination(s.Next) {
			return fmt.Errorf("server %s: next %q is not a server or sink", s.Name, s.Next)
		}

		if s.Queue != "" && len(s.QueueSchedule) > 0 {
			return fmt.Errorf("server %s: queue and queueSchedule are mutually exclusive", s.Name)
		}
		if s.Queue != "" && kinds[s.Queue] != "queue" {
			return fmt.Errorf("server %s: unknown queue %q", s.Name, s.Queue)
		}
		for _, e := range s.QueueSchedule {
			if kinds[e.Queue] != "queue" {
				return fmt.Errorf("server %s: queueSchedule: unknown queue %q", s.Name, e.Queue)
			}
			if e.At < 0 {
				return fmt.Errorf("server %s: queueSchedule: at must not be negative", s.Name)
			}
		}

		if s.Match != "" && len(s.MatchSchedule) > 0 {
			return fmt.Errorf("server %s: match and matchSchedule are mutually exclusive", s.Name)
		}

		for _, th := range s.Thresholds {
			if kinds[th] != "threshold" {
				return fmt.Errorf("server %s: unknown threshold %q", s.Name, th)
			}
		}
	}

	for _, g := range config.Generators {
		if !isDestination(g.Next) {
			return fmt.Errorf("generator %s: next %q is not a server or sink", g.Name, g.Next)
		}

		if (g.Interval > 0) == (g.CronSchedule != "") {
			return fmt.Errorf("generator %s: exactly one of interval and cronSchedule is required", g.Name)
		}

		if g.Interval > 0 && !wholeTick(g.Interval) {
			return fmt.Errorf("generator %s: interval %s is shorter than one tick", g.Name, g.Interval)
		}

		if g.CronSchedule != "" {
			if _, err := clock.ParseCron(g.CronSchedule); err != nil {
				return fmt.Errorf("generator %s: invalid cronSchedule: %w", g.Name, err)
			}
		}

		if g.FirstArrival < 0 || g.MaxCount < 0 {
			return fmt.Errorf("generator %s: firstArrival and maxCount must not be negative", g.Name)
		}

		if _, err := process.ParseKeyMode(g.KeyMode); err != nil {
			return fmt.Errorf("generator %s: keyMode: %w", g.Name, err)
		}
	}

	return nil
}
