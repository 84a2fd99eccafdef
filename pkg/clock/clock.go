package clock

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTicksPerSecond is the tick resolution used when none is configured.
const DefaultTicksPerSecond = 1e6

// ErrInvalidRatio is returned when the tick ratio is not a positive number.
var ErrInvalidRatio = errors.New("ticks per second must be greater than 0")

// Clock converts between simulated seconds and integral ticks
type Clock struct {
	ticksPerSecond float64
}

// New creates a clock with the given resolution
func New(ticksPerSecond float64) (*Clock, error) {
	if ticksPerSecond <= 0 || math.IsNaN(ticksPerSecond) || math.IsInf(ticksPerSecond, 0) {
		return nil, fmt.Errorf("clock: %v: %w", ticksPerSecond, ErrInvalidRatio)
	}
	return &Clock{ticksPerSecond: ticksPerSecond}, nil
}

// Default returns a clock using DefaultTicksPerSecond
func Default() *Clock {
	return &Clock{ticksPerSecond: DefaultTicksPerSecond}
}

// TicksPerSecond returns the configured resolution
func (c *Clock) TicksPerSecond() float64 {
	return c.ticksPerSecond
}

// SecsToTicks converts seconds to ticks, truncating any fractional tick
func (c *Clock) SecsToTicks(secs float64) int64 {
	return int64(secs * c.ticksPerSecond)
}

// SecsToNearestTick converts seconds to the nearest whole tick
func (c *Clock) SecsToNearestTick(secs float64) int64 {
	return int64(math.Round(secs * c.ticksPerSecond))
}

// TicksToSecs converts ticks back to seconds
func (c *Clock) TicksToSecs(ticks int64) float64 {
	return float64(ticks) / c.ticksPerSecond
}

// DurationToTicks converts a wall-style duration to the nearest tick
func (c *Clock) DurationToTicks(d time.Duration) int64 {
	return c.SecsToNearestTick(d.Seconds())
}

// TicksToDuration converts ticks to a duration
func (c *Clock) TicksToDuration(ticks int64) time.Duration {
	return time.Duration(math.Round(c.TicksToSecs(ticks) * float64(time.Second)))
}

// ParseCron parses a five-field cron expression evaluated against calendar time
func ParseCron(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(spec)
}
