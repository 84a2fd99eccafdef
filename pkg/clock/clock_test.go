package clock

import (
	"errors"
	"testing"
	"time"
)

func TestNewRejectsNonPositiveRatio(t *testing.T) {
	for _, ratio := range []float64{0, -1} {
		if _, err := New(ratio); !errors.Is(err, ErrInvalidRatio) {
			t.Fatalf("New(%v) error = %v, want ErrInvalidRatio", ratio, err)
		}
	}
}

func TestConversions(t *testing.T) {
	c, err := New(1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"truncate", c.SecsToTicks(1.0009), 1000},
		{"nearest up", c.SecsToNearestTick(1.0009), 1001},
		{"nearest down", c.SecsToNearestTick(0.0004), 0},
		{"duration", c.DurationToTicks(2500 * time.Millisecond), 2500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %d, want %d", tt.got, tt.want)
			}
		})
	}

	if got := c.TicksToSecs(1500); got != 1.5 {
		t.Fatalf("TicksToSecs(1500) = %v, want 1.5", got)
	}
	if got := c.TicksToDuration(250); got != 250*time.Millisecond {
		t.Fatalf("TicksToDuration(250) = %v, want 250ms", got)
	}
}

func TestDefaultResolution(t *testing.T) {
	if got := Default().SecsToTicks(1); got != 1_000_000 {
		t.Fatalf("Default().SecsToTicks(1) = %d, want 1000000", got)
	}
}

func TestParseCron(t *testing.T) {
	sch, err := ParseCron("0 12 * * *")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}
	from := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	if got, want := sch.Next(from), time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("Next(%v) = %v, want %v", from, got, want)
	}
	if _, err := ParseCron("0 0 12 * * *"); err == nil {
		t.Fatalf("six-field expression accepted")
	}
}
