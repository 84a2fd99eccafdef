package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf}).With(String("entity", "Threshold1"))

	log.Debug(context.Background(), "setOpen", Bool("open", false), Int64("tick", 10), Err(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{`"msg":"setOpen"`, `"entity":"Threshold1"`, `"open":false`, `"tick":10`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged: %q", buf.String())
	}
}

func TestOrNoop(t *testing.T) {
	l := OrNoop(nil)
	l.Error(context.Background(), "dropped")
	if _, ok := l.(noopLogger); !ok {
		t.Fatalf("OrNoop(nil) = %T, want noopLogger", l)
	}
}
