package cmd

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sherine-k/procflow/pkg/config"
)

func TestApplyOverrides(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join("..", "examples", "shared-queue.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cmd := rootCmd
	if err := cmd.Flags().Parse([]string{"--replications", "5", "--seed", "9", "--duration", "10m"}); err != nil {
		t.Fatalf("Parse flags: %v", err)
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}

	if cfg.Replications != 5 || cfg.Seed != 9 {
		t.Fatalf("replications/seed = %d/%d, want 5/9", cfg.Replications, cfg.Seed)
	}
	if cfg.RunDuration != 10*time.Minute {
		t.Fatalf("RunDuration = %v, want 10m", cfg.RunDuration)
	}
	if cfg.SampleInterval != 10*time.Minute {
		t.Fatalf("SampleInterval = %v, want 10m", cfg.SampleInterval)
	}
}

func TestApplyOverridesRejectsInvalid(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join("..", "examples", "shared-queue.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cmd := rootCmd
	if err := cmd.Flags().Parse([]string{"--replications=-1"}); err != nil {
		t.Fatalf("Parse flags: %v", err)
	}
	err = applyOverrides(cmd, cfg)
	if err == nil || !strings.Contains(err.Error(), "replications") {
		t.Fatalf("applyOverrides error = %v, want replications error", err)
	}
}
