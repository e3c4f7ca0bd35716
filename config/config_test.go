package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Derived.TimeStep != 15*time.Minute {
		t.Errorf("TimeStep = %v, want 15m", cfg.Derived.TimeStep)
	}
	if cfg.Derived.Duration != 48*time.Hour {
		t.Errorf("Duration = %v, want 48h", cfg.Derived.Duration)
	}
	if cfg.Wind.Source != "constant" {
		t.Errorf("wind source = %q, want constant", cfg.Wind.Source)
	}
	if len(cfg.Spills) != 1 || cfg.Spills[0].Elements != 1000 {
		t.Errorf("spills = %+v, want one 1000-element release", cfg.Spills)
	}
	if !cfg.Derived.SpillStarts[0].Equal(cfg.Derived.Start) {
		t.Errorf("spill start %v should default to run start %v",
			cfg.Derived.SpillStarts[0], cfg.Derived.Start)
	}
	if cfg.Derived.RefreshInterval != 3*time.Hour {
		t.Errorf("RefreshInterval = %v, want 3h", cfg.Derived.RefreshInterval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "run:\n  start: \"2026-06-01T00:00:00Z\"\n  time_step: \"30m\"\n  duration: \"12h\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.TimeStep != 30*time.Minute {
		t.Errorf("TimeStep = %v, want 30m", cfg.Derived.TimeStep)
	}
	want := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.Derived.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", cfg.Derived.Start, want)
	}
	// Untouched sections keep their defaults.
	if cfg.Wind.U != 5.0 {
		t.Errorf("wind U = %v, want default 5.0", cfg.Wind.U)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad time step", "run:\n  time_step: \"soon\"\n"},
		{"zero time step", "run:\n  time_step: \"0s\"\n"},
		{"duration below step", "run:\n  duration: \"5m\"\n"},
		{"unknown wind source", "wind:\n  source: \"tarot\"\n"},
		{"series without file", "wind:\n  source: \"series\"\n"},
		{"inverted windage", "spills:\n  - lon: -124.0\n    lat: 47.0\n    elements: 10\n    windage_min: 0.05\n    windage_max: 0.01\n"},
		{"zero elements", "spills:\n  - lon: -124.0\n    lat: 47.0\n    elements: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Run.Seed != cfg.Run.Seed || again.Run.TimeStep != cfg.Run.TimeStep {
		t.Errorf("round trip changed run section: %+v vs %+v", again.Run, cfg.Run)
	}
}
