package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platform.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadPlatformConfigReadsAndValidates(t *testing.T) {
	path := writeTempConfig(t, `
log_level: warn
worker_pool_size: 4
work_budget: 1000000
`)
	cfg, err := LoadPlatformConfig(path)
	if err != nil {
		t.Fatalf("LoadPlatformConfig: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level warn, got %s", cfg.LogLevel)
	}
	if cfg.WorkBudget != 1000000 {
		t.Fatalf("expected work_budget 1000000, got %d", cfg.WorkBudget)
	}
}

func TestLoadPlatformConfigMissingFile(t *testing.T) {
	if _, err := LoadPlatformConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestResolvedWorkerPoolSizeDefaultsToLogicalCores(t *testing.T) {
	cfg := DefaultPlatformConfig()
	if cfg.ResolvedWorkerPoolSize() <= 0 {
		t.Fatal("expected a positive resolved worker pool size")
	}
}

func TestResolvedWorkerPoolSizeHonorsOverride(t *testing.T) {
	cfg := DefaultPlatformConfig()
	cfg.WorkerPoolSize = 3
	if got := cfg.ResolvedWorkerPoolSize(); got != 3 {
		t.Fatalf("expected resolved worker pool size 3, got %d", got)
	}
}

func TestCriticalityStalenessDurationParsesConfiguredBound(t *testing.T) {
	cfg := DefaultPlatformConfig()
	cfg.CriticalityStalenessBound = "90s"
	d, err := cfg.CriticalityStalenessDuration()
	if err != nil {
		t.Fatalf("CriticalityStalenessDuration: %v", err)
	}
	if d.Seconds() != 90 {
		t.Fatalf("expected 90s, got %v", d)
	}
}

func TestScoringWeightsRoundTrips(t *testing.T) {
	cfg := DefaultPlatformConfig()
	w := cfg.ScoringWeights()
	if w.ReachabilityWeight != cfg.Scoring.ReachabilityWeight || w.ReachabilityDepth != cfg.Scoring.ReachabilityDepth {
		t.Fatalf("expected ScoringWeights to mirror the scoring config, got %+v", w)
	}
}

func TestCascadeParamsFallsBackToDefaultMultiplierTableWhenUnconfigured(t *testing.T) {
	cfg := DefaultPlatformConfig()
	params := cfg.CascadeParams()
	if len(params.MultiplierTable) == 0 {
		t.Fatal("expected an empty event_multiplier_table to fall back to the built-in defaults")
	}
	if params.TopKCriticalPaths != cfg.TopKCriticalPaths {
		t.Fatalf("expected TopKCriticalPaths %d, got %d", cfg.TopKCriticalPaths, params.TopKCriticalPaths)
	}
}

func TestIngestOptionsIncludesPerTypeOverrides(t *testing.T) {
	cfg := DefaultPlatformConfig()
	cfg.Ingestion.ByDataType = map[string]int64{"sensor.load": 999}
	opts := cfg.IngestOptions()
	if len(opts) != 2 {
		t.Fatalf("expected a default option plus one per-type override, got %d", len(opts))
	}
}
