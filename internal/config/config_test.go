package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deepresearch.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

const validConfig = `
[general]
state_db = "test.db"
lock_ttl = "5m"
log_level = "info"
log_format = "json"

[research.deep]
max_iterations = 10
confidence_threshold = 0.9

[research.quick]
max_iterations = 3
confidence_threshold = 0.7
`

func TestLoadAppliesDefaultsForOmittedSections(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scoring.PruneThreshold != 6.0 {
		t.Fatalf("expected default prune_threshold 6.0, got %v", cfg.Scoring.PruneThreshold)
	}
	if cfg.Cache.Fact.MaxEntries != 500 {
		t.Fatalf("expected default fact cache max_entries 500, got %d", cfg.Cache.Fact.MaxEntries)
	}
	if cfg.Batch.MaxConcurrency != 5 {
		t.Fatalf("expected default batch max_concurrency 5, got %d", cfg.Batch.MaxConcurrency)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg := validConfig + `
[scoring]
prune_threshold = 5.5
aggregate_threshold = 8.0

[cache.fact]
ttl = "20m"
max_entries = 1000
`
	path := writeTestConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Scoring.PruneThreshold != 5.5 {
		t.Fatalf("expected overridden prune_threshold 5.5, got %v", loaded.Scoring.PruneThreshold)
	}
	if loaded.Cache.Fact.TTL.Duration != 20*time.Minute {
		t.Fatalf("expected overridden fact ttl 20m, got %v", loaded.Cache.Fact.TTL.Duration)
	}
	if loaded.Cache.Fact.MaxEntries != 1000 {
		t.Fatalf("expected overridden fact max_entries 1000, got %d", loaded.Cache.Fact.MaxEntries)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsEmptyStateDB(t *testing.T) {
	cfg := Default()
	cfg.General.StateDB = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty state_db")
	}
}

func TestValidateRejectsNonPositiveLockTTL(t *testing.T) {
	cfg := Default()
	cfg.General.LockTTL = Duration{0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero lock_ttl")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := Default()
	cfg.General.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log_format")
	}
}

func TestValidateRejectsOutOfRangeConfidenceThreshold(t *testing.T) {
	cfg := Default()
	cfg.Research.Deep.ConfidenceThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for confidence_threshold above 1")
	}
}

func TestValidateRejectsNonPositiveMaxIterations(t *testing.T) {
	cfg := Default()
	cfg.Research.Quick.MaxIterations = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive max_iterations")
	}
}

func TestValidateRejectsScoringThresholdOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Scoring.AggregateThreshold = 11
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for aggregate_threshold above 10")
	}
}

func TestValidateRejectsNonPositiveCacheTTL(t *testing.T) {
	cfg := Default()
	cfg.Cache.Conflict.TTL = Duration{0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero conflict cache ttl")
	}
}

func TestValidateRejectsVectorEnabledWithoutHost(t *testing.T) {
	cfg := Default()
	cfg.Vector.Enabled = true
	cfg.Vector.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled vector index missing host")
	}
}

func TestResearchDefaultsForFallsBackToDeep(t *testing.T) {
	cfg := Default()
	got := cfg.ResearchDefaultsFor("unknown")
	if got != cfg.Research.Deep {
		t.Fatalf("expected deep defaults fallback, got %+v", got)
	}
	if got := cfg.ResearchDefaultsFor("quick"); got.MaxIterations != 3 {
		t.Fatalf("expected quick max_iterations 3, got %d", got.MaxIterations)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Fatalf("expected 90s, got %v", d.Duration)
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(text) != "1m30s" {
		t.Fatalf("unexpected marshaled text: %q", text)
	}
}

func TestDurationUnmarshalRejectsInvalidText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Fatal("expected error for invalid duration text")
	}
}

func TestCloneIsIndependentCopy(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.General.LogLevel = "debug"
	if cfg.General.LogLevel == "debug" {
		t.Fatal("expected Clone to not alias the original")
	}
}
