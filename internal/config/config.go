// Package config loads and validates the research orchestration server's
// TOML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration for the research orchestration server.
type Config struct {
	General  General  `toml:"general"`
	Research Research `toml:"research"`
	Scoring  Scoring  `toml:"scoring"`
	Cache    Cache    `toml:"cache"`
	Batch    Batch    `toml:"batch"`
	Pipeline Pipeline `toml:"pipeline"`
	Vector   Vector   `toml:"vector"`
}

// General holds process-wide settings: storage location, advisory lock
// staleness, and logging.
type General struct {
	StateDB   string   `toml:"state_db"`
	LockTTL   Duration `toml:"lock_ttl"`
	LogLevel  string   `toml:"log_level"`
	LogFormat string   `toml:"log_format"` // json|text
}

// ResearchTypeDefaults holds the iteration/confidence defaults for one
// research_type value.
type ResearchTypeDefaults struct {
	MaxIterations       int     `toml:"max_iterations"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
}

// Research holds per-research-type defaults. Session creation does not read
// them; the store applies its own built-in per-type values.
type Research struct {
	Deep  ResearchTypeDefaults `toml:"deep"`
	Quick ResearchTypeDefaults `toml:"quick"`
}

// Scoring holds the quality-score rubric's weights and cutoffs. They are
// loaded and validated, but the GoT engine scores with its own built-in
// constants and does not read them.
type Scoring struct {
	CitationQualityMax float64 `toml:"citation_quality_max"` // default 3
	CompletenessMax    float64 `toml:"completeness_max"`     // default 3
	AccuracyMax        float64 `toml:"accuracy_max"`         // default 2
	SourceQualityMax   float64 `toml:"source_quality_max"`   // default 2
	PruneThreshold     float64 `toml:"prune_threshold"`      // default 6.0
	AggregateThreshold float64 `toml:"aggregate_threshold"`  // default 7.0
	KeepTopN           int     `toml:"keep_top_n"`           // default 2
}

// CacheFamily holds the TTL and max-entries setting for one named cache.
type CacheFamily struct {
	TTL        Duration `toml:"ttl"`
	MaxEntries int      `toml:"max_entries"`
}

// Cache holds the per-operator-family TTL cache configuration (C6).
type Cache struct {
	Fact          CacheFamily `toml:"fact"`
	Entity        CacheFamily `toml:"entity"`
	Citation      CacheFamily `toml:"citation"`
	SourceRating  CacheFamily `toml:"source_rating"`
	Conflict      CacheFamily `toml:"conflict"`
	SweepInterval Duration    `toml:"sweep_interval"`
}

// Batch holds batch-operator defaults. They are loaded and validated; the
// batch-* tools use their own built-in defaults and do not read them.
type Batch struct {
	MaxConcurrency int  `toml:"max_concurrency"`
	UseCache       bool `toml:"use_cache"`
	StopOnError    bool `toml:"stop_on_error"`
}

// Pipeline holds auto_process_data defaults.
type Pipeline struct {
	ContinueOnError bool `toml:"continue_on_error"`
}

// Vector holds the optional, disabled-by-default ancillary vector index
// configuration. When Enabled is false every vectorindex call is a no-op.
type Vector struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Scheme     string `toml:"scheme"`
	Collection string `toml:"collection"`
	APIKey     string `toml:"api_key"`
}

// Clone returns a deep-enough copy for safe concurrent handoff: every field
// here is a value type or a string, so a shallow struct copy suffices.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	return &c
}

// Default returns a configuration populated with every documented default,
// used when no config file is supplied.
func Default() *Config {
	return &Config{
		General: General{
			StateDB:   "deepresearch.db",
			LockTTL:   Duration{5 * time.Minute},
			LogLevel:  "info",
			LogFormat: "json",
		},
		Research: Research{
			Deep:  ResearchTypeDefaults{MaxIterations: 10, ConfidenceThreshold: 0.9},
			Quick: ResearchTypeDefaults{MaxIterations: 3, ConfidenceThreshold: 0.7},
		},
		Scoring: Scoring{
			CitationQualityMax: 3,
			CompletenessMax:    3,
			AccuracyMax:        2,
			SourceQualityMax:   2,
			PruneThreshold:     6.0,
			AggregateThreshold: 7.0,
			KeepTopN:           2,
		},
		Cache: Cache{
			Fact:          CacheFamily{TTL: Duration{10 * time.Minute}, MaxEntries: 500},
			Entity:        CacheFamily{TTL: Duration{10 * time.Minute}, MaxEntries: 500},
			Citation:      CacheFamily{TTL: Duration{30 * time.Minute}, MaxEntries: 200},
			SourceRating:  CacheFamily{TTL: Duration{60 * time.Minute}, MaxEntries: 1000},
			Conflict:      CacheFamily{TTL: Duration{5 * time.Minute}, MaxEntries: 200},
			SweepInterval: Duration{60 * time.Second},
		},
		Batch: Batch{
			MaxConcurrency: 5,
			UseCache:       true,
			StopOnError:    false,
		},
		Pipeline: Pipeline{
			ContinueOnError: true,
		},
		Vector: Vector{
			Enabled:    false,
			Scheme:     "http",
			Collection: "ResearchPath",
		},
	}
}

// Load reads and validates the TOML file at path, filling any field absent
// from the file with Default()'s value.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range values before the server starts.
func (cfg *Config) Validate() error {
	if cfg.General.StateDB == "" {
		return fmt.Errorf("general.state_db is required")
	}
	if cfg.General.LockTTL.Duration <= 0 {
		return fmt.Errorf("general.lock_ttl must be positive")
	}
	switch cfg.General.LogFormat {
	case "json", "text", "":
	default:
		return fmt.Errorf("general.log_format must be \"json\" or \"text\", got %q", cfg.General.LogFormat)
	}

	for _, rt := range []struct {
		name string
		d    ResearchTypeDefaults
	}{{"deep", cfg.Research.Deep}, {"quick", cfg.Research.Quick}} {
		if rt.d.MaxIterations <= 0 {
			return fmt.Errorf("research.%s.max_iterations must be positive", rt.name)
		}
		if rt.d.ConfidenceThreshold <= 0 || rt.d.ConfidenceThreshold > 1 {
			return fmt.Errorf("research.%s.confidence_threshold must be in (0, 1]", rt.name)
		}
	}

	if cfg.Scoring.PruneThreshold < 0 || cfg.Scoring.PruneThreshold > 10 {
		return fmt.Errorf("scoring.prune_threshold must be in [0, 10]")
	}
	if cfg.Scoring.AggregateThreshold < 0 || cfg.Scoring.AggregateThreshold > 10 {
		return fmt.Errorf("scoring.aggregate_threshold must be in [0, 10]")
	}
	if cfg.Scoring.KeepTopN <= 0 {
		return fmt.Errorf("scoring.keep_top_n must be positive")
	}

	for _, family := range []struct {
		name string
		f    CacheFamily
	}{
		{"fact", cfg.Cache.Fact}, {"entity", cfg.Cache.Entity}, {"citation", cfg.Cache.Citation},
		{"source_rating", cfg.Cache.SourceRating}, {"conflict", cfg.Cache.Conflict},
	} {
		if family.f.TTL.Duration <= 0 {
			return fmt.Errorf("cache.%s.ttl must be positive", family.name)
		}
		if family.f.MaxEntries <= 0 {
			return fmt.Errorf("cache.%s.max_entries must be positive", family.name)
		}
	}
	if cfg.Cache.SweepInterval.Duration <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive")
	}

	if cfg.Batch.MaxConcurrency <= 0 {
		return fmt.Errorf("batch.max_concurrency must be positive")
	}

	if cfg.Vector.Enabled {
		if cfg.Vector.Host == "" {
			return fmt.Errorf("vector.host is required when vector.enabled is true")
		}
		if cfg.Vector.Collection == "" {
			return fmt.Errorf("vector.collection is required when vector.enabled is true")
		}
	}

	return nil
}

// ResearchDefaultsFor returns the MaxIterations/ConfidenceThreshold pair for
// the given research_type, falling back to "deep" for an unrecognized value.
func (cfg *Config) ResearchDefaultsFor(researchType string) ResearchTypeDefaults {
	if researchType == "quick" {
		return cfg.Research.Quick
	}
	return cfg.Research.Deep
}
