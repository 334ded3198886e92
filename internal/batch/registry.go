package batch

import (
	"log/slog"

	"github.com/robfig/cron"

	"github.com/antigravity-dev/deepresearch-mcp/internal/config"
)

// Registry owns the five per-operator-family caches (fact, entity,
// citation, source_rating, conflict) and the background sweep that
// expires stale entries on a fixed cron schedule.
type Registry struct {
	Fact         *Cache
	Entity       *Cache
	Citation     *Cache
	SourceRating *Cache
	Conflict     *Cache

	cron   *cron.Cron
	logger *slog.Logger
}

// NewRegistry builds the five family caches from cfg.Cache's TTL/capacity
// settings.
func NewRegistry(cfg config.Cache, logger *slog.Logger) *Registry {
	return &Registry{
		Fact:         NewCache(cfg.Fact.TTL.Duration, cfg.Fact.MaxEntries),
		Entity:       NewCache(cfg.Entity.TTL.Duration, cfg.Entity.MaxEntries),
		Citation:     NewCache(cfg.Citation.TTL.Duration, cfg.Citation.MaxEntries),
		SourceRating: NewCache(cfg.SourceRating.TTL.Duration, cfg.SourceRating.MaxEntries),
		Conflict:     NewCache(cfg.Conflict.TTL.Duration, cfg.Conflict.MaxEntries),
		logger:       logger,
	}
}

// StartSweep schedules a cron job that sweeps expired entries from every
// family cache every 60 seconds (per spec §4.6's background-cleanup
// requirement). Call Stop to halt it.
func (r *Registry) StartSweep() {
	r.cron = cron.New()
	r.cron.AddFunc("@every 60s", r.sweepAll)
	r.cron.Start()
}

// Stop halts the background sweep, if running.
func (r *Registry) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *Registry) sweepAll() {
	removed := 0
	for _, c := range r.all() {
		removed += c.SweepExpired()
	}
	if removed > 0 && r.logger != nil {
		r.logger.Info("batch: cache sweep", "removed", removed)
	}
}

func (r *Registry) all() []*Cache {
	return []*Cache{r.Fact, r.Entity, r.Citation, r.SourceRating, r.Conflict}
}

// StatsAll returns a name-keyed snapshot of every family cache's stats.
func (r *Registry) StatsAll() map[string]Stats {
	return map[string]Stats{
		"fact":          r.Fact.Stats(),
		"entity":        r.Entity.Stats(),
		"citation":      r.Citation.Stats(),
		"source_rating": r.SourceRating.Stats(),
		"conflict":      r.Conflict.Stats(),
	}
}

// ClearAll empties every family cache, used by the cache-clear tool.
func (r *Registry) ClearAll() {
	for _, c := range r.all() {
		c.Clear()
	}
}
