// Package pacing implements the delay-table policy that trades harvest
// throughput off against detection risk.
package pacing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/replythread/harvester/internal/model"
)

// presets is the fixed delay table from SPEC_FULL.md §4.2.
var presets = map[model.PacingPreset]model.PacingConfig{
	model.PacingUltraSlow: {PageLoadDelayMs: 5000, ScrollDelayMs: 4000, BetweenPostsDelayMs: 10000, RandomJitter: true, JitterMinMs: 2000, JitterMaxMs: 5000},
	model.PacingSlow:      {PageLoadDelayMs: 3000, ScrollDelayMs: 2500, BetweenPostsDelayMs: 5000, RandomJitter: true, JitterMinMs: 1000, JitterMaxMs: 3000},
	model.PacingNormal:    {PageLoadDelayMs: 2000, ScrollDelayMs: 1500, BetweenPostsDelayMs: 3000, RandomJitter: true, JitterMinMs: 500, JitterMaxMs: 1500},
	model.PacingFast:      {PageLoadDelayMs: 1000, ScrollDelayMs: 800, BetweenPostsDelayMs: 1500, RandomJitter: true, JitterMinMs: 200, JitterMaxMs: 800},
}

// Preset returns the delay tuple for a named preset, defaulting to "normal"
// for unknown names.
func Preset(name model.PacingPreset) model.PacingConfig {
	if cfg, ok := presets[name]; ok {
		return cfg
	}
	return presets[model.PacingNormal]
}

// Policy holds a single mutable PacingConfig shared across a harvest.
type Policy struct {
	mu  sync.RWMutex
	cfg model.PacingConfig
}

// NewPolicy constructs a Policy seeded with the given preset.
func NewPolicy(preset model.PacingPreset) *Policy {
	return &Policy{cfg: Preset(preset)}
}

// Set replaces the active config, e.g. when the config store's
// SCRAPE_PACING_PRESET changes mid-process.
func (p *Policy) Set(cfg model.PacingConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// Config returns a copy of the currently active PacingConfig.
func (p *Policy) Config() model.PacingConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// jitter returns a uniform random duration in [minMs, maxMs], or minMs if
// the range is empty (maxMs <= minMs).
func jitter(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	span := maxMs - minMs
	return time.Duration(minMs+rand.IntN(span+1)) * time.Millisecond
}

// delay computes base + optional jitter for the active config.
func (p *Policy) delay(baseMs int) time.Duration {
	cfg := p.Config()
	base := time.Duration(baseMs) * time.Millisecond
	if !cfg.RandomJitter {
		return base
	}
	return base + jitter(cfg.JitterMinMs, cfg.JitterMaxMs)
}

// wait suspends the caller for the computed delay, or returns early if ctx
// is canceled.
func (p *Policy) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PageLoad suspends for the page-load delay.
func (p *Policy) PageLoad(ctx context.Context) error {
	return p.wait(ctx, p.delay(p.Config().PageLoadDelayMs))
}

// Scroll suspends for the scroll delay.
func (p *Policy) Scroll(ctx context.Context) error {
	return p.wait(ctx, p.delay(p.Config().ScrollDelayMs))
}

// BetweenPosts suspends for the between-posts delay.
func (p *Policy) BetweenPosts(ctx context.Context) error {
	return p.wait(ctx, p.delay(p.Config().BetweenPostsDelayMs))
}

// Fixed suspends for an exact duration with no jitter applied, used for the
// enumerator's hard-coded pauses (e.g. the 2s sort-tab settle).
func (p *Policy) Fixed(ctx context.Context, d time.Duration) error {
	return p.wait(ctx, d)
}
