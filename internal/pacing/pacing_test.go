package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/replythread/harvester/internal/model"
)

func TestPresetUnknownFallsBackToNormal(t *testing.T) {
	t.Parallel()

	require.Equal(t, presets[model.PacingNormal], Preset(model.PacingPreset("bogus")))
}

func TestPresetsCoverAllNamedModes(t *testing.T) {
	t.Parallel()

	for _, name := range []model.PacingPreset{model.PacingUltraSlow, model.PacingSlow, model.PacingNormal, model.PacingFast} {
		cfg := Preset(name)
		require.Greater(t, cfg.PageLoadDelayMs, 0)
		require.Greater(t, cfg.ScrollDelayMs, 0)
		require.Greater(t, cfg.BetweenPostsDelayMs, 0)
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		d := jitter(500, 1500)
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestJitterDegenerateRangeReturnsMin(t *testing.T) {
	t.Parallel()

	require.Equal(t, 500*time.Millisecond, jitter(500, 500))
	require.Equal(t, 500*time.Millisecond, jitter(500, 100))
}

func TestPolicySetOverridesActiveConfig(t *testing.T) {
	t.Parallel()

	p := NewPolicy(model.PacingNormal)
	custom := model.PacingConfig{PageLoadDelayMs: 1, ScrollDelayMs: 1, BetweenPostsDelayMs: 1}
	p.Set(custom)
	require.Equal(t, custom, p.Config())
}

func TestWaitReturnsEarlyOnContextCancel(t *testing.T) {
	t.Parallel()

	p := NewPolicy(model.PacingNormal)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := p.wait(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestFixedWaitsExactDuration(t *testing.T) {
	t.Parallel()

	p := NewPolicy(model.PacingNormal)
	start := time.Now()
	require.NoError(t, p.Fixed(context.Background(), 20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
