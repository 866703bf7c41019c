package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5000.0, cfg.Bankroll)
	assert.Equal(t, 2.0, cfg.MaxArbPositionPct)
	assert.Equal(t, 1.5, cfg.MaxLatePositionPct)
	assert.Equal(t, 10, cfg.MaxConcurrentPositions)
	assert.Equal(t, 3, cfg.MaxConsecutiveFails)
	assert.Equal(t, 2.0, cfg.MinArbEdgePct)
	assert.Equal(t, 0.3, cfg.MaxSlippagePct)
	assert.Equal(t, 5*time.Second, cfg.OrderTimeout)
	assert.Equal(t, 30*time.Minute, cfg.MinTimeToClose)
	assert.Equal(t, 180*time.Second, cfg.LateWindowStart)
	assert.Equal(t, 60*time.Second, cfg.LateWindowEnd)
	assert.Equal(t, 500*time.Millisecond, cfg.HotLoopInterval)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.EnableLateMarket)
	assert.False(t, cfg.LateMarketOnly)
	assert.Equal(t, []string{"btcusdt", "ethusdt", "solusdt", "xrpusdt"}, cfg.FeedSymbols)
}

func TestDerivedSizes(t *testing.T) {
	cfg := &Config{
		Bankroll:            5000,
		MaxArbPositionPct:   2.0,
		MaxLatePositionPct:  1.5,
		MaxDailyExposurePct: 25.0,
		DailyLossHaltPct:    5.0,
	}

	assert.InDelta(t, 100.0, cfg.MaxArbPositionSize(), 1e-9)
	assert.InDelta(t, 75.0, cfg.MaxLatePositionSize(), 1e-9)
	assert.InDelta(t, 1250.0, cfg.MaxDailyExposure(), 1e-9)
	assert.InDelta(t, 250.0, cfg.DailyLossHaltAmount(), 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BANKROLL", "10000")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("SCANNER_INTERVAL", "2s")
	t.Setenv("FEED_SYMBOLS", "BTCUSDT, ethusdt")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 10000.0, cfg.Bankroll)
	assert.Equal(t, 2*time.Second, cfg.ScannerInterval)
	assert.Equal(t, []string{"btcusdt", "ethusdt"}, cfg.FeedSymbols)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero bankroll",
			mutate:  func(c *Config) { c.Bankroll = 0 },
			wantErr: "BANKROLL",
		},
		{
			name:    "inverted late window",
			mutate:  func(c *Config) { c.LateWindowEnd = 200 * time.Second },
			wantErr: "LATE_MARKET_WINDOW_END",
		},
		{
			name:    "bad storage mode",
			mutate:  func(c *Config) { c.StorageMode = "mongo" },
			wantErr: "STORAGE_MODE",
		},
		{
			name:    "live mode without credentials",
			mutate:  func(c *Config) { c.DryRun = false },
			wantErr: "live mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromEnv()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
