package thresholds

import (
	"testing"

	"MarketLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func sampleConfig() *models.ThresholdConfig {
	return &models.ThresholdConfig{
		GlobalDefaults: models.GlobalDefaults{
			ZScoreThreshold:        3.0,
			VolumeZThreshold:       2.5,
			BollingerStdMultiplier: 2.0,
		},
		VolatilityTiers: map[models.VolatilityTier]models.TierConfig{
			models.TierStable:   {Multiplier: 1.2, Assets: []string{"BTC-USD", "ETH-USD"}},
			models.TierModerate: {Multiplier: 1.0, Assets: []string{"SOL-USD"}},
			models.TierVolatile: {Multiplier: 0.8, Assets: []string{"DOGE-USD", "ETH-USD"}},
		},
		AssetOverrides: map[string]models.AssetOverride{
			"PEPE-USD": {ZScoreThreshold: ptr(4.5), VolumeZThreshold: ptr(3.5), Description: "meme coin"},
			"DOGE-USD": {VolumeZThreshold: ptr(4.0)},
			"SOL-USD":  {},
		},
	}
}

func TestResolveStableTierScalesGlobalDefault(t *testing.T) {
	got := Resolve("BTC-USD", sampleConfig())

	assert.Equal(t, models.TierStable, got.VolatilityTier)
	assert.InDelta(t, 3.6, got.ZScoreThreshold, 1e-9)
	assert.InDelta(t, 3.0, got.VolumeZThreshold, 1e-9)
	assert.Equal(t, 1.2, got.TierMultiplier)
	assert.False(t, got.IsOverride)
}

func TestResolveUnknownSymbolIsModerate(t *testing.T) {
	cfg := sampleConfig()
	got := Resolve("XRP-USD", cfg)

	assert.Equal(t, models.TierModerate, got.VolatilityTier)
	assert.InDelta(t, cfg.GlobalDefaults.ZScoreThreshold*1.0, got.ZScoreThreshold, 1e-9)
	assert.InDelta(t, cfg.GlobalDefaults.VolumeZThreshold*1.0, got.VolumeZThreshold, 1e-9)
	assert.False(t, got.IsOverride)
}

func TestResolveModerateMultiplierDefaultsToOne(t *testing.T) {
	cfg := sampleConfig()
	delete(cfg.VolatilityTiers, models.TierModerate)

	got := Resolve("XRP-USD", cfg)
	assert.Equal(t, models.TierModerate, got.VolatilityTier)
	assert.Equal(t, 1.0, got.TierMultiplier)
	assert.InDelta(t, 3.0, got.ZScoreThreshold, 1e-9)
}

func TestResolvePartialOverrideFallsBackUnscaled(t *testing.T) {
	// DOGE-USD is volatile (0.8) but only volumeZThreshold is overridden:
	// zScore must be the raw global default, not 3.0*0.8.
	got := Resolve("DOGE-USD", sampleConfig())

	assert.True(t, got.IsOverride)
	assert.Equal(t, models.TierVolatile, got.VolatilityTier)
	assert.InDelta(t, 3.0, got.ZScoreThreshold, 1e-9)
	assert.InDelta(t, 4.0, got.VolumeZThreshold, 1e-9)
}

func TestResolveEmptyOverrideStillActive(t *testing.T) {
	got := Resolve("SOL-USD", sampleConfig())

	assert.True(t, got.IsOverride)
	assert.InDelta(t, 3.0, got.ZScoreThreshold, 1e-9)
	assert.InDelta(t, 2.5, got.VolumeZThreshold, 1e-9)
}

func TestResolveFullOverrideCarriesDescription(t *testing.T) {
	got := Resolve("PEPE-USD", sampleConfig())

	assert.True(t, got.IsOverride)
	assert.Equal(t, 4.5, got.ZScoreThreshold)
	assert.Equal(t, 3.5, got.VolumeZThreshold)
	assert.Equal(t, "meme coin", got.Description)
}

func TestTierOfConflictUsesFixedPriority(t *testing.T) {
	cfg := sampleConfig()
	// ETH-USD is listed as both stable and volatile.
	for i := 0; i < 50; i++ {
		require.Equal(t, models.TierStable, TierOf("ETH-USD", cfg))
	}
	assert.Equal(t, []string{"ETH-USD"}, ConflictingSymbols(cfg))
}

func TestResolveAllSortedAndDeduplicated(t *testing.T) {
	all := ResolveAll(sampleConfig())

	symbols := make([]string, 0, len(all))
	for _, a := range all {
		symbols = append(symbols, a.Symbol)
	}
	assert.Equal(t, []string{"BTC-USD", "DOGE-USD", "ETH-USD", "PEPE-USD", "SOL-USD"}, symbols)
}

func TestResolveAllEmptyConfig(t *testing.T) {
	cfg := &models.ThresholdConfig{GlobalDefaults: models.GlobalDefaults{ZScoreThreshold: 3, VolumeZThreshold: 3}}
	assert.Empty(t, ResolveAll(cfg))
}
