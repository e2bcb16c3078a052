package thresholds

import (
	"sort"

	"MarketLens/internal/domain/models"
)

const defaultTierMultiplier = 1.0

// TierOf returns the tier a symbol belongs to. A symbol listed under more
// than one tier resolves by models.TierPriority; an unlisted symbol is
// moderate.
func TierOf(symbol string, cfg *models.ThresholdConfig) models.VolatilityTier {
	for _, tier := range models.TierPriority {
		tc, ok := cfg.VolatilityTiers[tier]
		if !ok {
			continue
		}
		for _, s := range tc.Assets {
			if s == symbol {
				return tier
			}
		}
	}
	return models.TierModerate
}

// TierMultiplier returns the configured multiplier, or 1.0 when the tier is
// absent from the document.
func TierMultiplier(tier models.VolatilityTier, cfg *models.ThresholdConfig) float64 {
	if tc, ok := cfg.VolatilityTiers[tier]; ok && tc.Multiplier > 0 {
		return tc.Multiplier
	}
	return defaultTierMultiplier
}

// Resolve computes the effective thresholds for one symbol. It never fails:
// unknown symbols go through the tier-default path.
//
// With an override present, a missing override field falls back to the
// global default WITHOUT the tier multiplier. Without an override both
// values are the global default scaled by the tier multiplier.
func Resolve(symbol string, cfg *models.ThresholdConfig) models.AssetThresholds {
	tier := TierOf(symbol, cfg)
	mult := TierMultiplier(tier, cfg)
	g := cfg.GlobalDefaults

	out := models.AssetThresholds{
		Symbol:         symbol,
		VolatilityTier: tier,
		TierMultiplier: mult,
	}

	if ov, ok := cfg.AssetOverrides[symbol]; ok {
		out.ZScoreThreshold = valueOr(ov.ZScoreThreshold, g.ZScoreThreshold)
		out.VolumeZThreshold = valueOr(ov.VolumeZThreshold, g.VolumeZThreshold)
		out.IsOverride = true
		out.Description = ov.Description
		return out
	}

	out.ZScoreThreshold = g.ZScoreThreshold * mult
	out.VolumeZThreshold = g.VolumeZThreshold * mult
	return out
}

// ResolveAll resolves every symbol named anywhere in the document, sorted by
// symbol with duplicates removed.
func ResolveAll(cfg *models.ThresholdConfig) []models.AssetThresholds {
	symbols := KnownSymbols(cfg)
	out := make([]models.AssetThresholds, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, Resolve(s, cfg))
	}
	return out
}

// KnownSymbols unions tier members and override keys.
func KnownSymbols(cfg *models.ThresholdConfig) []string {
	seen := make(map[string]struct{})
	for _, tc := range cfg.VolatilityTiers {
		for _, s := range tc.Assets {
			seen[s] = struct{}{}
		}
	}
	for s := range cfg.AssetOverrides {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ConflictingSymbols lists symbols that appear under more than one tier.
func ConflictingSymbols(cfg *models.ThresholdConfig) []string {
	count := make(map[string]int)
	for _, tc := range cfg.VolatilityTiers {
		seen := make(map[string]struct{}, len(tc.Assets))
		for _, s := range tc.Assets {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			count[s]++
		}
	}
	var out []string
	for s, n := range count {
		if n > 1 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func valueOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}
