package models

// VolatilityTier is the coarse volatility class that scales default thresholds.
type VolatilityTier string

const (
	TierStable   VolatilityTier = "stable"
	TierModerate VolatilityTier = "moderate"
	TierVolatile VolatilityTier = "volatile"
)

// TierPriority is the order used when a symbol is listed under several tiers.
var TierPriority = []VolatilityTier{TierStable, TierVolatile, TierModerate}

// IsValid reports whether t is one of the three known tiers.
func (t VolatilityTier) IsValid() bool {
	switch t {
	case TierStable, TierModerate, TierVolatile:
		return true
	default:
		return false
	}
}

// GlobalDefaults is the baseline sensitivity applied before tier scaling.
type GlobalDefaults struct {
	ZScoreThreshold        float64 `json:"zScoreThreshold" yaml:"zScoreThreshold"`
	VolumeZThreshold       float64 `json:"volumeZThreshold" yaml:"volumeZThreshold"`
	BollingerStdMultiplier float64 `json:"bollingerStdMultiplier" yaml:"bollingerStdMultiplier"`
}

// TierConfig holds the multiplier and the member symbols of one tier.
type TierConfig struct {
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
	Assets     []string `json:"assets" yaml:"assets"`
}

// AssetOverride is a partial per-asset replacement of the default thresholds.
// A nil field falls back to the unscaled global default.
type AssetOverride struct {
	ZScoreThreshold  *float64 `json:"zScoreThreshold,omitempty" yaml:"zScoreThreshold,omitempty"`
	VolumeZThreshold *float64 `json:"volumeZThreshold,omitempty" yaml:"volumeZThreshold,omitempty"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// ThresholdConfig is the static detection-threshold document.
type ThresholdConfig struct {
	GlobalDefaults  GlobalDefaults                `json:"globalDefaults" yaml:"globalDefaults"`
	VolatilityTiers map[VolatilityTier]TierConfig `json:"volatilityTiers" yaml:"volatilityTiers"`
	AssetOverrides  map[string]AssetOverride      `json:"assetOverrides" yaml:"assetOverrides"`
}

// AssetThresholds is the effective threshold set resolved for one symbol.
type AssetThresholds struct {
	Symbol           string         `json:"symbol"`
	ZScoreThreshold  float64        `json:"zScoreThreshold"`
	VolumeZThreshold float64        `json:"volumeZThreshold"`
	VolatilityTier   VolatilityTier `json:"volatilityTier"`
	TierMultiplier   float64        `json:"tierMultiplier"`
	IsOverride       bool           `json:"isOverride"`
	Description      string         `json:"description,omitempty"`
}
