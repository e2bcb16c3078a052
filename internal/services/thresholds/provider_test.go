package thresholds

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"MarketLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `
globalDefaults:
  zScoreThreshold: 3.0
  volumeZThreshold: 2.5
  bollingerStdMultiplier: 2.0
volatilityTiers:
  stable:
    multiplier: 1.2
    assets: [BTC-USD]
  volatile:
    multiplier: 0.8
    assets: [DOGE-USD]
assetOverrides:
  SHIB-USD:
    volumeZThreshold: 5
`

const jsonDoc = `{
  "globalDefaults": {"zScoreThreshold": 3.0, "volumeZThreshold": 2.5, "bollingerStdMultiplier": 2.0},
  "volatilityTiers": {"stable": {"multiplier": 1.2, "assets": ["BTC-USD"]}},
  "assetOverrides": {}
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFileYAML(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "thresholds.yaml", yamlDoc))
	require.NoError(t, err)

	assert.Equal(t, 3.0, cfg.GlobalDefaults.ZScoreThreshold)
	assert.Equal(t, []string{"BTC-USD"}, cfg.VolatilityTiers[models.TierStable].Assets)
	require.NotNil(t, cfg.AssetOverrides["SHIB-USD"].VolumeZThreshold)
	assert.Nil(t, cfg.AssetOverrides["SHIB-USD"].ZScoreThreshold)
}

func TestLoadFileJSON(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "thresholds.json", jsonDoc))
	require.NoError(t, err)
	assert.Equal(t, 1.2, cfg.VolatilityTiers[models.TierStable].Multiplier)
}

func TestLoadFileErrorsAreConfigLoadErrors(t *testing.T) {
	cases := map[string]string{
		"missing":      filepath.Join(t.TempDir(), "nope.yaml"),
		"malformed":    writeFile(t, "bad.json", `{"globalDefaults": `),
		"unknown tier": writeFile(t, "tier.yaml", "globalDefaults: {zScoreThreshold: 3, volumeZThreshold: 3}\nvolatilityTiers:\n  wild: {multiplier: 2}\n"),
		"zero default": writeFile(t, "zero.yaml", "globalDefaults: {zScoreThreshold: 0, volumeZThreshold: 3}\n"),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(path)
			require.Error(t, err)
			var cle *models.ConfigLoadError
			assert.True(t, errors.As(err, &cle))
			assert.Equal(t, path, cle.Path)
		})
	}
}

func TestProviderLoadsOnceConcurrently(t *testing.T) {
	var loads int32
	p := NewProvider(func() (*models.ThresholdConfig, error) {
		atomic.AddInt32(&loads, 1)
		return sampleConfig(), nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Resolve("BTC-USD")
			assert.NoError(t, err)
			assert.InDelta(t, 3.6, got.ZScoreThreshold, 1e-9)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.True(t, p.Loaded())
}

func TestProviderClearForcesReload(t *testing.T) {
	var loads int32
	p := NewProvider(func() (*models.ThresholdConfig, error) {
		atomic.AddInt32(&loads, 1)
		return sampleConfig(), nil
	}, nil)

	_, err := p.ResolveAll()
	require.NoError(t, err)
	p.Clear()
	assert.False(t, p.Loaded())
	_, err = p.ResolveAll()
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestProviderReloadKeepsPreviousOnFailure(t *testing.T) {
	fail := false
	p := NewProvider(func() (*models.ThresholdConfig, error) {
		if fail {
			return nil, &models.ConfigLoadError{Path: "x", Err: errors.New("boom")}
		}
		return sampleConfig(), nil
	}, nil)

	_, err := p.Config()
	require.NoError(t, err)

	fail = true
	require.Error(t, p.Reload())

	got, err := p.Resolve("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, models.TierStable, got.VolatilityTier)
}

func TestProviderFailedFirstLoadIsNotCached(t *testing.T) {
	p := NewProvider(FileLoader(filepath.Join(t.TempDir(), "missing.yaml")), nil)

	_, err := p.Resolve("BTC-USD")
	var cle *models.ConfigLoadError
	require.ErrorAs(t, err, &cle)
	assert.False(t, p.Loaded())
}

func TestProviderResolveUnknownSymbol(t *testing.T) {
	p := NewProvider(func() (*models.ThresholdConfig, error) { return sampleConfig(), nil }, nil)

	got, err := p.Resolve("UNLISTED")
	require.NoError(t, err)
	assert.Equal(t, models.TierModerate, got.VolatilityTier)
	assert.False(t, got.IsOverride)
}
