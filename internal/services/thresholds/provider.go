package thresholds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"MarketLens/internal/domain/models"
	applogger "MarketLens/pkg/logger"

	"gopkg.in/yaml.v3"
)

// LoaderFunc produces a parsed threshold document.
type LoaderFunc func() (*models.ThresholdConfig, error)

// FileLoader reads a JSON (.json) or YAML document from path.
func FileLoader(path string) LoaderFunc {
	return func() (*models.ThresholdConfig, error) {
		return LoadFile(path)
	}
}

// LoadFile reads and validates a threshold document. Every failure is a
// *models.ConfigLoadError.
func LoadFile(path string) (*models.ThresholdConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ConfigLoadError{Path: path, Err: err}
	}
	cfg, err := Parse(b, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, &models.ConfigLoadError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes a threshold document and checks its shape.
func Parse(b []byte, isJSON bool) (*models.ThresholdConfig, error) {
	var cfg models.ThresholdConfig
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects documents that cannot be resolved against.
func Validate(cfg *models.ThresholdConfig) error {
	g := cfg.GlobalDefaults
	if g.ZScoreThreshold <= 0 {
		return fmt.Errorf("globalDefaults.zScoreThreshold must be > 0")
	}
	if g.VolumeZThreshold <= 0 {
		return fmt.Errorf("globalDefaults.volumeZThreshold must be > 0")
	}
	for tier, tc := range cfg.VolatilityTiers {
		if !tier.IsValid() {
			return fmt.Errorf("volatilityTiers: unknown tier %q", tier)
		}
		if tc.Multiplier <= 0 {
			return fmt.Errorf("volatilityTiers.%s.multiplier must be > 0", tier)
		}
	}
	for sym, ov := range cfg.AssetOverrides {
		if ov.ZScoreThreshold != nil && *ov.ZScoreThreshold <= 0 {
			return fmt.Errorf("assetOverrides.%s.zScoreThreshold must be > 0", sym)
		}
		if ov.VolumeZThreshold != nil && *ov.VolumeZThreshold <= 0 {
			return fmt.Errorf("assetOverrides.%s.volumeZThreshold must be > 0", sym)
		}
	}
	return nil
}

type snapshot struct {
	cfg      *models.ThresholdConfig
	all      []models.AssetThresholds
	bySymbol map[string]models.AssetThresholds
}

// Provider holds the process-wide threshold document. The first call to
// Config loads it; later calls read the cached snapshot until Reload or
// Clear. Loads are serialised by mu so a racing first use never observes a
// half-built snapshot.
type Provider struct {
	load LoaderFunc
	l    *applogger.Logger

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

func NewProvider(load LoaderFunc, l *applogger.Logger) *Provider {
	if l == nil {
		l = applogger.Nop()
	}
	return &Provider{load: load, l: l}
}

// Config returns the cached document, loading it on first use.
func (p *Provider) Config() (*models.ThresholdConfig, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	return s.cfg, nil
}

// Resolve returns the effective thresholds for symbol.
func (p *Provider) Resolve(symbol string) (models.AssetThresholds, error) {
	s, err := p.current()
	if err != nil {
		return models.AssetThresholds{}, err
	}
	if t, ok := s.bySymbol[symbol]; ok {
		return t, nil
	}
	return Resolve(symbol, s.cfg), nil
}

// ResolveAll returns the precomputed list for every configured symbol.
func (p *Provider) ResolveAll() ([]models.AssetThresholds, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	out := make([]models.AssetThresholds, len(s.all))
	copy(out, s.all)
	return out, nil
}

// Reload replaces the cached document. On failure the previous snapshot is
// kept and the error is returned.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.build()
	if err != nil {
		return err
	}
	p.snap.Store(s)
	p.l.Info("threshold config reloaded", applogger.Int("symbols", len(s.all)))
	return nil
}

// Clear drops the cached document; the next read loads it again.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.snap.Store(nil)
	p.mu.Unlock()
}

// Loaded reports whether a snapshot is currently cached.
func (p *Provider) Loaded() bool {
	return p.snap.Load() != nil
}

func (p *Provider) current() (*snapshot, error) {
	if s := p.snap.Load(); s != nil {
		return s, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.snap.Load(); s != nil {
		return s, nil
	}
	s, err := p.build()
	if err != nil {
		return nil, err
	}
	p.snap.Store(s)
	p.l.Info("threshold config loaded", applogger.Int("symbols", len(s.all)))
	return s, nil
}

func (p *Provider) build() (*snapshot, error) {
	cfg, err := p.load()
	if err != nil {
		p.l.Error("threshold config load failed", applogger.Error(err))
		return nil, err
	}
	if conflicts := ConflictingSymbols(cfg); len(conflicts) > 0 {
		p.l.Warn("symbols listed under several tiers; resolving by priority",
			applogger.Strings("symbols", conflicts))
	}
	all := ResolveAll(cfg)
	by := make(map[string]models.AssetThresholds, len(all))
	for _, t := range all {
		by[t.Symbol] = t
	}
	return &snapshot{cfg: cfg, all: all, bySymbol: by}, nil
}
