package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"MarketLens/internal/domain/models"
)

// MemoryPriceStore keeps samples per symbol, sorted by timestamp.
type MemoryPriceStore struct {
	mu      sync.RWMutex
	samples map[string][]models.PriceSample
}

func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{samples: make(map[string][]models.PriceSample)}
}

// Add inserts samples, keeping each symbol's slice ordered.
func (s *MemoryPriceStore) Add(samples ...models.PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]struct{})
	for _, p := range samples {
		p.Timestamp = p.Timestamp.UTC()
		s.samples[p.Symbol] = append(s.samples[p.Symbol], p)
		touched[p.Symbol] = struct{}{}
	}
	for sym := range touched {
		list := s.samples[sym]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	}
}

func (s *MemoryPriceStore) Samples(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PriceSample, 0)
	for _, p := range s.samples[symbol] {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryPriceStore) Latest(ctx context.Context, symbol string) (*models.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.samples[symbol]
	if len(list) == 0 {
		return nil, nil
	}
	p := list[len(list)-1]
	return &p, nil
}

func (s *MemoryPriceStore) Health(ctx context.Context) error { return nil }

// MemoryAnomalyStore evaluates filters with AnomalyFilter.Match.
type MemoryAnomalyStore struct {
	mu   sync.RWMutex
	rows []models.Anomaly
}

func NewMemoryAnomalyStore() *MemoryAnomalyStore {
	return &MemoryAnomalyStore{}
}

// Add stores anomalies and keeps the detectedAt DESC, id DESC order.
func (s *MemoryAnomalyStore) Add(rows ...models.Anomaly) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range rows {
		a.DetectedAt = a.DetectedAt.UTC()
		s.rows = append(s.rows, a)
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		a, b := s.rows[i], s.rows[j]
		if !a.DetectedAt.Equal(b.DetectedAt) {
			return a.DetectedAt.After(b.DetectedAt)
		}
		return a.ID > b.ID
	})
}

func (s *MemoryAnomalyStore) Find(ctx context.Context, f models.AnomalyFilter, offset, limit int) ([]models.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Anomaly, 0, limit)
	skipped := 0
	for _, a := range s.rows {
		if !f.Match(a) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryAnomalyStore) Count(ctx context.Context, f models.AnomalyFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.rows {
		if f.Match(a) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryAnomalyStore) FindByID(ctx context.Context, id string) (*models.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.rows {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, models.ErrAnomalyNotFound
}

func (s *MemoryAnomalyStore) FindSince(ctx context.Context, since time.Time, symbols []string, limit int) ([]models.Anomaly, error) {
	f := models.AnomalyFilter{Symbols: symbols}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Anomaly, 0)
	for _, a := range s.rows {
		if !a.DetectedAt.After(since) {
			// rows are newest first; nothing later can qualify
			break
		}
		if !f.Match(a) {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryAnomalyStore) CountByType(ctx context.Context, symbols []string) (map[models.AnomalyType]int64, error) {
	f := models.AnomalyFilter{Symbols: symbols}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.AnomalyType]int64)
	for _, a := range s.rows {
		if f.Match(a) {
			out[a.Type]++
		}
	}
	return out, nil
}

func (s *MemoryAnomalyStore) CountWithNarrative(ctx context.Context, symbols []string) (int64, error) {
	f := models.AnomalyFilter{Symbols: symbols}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.rows {
		if a.Narrative != nil && f.Match(a) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryAnomalyStore) Health(ctx context.Context) error { return nil }

// Fixtures is the on-disk seed for the memory backend.
type Fixtures struct {
	Prices    []models.PriceSample `json:"prices"`
	Anomalies []models.Anomaly     `json:"anomalies"`
}

// LoadFixtures seeds both memory stores from a JSON file. An empty path is
// a no-op.
func LoadFixtures(path string, prices *MemoryPriceStore, anomalies *MemoryAnomalyStore) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fx Fixtures
	if err := json.Unmarshal(b, &fx); err != nil {
		return fmt.Errorf("parse fixtures: %w", err)
	}
	for _, a := range fx.Anomalies {
		if _, err := models.ParseAnomalyType(string(a.Type)); err != nil {
			return fmt.Errorf("fixture %s: %w", a.ID, err)
		}
	}
	prices.Add(fx.Prices...)
	anomalies.Add(fx.Anomalies...)
	return nil
}
