package repository

import (
	"context"
	"time"

	"MarketLens/internal/domain/models"
)

// PriceStore provides read-only access to raw price samples.
type PriceStore interface {
	// Samples returns samples in [from, to] ordered by timestamp ascending.
	Samples(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceSample, error)
	Latest(ctx context.Context, symbol string) (*models.PriceSample, error)
	Health(ctx context.Context) error
}

// BucketingPriceStore is implemented by stores that can aggregate on the
// server. Results must match timeseries.Aggregate over the same samples.
type BucketingPriceStore interface {
	PriceStore
	Buckets(ctx context.Context, symbol string, from, to time.Time, g Granularity) ([]models.AggregatedPricePoint, error)
}

// AnomalyStore provides read-only access to detector output and narratives.
// Find orders by detectedAt DESC, id DESC so pages are stable.
type AnomalyStore interface {
	Find(ctx context.Context, f models.AnomalyFilter, offset, limit int) ([]models.Anomaly, error)
	Count(ctx context.Context, f models.AnomalyFilter) (int64, error)
	FindByID(ctx context.Context, id string) (*models.Anomaly, error)
	// FindSince returns anomalies strictly after since, newest first.
	FindSince(ctx context.Context, since time.Time, symbols []string, limit int) ([]models.Anomaly, error)
	CountByType(ctx context.Context, symbols []string) (map[models.AnomalyType]int64, error)
	CountWithNarrative(ctx context.Context, symbols []string) (int64, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordQuery(op string, seconds float64)
	RecordError(kind string)
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
}

// ReloadNotifier tells other replicas that the threshold document changed.
type ReloadNotifier interface {
	NotifyReload(ctx context.Context) error
}
