package usecase

import (
	"context"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/internal/services/timeseries"
	applogger "MarketLens/pkg/logger"
)

// PricesUseCase serves latest samples and bucketed price history.
type PricesUseCase struct {
	store   domrepo.PriceStore
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewPricesUseCase(store domrepo.PriceStore, metrics domrepo.Metrics, l *applogger.Logger) *PricesUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &PricesUseCase{store: store, metrics: metrics, l: l}
}

type GetHistoryParams struct {
	Symbol      string
	Start       time.Time
	End         time.Time
	Granularity domrepo.Granularity
}

// GetHistory aggregates [Start, End] at the requested granularity, or at the
// span-derived one when the request says auto. Stores that can bucket on the
// server do so for anything coarser than one minute.
func (uc *PricesUseCase) GetHistory(ctx context.Context, p GetHistoryParams) (*models.PriceHistory, error) {
	defer uc.observe("price_history", time.Now())
	start, end := p.Start.UTC(), p.End.UTC()
	g := timeseries.ResolveGranularity(p.Granularity, start, end)

	out := &models.PriceHistory{
		Symbol:      p.Symbol,
		Granularity: string(g),
		Start:       start,
		End:         end,
		Points:      []models.AggregatedPricePoint{},
	}
	if start.After(end) {
		return out, nil
	}

	var (
		points []models.AggregatedPricePoint
		err    error
	)
	if bs, ok := uc.store.(domrepo.BucketingPriceStore); ok && g != domrepo.Granularity1m {
		points, err = bs.Buckets(ctx, p.Symbol, start, end, g)
	} else {
		var samples []models.PriceSample
		samples, err = uc.store.Samples(ctx, p.Symbol, start, end)
		if err == nil {
			points = timeseries.AggregateRange(p.Symbol, samples, start, end, g)
		}
	}
	if err != nil {
		return nil, uc.fail("price_history", err)
	}
	if points != nil {
		out.Points = points
	}
	out.Count = len(out.Points)

	uc.l.Debug("price history",
		applogger.String("symbol", p.Symbol),
		applogger.String("granularity", string(g)),
		applogger.Int("points", out.Count),
	)
	return out, nil
}

// Latest returns the newest sample or models.ErrNoPriceData.
func (uc *PricesUseCase) Latest(ctx context.Context, symbol string) (*models.PriceSample, error) {
	defer uc.observe("price_latest", time.Now())
	p, err := uc.store.Latest(ctx, symbol)
	if err != nil {
		return nil, uc.fail("price_latest", err)
	}
	if p == nil {
		return nil, models.ErrNoPriceData
	}
	return p, nil
}

func (uc *PricesUseCase) observe(op string, start time.Time) {
	uc.metrics.RecordQuery(op, time.Since(start).Seconds())
}

func (uc *PricesUseCase) fail(op string, err error) error {
	uc.metrics.RecordError(op)
	uc.l.Error("price query failed", applogger.String("op", op), applogger.Error(err))
	return err
}
