package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/pkg/util"

	"golang.org/x/sync/errgroup"
)

// HealthChecker is anything that can ping its backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// QueryFacade is what the API layer calls. It turns raw request values into
// typed parameters, rejecting malformed input, and routes to the engine that
// owns the request.
type QueryFacade struct {
	prices     *PricesUseCase
	thresholds *ThresholdsUseCase
	anomalies  *AnomalyQueryUseCase
	checks     map[string]HealthChecker
}

func NewQueryFacade(prices *PricesUseCase, thresholds *ThresholdsUseCase, anomalies *AnomalyQueryUseCase, checks map[string]HealthChecker) *QueryFacade {
	return &QueryFacade{prices: prices, thresholds: thresholds, anomalies: anomalies, checks: checks}
}

func (f *QueryFacade) PriceHistory(ctx context.Context, req models.PriceHistoryRequest) (*models.PriceHistory, error) {
	start, err := util.ParseTimeStrict(req.Start)
	if err != nil {
		return nil, models.NewValidationError("start", "%v", err)
	}
	end, err := util.ParseTimeStrict(req.End)
	if err != nil {
		return nil, models.NewValidationError("end", "%v", err)
	}
	g, err := domrepo.ParseGranularity(req.Granularity)
	if err != nil {
		return nil, models.NewValidationError("granularity", "%v", err)
	}
	return f.prices.GetHistory(ctx, GetHistoryParams{Symbol: req.Symbol, Start: start, End: end, Granularity: g})
}

func (f *QueryFacade) LatestPrice(ctx context.Context, symbol string) (*models.PriceSample, error) {
	return f.prices.Latest(ctx, symbol)
}

func (f *QueryFacade) Thresholds(ctx context.Context) ([]models.AssetThresholds, error) {
	return f.thresholds.List(ctx)
}

func (f *QueryFacade) Threshold(ctx context.Context, symbol string) (models.AssetThresholds, error) {
	return f.thresholds.Get(ctx, symbol)
}

func (f *QueryFacade) ReloadThresholds(ctx context.Context) ([]models.AssetThresholds, error) {
	return f.thresholds.Reload(ctx)
}

func (f *QueryFacade) Anomalies(ctx context.Context, req models.AnomalyListRequest) (*models.AnomalyPage, error) {
	filter, err := anomalyFilter(req)
	if err != nil {
		return nil, err
	}
	limit, err := parseLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	return f.anomalies.FindAll(ctx, FindAllParams{Filter: filter, Page: req.Page, Limit: limit})
}

// parseLimit maps an absent limit to DefaultLimit. Present values are passed
// through unclamped; FindAll clamps them.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError("limit", "must be an integer")
	}
	return n, nil
}

func (f *QueryFacade) LatestAnomalies(ctx context.Context, req models.LatestAnomaliesRequest) ([]models.AnomalyView, error) {
	since, err := util.ParseTimeStrict(req.Since)
	if err != nil {
		return nil, models.NewValidationError("since", "%v", err)
	}
	return f.anomalies.FindLatest(ctx, since, util.SplitCSV(req.Symbols))
}

// AnomaliesSince is the polling entry point of the live feed.
func (f *QueryFacade) AnomaliesSince(ctx context.Context, since time.Time, symbols []string) ([]models.AnomalyView, error) {
	return f.anomalies.FindLatest(ctx, since, symbols)
}

func (f *QueryFacade) AnomalyStats(ctx context.Context, req models.AnomalyStatsRequest) (*models.AnomalyStats, error) {
	return f.anomalies.GetStats(ctx, util.SplitCSV(req.Symbols))
}

func (f *QueryFacade) Anomaly(ctx context.Context, id string) (*models.AnomalyView, error) {
	return f.anomalies.FindOne(ctx, id)
}

// Health pings every registered backend concurrently and reports the first
// failure.
func (f *QueryFacade) Health(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, c := range f.checks {
		name, c := name, c
		g.Go(func() error {
			if err := c.Health(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func anomalyFilter(req models.AnomalyListRequest) (models.AnomalyFilter, error) {
	filter := models.AnomalyFilter{
		Symbol:  req.Symbol,
		Symbols: util.SplitCSV(req.Symbols),
	}
	if req.Type != "" {
		t, err := models.ParseAnomalyType(req.Type)
		if err != nil {
			return filter, models.NewValidationError("type", "%v", err)
		}
		filter.Type = t
	}
	if req.ValidationStatus != "" {
		s, err := models.ParseValidationStatus(req.ValidationStatus)
		if err != nil {
			return filter, err
		}
		filter.ValidationStatus = s
	}
	var err error
	if filter.StartDate, err = util.ParseOptionalTime(req.StartDate); err != nil {
		return filter, models.NewValidationError("startDate", "%v", err)
	}
	if filter.EndDate, err = util.ParseOptionalTime(req.EndDate); err != nil {
		return filter, models.NewValidationError("endDate", "%v", err)
	}
	return filter, nil
}
