package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/pkg/cache"
	applogger "MarketLens/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	// LatestCap bounds a single findLatest poll.
	LatestCap = 50

	statsCachePrefix = "stats:"
)

// ClampPagination forces page >= 1 and limit into [1, MaxLimit].
func ClampPagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// AnomalyQueryUseCase filters, paginates and summarises detector output.
type AnomalyQueryUseCase struct {
	store    domrepo.AnomalyStore
	metrics  domrepo.Metrics
	cache    cache.Service
	statsTTL time.Duration
	now      func() time.Time
	l        *applogger.Logger
}

// AnomalyQueryOption configures AnomalyQueryUseCase.
type AnomalyQueryOption func(*AnomalyQueryUseCase)

// WithStatsCache caches getStats results for ttl. A zero ttl disables it.
func WithStatsCache(c cache.Service, ttl time.Duration) AnomalyQueryOption {
	return func(uc *AnomalyQueryUseCase) {
		if ttl > 0 {
			uc.cache = c
			uc.statsTTL = ttl
		}
	}
}

// WithClock overrides time.Now for the rolling stats windows.
func WithClock(now func() time.Time) AnomalyQueryOption {
	return func(uc *AnomalyQueryUseCase) { uc.now = now }
}

func NewAnomalyQueryUseCase(store domrepo.AnomalyStore, metrics domrepo.Metrics, l *applogger.Logger, opts ...AnomalyQueryOption) *AnomalyQueryUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	uc := &AnomalyQueryUseCase{store: store, metrics: metrics, now: time.Now, l: l}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type FindAllParams struct {
	Filter models.AnomalyFilter
	Page   int
	Limit  int
}

// FindAll returns one page of the filtered set. The count and the page are
// fetched concurrently; both must succeed.
func (uc *AnomalyQueryUseCase) FindAll(ctx context.Context, p FindAllParams) (*models.AnomalyPage, error) {
	defer uc.observe("find_all", time.Now())
	page, limit := ClampPagination(p.Page, p.Limit)
	skip := (page - 1) * limit

	var (
		total int64
		rows  []models.Anomaly
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := uc.store.Count(gctx, p.Filter)
		total = n
		return err
	})
	g.Go(func() error {
		r, err := uc.store.Find(gctx, p.Filter, skip, limit)
		rows = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, uc.fail("find_all", err)
	}

	uc.l.Debug("find_all ok",
		applogger.Int("page", page),
		applogger.Int("limit", limit),
		applogger.Int64("total", total),
		applogger.Int("rows", len(rows)),
	)
	return &models.AnomalyPage{
		Data: models.NewAnomalyViews(rows),
		Meta: models.NewPaginationMeta(page, limit, total),
	}, nil
}

// FindLatest returns anomalies detected strictly after since, newest first,
// at most LatestCap of them.
func (uc *AnomalyQueryUseCase) FindLatest(ctx context.Context, since time.Time, symbols []string) ([]models.AnomalyView, error) {
	defer uc.observe("find_latest", time.Now())
	rows, err := uc.store.FindSince(ctx, since, symbols, LatestCap)
	if err != nil {
		return nil, uc.fail("find_latest", err)
	}
	if len(rows) > LatestCap {
		rows = rows[:LatestCap]
	}
	return models.NewAnomalyViews(rows), nil
}

// FindOne returns a single anomaly or models.ErrAnomalyNotFound.
func (uc *AnomalyQueryUseCase) FindOne(ctx context.Context, id string) (*models.AnomalyView, error) {
	defer uc.observe("find_one", time.Now())
	a, err := uc.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrAnomalyNotFound) {
			return nil, err
		}
		return nil, uc.fail("find_one", err)
	}
	v := models.NewAnomalyView(*a)
	return &v, nil
}

// GetStats summarises the (optionally symbol-filtered) anomaly set.
func (uc *AnomalyQueryUseCase) GetStats(ctx context.Context, symbols []string) (*models.AnomalyStats, error) {
	defer uc.observe("get_stats", time.Now())
	if uc.cache == nil {
		return uc.computeStats(ctx, symbols)
	}
	stats, hit, err := cache.GetOrLoad(ctx, uc.cache, StatsCacheKey(symbols), uc.statsTTL,
		func(ctx context.Context) (*models.AnomalyStats, error) { return uc.computeStats(ctx, symbols) })
	if err != nil {
		return nil, err
	}
	if hit {
		uc.metrics.RecordCacheHit("stats")
	} else {
		uc.metrics.RecordCacheMiss("stats")
	}
	return stats, nil
}

// InvalidateStats drops every cached stats entry.
func (uc *AnomalyQueryUseCase) InvalidateStats(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}
	return uc.cache.DeleteByPattern(ctx, cache.BuildPattern(statsCachePrefix))
}

// computeStats issues the seven independent aggregates concurrently. The
// validation breakdown is derived so that its four counts always sum to
// the total.
func (uc *AnomalyQueryUseCase) computeStats(ctx context.Context, symbols []string) (*models.AnomalyStats, error) {
	now := uc.now()
	base := models.AnomalyFilter{Symbols: symbols}
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)

	var total, withNarrative, valid, invalid, recent24h, recent7d int64
	var byType map[models.AnomalyType]int64

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, f models.AnomalyFilter) func() error {
		return func() error {
			n, err := uc.store.Count(gctx, f)
			*dst = n
			return err
		}
	}
	withStatus := func(s models.ValidationStatus) models.AnomalyFilter {
		f := base
		f.ValidationStatus = s
		return f
	}
	since := func(t time.Time) models.AnomalyFilter {
		f := base
		f.StartDate = &t
		return f
	}

	g.Go(count(&total, base))
	g.Go(func() error {
		m, err := uc.store.CountByType(gctx, symbols)
		byType = m
		return err
	})
	g.Go(func() error {
		n, err := uc.store.CountWithNarrative(gctx, symbols)
		withNarrative = n
		return err
	})
	g.Go(count(&valid, withStatus(models.StatusValid)))
	g.Go(count(&invalid, withStatus(models.StatusInvalid)))
	g.Go(count(&recent24h, since(day)))
	g.Go(count(&recent7d, since(week)))
	if err := g.Wait(); err != nil {
		return nil, uc.fail("get_stats", err)
	}

	filled := make(map[models.AnomalyType]int64, len(models.AnomalyTypes))
	for _, t := range models.AnomalyTypes {
		filled[t] = byType[t]
	}

	return &models.AnomalyStats{
		TotalAnomalies: total,
		ByType:         filled,
		ByValidationStatus: models.ValidationBreakdown{
			NotGenerated: total - withNarrative,
			Pending:      withNarrative - valid - invalid,
			Valid:        valid,
			Invalid:      invalid,
		},
		RecentCount24h: recent24h,
		RecentCount7d:  recent7d,
	}, nil
}

func (uc *AnomalyQueryUseCase) observe(op string, start time.Time) {
	uc.metrics.RecordQuery(op, time.Since(start).Seconds())
}

func (uc *AnomalyQueryUseCase) fail(op string, err error) error {
	uc.metrics.RecordError(op)
	uc.l.Error("anomaly query failed", applogger.String("op", op), applogger.Error(err))
	return err
}

// StatsCacheKey is stable under symbol order and duplicates.
func StatsCacheKey(symbols []string) string {
	if len(symbols) == 0 {
		return statsCachePrefix + "all"
	}
	uniq := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		uniq[s] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for s := range uniq {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)
	return statsCachePrefix + cache.HashKey(strings.Join(sorted, ","))
}
