package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	pkgch "MarketLens/pkg/clickhouse"
	applogger "MarketLens/pkg/logger"
)

const DefaultPriceTable = "market.price_samples"

// PriceSchema creates the sample table when InitSchema is enabled.
var PriceSchema = []string{
	`CREATE DATABASE IF NOT EXISTS market`,
	`CREATE TABLE IF NOT EXISTS market.price_samples (
        symbol String,
        ts     DateTime64(3, 'UTC'),
        price  Float64,
        volume Nullable(Float64),
        high   Float64,
        low    Float64
    ) ENGINE = MergeTree ORDER BY (symbol, ts)`,
}

// CHPriceStore implements BucketingPriceStore backed by ClickHouse.
type CHPriceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHPriceStore {
	if table == "" {
		table = DefaultPriceTable
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceStore{db: ch.DB(), table: table, l: l}
}

func (s *CHPriceStore) Samples(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceSample, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT symbol, ts, price, volume, high, low
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, s.fail("samples", symbol, err)
	}
	defer rows.Close()

	out := make([]models.PriceSample, 0, 1024)
	for rows.Next() {
		p, err := scanSample(rows)
		if err != nil {
			return nil, s.fail("samples scan", symbol, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("samples rows", symbol, err)
	}
	s.l.Debug("clickhouse samples ok",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHPriceStore) Latest(ctx context.Context, symbol string) (*models.PriceSample, error) {
	q := fmt.Sprintf(`
        SELECT symbol, ts, price, volume, high, low
        FROM %s
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT 1
    `, s.table)
	p, err := scanSample(s.db.QueryRowContext(ctx, q, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("latest", symbol, err)
	}
	return &p, nil
}

// Buckets aggregates on the server with the same calendar alignment as
// timeseries.Aggregate. avg() over a Nullable column skips NULLs and yields
// NULL when every value is NULL.
func (s *CHPriceStore) Buckets(ctx context.Context, symbol string, from, to time.Time, g domrepo.Granularity) ([]models.AggregatedPricePoint, error) {
	if from.After(to) {
		return []models.AggregatedPricePoint{}, nil
	}
	fn, err := bucketFunc(g)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT %s(ts, 'UTC') AS bucket, avg(price), avg(volume)
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        GROUP BY bucket
        ORDER BY bucket ASC
    `, fn, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, s.fail("buckets", symbol, err)
	}
	defer rows.Close()

	out := make([]models.AggregatedPricePoint, 0, 256)
	for rows.Next() {
		var (
			p   models.AggregatedPricePoint
			vol sql.NullFloat64
		)
		if err := rows.Scan(&p.BucketStart, &p.Price, &vol); err != nil {
			return nil, s.fail("buckets scan", symbol, err)
		}
		p.Symbol = symbol
		p.BucketStart = p.BucketStart.UTC()
		if vol.Valid {
			v := vol.Float64
			p.Volume = &v
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("buckets rows", symbol, err)
	}
	s.l.Debug("clickhouse buckets ok",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("granularity", string(g)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHPriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceStore) fail(op, symbol string, err error) error {
	s.l.Error("clickhouse "+op+" error",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
	return models.NewStoreError(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(r rowScanner) (models.PriceSample, error) {
	var (
		p   models.PriceSample
		vol sql.NullFloat64
	)
	if err := r.Scan(&p.Symbol, &p.Timestamp, &p.Price, &vol, &p.High, &p.Low); err != nil {
		return p, err
	}
	p.Timestamp = p.Timestamp.UTC()
	if vol.Valid {
		v := vol.Float64
		p.Volume = &v
	}
	return p, nil
}

func bucketFunc(g domrepo.Granularity) (string, error) {
	switch g {
	case domrepo.Granularity1m:
		return "toStartOfMinute", nil
	case domrepo.Granularity5m:
		return "toStartOfFiveMinutes", nil
	case domrepo.Granularity1h:
		return "toStartOfHour", nil
	case domrepo.Granularity1d:
		return "toStartOfDay", nil
	default:
		return "", fmt.Errorf("unsupported granularity: %s", g)
	}
}
