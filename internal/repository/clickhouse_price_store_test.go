package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	pkgch "MarketLens/pkg/clickhouse"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCHStore(t *testing.T) (*CHPriceStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCHPriceStore(pkgch.NewClientFromDB(db), "", nil), mock
}

var sampleCols = []string{"symbol", "ts", "price", "volume", "high", "low"}

func TestCHSamplesScansNullableVolume(t *testing.T) {
	s, mock := newCHStore(t)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery(fragments("FROM market.price_samples", "ORDER BY ts ASC")).
		WithArgs("BTC-USD", from, to).
		WillReturnRows(sqlmock.NewRows(sampleCols).
			AddRow("BTC-USD", from, 100.0, 2.5, 101.0, 99.0).
			AddRow("BTC-USD", from.Add(time.Minute), 102.0, nil, 103.0, 101.0))

	got, err := s.Samples(context.Background(), "BTC-USD", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Volume)
	assert.Equal(t, 2.5, *got[0].Volume)
	assert.Nil(t, got[1].Volume)
}

func TestCHSamplesErrorIsStoreError(t *testing.T) {
	s, mock := newCHStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("timeout"))

	_, err := s.Samples(context.Background(), "BTC-USD", time.Now().Add(-time.Hour), time.Now())
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "samples", se.Op)
}

func TestCHLatestNoRows(t *testing.T) {
	s, mock := newCHStore(t)
	mock.ExpectQuery(fragments("ORDER BY ts DESC", "LIMIT 1")).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(sampleCols))

	got, err := s.Latest(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCHBucketsUsesCalendarFunction(t *testing.T) {
	s, mock := newCHStore(t)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(3 * 24 * time.Hour)

	mock.ExpectQuery(fragments("toStartOfFiveMinutes(ts, 'UTC')", "GROUP BY bucket", "ORDER BY bucket ASC")).
		WithArgs("ETH-USD", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "avg_price", "avg_volume"}).
			AddRow(from, 3000.0, nil).
			AddRow(from.Add(5*time.Minute), 3010.0, 12.0))

	got, err := s.Buckets(context.Background(), "ETH-USD", from, to, domrepo.Granularity5m)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ETH-USD", got[0].Symbol)
	assert.Nil(t, got[0].Volume)
	require.NotNil(t, got[1].Volume)
	assert.Equal(t, 12.0, *got[1].Volume)
}

func TestCHBucketsInvertedRange(t *testing.T) {
	s, _ := newCHStore(t)
	now := time.Now()

	got, err := s.Buckets(context.Background(), "ETH-USD", now, now.Add(-time.Hour), domrepo.Granularity1h)
	require.NoError(t, err)
	assert.Empty(t, got)
}
