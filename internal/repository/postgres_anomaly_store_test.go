package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"MarketLens/internal/domain/models"
	pkgpg "MarketLens/pkg/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var anomalyCols = []string{
	"id", "symbol", "detected_at", "anomaly_type", "z_score",
	"price_change_pct", "volume_change_pct", "confidence",
	"baseline_window_minutes", "price_before", "price_at_detection",
	"detection_metadata", "has_narrative", "validated", "validation_passed",
}

// fragments builds a regexp that requires each fragment, in order.
func fragments(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, `[\s\S]*`)
}

func newPGStore(t *testing.T) (*PGAnomalyStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGAnomalyStore(pkgpg.NewClientFromDB(db), nil), mock
}

func anomalyRowValues(id string, at time.Time, typ string, hasNarrative, validated bool, passed driver.Value) []driver.Value {
	return []driver.Value{
		id, "BTC-USD", at, typ, 3.4,
		-5.2, 120.0, 0.91,
		60, 70000.0, 66360.0,
		[]byte(`{"window":"1h"}`), hasNarrative, validated, passed,
	}
}

func TestPGFindBuildsFilterAndPaging(t *testing.T) {
	s, mock := newPGStore(t)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(anomalyCols).
		AddRow(anomalyRowValues("a2", at, "PRICE_DROP", true, true, true)...).
		AddRow(anomalyRowValues("a1", at.Add(-time.Minute), "PRICE_DROP", true, true, true)...)
	mock.ExpectQuery(fragments(
		"FROM anomalies a", "LEFT JOIN narratives n",
		"a.symbol = ANY($1)", "a.anomaly_type = $2", "n.validation_passed IS TRUE",
		"ORDER BY a.detected_at DESC, a.id DESC", "LIMIT $3 OFFSET $4",
	)).WithArgs(sqlmock.AnyArg(), "PRICE_DROP", 20, 40).WillReturnRows(rows)

	got, err := s.Find(context.Background(), models.AnomalyFilter{
		Symbols:          []string{"BTC-USD", "ETH-USD"},
		Type:             models.AnomalyPriceDrop,
		ValidationStatus: models.StatusValid,
	}, 40, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, models.StatusValid, got[0].ValidationStatus())
	assert.Equal(t, "1h", got[0].DetectionMetadata["window"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFindDecodesNarrativeStates(t *testing.T) {
	s, mock := newPGStore(t)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(anomalyCols).
		AddRow(anomalyRowValues("none", at, "COMBINED", false, false, nil)...).
		AddRow(anomalyRowValues("pending", at, "COMBINED", true, false, nil)...).
		AddRow(anomalyRowValues("nullpass", at, "COMBINED", true, true, nil)...).
		AddRow(anomalyRowValues("failed", at, "COMBINED", true, true, false)...)
	mock.ExpectQuery(fragments("LIMIT $1 OFFSET $2")).WithArgs(10, 0).WillReturnRows(rows)

	got, err := s.Find(context.Background(), models.AnomalyFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Nil(t, got[0].Narrative)
	assert.Equal(t, models.StatusNotGenerated, got[0].ValidationStatus())
	assert.Equal(t, models.StatusPending, got[1].ValidationStatus())
	assert.Equal(t, models.StatusInvalid, got[2].ValidationStatus())
	assert.Equal(t, models.StatusInvalid, got[3].ValidationStatus())
}

func TestPGFindUnknownTypeIsAnError(t *testing.T) {
	s, mock := newPGStore(t)
	rows := sqlmock.NewRows(anomalyCols).
		AddRow(anomalyRowValues("x", time.Now(), "FLASH_CRASH", false, false, nil)...)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	_, err := s.Find(context.Background(), models.AnomalyFilter{}, 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownAnomalyType)
}

func TestPGCountPropagatesStoreError(t *testing.T) {
	s, mock := newPGStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("connection refused")
	mock.ExpectQuery(fragments("SELECT COUNT(*)", "a.detected_at >= $1")).
		WithArgs(start).WillReturnError(boom)

	_, err := s.Count(context.Background(), models.AnomalyFilter{StartDate: &start})
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "count", se.Op)
	assert.ErrorIs(t, err, boom)
}

func TestPGCountNotGeneratedPredicate(t *testing.T) {
	s, mock := newPGStore(t)
	mock.ExpectQuery(fragments("SELECT COUNT(*)", "n.anomaly_id IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := s.Count(context.Background(), models.AnomalyFilter{ValidationStatus: models.StatusNotGenerated})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPGFindByIDNotFound(t *testing.T) {
	s, mock := newPGStore(t)
	mock.ExpectQuery(fragments("WHERE a.id = $1")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(anomalyCols))

	_, err := s.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrAnomalyNotFound)
}

func TestPGFindSinceIsExclusive(t *testing.T) {
	s, mock := newPGStore(t)
	since := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(fragments("a.detected_at > $1", "a.symbol = ANY($2)", "LIMIT $3")).
		WithArgs(since, sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows(anomalyCols))

	got, err := s.FindSince(context.Background(), since, []string{"BTC-USD"}, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCountByType(t *testing.T) {
	s, mock := newPGStore(t)
	mock.ExpectQuery(fragments("GROUP BY a.anomaly_type")).
		WillReturnRows(sqlmock.NewRows([]string{"anomaly_type", "n"}).
			AddRow("PRICE_SPIKE", int64(3)).
			AddRow("COMBINED", int64(1)))

	got, err := s.CountByType(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got[models.AnomalyPriceSpike])
	assert.Equal(t, int64(1), got[models.AnomalyCombined])
}

func TestPGCountWithNarrativeJoins(t *testing.T) {
	s, mock := newPGStore(t)
	mock.ExpectQuery(fragments("JOIN narratives n ON n.anomaly_id = a.id", "a.symbol = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := s.CountWithNarrative(context.Background(), []string{"ETH-USD"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
