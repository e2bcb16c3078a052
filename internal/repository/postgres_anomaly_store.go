package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketLens/internal/domain/models"
	applogger "MarketLens/pkg/logger"
	pkgpg "MarketLens/pkg/postgres"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// AnomalySchema is applied at startup when InitSchema is enabled. Rows are
// written by the external detector; this service only reads them.
var AnomalySchema = []string{
	`CREATE TABLE IF NOT EXISTS anomalies (
		id                      TEXT PRIMARY KEY,
		symbol                  TEXT NOT NULL,
		detected_at             TIMESTAMPTZ NOT NULL,
		anomaly_type            TEXT NOT NULL,
		z_score                 DOUBLE PRECISION NOT NULL,
		price_change_pct        DOUBLE PRECISION NOT NULL,
		volume_change_pct       DOUBLE PRECISION NOT NULL,
		confidence              DOUBLE PRECISION NOT NULL,
		baseline_window_minutes INTEGER NOT NULL,
		price_before            DOUBLE PRECISION NOT NULL,
		price_at_detection      DOUBLE PRECISION NOT NULL,
		detection_metadata      JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS anomalies_symbol_detected_idx ON anomalies (symbol, detected_at DESC)`,
	`CREATE INDEX IF NOT EXISTS anomalies_detected_idx ON anomalies (detected_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS narratives (
		anomaly_id        TEXT NOT NULL UNIQUE REFERENCES anomalies(id),
		validated         BOOLEAN NOT NULL DEFAULT FALSE,
		validation_passed BOOLEAN NULL
	)`,
}

const anomalyColumns = `
		a.id, a.symbol, a.detected_at, a.anomaly_type, a.z_score,
		a.price_change_pct, a.volume_change_pct, a.confidence,
		a.baseline_window_minutes, a.price_before, a.price_at_detection,
		a.detection_metadata,
		(n.anomaly_id IS NOT NULL) AS has_narrative,
		COALESCE(n.validated, FALSE) AS validated,
		n.validation_passed`

const anomalyFrom = `
	FROM anomalies a
	LEFT JOIN narratives n ON n.anomaly_id = a.id`

type anomalyRow struct {
	ID                    string       `db:"id"`
	Symbol                string       `db:"symbol"`
	DetectedAt            time.Time    `db:"detected_at"`
	AnomalyType           string       `db:"anomaly_type"`
	ZScore                float64      `db:"z_score"`
	PriceChangePct        float64      `db:"price_change_pct"`
	VolumeChangePct       float64      `db:"volume_change_pct"`
	Confidence            float64      `db:"confidence"`
	BaselineWindowMinutes int          `db:"baseline_window_minutes"`
	PriceBefore           float64      `db:"price_before"`
	PriceAtDetection      float64      `db:"price_at_detection"`
	DetectionMetadata     []byte       `db:"detection_metadata"`
	HasNarrative          bool         `db:"has_narrative"`
	Validated             bool         `db:"validated"`
	ValidationPassed      sql.NullBool `db:"validation_passed"`
}

func (r anomalyRow) toModel() (models.Anomaly, error) {
	t, err := models.ParseAnomalyType(r.AnomalyType)
	if err != nil {
		return models.Anomaly{}, fmt.Errorf("anomaly %s: %w", r.ID, err)
	}
	a := models.Anomaly{
		ID:                    r.ID,
		Symbol:                r.Symbol,
		DetectedAt:            r.DetectedAt.UTC(),
		Type:                  t,
		ZScore:                r.ZScore,
		PriceChangePct:        r.PriceChangePct,
		VolumeChangePct:       r.VolumeChangePct,
		Confidence:            r.Confidence,
		BaselineWindowMinutes: r.BaselineWindowMinutes,
		PriceBefore:           r.PriceBefore,
		PriceAtDetection:      r.PriceAtDetection,
		DetectionMetadata:     map[string]interface{}{},
	}
	if len(r.DetectionMetadata) > 0 {
		if err := json.Unmarshal(r.DetectionMetadata, &a.DetectionMetadata); err != nil {
			return models.Anomaly{}, fmt.Errorf("anomaly %s metadata: %w", r.ID, err)
		}
	}
	if r.HasNarrative {
		n := &models.Narrative{Validated: r.Validated}
		if r.ValidationPassed.Valid {
			v := r.ValidationPassed.Bool
			n.ValidationPassed = &v
		}
		a.Narrative = n
	}
	return a, nil
}

// PGAnomalyStore implements AnomalyStore over the anomalies and narratives
// tables.
type PGAnomalyStore struct {
	db *sqlx.DB
	l  *applogger.Logger
}

func NewPGAnomalyStore(pg *pkgpg.Client, l *applogger.Logger) *PGAnomalyStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &PGAnomalyStore{db: pg.DB(), l: l}
}

// where accumulates predicates with positional $n placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

// add appends clause, replacing every "?" with the next placeholder.
func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) expr() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "\n\tWHERE " + strings.Join(w.clauses, " AND ")
}

func (w *where) next() string {
	return fmt.Sprintf("$%d", len(w.args)+1)
}

func symbolPredicate(w *where, symbols []string) {
	if len(symbols) > 0 {
		w.add("a.symbol = ANY(?)", pq.Array(symbols))
	}
}

// validationPredicate mirrors models.ClassifyValidation. A validated row
// with a NULL outcome is INVALID.
func validationPredicate(s models.ValidationStatus) string {
	switch s {
	case models.StatusNotGenerated:
		return "n.anomaly_id IS NULL"
	case models.StatusPending:
		return "n.anomaly_id IS NOT NULL AND n.validated = FALSE"
	case models.StatusValid:
		return "n.validated = TRUE AND n.validation_passed IS TRUE"
	case models.StatusInvalid:
		return "n.validated = TRUE AND n.validation_passed IS NOT TRUE"
	default:
		return ""
	}
}

func buildFilter(f models.AnomalyFilter) *where {
	w := &where{}
	symbolPredicate(w, f.EffectiveSymbols())
	if f.Type != "" {
		w.add("a.anomaly_type = ?", string(f.Type))
	}
	if p := validationPredicate(f.ValidationStatus); p != "" {
		w.raw("(" + p + ")")
	}
	if f.StartDate != nil {
		w.add("a.detected_at >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		w.add("a.detected_at <= ?", f.EndDate.UTC())
	}
	return w
}

func (s *PGAnomalyStore) Find(ctx context.Context, f models.AnomalyFilter, offset, limit int) ([]models.Anomaly, error) {
	w := buildFilter(f)
	limitPH := w.next()
	args := append(w.args, limit)
	offsetPH := fmt.Sprintf("$%d", len(args)+1)
	args = append(args, offset)

	q := "SELECT" + anomalyColumns + anomalyFrom + w.expr() +
		"\n\tORDER BY a.detected_at DESC, a.id DESC\n\tLIMIT " + limitPH + " OFFSET " + offsetPH
	return s.selectAnomalies(ctx, "find", q, args...)
}

func (s *PGAnomalyStore) Count(ctx context.Context, f models.AnomalyFilter) (int64, error) {
	w := buildFilter(f)
	q := "SELECT COUNT(*)" + anomalyFrom + w.expr()
	var n int64
	if err := s.db.GetContext(ctx, &n, q, w.args...); err != nil {
		return 0, s.fail("count", err)
	}
	return n, nil
}

func (s *PGAnomalyStore) FindByID(ctx context.Context, id string) (*models.Anomaly, error) {
	q := "SELECT" + anomalyColumns + anomalyFrom + "\n\tWHERE a.id = $1"
	var row anomalyRow
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAnomalyNotFound
		}
		return nil, s.fail("find_by_id", err)
	}
	a, err := row.toModel()
	if err != nil {
		return nil, s.fail("find_by_id", err)
	}
	return &a, nil
}

func (s *PGAnomalyStore) FindSince(ctx context.Context, since time.Time, symbols []string, limit int) ([]models.Anomaly, error) {
	w := &where{}
	w.add("a.detected_at > ?", since.UTC())
	symbolPredicate(w, symbols)
	limitPH := w.next()
	args := append(w.args, limit)

	q := "SELECT" + anomalyColumns + anomalyFrom + w.expr() +
		"\n\tORDER BY a.detected_at DESC, a.id DESC\n\tLIMIT " + limitPH
	return s.selectAnomalies(ctx, "find_since", q, args...)
}

func (s *PGAnomalyStore) CountByType(ctx context.Context, symbols []string) (map[models.AnomalyType]int64, error) {
	w := &where{}
	symbolPredicate(w, symbols)
	q := "SELECT a.anomaly_type, COUNT(*) AS n\n\tFROM anomalies a" + w.expr() + "\n\tGROUP BY a.anomaly_type"

	var rows []struct {
		Type string `db:"anomaly_type"`
		N    int64  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, s.fail("count_by_type", err)
	}
	out := make(map[models.AnomalyType]int64, len(rows))
	for _, r := range rows {
		t, err := models.ParseAnomalyType(r.Type)
		if err != nil {
			return nil, s.fail("count_by_type", err)
		}
		out[t] += r.N
	}
	return out, nil
}

func (s *PGAnomalyStore) CountWithNarrative(ctx context.Context, symbols []string) (int64, error) {
	w := &where{}
	symbolPredicate(w, symbols)
	q := "SELECT COUNT(*)\n\tFROM anomalies a\n\tJOIN narratives n ON n.anomaly_id = a.id" + w.expr()
	var n int64
	if err := s.db.GetContext(ctx, &n, q, w.args...); err != nil {
		return 0, s.fail("count_with_narrative", err)
	}
	return n, nil
}

func (s *PGAnomalyStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PGAnomalyStore) selectAnomalies(ctx context.Context, op, q string, args ...interface{}) ([]models.Anomaly, error) {
	var rows []anomalyRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, s.fail(op, err)
	}
	out := make([]models.Anomaly, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			return nil, s.fail(op, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PGAnomalyStore) fail(op string, err error) error {
	s.l.Error("postgres anomalies error", applogger.String("op", op), applogger.Error(err))
	return models.NewStoreError(op, err)
}
