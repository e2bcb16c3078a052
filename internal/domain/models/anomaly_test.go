package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestClassifyValidation(t *testing.T) {
	cases := []struct {
		name string
		n    *Narrative
		want ValidationStatus
	}{
		{"no narrative", nil, StatusNotGenerated},
		{"not yet validated", &Narrative{Validated: false}, StatusPending},
		{"unvalidated ignores outcome", &Narrative{Validated: false, ValidationPassed: boolPtr(true)}, StatusPending},
		{"passed", &Narrative{Validated: true, ValidationPassed: boolPtr(true)}, StatusValid},
		{"failed", &Narrative{Validated: true, ValidationPassed: boolPtr(false)}, StatusInvalid},
		{"validated without outcome", &Narrative{Validated: true}, StatusInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyValidation(tc.n))
		})
	}
}

func TestParseAnomalyType(t *testing.T) {
	for _, at := range AnomalyTypes {
		got, err := ParseAnomalyType(string(at))
		require.NoError(t, err)
		assert.Equal(t, at, got)
	}

	_, err := ParseAnomalyType("price_spike")
	assert.True(t, errors.Is(err, ErrUnknownAnomalyType))
}

func TestParseValidationStatusRejectsUnknown(t *testing.T) {
	_, err := ParseValidationStatus("DONE")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "validationStatus", ve.Field)
}

func TestAnomalyViewWireNames(t *testing.T) {
	a := Anomaly{ID: "a1", Symbol: "ETH-USD", Type: AnomalyVolumeSpike}
	b, err := json.Marshal(NewAnomalyView(a))
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "VOLUME_SPIKE", m["type"])
	assert.Equal(t, "NOT_GENERATED", m["validationStatus"])
	assert.Contains(t, m, "detectedAt")
	assert.Contains(t, m, "baselineWindowMinutes")
}

func TestAnomalyFilterMatch(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Anomaly{ID: "x", Symbol: "BTC-USD", DetectedAt: at, Type: AnomalyPriceDrop,
		Narrative: &Narrative{Validated: true, ValidationPassed: boolPtr(true)}}
	before, after := at.Add(-time.Second), at.Add(time.Second)

	assert.True(t, AnomalyFilter{}.Match(a))
	assert.True(t, AnomalyFilter{Symbols: []string{"ETH-USD", "BTC-USD"}}.Match(a))
	assert.False(t, AnomalyFilter{Symbol: "ETH-USD", Symbols: []string{"BTC-USD"}}.Match(a))
	assert.False(t, AnomalyFilter{Type: AnomalyPriceSpike}.Match(a))
	assert.True(t, AnomalyFilter{ValidationStatus: StatusValid}.Match(a))
	assert.False(t, AnomalyFilter{ValidationStatus: StatusPending}.Match(a))
	assert.True(t, AnomalyFilter{StartDate: &at, EndDate: &at}.Match(a))
	assert.False(t, AnomalyFilter{StartDate: &after}.Match(a))
	assert.False(t, AnomalyFilter{EndDate: &before}.Match(a))
}

func TestNewPaginationMeta(t *testing.T) {
	m := NewPaginationMeta(1, 20, 45)
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.False(t, m.HasPrev)

	m = NewPaginationMeta(3, 20, 45)
	assert.False(t, m.HasNext)
	assert.True(t, m.HasPrev)

	m = NewPaginationMeta(1, 20, 0)
	assert.Equal(t, 0, m.TotalPages)
	assert.False(t, m.HasNext)
}

func TestStoreErrorWrapping(t *testing.T) {
	assert.Nil(t, NewStoreError("find", nil))

	root := errors.New("conn reset")
	err := NewStoreError("find", root)
	assert.ErrorIs(t, err, root)

	again := NewStoreError("count", err)
	var se *StoreError
	require.ErrorAs(t, again, &se)
	assert.Equal(t, "find", se.Op)
}
