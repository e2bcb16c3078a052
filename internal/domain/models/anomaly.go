package models

import (
	"fmt"
	"time"
)

// AnomalyType is the detector's classification of an anomaly.
type AnomalyType string

const (
	AnomalyPriceSpike  AnomalyType = "PRICE_SPIKE"
	AnomalyPriceDrop   AnomalyType = "PRICE_DROP"
	AnomalyVolumeSpike AnomalyType = "VOLUME_SPIKE"
	AnomalyCombined    AnomalyType = "COMBINED"
)

// AnomalyTypes lists every type in a stable order.
var AnomalyTypes = []AnomalyType{AnomalyPriceSpike, AnomalyPriceDrop, AnomalyVolumeSpike, AnomalyCombined}

// ParseAnomalyType rejects anything outside the four known values.
func ParseAnomalyType(s string) (AnomalyType, error) {
	t := AnomalyType(s)
	for _, known := range AnomalyTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnomalyType, s)
}

// ValidationStatus is derived from the linked narrative on every read.
type ValidationStatus string

const (
	StatusNotGenerated ValidationStatus = "NOT_GENERATED"
	StatusPending      ValidationStatus = "PENDING"
	StatusValid        ValidationStatus = "VALID"
	StatusInvalid      ValidationStatus = "INVALID"
)

var ValidationStatuses = []ValidationStatus{StatusNotGenerated, StatusPending, StatusValid, StatusInvalid}

// ParseValidationStatus rejects anything outside the four known values.
func ParseValidationStatus(s string) (ValidationStatus, error) {
	v := ValidationStatus(s)
	for _, known := range ValidationStatuses {
		if v == known {
			return v, nil
		}
	}
	return "", &ValidationError{Field: "validationStatus", Message: fmt.Sprintf("unknown validation status %q", s)}
}

// Narrative is the externally written review of an anomaly.
type Narrative struct {
	Validated        bool  `json:"validated"`
	ValidationPassed *bool `json:"validationPassed"`
}

// ClassifyValidation maps a (possibly absent) narrative to its status.
// A validated narrative with a null outcome is treated as INVALID, since
// only an explicit pass counts as VALID.
func ClassifyValidation(n *Narrative) ValidationStatus {
	switch {
	case n == nil:
		return StatusNotGenerated
	case !n.Validated:
		return StatusPending
	case n.ValidationPassed != nil && *n.ValidationPassed:
		return StatusValid
	default:
		return StatusInvalid
	}
}

// Anomaly is an immutable row produced by the external detector.
type Anomaly struct {
	ID                    string                 `json:"id"`
	Symbol                string                 `json:"symbol"`
	DetectedAt            time.Time              `json:"detectedAt"`
	Type                  AnomalyType            `json:"type"`
	ZScore                float64                `json:"zScore"`
	PriceChangePct        float64                `json:"priceChangePct"`
	VolumeChangePct       float64                `json:"volumeChangePct"`
	Confidence            float64                `json:"confidence"`
	BaselineWindowMinutes int                    `json:"baselineWindowMinutes"`
	PriceBefore           float64                `json:"priceBefore"`
	PriceAtDetection      float64                `json:"priceAtDetection"`
	DetectionMetadata     map[string]interface{} `json:"detectionMetadata"`
	Narrative             *Narrative             `json:"narrative"`
}

// ValidationStatus recomputes the status from the current narrative.
func (a Anomaly) ValidationStatus() ValidationStatus {
	return ClassifyValidation(a.Narrative)
}

// AnomalyView is the wire form of an anomaly with its derived status attached.
type AnomalyView struct {
	Anomaly
	ValidationStatus ValidationStatus `json:"validationStatus"`
}

// NewAnomalyView attaches the derived status to a.
func NewAnomalyView(a Anomaly) AnomalyView {
	return AnomalyView{Anomaly: a, ValidationStatus: a.ValidationStatus()}
}

// NewAnomalyViews converts a slice, never returning nil.
func NewAnomalyViews(in []Anomaly) []AnomalyView {
	out := make([]AnomalyView, 0, len(in))
	for _, a := range in {
		out = append(out, NewAnomalyView(a))
	}
	return out
}

// AnomalyFilter narrows the anomaly set. Zero values mean "no constraint".
type AnomalyFilter struct {
	Symbol           string
	Symbols          []string
	Type             AnomalyType
	ValidationStatus ValidationStatus
	StartDate        *time.Time
	EndDate          *time.Time
}

// EffectiveSymbols returns the single symbol filter that applies: Symbol
// wins over Symbols when both are set.
func (f AnomalyFilter) EffectiveSymbols() []string {
	if f.Symbol != "" {
		return []string{f.Symbol}
	}
	return f.Symbols
}

// Match evaluates the filter against one anomaly. Stores that cannot push
// predicates down use this directly.
func (f AnomalyFilter) Match(a Anomaly) bool {
	if syms := f.EffectiveSymbols(); len(syms) > 0 {
		found := false
		for _, s := range syms {
			if a.Symbol == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.ValidationStatus != "" && a.ValidationStatus() != f.ValidationStatus {
		return false
	}
	if f.StartDate != nil && a.DetectedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && a.DetectedAt.After(*f.EndDate) {
		return false
	}
	return true
}

// PaginationMeta describes one page of a filtered result.
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPaginationMeta derives page counts from the unpaginated total.
func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// AnomalyPage is one page of findAll.
type AnomalyPage struct {
	Data []AnomalyView  `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// ValidationBreakdown counts anomalies by derived validation status.
type ValidationBreakdown struct {
	NotGenerated int64 `json:"notGenerated"`
	Pending      int64 `json:"pending"`
	Valid        int64 `json:"valid"`
	Invalid      int64 `json:"invalid"`
}

// Sum is always equal to the total the breakdown was derived from.
func (b ValidationBreakdown) Sum() int64 {
	return b.NotGenerated + b.Pending + b.Valid + b.Invalid
}

// AnomalyStats summarises a (symbol-filtered) anomaly set.
type AnomalyStats struct {
	TotalAnomalies     int64                 `json:"totalAnomalies"`
	ByType             map[AnomalyType]int64 `json:"byType"`
	ByValidationStatus ValidationBreakdown   `json:"byValidationStatus"`
	RecentCount24h     int64                 `json:"recentCount24h"`
	RecentCount7d      int64                 `json:"recentCount7d"`
}
