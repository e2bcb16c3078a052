package models

// Requests for the HTTP endpoints. Dates stay strings here and are parsed
// strictly by the handler so a malformed value is rejected, never ignored.
// Limit is a string too: an explicit limit=0 must clamp to 1, while an
// absent limit takes the default page size.

type PriceHistoryRequest struct {
	Symbol      string `param:"symbol" json:"symbol" validate:"required"`
	Start       string `query:"start" json:"start" validate:"required"`
	End         string `query:"end" json:"end" validate:"required"`
	Granularity string `query:"granularity" json:"granularity" default:"auto" validate:"oneof=auto 1m 5m 1h 1d"`
}

type LatestPriceRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}

type AnomalyListRequest struct {
	Page             int    `query:"page" json:"page" default:"1"`
	Limit            string `query:"limit" json:"limit"`
	Symbol           string `query:"symbol" json:"symbol"`
	Symbols          string `query:"symbols" json:"symbols"`
	Type             string `query:"type" json:"type" validate:"omitempty,oneof=PRICE_SPIKE PRICE_DROP VOLUME_SPIKE COMBINED"`
	ValidationStatus string `query:"validationStatus" json:"validationStatus" validate:"omitempty,oneof=NOT_GENERATED PENDING VALID INVALID"`
	StartDate        string `query:"startDate" json:"startDate"`
	EndDate          string `query:"endDate" json:"endDate"`
}

type LatestAnomaliesRequest struct {
	Since   string `query:"since" json:"since" validate:"required"`
	Symbols string `query:"symbols" json:"symbols"`
}

type AnomalyStatsRequest struct {
	Symbols string `query:"symbols" json:"symbols"`
}

type AnomalyIDRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type ThresholdRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}
