package models

import "time"

// PriceSample is one raw market observation for a symbol.
type PriceSample struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    *float64  `json:"volume"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
}

// AggregatedPricePoint is the mean of all samples that fall in one bucket.
type AggregatedPricePoint struct {
	BucketStart time.Time `json:"bucketStart"`
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Volume      *float64  `json:"volume"`
}

// PriceHistory is the response of a price-history query.
type PriceHistory struct {
	Symbol      string                 `json:"symbol"`
	Granularity string                 `json:"granularity"`
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	Count       int                    `json:"count"`
	Points      []AggregatedPricePoint `json:"points"`
}
