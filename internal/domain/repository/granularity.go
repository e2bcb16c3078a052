package repository

import (
	"fmt"
	"time"
)

// Granularity is the bucket width of a price-history series.
type Granularity string

const (
	GranularityAuto Granularity = "auto"
	Granularity1m   Granularity = "1m"
	Granularity5m   Granularity = "5m"
	Granularity1h   Granularity = "1h"
	Granularity1d   Granularity = "1d"
)

// IsValid reports whether g is a concrete bucket width (auto excluded).
func (g Granularity) IsValid() bool {
	switch g {
	case Granularity1m, Granularity5m, Granularity1h, Granularity1d:
		return true
	default:
		return false
	}
}

// Duration returns the nominal width of one bucket.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Granularity5m:
		return 5 * time.Minute
	case Granularity1h:
		return time.Hour
	case Granularity1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// ParseGranularity accepts the four codes plus "auto"; empty means auto.
func ParseGranularity(s string) (Granularity, error) {
	if s == "" {
		return GranularityAuto, nil
	}
	g := Granularity(s)
	if g == GranularityAuto || g.IsValid() {
		return g, nil
	}
	return "", fmt.Errorf("unsupported granularity: %s", s)
}
