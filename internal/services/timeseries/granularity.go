package timeseries

import (
	"time"

	"MarketLens/internal/domain/repository"
)

// Span limits for automatic granularity. Each bound is inclusive.
const (
	rawSpanLimit     = 24 * time.Hour
	fiveMinSpanLimit = 7 * 24 * time.Hour
	hourlySpanLimit  = 30 * 24 * time.Hour
)

// SelectGranularity picks a bucket width from the requested span.
func SelectGranularity(start, end time.Time) repository.Granularity {
	span := end.Sub(start)
	switch {
	case span <= rawSpanLimit:
		return repository.Granularity1m
	case span <= fiveMinSpanLimit:
		return repository.Granularity5m
	case span <= hourlySpanLimit:
		return repository.Granularity1h
	default:
		return repository.Granularity1d
	}
}

// ResolveGranularity honours an explicit width and only consults
// SelectGranularity for "auto" (or empty).
func ResolveGranularity(requested repository.Granularity, start, end time.Time) repository.Granularity {
	if requested.IsValid() {
		return requested
	}
	return SelectGranularity(start, end)
}
