package timeseries

import (
	"sort"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/domain/repository"
)

// BucketStart truncates t to the calendar bucket that contains it. All
// truncation happens in UTC; 5m buckets are aligned to the enclosing hour.
func BucketStart(t time.Time, g repository.Granularity) time.Time {
	t = t.UTC()
	y, mo, d := t.Date()
	switch g {
	case repository.Granularity1d:
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	case repository.Granularity1h:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, time.UTC)
	case repository.Granularity5m:
		return time.Date(y, mo, d, t.Hour(), 5*(t.Minute()/5), 0, 0, time.UTC)
	default:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, time.UTC)
	}
}

type bucket struct {
	start    time.Time
	priceSum float64
	n        int
	volSum   float64
	volN     int
}

// Aggregate groups samples into calendar-aligned buckets, ascending by
// bucket start. Empty buckets are never emitted. For 1m the samples are
// passed through unchanged, in their input order.
func Aggregate(symbol string, samples []models.PriceSample, g repository.Granularity) []models.AggregatedPricePoint {
	if len(samples) == 0 {
		return []models.AggregatedPricePoint{}
	}
	if g == repository.Granularity1m || !g.IsValid() {
		return passthrough(symbol, samples)
	}

	buckets := make(map[int64]*bucket)
	for _, s := range samples {
		start := BucketStart(s.Timestamp, g)
		key := start.UnixNano()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{start: start}
			buckets[key] = b
		}
		b.priceSum += s.Price
		b.n++
		if s.Volume != nil {
			b.volSum += *s.Volume
			b.volN++
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]models.AggregatedPricePoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		p := models.AggregatedPricePoint{
			BucketStart: b.start,
			Symbol:      symbol,
			Price:       b.priceSum / float64(b.n),
		}
		if b.volN > 0 {
			v := b.volSum / float64(b.volN)
			p.Volume = &v
		}
		out = append(out, p)
	}
	return out
}

// AggregateRange is Aggregate restricted to [start, end]. An inverted range
// yields an empty series.
func AggregateRange(symbol string, samples []models.PriceSample, start, end time.Time, g repository.Granularity) []models.AggregatedPricePoint {
	if start.After(end) {
		return []models.AggregatedPricePoint{}
	}
	in := make([]models.PriceSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		in = append(in, s)
	}
	return Aggregate(symbol, in, g)
}

func passthrough(symbol string, samples []models.PriceSample) []models.AggregatedPricePoint {
	out := make([]models.AggregatedPricePoint, 0, len(samples))
	for _, s := range samples {
		sym := s.Symbol
		if sym == "" {
			sym = symbol
		}
		out = append(out, models.AggregatedPricePoint{
			BucketStart: s.Timestamp,
			Symbol:      sym,
			Price:       s.Price,
			Volume:      s.Volume,
		})
	}
	return out
}
