package timeseries

import (
	"testing"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)

func vol(v float64) *float64 { return &v }

func sample(t time.Time, price float64, volume *float64) models.PriceSample {
	return models.PriceSample{Symbol: "BTC-USD", Timestamp: t, Price: price, Volume: volume}
}

func TestSelectGranularity(t *testing.T) {
	cases := []struct {
		name string
		span time.Duration
		want repository.Granularity
	}{
		{"zero", 0, repository.Granularity1m},
		{"exactly 24h", 24 * time.Hour, repository.Granularity1m},
		{"just over 24h", 24*time.Hour + time.Millisecond, repository.Granularity5m},
		{"exactly 7d", 7 * 24 * time.Hour, repository.Granularity5m},
		{"8d", 8 * 24 * time.Hour, repository.Granularity1h},
		{"exactly 30d", 30 * 24 * time.Hour, repository.Granularity1h},
		{"90d", 90 * 24 * time.Hour, repository.Granularity1d},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SelectGranularity(base, base.Add(tc.span)))
		})
	}
}

func TestResolveGranularityExplicitBypassesSelection(t *testing.T) {
	start, end := base, base.Add(90*24*time.Hour)

	assert.Equal(t, repository.Granularity1m, ResolveGranularity(repository.Granularity1m, start, end))
	assert.Equal(t, repository.Granularity1d, ResolveGranularity(repository.GranularityAuto, start, end))
	assert.Equal(t, repository.Granularity1d, ResolveGranularity("", start, end))
}

func TestBucketStartFiveMinuteIsHourAligned(t *testing.T) {
	at := func(min int) time.Time { return base.Add(time.Duration(min)*time.Minute + 17*time.Second) }

	assert.Equal(t, base.Add(10*time.Minute), BucketStart(at(12), repository.Granularity5m))
	assert.Equal(t, base.Add(10*time.Minute), BucketStart(at(14), repository.Granularity5m))
	assert.Equal(t, base.Add(15*time.Minute), BucketStart(at(16), repository.Granularity5m))
	assert.Equal(t, base.Add(55*time.Minute), BucketStart(at(59), repository.Granularity5m))
}

func TestBucketStartCalendarUnits(t *testing.T) {
	ts := time.Date(2024, 3, 10, 14, 37, 45, 123, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 10, 14, 37, 0, 0, time.UTC), BucketStart(ts, repository.Granularity1m))
	assert.Equal(t, time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC), BucketStart(ts, repository.Granularity1h))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), BucketStart(ts, repository.Granularity1d))
}

func TestBucketStartNormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	ts := time.Date(2024, 3, 11, 2, 10, 0, 0, loc) // 2024-03-10 20:40 UTC

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), BucketStart(ts, repository.Granularity1d))
}

func TestAggregateHourOfMinuteSamplesIsOneMeanBucket(t *testing.T) {
	var in []models.PriceSample
	var sum float64
	for i := 0; i < 60; i++ {
		p := 100 + float64(i)
		sum += p
		in = append(in, sample(base.Add(time.Duration(i)*time.Minute), p, vol(1)))
	}

	out := Aggregate("BTC-USD", in, repository.Granularity1h)
	require.Len(t, out, 1)
	assert.Equal(t, base, out[0].BucketStart)
	assert.InDelta(t, sum/60, out[0].Price, 1e-9)
	require.NotNil(t, out[0].Volume)
	assert.InDelta(t, 1.0, *out[0].Volume, 1e-9)
}

func TestAggregateFiveMinuteBoundaries(t *testing.T) {
	in := []models.PriceSample{
		sample(base.Add(12*time.Minute), 10, nil),
		sample(base.Add(14*time.Minute), 20, nil),
		sample(base.Add(16*time.Minute), 30, nil),
	}

	out := Aggregate("BTC-USD", in, repository.Granularity5m)
	require.Len(t, out, 2)
	assert.Equal(t, base.Add(10*time.Minute), out[0].BucketStart)
	assert.InDelta(t, 15.0, out[0].Price, 1e-9)
	assert.Equal(t, base.Add(15*time.Minute), out[1].BucketStart)
	assert.InDelta(t, 30.0, out[1].Price, 1e-9)
}

func TestAggregateVolumeIgnoresNulls(t *testing.T) {
	in := []models.PriceSample{
		sample(base, 1, vol(10)),
		sample(base.Add(time.Minute), 1, nil),
		sample(base.Add(2*time.Minute), 1, vol(30)),
		sample(base.Add(2*time.Hour), 1, nil),
	}

	out := Aggregate("BTC-USD", in, repository.Granularity1h)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Volume)
	assert.InDelta(t, 20.0, *out[0].Volume, 1e-9)
	assert.Nil(t, out[1].Volume)
}

func TestAggregateOmitsEmptyBucketsAndSorts(t *testing.T) {
	in := []models.PriceSample{
		sample(base.Add(5*time.Hour), 3, nil),
		sample(base, 1, nil),
	}

	out := Aggregate("BTC-USD", in, repository.Granularity1h)
	require.Len(t, out, 2)
	assert.Equal(t, base, out[0].BucketStart)
	assert.Equal(t, base.Add(5*time.Hour), out[1].BucketStart)
}

func TestAggregateOneMinutePassesThrough(t *testing.T) {
	in := []models.PriceSample{
		sample(base.Add(30*time.Second), 2, nil),
		sample(base.Add(10*time.Second), 1, vol(5)),
	}

	out := Aggregate("BTC-USD", in, repository.Granularity1m)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Timestamp, out[0].BucketStart)
	assert.Equal(t, 2.0, out[0].Price)
	assert.Equal(t, in[1].Timestamp, out[1].BucketStart)
	assert.Equal(t, in[1].Volume, out[1].Volume)
}

func TestAggregateEdgeCases(t *testing.T) {
	assert.Empty(t, Aggregate("BTC-USD", nil, repository.Granularity1h))
	assert.NotNil(t, Aggregate("BTC-USD", nil, repository.Granularity1h))

	one := []models.PriceSample{sample(base.Add(3*time.Minute), 42, nil)}
	out := Aggregate("BTC-USD", one, repository.Granularity1d)
	require.Len(t, out, 1)
	assert.Equal(t, 42.0, out[0].Price)

	assert.Empty(t, AggregateRange("BTC-USD", one, base.Add(time.Hour), base, repository.Granularity1h))
}

func TestAggregateRangeDropsOutsideSamples(t *testing.T) {
	in := []models.PriceSample{
		sample(base.Add(-time.Minute), 1, nil),
		sample(base, 2, nil),
		sample(base.Add(time.Hour), 3, nil),
		sample(base.Add(time.Hour+time.Second), 4, nil),
	}

	out := AggregateRange("BTC-USD", in, base, base.Add(time.Hour), repository.Granularity1d)
	require.Len(t, out, 1)
	assert.InDelta(t, 2.5, out[0].Price, 1e-9)
}
