package charting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/storage"
)

// Bucket is one fixed-width aggregation of the sample stream. A gap bucket
// carries no value and is rendered as a break in the line, never interpolated.
type Bucket struct {
	Start     time.Time
	Label     string
	DateLabel string
	Value     decimal.Decimal
	Gap       bool
}

// DailyOptions parameterise the 24-hour view.
type DailyOptions struct {
	// Buckets is the window length in hours. Zero means 24.
	Buckets int
}

// WeeklyOptions parameterise the 7-day view.
type WeeklyOptions struct {
	// Days is the window length in calendar days. Zero means 7.
	Days int
	// BucketHours is the width of each intra-day bucket. Zero means 4.
	BucketHours int
	// BucketsPerDay caps how many buckets each day contributes. Zero means 5,
	// which leaves hours 20-23 uncharted.
	BucketsPerDay int
}

func (o DailyOptions) buckets() int {
	if o.Buckets <= 0 {
		return 24
	}
	return o.Buckets
}

func (o WeeklyOptions) normalized() (days, bucketHours, bucketsPerDay int) {
	days, bucketHours, bucketsPerDay = o.Days, o.BucketHours, o.BucketsPerDay
	if days <= 0 {
		days = 7
	}
	if bucketHours <= 0 {
		bucketHours = 4
	}
	if bucketsPerDay <= 0 {
		bucketsPerDay = 5
	}
	return days, bucketHours, bucketsPerDay
}

// Daily buckets the sample stream into trailing hourly buckets ending at the
// hour of now (inclusive), aggregating by minimum price. The hour-of-day
// label wraps across midnight; date labels are attached at the positions
// returned by DateLabelIndices.
func Daily(samples []storage.Sample, now time.Time, opts DailyOptions) []Bucket {
	n := opts.buckets()
	end := now.UTC().Truncate(time.Hour)
	start := end.Add(-time.Duration(n-1) * time.Hour)

	minima := make(map[time.Time]decimal.Decimal)
	for _, sample := range samples {
		key := sample.Timestamp.UTC().Truncate(time.Hour)
		if cur, ok := minima[key]; !ok || sample.Price.LessThan(cur) {
			minima[key] = sample.Price
		}
	}

	buckets := make([]Bucket, 0, n)
	for i := 0; i < n; i++ {
		bucketStart := start.Add(time.Duration(i) * time.Hour)
		b := Bucket{
			Start: bucketStart,
			Label: fmt.Sprintf("%02d", bucketStart.Hour()),
			Gap:   true,
		}
		if value, ok := minima[bucketStart]; ok {
			b.Value = value
			b.Gap = false
		}
		buckets = append(buckets, b)
	}

	for _, idx := range DateLabelIndices(n, now.UTC().Hour()) {
		buckets[idx].DateLabel = buckets[idx].Start.Format("01/02/2006")
	}
	return buckets
}

// DateLabelIndices places date labels under a trailing hourly window of n
// buckets anchored at currentHour. The two indices bisect the yesterday and
// today segments; when either lands outside the window, or the window ends at
// midnight and the today segment reduces to the final tick, both collapse to
// a single centered index so exactly one date is shown.
func DateLabelIndices(n, currentHour int) []int {
	indexOne := (n-currentHour)/2 - 1
	indexTwo := currentHour/2 + (n - currentHour) - 1

	if currentHour == 0 || indexOne < 0 || indexOne >= n || indexTwo < 0 || indexTwo >= n {
		return []int{n/2 - 1}
	}
	return []int{indexOne, indexTwo}
}

type dayBucketKey struct {
	day    time.Time
	bucket int
}

// Weekly buckets the sample stream into trailing calendar days (UTC) of
// fixed-width intra-day buckets, aggregating by minimum price. The window is
// anchored on the most recent sample's day, or on now when the stream is
// empty. Each day's date labels only its middle bucket.
func Weekly(samples []storage.Sample, now time.Time, opts WeeklyOptions) []Bucket {
	days, bucketHours, bucketsPerDay := opts.normalized()

	anchor := now.UTC()
	if len(samples) > 0 {
		anchor = samples[len(samples)-1].Timestamp.UTC()
	}
	anchorDay := anchor.Truncate(24 * time.Hour)

	minima := make(map[dayBucketKey]decimal.Decimal)
	for _, sample := range samples {
		ts := sample.Timestamp.UTC()
		key := dayBucketKey{
			day:    ts.Truncate(24 * time.Hour),
			bucket: ts.Hour() / bucketHours,
		}
		if cur, ok := minima[key]; !ok || sample.Price.LessThan(cur) {
			minima[key] = sample.Price
		}
	}

	buckets := make([]Bucket, 0, days*bucketsPerDay)
	for i := days - 1; i >= 0; i-- {
		day := anchorDay.AddDate(0, 0, -i)
		for j := 0; j < bucketsPerDay; j++ {
			b := Bucket{
				Start: day.Add(time.Duration(j*bucketHours) * time.Hour),
				Gap:   true,
			}
			if j == bucketsPerDay/2 {
				b.Label = day.Format("2006-01-02")
			}
			if value, ok := minima[dayBucketKey{day: day, bucket: j}]; ok {
				b.Value = value
				b.Gap = false
			}
			buckets = append(buckets, b)
		}
	}
	return buckets
}
