package charting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/storage"
)

func sampleAt(t time.Time, price float64) storage.Sample {
	return storage.Sample{Timestamp: t, Price: decimal.NewFromFloat(price)}
}

func TestDailyFullWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	var samples []storage.Sample
	for i := 0; i < 24; i++ {
		ts := now.Truncate(time.Hour).Add(-time.Duration(23-i) * time.Hour)
		samples = append(samples, sampleAt(ts.Add(5*time.Minute), 100+float64(i)))
	}

	buckets := Daily(samples, now, DailyOptions{})

	if len(buckets) != 24 {
		t.Fatalf("bucket count = %d, want 24", len(buckets))
	}
	dates := 0
	for i, b := range buckets {
		if b.Gap {
			t.Fatalf("bucket %d should not be a gap", i)
		}
		if b.DateLabel != "" {
			dates++
		}
	}
	if dates != 2 {
		t.Fatalf("date labels = %d, want 2", dates)
	}

	// window ends at the current hour inclusive and wraps across midnight
	if buckets[23].Label != "12" {
		t.Fatalf("last label = %q, want 12", buckets[23].Label)
	}
	if buckets[0].Label != "13" {
		t.Fatalf("first label = %q, want 13", buckets[0].Label)
	}
}

func TestDailyMinimumPerHour(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	hour := now.Truncate(time.Hour)
	samples := []storage.Sample{
		sampleAt(hour.Add(10*time.Minute), 105),
		sampleAt(hour.Add(20*time.Minute), 101),
		sampleAt(hour.Add(40*time.Minute), 103),
	}

	buckets := Daily(samples, now, DailyOptions{})
	last := buckets[23]
	if last.Gap {
		t.Fatal("current hour bucket should not be a gap")
	}
	if !last.Value.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("aggregate = %s, want the hourly minimum 101", last.Value)
	}
}

func TestDailySparseLeavesGaps(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	samples := []storage.Sample{
		sampleAt(now.Add(-3*time.Hour), 100),
	}

	buckets := Daily(samples, now, DailyOptions{})
	gaps := 0
	for _, b := range buckets {
		if b.Gap {
			gaps++
		}
	}
	if gaps != 23 {
		t.Fatalf("gaps = %d, want 23", gaps)
	}
}

func TestDailyEmptyStore(t *testing.T) {
	now := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	buckets := Daily(nil, now, DailyOptions{})
	if len(buckets) != 24 {
		t.Fatalf("bucket count = %d, want 24", len(buckets))
	}
	for i, b := range buckets {
		if !b.Gap {
			t.Fatalf("bucket %d should be a gap on an empty store", i)
		}
	}
	// the anchor comes from the wall clock, not the (absent) samples
	if buckets[23].Label != "07" {
		t.Fatalf("last label = %q, want 07", buckets[23].Label)
	}
}

func TestDateLabelIndices(t *testing.T) {
	cases := []struct {
		n, currentHour int
		want           []int
	}{
		{24, 12, []int{5, 17}},
		{24, 1, []int{10, 22}},
		{24, 23, []int{11}}, // first index underflows, collapse to center
		{24, 0, []int{11}},  // window ends at midnight, single centered date
	}
	for _, tc := range cases {
		got := DateLabelIndices(tc.n, tc.currentHour)
		if len(got) != len(tc.want) {
			t.Fatalf("DateLabelIndices(%d, %d) = %v, want %v", tc.n, tc.currentHour, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("DateLabelIndices(%d, %d) = %v, want %v", tc.n, tc.currentHour, got, tc.want)
			}
		}
	}
}

func TestWeeklyPartialDayLeavesGaps(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	day := now.Truncate(24 * time.Hour)
	samples := []storage.Sample{
		sampleAt(day.Add(1*time.Hour), 100), // bucket 0
		sampleAt(day.Add(5*time.Hour), 95),  // bucket 1
	}

	buckets := Weekly(samples, now, WeeklyOptions{})
	if len(buckets) != 35 {
		t.Fatalf("bucket count = %d, want 7*5", len(buckets))
	}

	today := buckets[30:]
	if today[0].Gap || today[1].Gap {
		t.Fatal("sampled buckets should carry values")
	}
	for i := 2; i < 5; i++ {
		if !today[i].Gap {
			t.Fatalf("bucket %d should be a gap, not carried over", i)
		}
	}
	if !today[1].Value.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("bucket 1 = %s, want 95", today[1].Value)
	}
}

func TestWeeklyMiddleBucketLabels(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	samples := []storage.Sample{sampleAt(now.Add(-time.Hour), 100)}

	buckets := Weekly(samples, now, WeeklyOptions{})
	for i, b := range buckets {
		middle := i%5 == 2
		if middle && b.Label == "" {
			t.Fatalf("bucket %d should carry its day label", i)
		}
		if !middle && b.Label != "" {
			t.Fatalf("bucket %d should have an empty label, got %q", i, b.Label)
		}
	}
	if buckets[32].Label != "2024-03-10" {
		t.Fatalf("last day label = %q", buckets[32].Label)
	}
	if buckets[2].Label != "2024-03-04" {
		t.Fatalf("first day label = %q", buckets[2].Label)
	}
}

func TestWeeklyAnchorsOnLatestSample(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	// the newest sample is two days old; the window ends on its day
	samples := []storage.Sample{
		sampleAt(now.AddDate(0, 0, -2), 100),
	}

	buckets := Weekly(samples, now, WeeklyOptions{})
	if buckets[32].Label != "2024-03-08" {
		t.Fatalf("window should anchor on the latest sample day, got %q", buckets[32].Label)
	}
}

func TestWeeklyLateEveningOutsideWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	day := now.Truncate(24 * time.Hour)
	// 21:00 falls in intra-day bucket 5, which the 5-bucket window never shows
	samples := []storage.Sample{sampleAt(day.Add(21*time.Hour), 42)}

	buckets := Weekly(samples, now, WeeklyOptions{})
	for i, b := range buckets {
		if !b.Gap {
			t.Fatalf("bucket %d unexpectedly carries the 21:00 sample", i)
		}
	}
}

func TestWeeklyEmptyStore(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	buckets := Weekly(nil, now, WeeklyOptions{})
	if len(buckets) != 35 {
		t.Fatalf("bucket count = %d, want 35", len(buckets))
	}
	for i, b := range buckets {
		if !b.Gap {
			t.Fatalf("bucket %d should be a gap on an empty store", i)
		}
	}
	if buckets[32].Label != "2024-03-10" {
		t.Fatalf("empty store should anchor on the wall clock, got %q", buckets[32].Label)
	}
}
