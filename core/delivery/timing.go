package delivery

import (
	"strings"
	"time"
)

const day = 24 * time.Hour

// Frequencies
const (
	FreqDaily    = "daily"
	FreqBidaily  = "bidaily"
	FreqWeekly   = "weekly"
	FreqBiweekly = "biweekly"
	FreqMonthly  = "monthly"
)

// First send offsets
const (
	OffsetNow      = "now"
	OffsetTomorrow = "tomorrow"
	OffsetIn2Days  = "in_2_days"
	OffsetIn3Days  = "in_3_days"
	OffsetNextWeek = "next_week"
)

const (
	// MinReschedule is how far in the future a plan may be rescheduled to.
	MinReschedule = 7 * day
	// MaxFirstSendWindow is the latest first send offered on preview.
	MaxFirstSendWindow = 7 * day

	defaultInterval = 7 * day
)

var (
	Frequencies = []string{FreqDaily, FreqBidaily, FreqWeekly, FreqBiweekly, FreqMonthly}
	Offsets     = []string{OffsetNow, OffsetTomorrow, OffsetIn2Days, OffsetIn3Days, OffsetNextWeek}

	intervals = map[string]time.Duration{
		FreqDaily:    day,
		FreqBidaily:  2 * day,
		FreqWeekly:   7 * day,
		FreqBiweekly: 14 * day,
		FreqMonthly:  30 * day,
	}
	offsets = map[string]time.Duration{
		OffsetNow:      0,
		OffsetTomorrow: day,
		OffsetIn2Days:  2 * day,
		OffsetIn3Days:  3 * day,
		OffsetNextWeek: 7 * day,
	}
)

// Interval maps a frequency to the spacing between two sends. Unknown frequencies are weekly.
func Interval(frequency string) time.Duration {
	if d, ok := intervals[strings.ToLower(strings.TrimSpace(frequency))]; ok {
		return d
	}
	return defaultInterval
}

// FirstSend computes the first send time of a new plan. Unknown offsets send now.
func FirstSend(now time.Time, offset string) time.Time {
	base := now.UTC().Truncate(time.Minute)
	return base.Add(offsets[strings.ToLower(strings.TrimSpace(offset))])
}

// Spread returns n send dates starting at first, interval apart.
func Spread(first time.Time, interval time.Duration, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = first.Add(time.Duration(i) * interval)
	}
	return dates
}

// CanReschedule reports whether t is at least MinReschedule after now.
func CanReschedule(now, t time.Time) bool {
	return !t.Before(now.Add(MinReschedule))
}

// EarliestReschedule is the minimum allowed reschedule time.
func EarliestReschedule(now time.Time) time.Time {
	return now.UTC().Add(MinReschedule).Truncate(time.Minute)
}
