package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		frequency string
		want      time.Duration
	}{
		{frequency: "daily", want: 24 * time.Hour},
		{frequency: "Daily", want: 24 * time.Hour},
		{frequency: "bidaily", want: 48 * time.Hour},
		{frequency: "weekly", want: 7 * 24 * time.Hour},
		{frequency: " biweekly ", want: 14 * 24 * time.Hour},
		{frequency: "monthly", want: 30 * 24 * time.Hour},
		{frequency: "hourly", want: 7 * 24 * time.Hour},
		{frequency: "", want: 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			assert.Equal(t, tt.want, Interval(tt.frequency))
		})
	}
}

func TestFirstSend(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 37, 42, 123, time.UTC)
	base := time.Date(2025, 3, 10, 14, 37, 0, 0, time.UTC)

	tests := []struct {
		offset string
		want   time.Time
	}{
		{offset: "now", want: base},
		{offset: "tomorrow", want: base.AddDate(0, 0, 1)},
		{offset: "in_2_days", want: base.AddDate(0, 0, 2)},
		{offset: "in_3_days", want: base.AddDate(0, 0, 3)},
		{offset: "next_week", want: base.AddDate(0, 0, 7)},
		{offset: "someday", want: base},
		{offset: "", want: base},
	}
	for _, tt := range tests {
		t.Run(tt.offset, func(t *testing.T) {
			assert.True(t, tt.want.Equal(FirstSend(now, tt.offset)), "FirstSend(%q) = %v", tt.offset, FirstSend(now, tt.offset))
		})
	}
}

func TestSpread(t *testing.T) {
	first := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	dates := Spread(first, Interval(FreqBiweekly), 5)
	if assert.Len(t, dates, 5) {
		assert.Equal(t, first, dates[0])
		assert.Equal(t, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC), dates[1])
		assert.Equal(t, time.Date(2025, 2, 26, 9, 0, 0, 0, time.UTC), dates[4])
	}
	assert.Nil(t, Spread(first, Interval(FreqDaily), 0))
}

func TestCanReschedule(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	assert.False(t, CanReschedule(now, now.AddDate(0, 0, 6)))
	assert.True(t, CanReschedule(now, now.AddDate(0, 0, 7)))
	assert.True(t, CanReschedule(now, now.AddDate(0, 1, 0)))
	assert.Equal(t, now.AddDate(0, 0, 7), EarliestReschedule(now))
}

func TestJoinPastContent(t *testing.T) {
	past := []PastContent{{Content: "<h1>B</h1>"}, {Content: "  "}, {Content: "<h1>A</h1>"}}
	assert.Equal(t, "<h1>B</h1>\n\n---\n\n<h1>A</h1>", JoinPastContent(past))
	assert.Equal(t, "", JoinPastContent(nil))
}
