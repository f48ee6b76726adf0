package polling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr       string
		wantPeriod time.Duration
		wantOK     bool
	}{
		{expr: "", wantPeriod: 0, wantOK: true},
		{expr: "every 5 minutes", wantPeriod: 5 * time.Minute, wantOK: true},
		{expr: "every 1 minute", wantPeriod: time.Minute, wantOK: true},
		{expr: "Every  2   Hours", wantPeriod: 2 * time.Hour, wantOK: true},
		{expr: "hourly", wantPeriod: time.Hour, wantOK: true},
		{expr: "daily", wantPeriod: 24 * time.Hour, wantOK: true},
		{expr: "weekly", wantPeriod: 7 * 24 * time.Hour, wantOK: true},
		{expr: "every 0 minutes", wantPeriod: 0, wantOK: false},
		{expr: "*/5 * * * *", wantPeriod: 0, wantOK: false},
		{expr: "monthly", wantPeriod: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, ok := ParseSchedule(tt.expr)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPeriod, s.Period)
		})
	}
}

func TestSchedule_Due(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	hourly := Schedule{Period: time.Hour}

	assert.True(t, hourly.Due(time.Time{}, now), "never fetched")
	assert.False(t, hourly.Due(now.Add(-30*time.Minute), now))
	assert.True(t, hourly.Due(now.Add(-time.Hour), now))
	assert.True(t, Schedule{}.Due(now, now), "zero period is due every cycle")
}
