package readsuccess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// series builds n readings every gap starting at base, skipping the given indexes
func series(n int, gap time.Duration, skip ...int) []models.Reading {
	skipped := make(map[int]bool, len(skip))
	for _, i := range skip {
		skipped[i] = true
	}

	readings := make([]models.Reading, 0, n)
	for i := 0; i < n; i++ {
		if skipped[i] {
			continue
		}
		readings = append(readings, models.Reading{Time: base.Add(time.Duration(i) * gap), Value: 120})
	}
	return readings
}

func TestGetReadSuccess_PerfectCadence(t *testing.T) {
	readings := series(300, 5*time.Minute)
	now := readings[len(readings)-1].Time.Add(time.Minute)

	display := GetReadSuccess(readings, now, nil)

	assert.Equal(t, 5*time.Minute, display.NominalGap)
	assert.Equal(t, 2500*time.Millisecond, display.Phase)

	assert.Equal(t, 72, display.SixHours.Expected)
	assert.Equal(t, 144, display.TwelveHours.Expected)
	assert.Equal(t, 288, display.TwentyFourHours.Expected)
	for _, w := range display.Windows() {
		assert.Equal(t, 0, w.Missing, w.String())
		assert.Equal(t, 100.0, w.Percent, w.String())
	}
	assert.Equal(t, "100.0% (6h)  100.0% (12h)  100.0% (24h)", display.String())
}

func TestGetReadSuccess_OneGap(t *testing.T) {
	readings := series(300, 5*time.Minute, 290)
	now := base.Add(299*5*time.Minute + time.Minute)

	display := GetReadSuccess(readings, now, nil)

	tests := []struct {
		name    string
		window  models.ReadSuccessWindow
		missing int
		percent float64
	}{
		{"6h", display.SixHours, 1, 98.6},
		{"12h", display.TwelveHours, 1, 99.3},
		{"24h", display.TwentyFourHours, 1, 99.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.missing, tt.window.Missing)
			assert.Equal(t, tt.percent, tt.window.Percent)
		})
	}
}

func TestGetReadSuccess_GapOnlyInLongestWindow(t *testing.T) {
	readings := series(300, 5*time.Minute, 50)
	now := base.Add(299*5*time.Minute + time.Minute)

	display := GetReadSuccess(readings, now, nil)

	assert.Equal(t, 100.0, display.SixHours.Percent)
	assert.Equal(t, 100.0, display.TwelveHours.Percent)
	assert.Equal(t, 1, display.TwentyFourHours.Missing)
	assert.Equal(t, 99.6, display.TwentyFourHours.Percent)
}

func TestGetReadSuccess_NextReadingDue(t *testing.T) {
	readings := series(300, 5*time.Minute)
	last := readings[len(readings)-1].Time

	tests := []struct {
		name    string
		now     time.Time
		missing int
	}{
		{"just after a reading", last.Add(time.Second), 0},
		{"next reading due", last.Add(5 * time.Minute), 0},
		{"next reading a little late", last.Add(5*time.Minute + 10*time.Second), 0},
		{"next reading half a gap overdue", last.Add(7*time.Minute + 40*time.Second), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display := GetReadSuccess(readings, tt.now, nil)
			assert.Equal(t, tt.missing, display.SixHours.Missing)
			assert.Equal(t, tt.missing, display.TwentyFourHours.Missing)
		})
	}
}

func TestGetReadSuccess_ReadingBeforeWindowSlot(t *testing.T) {
	// Reading 228 is missing and reading 227 arrived late, inside the 6h window
	// but still rounding to its own slot
	readings := series(300, 5*time.Minute, 228)
	for i := range readings {
		if readings[i].Time.Equal(base.Add(227 * 5 * time.Minute)) {
			readings[i].Time = readings[i].Time.Add(100 * time.Second)
		}
	}
	now := base.Add(299*5*time.Minute + time.Minute)

	display := GetReadSuccess(readings, now, nil)

	assert.Equal(t, 72, display.SixHours.Expected)
	assert.Equal(t, 1, display.SixHours.Missing)
	assert.Equal(t, 98.6, display.SixHours.Percent)
	assert.Equal(t, 1, display.TwentyFourHours.Missing)
}

func TestGetReadSuccess_FastCadence(t *testing.T) {
	readings := series(1500, time.Minute, 1400)
	now := readings[len(readings)-1].Time.Add(30 * time.Second)

	display := GetReadSuccess(readings, now, nil)

	assert.Equal(t, time.Minute, display.NominalGap)
	assert.Equal(t, 1440, display.TwentyFourHours.Expected)
	assert.Equal(t, 1, display.TwentyFourHours.Missing)

	// One slot short of complete never reads as 100%
	assert.Equal(t, 99.9, display.TwentyFourHours.Percent)
	assert.Equal(t, 99.7, display.SixHours.Percent)
}

func TestGetReadSuccess_Jitter(t *testing.T) {
	jitter := []time.Duration{0, 10 * time.Second, -10 * time.Second, 20 * time.Second}

	readings := series(300, 5*time.Minute)
	for i := range readings {
		readings[i].Time = readings[i].Time.Add(jitter[i%len(jitter)])
	}
	now := base.Add(299*5*time.Minute + time.Minute)

	display := GetReadSuccess(readings, now, nil)

	assert.Equal(t, 2500*time.Millisecond, display.Phase)
	for _, w := range display.Windows() {
		assert.Equal(t, 0, w.Missing, w.String())
	}
}

func TestGetReadSuccess_NotBefore(t *testing.T) {
	readings := series(300, 5*time.Minute)
	now := base.Add(299*5*time.Minute + time.Minute)
	sensorStart := now.Add(-3 * time.Hour)

	display := GetReadSuccess(readings, now, &sensorStart)

	assert.Equal(t, 36, display.ReadingsInWindow)
	for _, w := range display.Windows() {
		assert.Equal(t, 36, w.Expected, w.String())
		assert.Equal(t, 100.0, w.Percent, w.String())
	}
}

func TestGetReadSuccess_MissingIsMonotone(t *testing.T) {
	readings := series(300, 5*time.Minute, 3, 17, 18, 19, 120, 121, 200, 260, 280, 281, 298)
	now := base.Add(299*5*time.Minute + 4*time.Minute)

	display := GetReadSuccess(readings, now, nil)

	assert.LessOrEqual(t, display.SixHours.Missing, display.TwelveHours.Missing)
	assert.LessOrEqual(t, display.TwelveHours.Missing, display.TwentyFourHours.Missing)
	for _, w := range display.Windows() {
		assert.Greater(t, w.Percent, 0.0)
		assert.Less(t, w.Percent, 100.0)
	}
}

func TestGetReadSuccess_NoReadings(t *testing.T) {
	display := GetReadSuccess(nil, base, nil)

	require.Len(t, display.Windows(), 3)
	for _, w := range display.Windows() {
		assert.False(t, w.Available())
	}
	assert.Equal(t, "-- (6h)  -- (12h)  -- (24h)", display.String())

	// Everything stale
	display = GetReadSuccess(series(10, 5*time.Minute), base.Add(48*time.Hour), nil)
	assert.Equal(t, 0, display.ReadingsInWindow)
	assert.False(t, display.TwentyFourHours.Available())
}

func TestPercent(t *testing.T) {
	tests := []struct {
		expected, missing int
		want              float64
	}{
		{72, 0, 100},
		{72, 1, 98.6},
		{3, 1, 66.6},
		{0, 0, 0},
		{10, 12, 0},
	}

	for _, tt := range tests {
		if got := percent(tt.expected, tt.missing); got != tt.want {
			t.Errorf("percent(%d, %d) = %v, want %v", tt.expected, tt.missing, got, tt.want)
		}
	}
}
