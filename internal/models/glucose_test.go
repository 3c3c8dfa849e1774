package models

import (
	"testing"
	"time"
)

func TestGlucoseEntry_TrendArrow(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		trend     int
		expected  string
	}{
		{"DoubleUp direction", "DoubleUp", 0, "⇈"},
		{"Flat direction", "Flat", 0, "→"},
		{"DoubleDown direction", "DoubleDown", 0, "⇊"},
		{"Empty direction with trend 1", "", 1, "⇈"},
		{"Empty direction with trend 7", "", 7, "⇊"},
		{"Unknown direction", "Unknown", 0, "-"},
		{"NOT COMPUTABLE", "NOT COMPUTABLE", 0, "?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &GlucoseEntry{
				Direction: tt.direction,
				Trend:     tt.trend,
			}
			result := entry.TrendArrow()
			if result != tt.expected {
				t.Errorf("TrendArrow() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestGlucoseEntry_ValueMmolL(t *testing.T) {
	tests := []struct {
		name     string
		sgv      int
		expected float64
	}{
		{"100 mg/dL", 100, 5.55},
		{"180 mg/dL", 180, 9.99},
		{"70 mg/dL", 70, 3.89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &GlucoseEntry{SGV: tt.sgv}
			result := entry.ValueMmolL()
			if result < tt.expected-0.1 || result > tt.expected+0.1 {
				t.Errorf("ValueMmolL() = %f, want approximately %f", result, tt.expected)
			}
		})
	}
}

func TestEntriesToReadings(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	entries := []GlucoseEntry{
		{SGV: 120, Date: now.UnixMilli()},
		{SGV: 0, Date: now.Add(-5 * time.Minute).UnixMilli()},
		{SGV: 110, Date: 0},
		{SGV: 115, Date: now.Add(-10 * time.Minute).UnixMilli()},
	}

	readings := EntriesToReadings(entries)
	if len(readings) != 2 {
		t.Fatalf("EntriesToReadings() returned %d readings, want 2", len(readings))
	}
	if readings[0].Value != 120 || !readings[0].Time.Equal(now) {
		t.Errorf("first reading = %+v, want 120 at %v", readings[0], now)
	}
}

func TestCleanReadings(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	readings := []Reading{
		{Time: base.Add(10 * time.Minute), Value: 130},
		{Time: base, Value: 110},
		{Time: base.Add(5 * time.Minute), Value: -1},
		{Time: base.Add(10 * time.Minute), Value: 131},
		{Time: base.Add(15 * time.Minute), Value: 0},
	}

	cleaned := CleanReadings(readings)
	if len(cleaned) != 2 {
		t.Fatalf("CleanReadings() returned %d readings, want 2", len(cleaned))
	}
	if !cleaned[0].Time.Equal(base) {
		t.Errorf("first reading at %v, want %v", cleaned[0].Time, base)
	}
	if cleaned[1].Value != 131 {
		t.Errorf("duplicate timestamp kept %v, want the later 131", cleaned[1].Value)
	}

	// Input must be left untouched
	if readings[0].Value != 130 {
		t.Error("CleanReadings modified its input")
	}
}

func TestDirectionForSlope(t *testing.T) {
	tests := []struct {
		slope    float64
		expected string
	}{
		{-3.5, "DoubleDown"},
		{-2.5, "SingleDown"},
		{-1.5, "FortyFiveDown"},
		{0, "Flat"},
		{1.5, "FortyFiveUp"},
		{2.5, "SingleUp"},
		{3.5, "DoubleUp"},
	}

	for _, tt := range tests {
		if got := DirectionForSlope(tt.slope); got != tt.expected {
			t.Errorf("DirectionForSlope(%v) = %s, want %s", tt.slope, got, tt.expected)
		}
	}
}
