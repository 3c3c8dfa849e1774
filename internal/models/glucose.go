// Package models contains data structures used throughout the application
package models

import (
	"sort"
	"time"
)

// Reading is a single timestamped glucose observation in mg/dL
type Reading struct {
	Time  time.Time `json:"time" yaml:"time"`
	Value float64   `json:"value" yaml:"value"`
}

// ValueMmolL returns the reading in mmol/L
func (r Reading) ValueMmolL() float64 {
	return ToMmol(r.Value)
}

// SortReadings returns a copy of readings ordered oldest first
func SortReadings(readings []Reading) []Reading {
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}

// CleanReadings returns readings ordered oldest first with non-positive values
// and repeated timestamps removed. The last reading for a timestamp wins.
func CleanReadings(readings []Reading) []Reading {
	sorted := SortReadings(readings)
	cleaned := make([]Reading, 0, len(sorted))
	for _, r := range sorted {
		if r.Value <= 0 {
			continue
		}
		if n := len(cleaned); n > 0 && cleaned[n-1].Time.Equal(r.Time) {
			cleaned[n-1] = r
			continue
		}
		cleaned = append(cleaned, r)
	}
	return cleaned
}

// GlucoseEntry represents a single glucose reading from Nightscout
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Trend     int    `json:"trend"`     // Trend direction (1-7)
	Direction string `json:"direction"` // Trend direction as string
	Device    string `json:"device"`
	Type      string `json:"type"`
}

// Time returns the time of the glucose entry
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// ValueMmolL returns the glucose value in mmol/L
func (g *GlucoseEntry) ValueMmolL() float64 {
	return ToMmol(float64(g.SGV))
}

// Reading converts the entry to a Reading
func (g *GlucoseEntry) Reading() Reading {
	return Reading{Time: g.Time(), Value: float64(g.SGV)}
}

// EntriesToReadings converts Nightscout entries to readings, skipping
// entries without a usable value or timestamp
func EntriesToReadings(entries []GlucoseEntry) []Reading {
	readings := make([]Reading, 0, len(entries))
	for i := range entries {
		if entries[i].SGV <= 0 || entries[i].Date <= 0 {
			continue
		}
		readings = append(readings, entries[i].Reading())
	}
	return readings
}

// TrendArrow returns the Unicode arrow character for the trend
func (g *GlucoseEntry) TrendArrow() string {
	arrows := map[string]string{
		"DoubleUp":          "⇈",
		"SingleUp":          "↑",
		"FortyFiveUp":       "↗",
		"Flat":              "→",
		"FortyFiveDown":     "↘",
		"SingleDown":        "↓",
		"DoubleDown":        "⇊",
		"NOT COMPUTABLE":    "?",
		"RATE OUT OF RANGE": "⚠",
	}

	if g.Direction != "" {
		if arrow, ok := arrows[g.Direction]; ok {
			return arrow
		}
	}

	// Fallback to numeric trend
	numericArrows := map[int]string{
		1: "⇈",
		2: "↑",
		3: "↗",
		4: "→",
		5: "↘",
		6: "↓",
		7: "⇊",
	}

	if arrow, ok := numericArrows[g.Trend]; ok {
		return arrow
	}

	return "-"
}

// DirectionForSlope maps a rate of change in mg/dL per minute to a Nightscout direction
func DirectionForSlope(perMinute float64) string {
	switch {
	case perMinute <= -3:
		return "DoubleDown"
	case perMinute <= -2:
		return "SingleDown"
	case perMinute <= -1:
		return "FortyFiveDown"
	case perMinute < 1:
		return "Flat"
	case perMinute < 2:
		return "FortyFiveUp"
	case perMinute < 3:
		return "SingleUp"
	default:
		return "DoubleUp"
	}
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	ServerTime string `json:"serverTime"`
	APIEnabled bool   `json:"apiEnabled"`
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / 18.0182
}
