// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrcode/nightscout-forecast/internal/stats"
)

// Prediction represents a single predicted glucose value
type Prediction struct {
	Time       time.Time `json:"time" yaml:"time"`
	Value      float64   `json:"value" yaml:"value"`           // Predicted glucose in mg/dL
	Confidence float64   `json:"confidence" yaml:"confidence"` // (0, 1], decreasing with distance
	Model      string    `json:"model" yaml:"model"`           // Trend-line model that produced the value
}

// ValueMmolL returns the predicted value in mmol/L
func (p Prediction) ValueMmolL() float64 {
	return ToMmol(p.Value)
}

// Severity classifies how soon a low is expected
type Severity int

const (
	SeverityWatch     Severity = iota // more than 60 minutes away
	SeverityWarning                   // within 60 minutes
	SeverityUrgent                    // within 30 minutes
	SeverityImmediate                 // within 15 minutes
)

var severityNames = map[Severity]string{
	SeverityWatch:     "watch",
	SeverityWarning:   "warning",
	SeverityUrgent:    "urgent",
	SeverityImmediate: "immediate",
}

// String returns the lower-case severity name
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity parses a severity name
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if n == name {
			return s, nil
		}
	}
	return SeverityWatch, fmt.Errorf("unknown severity %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SeverityForTimeToLow classifies a time-to-low duration
func SeverityForTimeToLow(d time.Duration) Severity {
	switch {
	case d <= 15*time.Minute:
		return SeverityImmediate
	case d <= 30*time.Minute:
		return SeverityUrgent
	case d <= 60*time.Minute:
		return SeverityWarning
	default:
		return SeverityWatch
	}
}

// LowGlucoseForecast describes an expected crossing below a low threshold
type LowGlucoseForecast struct {
	TimeToLow time.Duration `json:"-" yaml:"timeToLow"`
	Severity  Severity      `json:"severity" yaml:"severity"`
	Threshold float64       `json:"threshold" yaml:"threshold"` // mg/dL
	Model     string        `json:"model" yaml:"model"`
	// ExpectedAt is the wall-clock time of the crossing
	ExpectedAt time.Time `json:"expectedAt" yaml:"expectedAt"`
}

// TimeToLowSeconds returns the time to low in seconds
func (f *LowGlucoseForecast) TimeToLowSeconds() float64 {
	return f.TimeToLow.Seconds()
}

// MarshalJSON adds timeToLowSeconds to the JSON form
func (f LowGlucoseForecast) MarshalJSON() ([]byte, error) {
	type Alias LowGlucoseForecast
	return json.Marshal(&struct {
		Alias
		TimeToLowSeconds float64 `json:"timeToLowSeconds"`
	}{
		Alias:            Alias(f),
		TimeToLowSeconds: f.TimeToLow.Seconds(),
	})
}

// ForecastReport combines everything produced for one reading window
type ForecastReport struct {
	GeneratedAt   time.Time           `json:"generatedAt" yaml:"generatedAt"`
	LatestReading *Reading            `json:"latestReading,omitempty" yaml:"latestReading,omitempty"`
	Direction     string              `json:"direction,omitempty" yaml:"direction,omitempty"`
	Model         string              `json:"model,omitempty" yaml:"model,omitempty"`
	ErrorVariance float64             `json:"errorVariance,omitempty" yaml:"errorVariance,omitempty"`
	Predictions   []Prediction        `json:"predictions" yaml:"predictions"`
	Low           *LowGlucoseForecast `json:"low,omitempty" yaml:"low,omitempty"`
	ReadSuccess   ReadSuccessDisplay  `json:"readSuccess" yaml:"readSuccess"`
	Summary       *stats.Summary      `json:"summary,omitempty" yaml:"summary,omitempty"`
}
