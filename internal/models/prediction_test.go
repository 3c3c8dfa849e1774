package models

import (
	"testing"
	"time"
)

func TestSeverityForTimeToLow(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want Severity
	}{
		{"one minute", time.Minute, SeverityImmediate},
		{"15 minutes", 15 * time.Minute, SeverityImmediate},
		{"just past 15 minutes", 15*time.Minute + time.Nanosecond, SeverityUrgent},
		{"30 minutes", 30 * time.Minute, SeverityUrgent},
		{"just past 30 minutes", 30*time.Minute + time.Nanosecond, SeverityWarning},
		{"60 minutes", 60 * time.Minute, SeverityWarning},
		{"just past 60 minutes", 60*time.Minute + time.Nanosecond, SeverityWatch},
		{"three hours", 3 * time.Hour, SeverityWatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeverityForTimeToLow(tt.in); got != tt.want {
				t.Errorf("SeverityForTimeToLow(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	for _, s := range []Severity{SeverityWatch, SeverityWarning, SeverityUrgent, SeverityImmediate} {
		got, err := ParseSeverity(s.String())
		if err != nil || got != s {
			t.Errorf("ParseSeverity(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseSeverity("critical"); err == nil {
		t.Error("ParseSeverity(\"critical\") should fail")
	}
}
