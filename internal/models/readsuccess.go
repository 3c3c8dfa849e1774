package models

import (
	"fmt"
	"strings"
	"time"
)

// ReadSuccessWindow holds slot counts for one trailing window
type ReadSuccessWindow struct {
	Window   time.Duration `json:"window" yaml:"window"`
	Expected int           `json:"expected" yaml:"expected"` // Slots the transmitter should have filled
	Occupied int           `json:"occupied" yaml:"occupied"` // Distinct slots holding at least one reading
	Missing  int           `json:"missing" yaml:"missing"`   // Expected minus occupied, floored across nested windows
	Percent  float64       `json:"percent" yaml:"percent"`   // Floored to one decimal, never 100 with a gap
}

// Available reports whether the window expected any readings
func (w ReadSuccessWindow) Available() bool {
	return w.Expected > 0
}

// String formats the window as "98.7% (6h)"
func (w ReadSuccessWindow) String() string {
	hours := int(w.Window.Hours())
	if !w.Available() {
		return fmt.Sprintf("-- (%dh)", hours)
	}
	return fmt.Sprintf("%.1f%% (%dh)", w.Percent, hours)
}

// ReadSuccessDisplay holds transmitter read-success statistics
type ReadSuccessDisplay struct {
	Earliest   time.Time     `json:"earliest,omitempty" yaml:"earliest,omitempty"`
	Latest     time.Time     `json:"latest,omitempty" yaml:"latest,omitempty"`
	NominalGap time.Duration `json:"nominalGap" yaml:"nominalGap"`
	Phase      time.Duration `json:"phase" yaml:"phase"`

	SixHours         ReadSuccessWindow `json:"sixHours" yaml:"sixHours"`
	TwelveHours      ReadSuccessWindow `json:"twelveHours" yaml:"twelveHours"`
	TwentyFourHours  ReadSuccessWindow `json:"twentyFourHours" yaml:"twentyFourHours"`
	ReadingsInWindow int               `json:"readingsInWindow" yaml:"readingsInWindow"`
}

// Windows returns the three windows shortest first
func (d ReadSuccessDisplay) Windows() []ReadSuccessWindow {
	return []ReadSuccessWindow{d.SixHours, d.TwelveHours, d.TwentyFourHours}
}

// String formats all windows on one line
func (d ReadSuccessDisplay) String() string {
	parts := make([]string, 0, 3)
	for _, w := range d.Windows() {
		parts = append(parts, w.String())
	}
	return strings.Join(parts, "  ")
}
