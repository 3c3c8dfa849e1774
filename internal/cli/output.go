package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// write renders v as JSON or YAML, or calls text for the text format
func (o *options) write(w io.Writer, v interface{}, text func(io.Writer) error) error {
	switch o.output {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return text(w)
	}
}

// formatGlucose formats an mg/dL value in the configured unit
func (o *options) formatGlucose(mgdl float64) string {
	if o.settings.Unit == "mmol/L" {
		return fmt.Sprintf("%.1f mmol/L", models.ToMmol(mgdl))
	}
	return fmt.Sprintf("%.0f mg/dL", mgdl)
}

var severityColors = map[models.Severity]*color.Color{
	models.SeverityImmediate: color.New(color.FgRed, color.Bold),
	models.SeverityUrgent:    color.New(color.FgRed),
	models.SeverityWarning:   color.New(color.FgYellow),
	models.SeverityWatch:     color.New(color.FgCyan),
}

func severityLabel(s models.Severity) string {
	if c, ok := severityColors[s]; ok {
		return c.Sprint(s.String())
	}
	return s.String()
}

// describeLow is the one-line low summary used by several commands
func (o *options) describeLow(low *models.LowGlucoseForecast) string {
	if low == nil {
		return color.GreenString("No low expected") +
			fmt.Sprintf(" below %s within %gh", o.formatGlucose(o.settings.LowThreshold), o.settings.MaxHoursAhead)
	}
	minutes := int(math.Ceil(low.TimeToLow.Minutes()))
	return fmt.Sprintf("[%s] below %s in %d min (at %s, %s model)",
		severityLabel(low.Severity),
		o.formatGlucose(low.Threshold),
		minutes,
		low.ExpectedAt.Local().Format("15:04"),
		low.Model)
}

func formatClock(t time.Time) string {
	return t.Local().Format("15:04")
}
