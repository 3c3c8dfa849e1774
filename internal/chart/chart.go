// Package chart renders glucose history and forecasts as images and text
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

// ErrNoData is returned when there is nothing to draw
var ErrNoData = errors.New("no readings to chart")

var parseFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

func loadFace(size float64) (font.Face, error) {
	f, err := parseFont()
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// Options controls the forecast chart
type Options struct {
	Width, Height int
	Unit          string  // "mg/dL" or "mmol/L" for axis labels
	TargetLow     float64 // mg/dL
	TargetHigh    float64 // mg/dL
	LowThreshold  float64 // mg/dL, 0 hides the line
	Title         string
}

// DefaultOptions returns chart options derived from settings
func DefaultOptions(settings *models.Settings) Options {
	s := settings.Clone()
	return Options{
		Width:        800,
		Height:       400,
		Unit:         s.Unit,
		TargetLow:    float64(s.TargetLow),
		TargetHigh:   float64(s.TargetHigh),
		LowThreshold: s.LowThreshold,
		Title:        "Glucose forecast",
	}
}

const (
	marginLeft   = 56.0
	marginRight  = 20.0
	marginTop    = 34.0
	marginBottom = 36.0
)

// plot maps readings onto the canvas
type plot struct {
	x0, x1 float64 // pixel range
	y0, y1 float64
	t0, t1 time.Time
	v0, v1 float64 // mg/dL range
}

func (p plot) x(t time.Time) float64 {
	span := p.t1.Sub(p.t0).Seconds()
	if span <= 0 {
		return p.x1
	}
	return p.x0 + t.Sub(p.t0).Seconds()/span*(p.x1-p.x0)
}

func (p plot) y(v float64) float64 {
	return p.y1 - (v-p.v0)/(p.v1-p.v0)*(p.y1-p.y0)
}

// RenderPNG draws readings, predictions and an optional low forecast and
// writes the chart as PNG to w
func RenderPNG(w io.Writer, readings []models.Reading, predictions []models.Prediction, low *models.LowGlucoseForecast, opts Options) error {
	dc, err := Render(readings, predictions, low, opts)
	if err != nil {
		return err
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encoding chart: %w", err)
	}
	return nil
}

// Render draws the forecast chart onto a new context
func Render(readings []models.Reading, predictions []models.Prediction, low *models.LowGlucoseForecast, opts Options) (*gg.Context, error) {
	readings = models.CleanReadings(readings)
	if len(readings) == 0 {
		return nil, ErrNoData
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 800, 400
	}

	p := plot{
		x0: marginLeft,
		x1: float64(opts.Width) - marginRight,
		y0: marginTop,
		y1: float64(opts.Height) - marginBottom,
		t0: readings[0].Time,
		t1: readings[len(readings)-1].Time,
		v0: 40,
		v1: 250,
	}
	for _, r := range readings {
		p.v1 = math.Max(p.v1, r.Value+20)
	}
	for _, pr := range predictions {
		p.v1 = math.Max(p.v1, pr.Value+20)
		if pr.Time.After(p.t1) {
			p.t1 = pr.Time
		}
	}
	p.v1 = math.Min(p.v1, 400)

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	face, err := loadFace(12)
	if err == nil {
		dc.SetFontFace(face)
	}

	drawGrid(dc, p, opts, face != nil)

	// Target range band
	if opts.TargetHigh > opts.TargetLow {
		dc.SetRGBA255(74, 222, 128, 40)
		top := p.y(math.Min(opts.TargetHigh, p.v1))
		dc.DrawRectangle(p.x0, top, p.x1-p.x0, p.y(math.Max(opts.TargetLow, p.v0))-top)
		dc.Fill()
	}

	// Low threshold
	if opts.LowThreshold > p.v0 {
		dc.SetRGB255(239, 68, 68)
		dc.SetLineWidth(1.5)
		dc.SetDash(6, 4)
		dc.DrawLine(p.x0, p.y(opts.LowThreshold), p.x1, p.y(opts.LowThreshold))
		dc.Stroke()
		dc.SetDash()
	}

	// History
	for _, r := range readings {
		dc.SetHexColor(statusColors[statusFor(r.Value, opts)])
		dc.DrawCircle(p.x(r.Time), p.y(math.Max(p.v0, math.Min(p.v1, r.Value))), 3)
		dc.Fill()
	}

	// Forecast, fading with confidence
	last := readings[len(readings)-1]
	prevX, prevY := p.x(last.Time), p.y(last.Value)
	dc.SetLineWidth(2)
	for _, pr := range predictions {
		x, y := p.x(pr.Time), p.y(pr.Value)
		dc.SetRGBA(0.23, 0.51, 0.96, math.Max(0.2, pr.Confidence))
		dc.DrawLine(prevX, prevY, x, y)
		dc.Stroke()
		prevX, prevY = x, y
	}

	if low != nil && !low.ExpectedAt.After(p.t1) {
		x := p.x(low.ExpectedAt)
		dc.SetRGB255(239, 68, 68)
		dc.SetLineWidth(1)
		dc.DrawLine(x, p.y0, x, p.y1)
		dc.Stroke()
		if face != nil {
			dc.DrawStringAnchored(fmt.Sprintf("low in %.0f min", math.Ceil(low.TimeToLow.Minutes())), x-4, p.y0+10, 1, 0.5)
		}
	}

	if face != nil && opts.Title != "" {
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(opts.Title, float64(opts.Width)/2, marginTop/2, 0.5, 0.5)
	}

	return dc, nil
}

func drawGrid(dc *gg.Context, p plot, opts Options, labels bool) {
	dc.SetLineWidth(1)
	for v := math.Ceil(p.v0/50) * 50; v <= p.v1; v += 50 {
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawLine(p.x0, p.y(v), p.x1, p.y(v))
		dc.Stroke()
		if labels {
			dc.SetRGB(0.3, 0.3, 0.3)
			dc.DrawStringAnchored(formatValue(v, opts.Unit), p.x0-6, p.y(v), 1, 0.5)
		}
	}

	if !labels {
		return
	}
	step := time.Hour
	if p.t1.Sub(p.t0) <= 3*time.Hour {
		step = 30 * time.Minute
	}
	for t := p.t0.Truncate(step).Add(step); !t.After(p.t1); t = t.Add(step) {
		dc.SetRGB(0.3, 0.3, 0.3)
		dc.DrawStringAnchored(t.Local().Format("15:04"), p.x(t), p.y1+14, 0.5, 0.5)
	}
}

func formatValue(mgdl float64, unit string) string {
	if unit == "mmol/L" {
		return fmt.Sprintf("%.1f", models.ToMmol(mgdl))
	}
	return fmt.Sprintf("%.0f", mgdl)
}

func statusFor(v float64, opts Options) string {
	switch {
	case v <= opts.LowThreshold || v < opts.TargetLow:
		return "low"
	case v > opts.TargetHigh:
		return "high"
	default:
		return "normal"
	}
}
