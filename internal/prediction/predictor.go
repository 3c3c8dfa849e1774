// Package prediction provides glucose trend forecasting
package prediction

import (
	"math"
	"time"

	"github.com/mrcode/nightscout-forecast/internal/models"
	"github.com/mrcode/nightscout-forecast/internal/smoothing"
	"github.com/mrcode/nightscout-forecast/internal/stats"
	"github.com/mrcode/nightscout-forecast/internal/trendline"
)

const (
	// MinReadings is the fewest usable readings a forecast is made from
	MinReadings = 3

	minPredictedValue = 40.0
	maxPredictedValue = 400.0
	minConfidence     = 0.01

	// timeOrigin puts the first reading one nominal interval after zero so the
	// logarithmic and power models, which need positive time, take part
	timeOrigin = 5 * time.Minute
)

// Config controls how readings are fitted and extrapolated
type Config struct {
	// Models are evaluated in order; nil means trendline.CreateAllModels()
	Models []trendline.Model
	// MinReadings below which no forecast is made
	MinReadings int
	// FitWindow limits fitting to the most recent readings; 0 uses all of them
	FitWindow time.Duration
	// ConfidenceDecay is the e-folding distance of prediction confidence
	ConfidenceDecay time.Duration
	// SampleStep is the resolution of the low-glucose crossing search
	SampleStep time.Duration

	// SmoothReadings applies Savitzky-Golay over the sample index, so it assumes
	// evenly spaced readings; windows with irregular gaps are fitted unsmoothed
	SmoothReadings bool
	Smoothing      smoothing.Config
}

// DefaultConfig returns the default predictor configuration
func DefaultConfig() Config {
	return Config{
		MinReadings:     MinReadings,
		FitWindow:       time.Hour,
		ConfidenceDecay: 2 * time.Hour,
		SampleStep:      time.Minute,
		Smoothing:       smoothing.DefaultConfig(),
	}
}

// ConfigFromSettings derives a predictor configuration from user settings
func ConfigFromSettings(settings *models.Settings) Config {
	s := settings.Clone()
	cfg := DefaultConfig()
	cfg.FitWindow = time.Duration(s.FitWindowMinutes) * time.Minute
	cfg.SmoothReadings = s.SmoothReadings
	cfg.Smoothing = smoothing.Config{
		WindowSize: s.SmoothingWindow,
		PolyOrder:  s.SmoothingPolyOrder,
	}
	return cfg
}

// Predictor forecasts glucose from recent readings. It holds no state between
// calls and is safe for concurrent use.
type Predictor struct {
	cfg Config
}

// NewPredictor creates a new Predictor with the given configuration
func NewPredictor(cfg Config) *Predictor {
	if cfg.Models == nil {
		cfg.Models = trendline.CreateAllModels()
	}
	if cfg.MinReadings < MinReadings {
		cfg.MinReadings = MinReadings
	}
	if cfg.ConfidenceDecay <= 0 {
		cfg.ConfidenceDecay = 2 * time.Hour
	}
	if cfg.SampleStep <= 0 {
		cfg.SampleStep = time.Minute
	}
	return &Predictor{cfg: cfg}
}

// Fit is the selected model over a prepared reading window
type Fit struct {
	Readings   []models.Reading // Cleaned window, oldest first
	Values     []float64        // Values fed to the models, smoothed when enabled
	TimePoints []float64        // Seconds since timeOrigin before the first reading
	Model      trendline.Model
	Variance   float64
	Candidates []trendline.Candidate // Every evaluated model, excluded ones included
}

// Last returns the most recent reading of the window
func (f *Fit) Last() models.Reading {
	return f.Readings[len(f.Readings)-1]
}

// At evaluates the selected model offset seconds after the last reading
func (f *Fit) At(offset float64) (float64, error) {
	return f.Model.Predict(f.Values, f.TimePoints, f.TimePoints[len(f.TimePoints)-1]+offset)
}

// Fit prepares readings and selects the best model for them
func (p *Predictor) Fit(readings []models.Reading) (*Fit, error) {
	window := models.CleanReadings(readings)
	if p.cfg.FitWindow > 0 && len(window) > 0 {
		cutoff := window[len(window)-1].Time.Add(-p.cfg.FitWindow)
		start := 0
		for start < len(window) && window[start].Time.Before(cutoff) {
			start++
		}
		window = window[start:]
	}

	if len(window) < p.cfg.MinReadings {
		return nil, stats.ErrInsufficientData
	}

	origin := window[0].Time.Add(-timeOrigin)
	values := make([]float64, len(window))
	timePoints := make([]float64, len(window))
	for i, r := range window {
		values[i] = r.Value
		timePoints[i] = r.Time.Sub(origin).Seconds()
	}

	if p.cfg.SmoothReadings && evenlySpaced(timePoints) {
		// Invalid smoothing settings fall back to raw values
		if smoothed, err := smoothing.SavitzkyGolay(values, p.cfg.Smoothing); err == nil {
			values = smoothed
		}
	}

	sel, err := trendline.Select(p.cfg.Models, values, timePoints)
	if err != nil {
		return nil, err
	}

	return &Fit{
		Readings:   window,
		Values:     values,
		TimePoints: timePoints,
		Model:      sel.Model,
		Variance:   sel.Variance,
		Candidates: sel.Candidates,
	}, nil
}

// maxGapRatio bounds the spread of reading gaps that still counts as even spacing
const maxGapRatio = 1.5

func evenlySpaced(timePoints []float64) bool {
	shortest, longest := math.Inf(1), 0.0
	for i := 1; i < len(timePoints); i++ {
		gap := timePoints[i] - timePoints[i-1]
		shortest = math.Min(shortest, gap)
		longest = math.Max(longest, gap)
	}
	return longest <= maxGapRatio*shortest
}

// GeneratePredictions forecasts glucose every intervalMinutes up to horizon past
// the last reading. Sparse or unfittable input yields no predictions.
func (p *Predictor) GeneratePredictions(readings []models.Reading, horizon time.Duration, intervalMinutes int) []models.Prediction {
	if len(readings) == 0 || horizon <= 0 || intervalMinutes <= 0 {
		return nil
	}

	fit, err := p.Fit(readings)
	if err != nil {
		return nil
	}

	interval := time.Duration(intervalMinutes) * time.Minute
	steps := int(math.Ceil(horizon.Seconds() / interval.Seconds()))
	last := fit.Last()

	predictions := make([]models.Prediction, 0, steps)
	for i := 1; i <= steps; i++ {
		offset := time.Duration(i) * interval

		value, err := fit.At(offset.Seconds())
		if err != nil {
			// A model that cannot be evaluated further out cannot be trusted nearer in
			return nil
		}

		predictions = append(predictions, models.Prediction{
			Time:       last.Time.Add(offset),
			Value:      math.Round(applyConstraints(value)*10) / 10,
			Confidence: p.calculateConfidence(offset.Minutes(), len(fit.Readings), fit.Variance),
			Model:      fit.Model.Name(),
		})
	}

	return predictions
}

// applyConstraints keeps predictions within a physiologically plausible range
func applyConstraints(value float64) float64 {
	return math.Max(minPredictedValue, math.Min(maxPredictedValue, value))
}

// calculateConfidence decays with distance and scales with data volume and fit quality
func (p *Predictor) calculateConfidence(minutesOut float64, dataPoints int, variance float64) float64 {
	timeDecay := math.Exp(-minutesOut / p.cfg.ConfidenceDecay.Minutes())

	// A full hour of 5-minute readings counts as complete data
	dataFactor := math.Min(1.0, float64(dataPoints)/12)

	// Residual standard deviation of 10 mg/dL halves confidence
	fitFactor := 1 / (1 + math.Sqrt(math.Max(0, variance))/10)

	confidence := timeDecay * (0.5 + 0.5*dataFactor) * fitFactor

	return math.Max(minConfidence, math.Min(1, confidence))
}

// CalculateTrend returns the glucose rate of change in mg/dL per minute over the
// last 15 minutes of readings
func CalculateTrend(readings []models.Reading) float64 {
	sorted := models.CleanReadings(readings)
	if len(sorted) < 2 {
		return 0
	}

	last := sorted[len(sorted)-1].Time
	var values, minutes []float64
	for _, r := range sorted {
		if last.Sub(r.Time) > 15*time.Minute {
			continue
		}
		values = append(values, r.Value)
		minutes = append(minutes, r.Time.Sub(last).Minutes())
	}

	slope, _, err := stats.LinearRegression(values, minutes)
	if err != nil {
		return 0
	}
	return slope
}
