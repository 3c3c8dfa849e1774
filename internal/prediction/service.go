package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/models"
	"github.com/mrcode/nightscout-forecast/internal/readsuccess"
	"github.com/mrcode/nightscout-forecast/internal/stats"
)

// staleAfter is how old the latest reading may be before forecasts are flagged
const staleAfter = 15 * time.Minute

// ErrNoSource is returned when the service has nowhere to read glucose from
var ErrNoSource = errors.New("no reading source configured")

// ReadingSource supplies recent glucose readings, oldest first
type ReadingSource interface {
	GetReadings(ctx context.Context, hours int) ([]models.Reading, error)
}

// Service provides forecasting to the application
type Service struct {
	logger *zap.Logger

	mu         sync.RWMutex
	source     ReadingSource
	settings   *models.Settings
	predictor  *Predictor
	lastReport *models.ForecastReport

	// Cached data
	cachedReadings []models.Reading
	cacheTime      time.Time
	cacheDuration  time.Duration

	sourceGeneration uint64 // bumped by SetSource
}

// NewService creates a new forecast service
func NewService(source ReadingSource, settings *models.Settings, logger *zap.Logger) *Service {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		source: source,
		logger: logger,
	}
	s.UpdateSettings(settings)
	return s
}

// SetSource updates the reading source and drops cached readings
func (s *Service) SetSource(source ReadingSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.sourceGeneration++
	s.cacheTime = time.Time{}
}

// UpdateSettings applies new settings to subsequent forecasts
func (s *Service) UpdateSettings(settings *models.Settings) {
	clone := settings.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = clone
	s.predictor = NewPredictor(ConfigFromSettings(clone))
	s.cacheDuration = time.Duration(clone.CacheMinutes) * time.Minute
}

// GetReport fetches recent readings (cached when fresh) and forecasts from them
func (s *Service) GetReport(ctx context.Context) (*models.ForecastReport, error) {
	readings, err := s.GetReadings(ctx)
	if err != nil {
		return nil, err
	}

	report := s.BuildReport(readings, time.Now())

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	return report, nil
}

// GetLastReport returns the most recent report without generating a new one
func (s *Service) GetLastReport() *models.ForecastReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// BuildReport forecasts from the given readings as of now
func (s *Service) BuildReport(readings []models.Reading, now time.Time) *models.ForecastReport {
	s.mu.RLock()
	settings := s.settings
	predictor := s.predictor
	s.mu.RUnlock()

	readings = models.CleanReadings(readings)
	report := &models.ForecastReport{
		GeneratedAt: now,
		ReadSuccess: readsuccess.GetReadSuccess(readings, now, nil),
	}

	if len(readings) == 0 {
		return report
	}

	latest := readings[len(readings)-1]
	report.LatestReading = &latest
	report.Direction = models.DirectionForSlope(CalculateTrend(readings))

	if age := now.Sub(latest.Time); age > staleAfter {
		s.logger.Warn("latest reading is stale", zap.Duration("age", age))
	}

	fit, err := predictor.Fit(readings)
	if err != nil {
		s.logger.Debug("no trend-line fit", zap.Int("readings", len(readings)), zap.Error(err))
	} else {
		report.Model = fit.Model.Name()
		report.ErrorVariance = fit.Variance
	}

	report.Predictions = predictor.GeneratePredictions(readings, settings.Horizon(), settings.IntervalMinutes)
	report.Low = predictor.PredictLowGlucose(readings, settings.LowThreshold, settings.MaxHoursAhead)

	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if now.Sub(r.Time) <= readsuccess.Lookback {
			values = append(values, r.Value)
		}
	}
	if summary, err := stats.Summarize(values); err == nil {
		report.Summary = &summary
	}

	s.logger.Debug("forecast built",
		zap.String("model", report.Model),
		zap.Int("predictions", len(report.Predictions)),
		zap.Bool("low", report.Low != nil))

	return report
}

// GetReadings returns recent readings, using the cache while it is fresh. The
// fetch runs without holding the lock so reports stay readable meanwhile.
func (s *Service) GetReadings(ctx context.Context) ([]models.Reading, error) {
	s.mu.RLock()
	if time.Since(s.cacheTime) < s.cacheDuration && len(s.cachedReadings) > 0 {
		readings := s.cachedReadings
		s.mu.RUnlock()
		return readings, nil
	}
	source, generation := s.source, s.sourceGeneration
	hours := s.settings.HistoryHours
	s.mu.RUnlock()

	if source == nil {
		return nil, ErrNoSource
	}

	readings, err := source.GetReadings(ctx, hours)
	if err != nil {
		return nil, fmt.Errorf("fetching readings: %w", err)
	}

	s.mu.Lock()
	// Readings from a source replaced mid-fetch are not cached
	if generation == s.sourceGeneration {
		s.cachedReadings = readings
		s.cacheTime = time.Now()
	}
	s.mu.Unlock()

	return readings, nil
}

// RefreshCache forces a cache refresh
func (s *Service) RefreshCache(ctx context.Context) error {
	s.mu.Lock()
	s.cacheTime = time.Time{} // Invalidate cache
	s.mu.Unlock()

	_, err := s.GetReadings(ctx)
	return err
}
