// Package app runs the periodic forecast loop that ties the service, alerts
// and subscribers together
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

// ErrAlreadyRunning is returned when Run is called on a running monitor
var ErrAlreadyRunning = errors.New("monitor already running")

// Forecaster produces forecast reports from fresh readings
type Forecaster interface {
	RefreshCache(ctx context.Context) error
	GetReport(ctx context.Context) (*models.ForecastReport, error)
}

// Notifier reacts to a new report
type Notifier interface {
	CheckForecast(report *models.ForecastReport) (bool, error)
}

// Status describes the monitor for status endpoints
type Status struct {
	Running    bool      `json:"running" yaml:"running"`
	LastUpdate time.Time `json:"lastUpdate,omitempty" yaml:"lastUpdate,omitempty"`
	LastError  string    `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	Interval   string    `json:"interval" yaml:"interval"`
}

// Monitor refreshes the forecast every RefreshInterval
type Monitor struct {
	service  Forecaster
	notifier Notifier
	logger   *zap.Logger

	mu          sync.RWMutex
	settings    *models.Settings
	subscribers []func(*models.ForecastReport)
	lastReport  *models.ForecastReport
	lastUpdate  time.Time
	lastErr     error
	isRunning   bool
	reset       chan time.Duration
}

// New creates a new Monitor. notifier may be nil.
func New(settings *models.Settings, service Forecaster, notifier Notifier, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		settings: settings.Clone(),
		service:  service,
		notifier: notifier,
		logger:   logger,
		reset:    make(chan time.Duration, 1),
	}
}

// Subscribe registers fn to receive every new report
func (m *Monitor) Subscribe(fn func(*models.ForecastReport)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Run fetches immediately and then on every tick until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.isRunning = true
	interval := m.interval()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isRunning = false
		m.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("monitor started", zap.Duration("interval", interval))

	// Initial fetch
	m.fetchAndUpdate(ctx)

	for {
		select {
		case <-ticker.C:
			m.fetchAndUpdate(ctx)
		case d := <-m.reset:
			ticker.Reset(d)
			m.logger.Info("refresh interval changed", zap.Duration("interval", d))
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		}
	}
}

// UpdateSettings applies new settings and restarts the ticker with the new interval
func (m *Monitor) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	m.settings = settings.Clone()
	interval := m.interval()
	m.mu.Unlock()

	// Keep only the latest pending interval
	select {
	case <-m.reset:
	default:
	}
	m.reset <- interval
}

// interval must be called with m.mu held
func (m *Monitor) interval() time.Duration {
	d := time.Duration(m.settings.RefreshInterval) * time.Second
	if d <= 0 {
		d = time.Minute
	}
	return d
}

// Refresh runs one fetch and returns its report
func (m *Monitor) Refresh(ctx context.Context) (*models.ForecastReport, error) {
	m.fetchAndUpdate(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport, m.lastErr
}

// fetchAndUpdate fetches fresh readings, forecasts, alerts and publishes
func (m *Monitor) fetchAndUpdate(ctx context.Context) {
	report, err := m.fetch(ctx)

	m.mu.Lock()
	m.lastErr = err
	if err == nil {
		m.lastReport = report
		m.lastUpdate = report.GeneratedAt
	}
	subscribers := append([]func(*models.ForecastReport){}, m.subscribers...)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("forecast update failed", zap.Error(err))
		return
	}

	if m.notifier != nil {
		if _, err := m.notifier.CheckForecast(report); err != nil {
			m.logger.Warn("notification error", zap.Error(err))
		}
	}

	for _, fn := range subscribers {
		fn(report)
	}
}

func (m *Monitor) fetch(ctx context.Context) (*models.ForecastReport, error) {
	if err := m.service.RefreshCache(ctx); err != nil {
		return nil, err
	}
	return m.service.GetReport(ctx)
}

// LastReport returns the most recent successful report
func (m *Monitor) LastReport() *models.ForecastReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport
}

// Status returns the current monitor state
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Running:    m.isRunning,
		LastUpdate: m.lastUpdate,
		Interval:   m.interval().String(),
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}
