// Package notifications handles desktop alerts for forecast lows
package notifications

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

// sender delivers one notification
type sender func(title, message string) error

// Manager turns low-glucose forecasts into notifications
type Manager struct {
	settings *models.Settings
	logger   *zap.Logger
	notify   sender
	alert    sender // Notification with sound
	critical sender // Persistent notification, nil when unsupported
	beep     func() error
	now      func() time.Time

	mu            sync.Mutex
	lastAlertTime map[models.Severity]time.Time
	// episode is the most severe alert sent since glucose was last forecast clear
	episode   models.Severity
	inEpisode bool
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		settings: settings,
		logger:   logger,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		alert: func(title, message string) error {
			return beeep.Alert(title, message, "")
		},
		critical: criticalSender(),
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		now:           time.Now,
		lastAlertTime: make(map[models.Severity]time.Time),
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// CheckForecast notifies about a forecast low when its severity is enabled.
// Repeats of a severity are held back for RepeatAlertMinutes (or for the whole
// episode when that is 0); an escalation always notifies. It reports whether a
// notification was sent.
func (m *Manager) CheckForecast(report *models.ForecastReport) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if report == nil || report.Low == nil {
		if m.inEpisode {
			m.logger.Info("low forecast cleared")
		}
		m.resetLocked()
		return false, nil
	}

	low := report.Low
	if !m.settings.AlertEnabled(low.Severity) {
		return false, nil
	}

	if !m.shouldNotify(low.Severity) {
		return false, nil
	}

	title, message := m.formatNotification(report)
	if err := m.deliver(low.Severity, title, message); err != nil {
		return false, fmt.Errorf("sending %s notification: %w", low.Severity, err)
	}

	m.logger.Info("low forecast notification sent",
		zap.Stringer("severity", low.Severity),
		zap.Duration("timeToLow", low.TimeToLow))

	m.lastAlertTime[low.Severity] = m.now()
	if !m.inEpisode || low.Severity > m.episode {
		m.episode = low.Severity
	}
	m.inEpisode = true
	return true, nil
}

// deliver picks the channel for a severity. Imminent lows go out as critical
// notifications where the desktop supports them.
func (m *Manager) deliver(severity models.Severity, title, message string) error {
	sound := m.settings.EnableSoundAlerts && severity >= models.SeverityUrgent

	if severity == models.SeverityImmediate && m.critical != nil {
		err := m.critical(title, message)
		if err == nil {
			if sound {
				if err := m.beep(); err != nil {
					m.logger.Debug("beep failed", zap.Error(err))
				}
			}
			return nil
		}
		m.logger.Debug("critical notification unavailable", zap.Error(err))
	}

	if sound {
		return m.alert(title, message)
	}
	return m.notify(title, message)
}

// shouldNotify applies escalation and repeat rules
func (m *Manager) shouldNotify(severity models.Severity) bool {
	if !m.inEpisode || severity > m.episode {
		return true
	}

	lastTime, ok := m.lastAlertTime[severity]
	if !ok {
		// De-escalated to a severity not yet announced this episode
		return false
	}
	if m.settings.RepeatAlertMinutes <= 0 {
		// No repeat, only alert once per episode
		return false
	}

	repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
	return m.now().Sub(lastTime) >= repeatDuration
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(report *models.ForecastReport) (string, string) {
	low := report.Low
	minutes := int(math.Ceil(low.TimeToLow.Minutes()))

	var threshold string
	if m.settings.Unit == "mmol/L" {
		threshold = fmt.Sprintf("%.1f mmol/L", models.ToMmol(low.Threshold))
	} else {
		threshold = fmt.Sprintf("%.0f mg/dL", low.Threshold)
	}

	var title string
	switch low.Severity {
	case models.SeverityImmediate:
		title = "⚠️ LOW GLUCOSE IMMINENT"
	case models.SeverityUrgent:
		title = "⚠️ Urgent: Low Glucose Expected"
	case models.SeverityWarning:
		title = "⬇️ Low Glucose Expected"
	default:
		title = "⬇️ Glucose Trending Low"
	}

	message := fmt.Sprintf("Expected below %s in %d min (at %s)",
		threshold, minutes, low.ExpectedAt.Local().Format("15:04"))
	if report.LatestReading != nil {
		current := fmt.Sprintf("%.0f mg/dL", report.LatestReading.Value)
		if m.settings.Unit == "mmol/L" {
			current = fmt.Sprintf("%.1f mmol/L", report.LatestReading.ValueMmolL())
		}
		message = fmt.Sprintf("Now %s. %s", current, message)
	}

	return title, message
}

func (m *Manager) resetLocked() {
	m.lastAlertTime = make(map[models.Severity]time.Time)
	m.inEpisode = false
	m.episode = models.SeverityWatch
}

// ClearAlertState forgets all previous alerts
func (m *Manager) ClearAlertState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("Nightscout Forecast", "Test notification - alerts are working!")
}
