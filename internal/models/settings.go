// Package models contains data structures used throughout the application
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Connection settings
	NightscoutURL string `mapstructure:"nightscoutUrl" json:"nightscoutUrl" yaml:"nightscoutUrl"`
	APISecret     string `mapstructure:"apiSecret" json:"apiSecret" yaml:"apiSecret"` // Plain API secret (will be hashed)
	APIToken      string `mapstructure:"apiToken" json:"apiToken" yaml:"apiToken"`    // Token-based auth
	UseToken      bool   `mapstructure:"useToken" json:"useToken" yaml:"useToken"`    // Use token instead of secret

	// Display settings
	Unit            string `mapstructure:"unit" json:"unit" yaml:"unit"`                                  // "mg/dL" or "mmol/L"
	RefreshInterval int    `mapstructure:"refreshInterval" json:"refreshInterval" yaml:"refreshInterval"` // Seconds (30-600)

	// Glucose thresholds (in mg/dL, converted for display)
	TargetLow  int `mapstructure:"targetLow" json:"targetLow" yaml:"targetLow"`
	TargetHigh int `mapstructure:"targetHigh" json:"targetHigh" yaml:"targetHigh"`
	UrgentLow  int `mapstructure:"urgentLow" json:"urgentLow" yaml:"urgentLow"`
	UrgentHigh int `mapstructure:"urgentHigh" json:"urgentHigh" yaml:"urgentHigh"`

	// Forecast settings
	LowThreshold       float64 `mapstructure:"lowThreshold" json:"lowThreshold" yaml:"lowThreshold"`             // mg/dL
	HorizonMinutes     int     `mapstructure:"horizonMinutes" json:"horizonMinutes" yaml:"horizonMinutes"`       // Prediction horizon
	IntervalMinutes    int     `mapstructure:"intervalMinutes" json:"intervalMinutes" yaml:"intervalMinutes"`    // Spacing of predicted points
	MaxHoursAhead      float64 `mapstructure:"maxHoursAhead" json:"maxHoursAhead" yaml:"maxHoursAhead"`          // Low forecast horizon
	FitWindowMinutes   int     `mapstructure:"fitWindowMinutes" json:"fitWindowMinutes" yaml:"fitWindowMinutes"` // Readings fed to the models
	HistoryHours       int     `mapstructure:"historyHours" json:"historyHours" yaml:"historyHours"`             // Readings fetched per refresh
	CacheMinutes       int     `mapstructure:"cacheMinutes" json:"cacheMinutes" yaml:"cacheMinutes"`             // Reading cache lifetime
	SmoothReadings     bool    `mapstructure:"smoothReadings" json:"smoothReadings" yaml:"smoothReadings"`       // Savitzky-Golay before fitting
	SmoothingWindow    int     `mapstructure:"smoothingWindow" json:"smoothingWindow" yaml:"smoothingWindow"`    // Odd window size
	SmoothingPolyOrder int     `mapstructure:"smoothingPolyOrder" json:"smoothingPolyOrder" yaml:"smoothingPolyOrder"`

	// Alert settings
	EnableWatchAlert     bool `mapstructure:"enableWatchAlert" json:"enableWatchAlert" yaml:"enableWatchAlert"`
	EnableWarningAlert   bool `mapstructure:"enableWarningAlert" json:"enableWarningAlert" yaml:"enableWarningAlert"`
	EnableUrgentAlert    bool `mapstructure:"enableUrgentAlert" json:"enableUrgentAlert" yaml:"enableUrgentAlert"`
	EnableImmediateAlert bool `mapstructure:"enableImmediateAlert" json:"enableImmediateAlert" yaml:"enableImmediateAlert"`
	EnableSoundAlerts    bool `mapstructure:"enableSoundAlerts" json:"enableSoundAlerts" yaml:"enableSoundAlerts"`
	RepeatAlertMinutes   int  `mapstructure:"repeatAlertMinutes" json:"repeatAlertMinutes" yaml:"repeatAlertMinutes"` // 0 = no repeat

	// Server settings
	ListenAddr string `mapstructure:"listenAddr" json:"listenAddr" yaml:"listenAddr"`
	LogLevel   string `mapstructure:"logLevel" json:"logLevel" yaml:"logLevel"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Unit:            "mg/dL",
		RefreshInterval: 60, // 1 minute default

		TargetLow:  70,
		TargetHigh: 180,
		UrgentLow:  55,
		UrgentHigh: 250,

		LowThreshold:       70,
		HorizonMinutes:     30,
		IntervalMinutes:    5,
		MaxHoursAhead:      2,
		FitWindowMinutes:   60,
		HistoryHours:       24, // read success needs the full day
		CacheMinutes:       1,
		SmoothReadings:     false,
		SmoothingWindow:    5,
		SmoothingPolyOrder: 2,

		EnableWatchAlert:     false,
		EnableWarningAlert:   true,
		EnableUrgentAlert:    true,
		EnableImmediateAlert: true,
		EnableSoundAlerts:    true,
		RepeatAlertMinutes:   15,

		ListenAddr: "127.0.0.1:8480",
		LogLevel:   "info",
	}
}

// Validate checks that settings are usable
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	if s.Unit != "mg/dL" && s.Unit != "mmol/L" {
		errs = append(errs, fmt.Errorf("unit must be mg/dL or mmol/L, got %q", s.Unit))
	}
	if s.RefreshInterval < 30 || s.RefreshInterval > 600 {
		errs = append(errs, fmt.Errorf("refreshInterval must be 30-600 seconds, got %d", s.RefreshInterval))
	}
	if s.LowThreshold <= 0 {
		errs = append(errs, fmt.Errorf("lowThreshold must be positive, got %g", s.LowThreshold))
	}
	if s.HorizonMinutes <= 0 || s.IntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("horizonMinutes and intervalMinutes must be positive"))
	}
	if s.MaxHoursAhead <= 0 {
		errs = append(errs, fmt.Errorf("maxHoursAhead must be positive, got %g", s.MaxHoursAhead))
	}
	if s.FitWindowMinutes <= 0 || s.HistoryHours <= 0 {
		errs = append(errs, fmt.Errorf("fitWindowMinutes and historyHours must be positive"))
	}
	if s.TargetLow >= s.TargetHigh {
		errs = append(errs, fmt.Errorf("targetLow %d must be below targetHigh %d", s.TargetLow, s.TargetHigh))
	}
	return errors.Join(errs...)
}

// Horizon returns the prediction horizon
func (s *Settings) Horizon() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.HorizonMinutes) * time.Minute
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, "nightscout-forecast"), nil
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.NightscoutURL = other.NightscoutURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.Unit = other.Unit
	s.RefreshInterval = other.RefreshInterval
	s.TargetLow = other.TargetLow
	s.TargetHigh = other.TargetHigh
	s.UrgentLow = other.UrgentLow
	s.UrgentHigh = other.UrgentHigh
	s.LowThreshold = other.LowThreshold
	s.HorizonMinutes = other.HorizonMinutes
	s.IntervalMinutes = other.IntervalMinutes
	s.MaxHoursAhead = other.MaxHoursAhead
	s.FitWindowMinutes = other.FitWindowMinutes
	s.HistoryHours = other.HistoryHours
	s.CacheMinutes = other.CacheMinutes
	s.SmoothReadings = other.SmoothReadings
	s.SmoothingWindow = other.SmoothingWindow
	s.SmoothingPolyOrder = other.SmoothingPolyOrder
	s.EnableWatchAlert = other.EnableWatchAlert
	s.EnableWarningAlert = other.EnableWarningAlert
	s.EnableUrgentAlert = other.EnableUrgentAlert
	s.EnableImmediateAlert = other.EnableImmediateAlert
	s.EnableSoundAlerts = other.EnableSoundAlerts
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.ListenAddr = other.ListenAddr
	s.LogLevel = other.LogLevel
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NightscoutURL != ""
}

// AlertEnabled reports whether low forecasts of the given severity should notify
func (s *Settings) AlertEnabled(severity Severity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch severity {
	case SeverityImmediate:
		return s.EnableImmediateAlert
	case SeverityUrgent:
		return s.EnableUrgentAlert
	case SeverityWarning:
		return s.EnableWarningAlert
	default:
		return s.EnableWatchAlert
	}
}

// GetGlucoseStatus returns the status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case mgdl <= s.UrgentLow:
		return "urgent_low"
	case mgdl <= s.TargetLow:
		return "low"
	case mgdl >= s.UrgentHigh:
		return "urgent_high"
	case mgdl >= s.TargetHigh:
		return "high"
	default:
		return "normal"
	}
}
