// Package server exposes forecasts over HTTP and a websocket stream
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/app"
	"github.com/mrcode/nightscout-forecast/internal/chart"
	"github.com/mrcode/nightscout-forecast/internal/models"
)

const shutdownTimeout = 5 * time.Second

// ReportSource is the monitor view the handlers read from
type ReportSource interface {
	LastReport() *models.ForecastReport
	Refresh(ctx context.Context) (*models.ForecastReport, error)
	Status() app.Status
}

// ReadingSource supplies the readings behind the chart
type ReadingSource interface {
	GetReadings(ctx context.Context) ([]models.Reading, error)
}

// Server serves the forecast API
type Server struct {
	reports  ReportSource
	readings ReadingSource
	settings *models.Settings
	hub      *Hub
	router   *mux.Router
	logger   *zap.Logger
}

// New creates a server and its routes. Reports published to the returned
// server's Hub reach websocket clients once Run is called.
func New(reports ReportSource, readings ReadingSource, settings *models.Settings, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		reports:  reports,
		readings: readings,
		settings: settings.Clone(),
		hub:      NewHub(logger.Named("hub")),
		router:   mux.NewRouter(),
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware)
	s.router.Use(loggingMiddleware(s.logger))

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/forecast", s.handleForecast).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/predictions", s.handlePredictions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/low", s.handleLow).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/readsuccess", s.handleReadSuccess).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/badge.png", s.handleBadge).Methods(http.MethodGet)
	api.HandleFunc("/chart.png", s.handleChart).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/forecast", s.handleWebsocket)
}

// Hub returns the websocket hub; subscribe its Publish to the monitor
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// report returns the latest report, fetching one if none exists yet
func (s *Server) report(ctx context.Context) (*models.ForecastReport, error) {
	if r := s.reports.LastReport(); r != nil {
		return r, nil
	}
	return s.reports.Refresh(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// withReport runs fn with the current report or answers 503
func (s *Server) withReport(w http.ResponseWriter, r *http.Request, fn func(*models.ForecastReport)) {
	report, err := s.report(r.Context())
	if err != nil {
		s.logger.Warn("no forecast available", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	fn(report)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	s.withReport(w, r, func(report *models.ForecastReport) {
		s.writeJSON(w, http.StatusOK, report)
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	s.withReport(w, r, func(report *models.ForecastReport) {
		predictions := report.Predictions
		if predictions == nil {
			predictions = []models.Prediction{}
		}
		s.writeJSON(w, http.StatusOK, predictions)
	})
}

type lowResponse struct {
	Threshold float64                    `json:"threshold"`
	Forecast  *models.LowGlucoseForecast `json:"forecast"`
}

func (s *Server) handleLow(w http.ResponseWriter, r *http.Request) {
	s.withReport(w, r, func(report *models.ForecastReport) {
		s.writeJSON(w, http.StatusOK, lowResponse{
			Threshold: s.settings.LowThreshold,
			Forecast:  report.Low,
		})
	})
}

type readSuccessResponse struct {
	models.ReadSuccessDisplay
	Display string `json:"display"`
}

func (s *Server) handleReadSuccess(w http.ResponseWriter, r *http.Request) {
	s.withReport(w, r, func(report *models.ForecastReport) {
		s.writeJSON(w, http.StatusOK, readSuccessResponse{
			ReadSuccessDisplay: report.ReadSuccess,
			Display:            report.ReadSuccess.String(),
		})
	})
}

type statusResponse struct {
	Monitor       app.Status      `json:"monitor"`
	Configured    bool            `json:"configured"`
	LatestReading *models.Reading `json:"latestReading,omitempty"`
	Direction     string          `json:"direction,omitempty"`
	GlucoseStatus string          `json:"glucoseStatus,omitempty"`
	Stale         bool            `json:"stale"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Monitor:    s.reports.Status(),
		Configured: s.settings.IsConfigured(),
	}
	if report := s.reports.LastReport(); report != nil && report.LatestReading != nil {
		resp.LatestReading = report.LatestReading
		resp.Direction = report.Direction
		resp.GlucoseStatus = s.settings.GetGlucoseStatus(int(report.LatestReading.Value))
		resp.Stale = time.Since(report.LatestReading.Time) > 15*time.Minute
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleBadge serves the tray-style badge; ?format=ico returns an ICO file
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	text, direction, status := "--", "", "stale"
	if report, err := s.report(r.Context()); err == nil && report.LatestReading != nil {
		v := report.LatestReading.Value
		text = strconv.Itoa(int(v))
		if s.settings.Unit == "mmol/L" {
			text = strconv.FormatFloat(models.ToMmol(v), 'f', 1, 64)
		}
		direction = report.Direction
		status = s.settings.GetGlucoseStatus(int(v))
	}

	img := chart.Badge(text, direction, status)

	var (
		data        []byte
		err         error
		contentType = "image/png"
	)
	if r.URL.Query().Get("format") == "ico" {
		data, err = chart.EncodeICO(img)
		contentType = "image/x-icon"
	} else {
		data, err = chart.EncodePNG(img)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.readings == nil {
		s.writeError(w, http.StatusServiceUnavailable, chart.ErrNoData)
		return
	}
	readings, err := s.readings.GetReadings(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	var (
		predictions []models.Prediction
		low         *models.LowGlucoseForecast
	)
	if report, err := s.report(r.Context()); err == nil {
		predictions, low = report.Predictions, report.Low
	}

	opts := chart.DefaultOptions(s.settings)
	if width, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && width > 0 && width <= 4000 {
		opts.Width = width
	}
	if height, err := strconv.Atoi(r.URL.Query().Get("height")); err == nil && height > 0 && height <= 4000 {
		opts.Height = height
	}

	dc, err := chart.Render(readings, predictions, low, opts)
	if err != nil {
		if errors.Is(err, chart.ErrNoData) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := dc.EncodePNG(w); err != nil {
		s.logger.Warn("writing chart", zap.Error(err))
	}
}

// handleWebsocket streams every new report, starting with the latest
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	var initial []byte
	if report := s.reports.LastReport(); report != nil {
		data, err := json.Marshal(report)
		if err == nil {
			initial = data
		}
	}
	s.hub.serve(w, r, initial)
}
