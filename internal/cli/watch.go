package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/app"
	"github.com/mrcode/nightscout-forecast/internal/chart"
	"github.com/mrcode/nightscout-forecast/internal/config"
	"github.com/mrcode/nightscout-forecast/internal/models"
	"github.com/mrcode/nightscout-forecast/internal/nightscout"
	"github.com/mrcode/nightscout-forecast/internal/notifications"
	"github.com/mrcode/nightscout-forecast/internal/prediction"
	"github.com/mrcode/nightscout-forecast/internal/server"
)

// sparklineReadings is how many recent readings the watch sparkline shows
const sparklineReadings = 36

// monitor wires the service, notifier and monitor for long-running commands
func (o *options) monitor(stdin io.Reader, notify bool) (*app.Monitor, *prediction.Service, error) {
	source, err := o.source(stdin)
	if err != nil {
		return nil, nil, err
	}

	service := prediction.NewService(source, o.settings, o.logger.Named("forecast"))
	targets := []settingsUpdater{service}

	var notifier app.Notifier
	if notify {
		manager := notifications.NewManager(o.settings, o.logger.Named("notifications"))
		notifier = manager
		targets = append(targets, manager)
	}
	monitor := app.New(o.settings, service, notifier, o.logger.Named("monitor"))
	targets = append(targets, monitor)

	if o.input == "" {
		o.reloadOnChange(service, targets)
	}
	return monitor, service, nil
}

type settingsUpdater interface {
	UpdateSettings(settings *models.Settings)
}

// reloadOnChange re-reads the config file when it changes on disk and pushes
// the result to targets. Flags still take precedence over the file.
func (o *options) reloadOnChange(service *prediction.Service, targets []settingsUpdater) {
	path := o.v.ConfigFileUsed()
	if path == "" {
		return
	}

	o.v.OnConfigChange(func(e fsnotify.Event) {
		settings, err := config.Decode(o.v)
		if err != nil {
			o.logger.Warn("ignoring config change", zap.String("path", e.Name), zap.Error(err))
			return
		}
		if settings.APIToken != "" && settings.APISecret == "" {
			settings.UseToken = true
		}

		urlChanged := settings.NightscoutURL != o.settings.NightscoutURL
		o.settings.Update(settings)
		if urlChanged {
			service.SetSource(nightscout.NewClientFromSettings(o.settings, nightscout.WithLogger(o.logger.Named("nightscout"))))
		}
		for _, t := range targets {
			t.UpdateSettings(o.settings.Clone())
		}
		o.logger.Info("config reloaded", zap.String("path", e.Name))
	})
	o.v.WatchConfig()
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func newWatchCommand(o *options) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the forecast periodically and alert on predicted lows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, service, err := o.monitor(cmd.InOrStdin(), notify)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			monitor.Subscribe(func(report *models.ForecastReport) {
				readings, err := service.GetReadings(ctx)
				if err != nil {
					o.logger.Debug("no readings for sparkline", zap.Error(err))
				}
				if err := o.printWatch(out, report, readings); err != nil {
					o.logger.Warn("writing watch output", zap.Error(err))
				}
			})

			return monitor.Run(ctx)
		},
	}

	cmd.Flags().Int("refresh", 0, "Seconds between refreshes")
	cmd.Flags().Float64("threshold", 0, "Low threshold in mg/dL")
	cmd.Flags().Bool("smooth", false, "Smooth readings with Savitzky-Golay before fitting")
	cmd.Flags().BoolVar(&notify, "notify", true, "Send desktop notifications for forecast lows")
	return cmd
}

// printWatch writes one refresh: a status line, the sparkline and the low summary
func (o *options) printWatch(w io.Writer, report *models.ForecastReport, readings []models.Reading) error {
	if o.output != formatText {
		return o.write(w, report, nil)
	}

	var b strings.Builder
	if latest := report.LatestReading; latest != nil {
		fmt.Fprintf(&b, "%s  %s %s", formatClock(latest.Time), o.formatGlucose(latest.Value), arrowFor(report.Direction))
		if n := len(report.Predictions); n > 0 {
			last := report.Predictions[n-1]
			fmt.Fprintf(&b, "  → %s by %s (%s)", o.formatGlucose(last.Value), formatClock(last.Time), report.Model)
		}
	} else {
		b.WriteString("No readings")
	}
	fmt.Fprintf(&b, "\n%s\n", o.describeLow(report.Low))

	if len(readings) > sparklineReadings {
		readings = readings[len(readings)-sparklineReadings:]
	}
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}
	if spark := chart.CompactSparkline(values); spark != "" {
		fmt.Fprintf(&b, "%s\n", spark)
	}
	fmt.Fprintf(&b, "Read success %s\n\n", report.ReadSuccess.String())

	_, err := io.WriteString(w, b.String())
	return err
}

func newServeCommand(o *options) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forecasts over HTTP and a websocket stream",
		Long: `Serve runs the forecast loop and exposes it on /api/v1/forecast,
/api/v1/predictions, /api/v1/low, /api/v1/readsuccess, /api/v1/status,
/api/v1/badge.png, /api/v1/chart.png and the /ws/forecast stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, service, err := o.monitor(cmd.InOrStdin(), notify)
			if err != nil {
				return err
			}

			srv := server.New(monitor, service, o.settings, o.logger.Named("server"))
			monitor.Subscribe(srv.Hub().Publish)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			monitorDone := make(chan error, 1)
			go func() { monitorDone <- monitor.Run(ctx) }()

			err = srv.Run(ctx, o.settings.ListenAddr)
			cancel()
			if monitorErr := <-monitorDone; err == nil {
				err = monitorErr
			}
			return err
		},
	}

	cmd.Flags().String("listen", "", "Address to listen on")
	cmd.Flags().Int("refresh", 0, "Seconds between refreshes")
	cmd.Flags().Float64("threshold", 0, "Low threshold in mg/dL")
	cmd.Flags().Bool("smooth", false, "Smooth readings with Savitzky-Golay before fitting")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send desktop notifications for forecast lows")
	return cmd
}
