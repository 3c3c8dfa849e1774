package cli

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrcode/nightscout-forecast/internal/models"
	"github.com/mrcode/nightscout-forecast/internal/prediction"
	"github.com/mrcode/nightscout-forecast/internal/stats"
)

func newPredictCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast glucose from recent readings",
		Example: `  # Next 30 minutes in 5 minute steps
  nightscout-forecast predict

  # An hour ahead from an exported entries file
  nightscout-forecast predict --horizon 60 --input entries.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, _, err := o.report(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}
			return o.write(cmd.OutOrStdout(), report, func(w io.Writer) error {
				return o.printPredictions(w, report)
			})
		},
	}
	cmd.Flags().Int("horizon", 0, "Prediction horizon in minutes")
	cmd.Flags().Int("interval", 0, "Minutes between predicted points")
	cmd.Flags().Int("fit-window", 0, "Minutes of readings fed to the trend models")
	cmd.Flags().Bool("smooth", false, "Smooth readings with Savitzky-Golay before fitting")
	return cmd
}

func (o *options) printPredictions(w io.Writer, report *models.ForecastReport) error {
	if report.LatestReading == nil {
		_, err := fmt.Fprintln(w, "No readings")
		return err
	}

	fmt.Fprintf(w, "Current: %s %s at %s\n",
		o.formatGlucose(report.LatestReading.Value), arrowFor(report.Direction), formatClock(report.LatestReading.Time))

	if len(report.Predictions) == 0 {
		fmt.Fprintf(w, "Not enough recent readings to forecast (need %d)\n", prediction.MinReadings)
		return nil
	}
	fmt.Fprintf(w, "Model:   %s (error variance %.2f)\n\n", report.Model, report.ErrorVariance)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tGLUCOSE\tCONFIDENCE")
	for _, p := range report.Predictions {
		fmt.Fprintf(tw, "%s\t%s\t%.0f%%\n", formatClock(p.Time), o.formatGlucose(p.Value), p.Confidence*100)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n", o.describeLow(report.Low))
	return err
}

func newLowCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "low",
		Short: "Estimate time until glucose falls below the low threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, _, err := o.report(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}
			return o.write(cmd.OutOrStdout(), lowOutput{Threshold: o.settings.LowThreshold, Forecast: report.Low},
				func(w io.Writer) error {
					_, err := fmt.Fprintln(w, o.describeLow(report.Low))
					return err
				})
		},
	}
	cmd.Flags().Float64("threshold", 0, "Low threshold in mg/dL")
	cmd.Flags().Float64("max-hours", 0, "How far ahead to look for a low, in hours")
	cmd.Flags().Int("fit-window", 0, "Minutes of readings fed to the trend models")
	cmd.Flags().Bool("smooth", false, "Smooth readings with Savitzky-Golay before fitting")
	return cmd
}

type lowOutput struct {
	Threshold float64                    `json:"threshold" yaml:"threshold"`
	Forecast  *models.LowGlucoseForecast `json:"forecast" yaml:"forecast"`
}

func newReadSuccessCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "readsuccess",
		Short: "Show how reliably the transmitter was read over 6, 12 and 24 hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, _, err := o.report(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}
			rs := report.ReadSuccess
			return o.write(cmd.OutOrStdout(), rs, func(w io.Writer) error {
				fmt.Fprintf(w, "Read success: %s\n", rs.String())
				if rs.NominalGap > 0 {
					fmt.Fprintf(w, "Cadence: %s, %d readings in the last 24h\n", rs.NominalGap, rs.ReadingsInWindow)
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "WINDOW\tEXPECTED\tRECEIVED\tMISSING")
				for _, win := range rs.Windows() {
					fmt.Fprintf(tw, "%dh\t%d\t%d\t%d\n", int(win.Window.Hours()), win.Expected, win.Occupied, win.Missing)
				}
				return tw.Flush()
			})
		},
	}
}

type statsOutput struct {
	Summary *stats.Summary `json:"summary" yaml:"summary"`
	Trend   float64        `json:"trendPerMinute" yaml:"trendPerMinute"`
	Models  []modelFit     `json:"models" yaml:"models"`
}

type modelFit struct {
	Name     string  `json:"name" yaml:"name"`
	Variance float64 `json:"variance,omitempty" yaml:"variance,omitempty"`
	Selected bool    `json:"selected" yaml:"selected"`
	Excluded string  `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

func newStatsCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the last 24 hours and compare trend models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, readings, err := o.report(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}

			out := statsOutput{
				Summary: report.Summary,
				Trend:   math.Round(prediction.CalculateTrend(readings)*100) / 100,
			}
			predictor := prediction.NewPredictor(prediction.ConfigFromSettings(o.settings))
			if fit, err := predictor.Fit(readings); err == nil {
				for _, c := range fit.Candidates {
					m := modelFit{Name: c.Model.Name(), Selected: c.Model.Name() == fit.Model.Name()}
					if c.Err != nil {
						m.Excluded = c.Err.Error()
					} else {
						m.Variance = c.Variance
					}
					out.Models = append(out.Models, m)
				}
			}

			return o.write(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return o.printStats(w, out)
			})
		},
	}
	cmd.Flags().Int("fit-window", 0, "Minutes of readings fed to the trend models")
	cmd.Flags().Bool("smooth", false, "Smooth readings with Savitzky-Golay before fitting")
	return cmd
}

func (o *options) printStats(w io.Writer, out statsOutput) error {
	if s := out.Summary; s != nil {
		fmt.Fprintf(w, "Readings:   %d\n", s.Count)
		fmt.Fprintf(w, "Mean:       %s (SD %.1f, CV %.1f%%)\n", o.formatGlucose(s.Mean), s.StdDev, s.CoefficientOfVariation)
		fmt.Fprintf(w, "GMI:        %.1f%%\n", s.GMI)
		fmt.Fprintf(w, "In range:   %.1f%% (below %.1f%%, above %.1f%%)\n", s.TimeInRange, s.TimeBelowRange, s.TimeAboveRange)
	} else {
		fmt.Fprintln(w, "No readings in the last 24 hours")
	}
	fmt.Fprintf(w, "Trend:      %+.2f mg/dL/min\n", out.Trend)

	if len(out.Models) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tERROR VARIANCE\t")
	for _, m := range out.Models {
		variance := fmt.Sprintf("%.3f", m.Variance)
		if m.Excluded != "" {
			variance = "excluded"
		}
		marker := ""
		if m.Selected {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, variance, marker)
	}
	return tw.Flush()
}

// arrowFor maps a Nightscout direction to its arrow
func arrowFor(direction string) string {
	entry := models.GlucoseEntry{Direction: direction}
	return entry.TrendArrow()
}
