package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrcode/nightscout-forecast/internal/chart"
)

func newChartCommand(o *options) *cobra.Command {
	var (
		outFile string
		width   int
		height  int
		text    bool
		lines   int
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Draw recent readings and the forecast",
		Long: `Draw recent readings with the forecast, target range and low threshold
as a PNG, or as a Braille sparkline in the terminal with --text.`,
		Example: `  nightscout-forecast chart --out forecast.png
  nightscout-forecast chart --text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, readings, err := o.report(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}

			if text {
				values := make([]float64, 0, len(readings)+len(report.Predictions))
				for _, r := range readings {
					values = append(values, r.Value)
				}
				for _, p := range report.Predictions {
					values = append(values, p.Value)
				}
				// Keep the most recent columns so the chart fits a terminal
				if len(values) > 72 {
					values = values[len(values)-72:]
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), chart.Sparkline(values, lines))
				return err
			}

			opts := chart.DefaultOptions(o.settings)
			opts.Width, opts.Height = width, height

			f, err := os.Create(outFile)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outFile, err)
			}
			if err := chart.RenderPNG(f, readings, report.Predictions, report.Low, opts); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("writing %s: %w", outFile, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outFile)
			return err
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "forecast.png", "PNG file to write")
	cmd.Flags().IntVar(&width, "width", 800, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 400, "Image height in pixels")
	cmd.Flags().BoolVar(&text, "text", false, "Print a Braille sparkline instead of writing a PNG")
	cmd.Flags().IntVar(&lines, "lines", 8, "Sparkline height in lines")
	return cmd
}
