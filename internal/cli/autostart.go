package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/autostart"
)

// launcher builds the login entry for "watch", keeping an explicit config file
func (o *options) launcher() (*autostart.Launcher, error) {
	args := []string{"watch"}
	if o.cfgFile != "" {
		abs, err := filepath.Abs(o.cfgFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return autostart.New(args...)
}

func newAutostartCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start watching for lows at login",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Run the watch command at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := o.launcher()
				if err != nil {
					return err
				}
				if err := l.Enable(); err != nil {
					return fmt.Errorf("enabling autostart: %w", err)
				}
				o.logger.Info("autostart enabled", zap.Strings("command", l.Command))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled")
				return err
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Remove the login entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := o.launcher()
				if err != nil {
					return err
				}
				if err := l.Disable(); err != nil {
					return fmt.Errorf("disabling autostart: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the login entry is installed",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := o.launcher()
				if err != nil {
					return err
				}
				enabled, err := l.IsEnabled()
				if err != nil {
					return err
				}
				state := "disabled"
				if enabled {
					state = "enabled"
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Autostart %s\n", state)
				return err
			},
		},
	)
	return cmd
}
