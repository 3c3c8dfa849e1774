// Package autostart starts a command at login across platforms
package autostart

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "nightscout-forecast"
	appDisplayName = "Nightscout Forecast"

	// OS constants
	osLinux   = "linux"
	osWindows = "windows"
	osDarwin  = "darwin"

	runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`
)

// ErrUnsupported is returned on platforms without a login mechanism
var ErrUnsupported = errors.New("autostart not supported on this platform")

// Launcher installs a login entry that runs Command
type Launcher struct {
	// Command is the executable followed by its arguments
	Command []string

	goos      string
	configDir string // XDG config dir on Linux
	homeDir   string
	run       func(name string, args ...string) error
}

// New returns a launcher for the current platform that starts this executable
// with args
func New(args ...string) (*Launcher, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		configDir = filepath.Join(home, ".config")
	}

	return &Launcher{
		Command:   append([]string{execPath}, args...),
		goos:      runtime.GOOS,
		configDir: configDir,
		homeDir:   home,
		run: func(name string, args ...string) error {
			//nolint:gosec // G204: arguments are built from os.Executable and fixed flags
			return exec.Command(name, args...).Run()
		},
	}, nil
}

// IsEnabled checks if auto-start is enabled
func (l *Launcher) IsEnabled() (bool, error) {
	switch l.goos {
	case osLinux, osDarwin:
		path, err := l.entryPath()
		if err != nil {
			return false, err
		}
		_, err = os.Stat(path)
		return err == nil, nil
	case osWindows:
		err := l.run("reg", "query", runKey, "/v", appName)
		return err == nil, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

// Enable enables auto-start
func (l *Launcher) Enable() error {
	switch l.goos {
	case osLinux:
		return l.writeEntry(l.desktopEntry())
	case osDarwin:
		return l.writeEntry(l.launchAgent())
	case osWindows:
		return l.run("reg", "add", runKey,
			"/v", appName,
			"/t", "REG_SZ",
			"/d", windowsCommandLine(l.Command),
			"/f")
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

// Disable disables auto-start
func (l *Launcher) Disable() error {
	switch l.goos {
	case osLinux, osDarwin:
		path, err := l.entryPath()
		if err != nil {
			return err
		}
		if l.goos == osDarwin {
			// Unload the agent first (ignore errors as the file may not be loaded)
			_ = l.run("launchctl", "unload", path)
		}
		err = os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	case osWindows:
		err := l.run("reg", "delete", runKey, "/v", appName, "/f")
		if err != nil && strings.Contains(err.Error(), "not exist") {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

// entryPath is the XDG autostart file or the LaunchAgent plist
func (l *Launcher) entryPath() (string, error) {
	switch l.goos {
	case osLinux:
		return filepath.Join(l.configDir, "autostart", appName+".desktop"), nil
	case osDarwin:
		return filepath.Join(l.homeDir, "Library", "LaunchAgents", "com.mrcode."+appName+".plist"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, l.goos)
	}
}

func (l *Launcher) writeEntry(content string) error {
	path, err := l.entryPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}

func (l *Launcher) desktopEntry() string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Comment=Glucose forecasts and low alerts from Nightscout
Categories=Utility;
Terminal=false
StartupNotify=false
X-GNOME-Autostart-enabled=true
`, appDisplayName, desktopExec(l.Command))
}

func (l *Launcher) launchAgent() string {
	var args strings.Builder
	for _, arg := range l.Command {
		fmt.Fprintf(&args, "        <string>%s</string>\n", xmlEscape(arg))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.mrcode.%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`, appName, args.String())
}

// desktopExec quotes arguments for the freedesktop Exec key
func desktopExec(command []string) string {
	quoted := make([]string, len(command))
	for i, arg := range command {
		if strings.ContainsAny(arg, " \t\"'\\$`") {
			r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
			arg = `"` + r.Replace(arg) + `"`
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}

func windowsCommandLine(command []string) string {
	quoted := make([]string, len(command))
	for i, arg := range command {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
