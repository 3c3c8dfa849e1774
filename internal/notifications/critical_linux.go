//go:build linux

package notifications

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = notifyDest + ".Notify"

	appName         = "Nightscout Forecast"
	urgencyCritical = byte(2)
)

func criticalSender() sender {
	return sendCritical
}

// sendCritical posts a critical-urgency notification over the session bus.
// Notification daemons keep these on screen until dismissed.
func sendCritical(title, message string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connecting to session bus: %w", err)
	}
	defer conn.Close()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyCritical),
	}
	obj := conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	call := obj.Call(notifyMethod, 0,
		appName,    // app_name
		uint32(0),  // replaces_id
		"",         // app_icon
		title,      // summary
		message,    // body
		[]string{}, // actions
		hints,      // hints
		int32(0),   // expire_timeout, 0 = never
	)
	if call.Err != nil {
		return fmt.Errorf("posting notification: %w", call.Err)
	}
	return nil
}
