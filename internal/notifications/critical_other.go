//go:build !linux

package notifications

// Other platforms have no urgency hint; beeep alerts are used instead
func criticalSender() sender {
	return nil
}
