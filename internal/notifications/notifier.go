// Package notifications pushes engine alerts to external channels.
package notifications

// Notifier delivers an alert with a severity level of info, warning,
// error or success.
type Notifier interface {
	SendAlert(level, message string) error
}

// Noop discards all alerts. Used when no channel is configured.
type Noop struct{}

func (Noop) SendAlert(string, string) error { return nil }
