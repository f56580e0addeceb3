package notify

import "errors"

// Sentinel errors for notification sinks.
var (
	ErrNotConfigured = errors.New("notify: sink not configured")
	ErrRejected      = errors.New("notify: upstream rejected message")
)
