package service

import (
	"fmt"

	contactqueue "github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted   error = unavailableError("service not started")
	ErrBackpressure       = fmt.Errorf("contact queue full: %w", contactqueue.ErrBackpressure)
)

// unavailableError marks failures a caller may retry once the service is up.
type unavailableError string

func (e unavailableError) Error() string { return string(e) }

// Unavailable reports that the service cannot serve requests right now.
func (unavailableError) Unavailable() bool { return true }
