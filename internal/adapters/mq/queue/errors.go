package queue

import "errors"

// ErrBackpressure is reported when a message cannot be queued.
var ErrBackpressure = errors.New("queue: full")
