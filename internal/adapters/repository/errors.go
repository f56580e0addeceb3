package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound = errors.New("contact message not found")
)
