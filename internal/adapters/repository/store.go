// Package repository persists contact messages.
package repository

import (
	"context"

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
)

// Store provides read/write access to received contact messages.
type Store interface {
	// Save stores a message. Saving an id twice keeps the first copy.
	Save(ctx context.Context, m contact.Message) error

	// Get returns one message. Returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (contact.Message, error)

	// Count returns the number of stored messages.
	Count(ctx context.Context) (int, error)

	Close() error
}
