package messaging

import (
	"context"
	"errors"
)

// ErrNotFound means the referenced message no longer exists (deleted out of band).
var ErrNotFound = errors.New("message not found")

// Channel is a destination for externally visible messages.
type Channel interface {
	// Create posts a new message and returns its identifier.
	Create(ctx context.Context, content string) (string, error)

	// Edit replaces the content of an existing message. It returns
	// ErrNotFound when the message is gone; any other error is transient.
	Edit(ctx context.Context, id, content string) error

	// Delete removes a message. Deleting a missing message is not an error.
	Delete(ctx context.Context, id string) error

	// ListRecent returns identifiers of up to limit most recent messages, newest first.
	ListRecent(ctx context.Context, limit int) ([]string, error)
}
