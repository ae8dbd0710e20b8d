// Package sessions persists conversations and their event logs.
package sessions

import (
	"context"
	"errors"

	"github.com/knowsee/knowsee/pkg/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store is the interface for session persistence.
type Store interface {
	// Session CRUD
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error

	// List returns a user's sessions, most recently updated first.
	List(ctx context.Context, appName, userID string, opts ListOptions) ([]*models.Session, error)

	// Event log
	AppendEvent(ctx context.Context, event *models.Event) error
	Events(ctx context.Context, sessionID string) ([]*models.Event, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int
	Offset int
}
