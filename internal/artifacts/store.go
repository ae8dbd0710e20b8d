// Package artifacts stores file attachments uploaded into sessions.
// Artifacts are versioned: saving under an existing filename appends a
// new version rather than overwriting.
package artifacts

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an artifact or version does not exist.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored file version.
type Artifact struct {
	Data     []byte
	MIMEType string
}

// Key identifies an artifact within a session.
type Key struct {
	AppName   string
	UserID    string
	SessionID string
	Filename  string
}

// Store is a versioned artifact store.
type Store interface {
	// Save appends a new version and returns its version number,
	// starting at 0 for the first save of a filename.
	Save(ctx context.Context, key Key, artifact Artifact) (int, error)

	// Load returns the given version, or the latest when version is
	// negative.
	Load(ctx context.Context, key Key, version int) (*Artifact, error)

	// List returns the filenames stored for a session, sorted.
	List(ctx context.Context, appName, userID, sessionID string) ([]string, error)

	// Versions returns the stored version numbers for a filename,
	// ascending.
	Versions(ctx context.Context, key Key) ([]int, error)

	// Delete removes all versions of a filename.
	Delete(ctx context.Context, key Key) error
}
