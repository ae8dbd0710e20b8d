package artifacts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps artifacts in process memory. Used for development
// and tests; production deployments use the S3 store.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]Artifact
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]Artifact)}
}

func (k Key) path() string {
	return k.AppName + "/" + k.UserID + "/" + k.SessionID + "/" + k.Filename
}

func (k Key) sessionPrefix() string {
	return k.AppName + "/" + k.UserID + "/" + k.SessionID + "/"
}

// Save appends a new version of the file.
func (m *MemoryStore) Save(ctx context.Context, key Key, artifact Artifact) (int, error) {
	data := make([]byte, len(artifact.Data))
	copy(data, artifact.Data)
	artifact.Data = data

	m.mu.Lock()
	defer m.mu.Unlock()
	path := key.path()
	m.files[path] = append(m.files[path], artifact)
	return len(m.files[path]) - 1, nil
}

// Load returns a stored version, or the latest when version < 0.
func (m *MemoryStore) Load(ctx context.Context, key Key, version int) (*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.files[key.path()]
	if !ok || len(versions) == 0 {
		return nil, ErrNotFound
	}
	if version < 0 {
		version = len(versions) - 1
	}
	if version >= len(versions) {
		return nil, ErrNotFound
	}

	stored := versions[version]
	data := make([]byte, len(stored.Data))
	copy(data, stored.Data)
	return &Artifact{Data: data, MIMEType: stored.MIMEType}, nil
}

// List returns the filenames stored for a session, sorted.
func (m *MemoryStore) List(ctx context.Context, appName, userID, sessionID string) ([]string, error) {
	prefix := Key{AppName: appName, UserID: userID, SessionID: sessionID}.sessionPrefix()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for path, versions := range m.files {
		if len(versions) == 0 || len(path) <= len(prefix) || path[:len(prefix)] != prefix {
			continue
		}
		names = append(names, path[len(prefix):])
	}
	sort.Strings(names)
	return names, nil
}

// Versions returns the stored version numbers, ascending.
func (m *MemoryStore) Versions(ctx context.Context, key Key) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.files[key.path()]
	if !ok {
		return nil, nil
	}
	out := make([]int, len(versions))
	for i := range out {
		out[i] = i
	}
	return out, nil
}

// Delete removes all versions of a filename.
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key.path())
	return nil
}
