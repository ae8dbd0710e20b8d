package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/knowsee/knowsee/pkg/models"
)

// MemoryStore implements Store with in-memory maps. Used for local
// development and tests; state does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	events   map[string][]*models.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		events:   make(map[string][]*models.Event),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}
	s.sessions[session.ID] = copySession(session)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(session), nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now()
	s.sessions[session.ID] = copySession(session)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.events, id)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, appName, userID string, opts ListOptions) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Session
	for _, session := range s.sessions {
		if session.AppName != appName || session.UserID != userID {
			continue
		}
		out = append(out, copySession(session))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// AppendEvent implements Store.
func (s *MemoryStore) AppendEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[event.SessionID]
	if !ok {
		return ErrNotFound
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.events[event.SessionID] = append(s.events[event.SessionID], copyEvent(event))
	session.UpdatedAt = time.Now()
	return nil
}

// Events implements Store.
func (s *MemoryStore) Events(ctx context.Context, sessionID string) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	stored := s.events[sessionID]
	out := make([]*models.Event, len(stored))
	for i, ev := range stored {
		out[i] = copyEvent(ev)
	}
	return out, nil
}

func copySession(session *models.Session) *models.Session {
	dup := *session
	if session.State != nil {
		dup.State = make(map[string]any, len(session.State))
		for k, v := range session.State {
			dup.State[k] = v
		}
	}
	return &dup
}

func copyEvent(event *models.Event) *models.Event {
	dup := *event
	dup.Parts = make([]models.ResponsePart, len(event.Parts))
	copy(dup.Parts, event.Parts)
	return &dup
}
