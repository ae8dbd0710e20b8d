// Package eventbus fans stream events out to per-session subscribers.
//
// Each subscriber owns a buffered channel; a slow consumer loses events
// rather than stalling the producing run. Delivery is per session, so a
// browser tab subscribed to one conversation never sees another's
// traffic.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/knowsee/knowsee/pkg/models"
)

// DefaultQueueSize is the per-subscriber buffer. Sized for bursty model
// output; a consumer more than this far behind starts losing deltas.
const DefaultQueueSize = 100

// Subscriber is one consumer of a session's event stream.
type Subscriber struct {
	ch chan models.StreamEvent
}

// Events returns the subscriber's receive channel. It is closed when
// the subscriber is removed from the bus.
func (s *Subscriber) Events() <-chan models.StreamEvent {
	return s.ch
}

// Bus routes stream events to session subscribers.
type Bus struct {
	logger    *slog.Logger
	queueSize int

	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}

	dropped    atomic.Uint64
	droppedCtr prometheus.Counter
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize overrides the per-subscriber buffer size.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithDroppedCounter records dropped events to a metrics counter in
// addition to the internal tally.
func WithDroppedCounter(c prometheus.Counter) Option {
	return func(b *Bus) { b.droppedCtr = c }
}

// New creates a bus. If logger is nil, slog.Default() is used.
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		logger:    logger.With("component", "eventbus"),
		queueSize: DefaultQueueSize,
		subs:      make(map[string]map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new consumer for a session's events.
func (b *Bus) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{ch: make(chan models.StreamEvent, b.queueSize)}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[sessionID] = set
	}
	set[sub] = struct{}{}

	b.logger.Debug("subscriber added", "session_id", sessionID, "subscribers", len(set))
	return sub
}

// Unsubscribe removes a consumer and closes its channel. Safe to call
// twice for the same subscriber.
func (b *Bus) Unsubscribe(sessionID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[sessionID]
	if !ok {
		return
	}
	if _, present := set[sub]; !present {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(b.subs, sessionID)
	}
}

// Publish delivers an event to every subscriber of the session. Full
// subscriber queues drop the event; delivery to other subscribers is
// unaffected. The read lock is held across the sends: they never block
// (the select falls through to the drop path), and Unsubscribe closes
// channels under the write lock, so a send can never hit a closed
// channel.
func (b *Bus) Publish(ctx context.Context, sessionID string, ev models.StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[sessionID] {
		select {
		case sub.ch <- ev:
		case <-ctx.Done():
			return
		default:
			b.dropped.Add(1)
			if b.droppedCtr != nil {
				b.droppedCtr.Inc()
			}
			b.logger.Warn("subscriber queue full, dropping event",
				"session_id", sessionID, "event_type", ev.Type)
		}
	}
}

// SubscriberCount reports how many consumers a session currently has.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// DroppedCount returns the number of events discarded because a
// subscriber queue was full.
func (b *Bus) DroppedCount() uint64 {
	return b.dropped.Load()
}

// CloseSession removes every subscriber for a session, closing their
// channels. Used when the session is deleted.
func (b *Bus) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[sessionID] {
		close(sub.ch)
	}
	delete(b.subs, sessionID)
}
