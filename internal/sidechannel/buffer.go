// Package sidechannel provides the session-scoped buffers that carry
// structured non-text data from tool execution to response embedding.
//
// Producers (tool handlers, grounding capture) append records during a
// turn; the tag embedder reads and clears each channel exactly once
// after the model response completes. The channel set is fixed and
// enumerated rather than an open-ended state mapping, so every producer
// and the consumer agree on what can flow through.
package sidechannel

import (
	"sync"

	"github.com/knowsee/knowsee/pkg/models"
)

// Channel identifies one side channel.
type Channel string

const (
	// ChannelSources carries grounding/citation metadata.
	ChannelSources Channel = "sources"

	// ChannelQueries carries the query attempt history.
	ChannelQueries Channel = "queries"

	// ChannelWidgets carries pending visualization widgets.
	ChannelWidgets Channel = "widgets"
)

// Buffer holds the pending side-channel records for one session.
//
// Appends are atomic: multiple tool calls within one turn may produce
// concurrently, and each append is a single indivisible operation.
// Reads return snapshots; a channel is emptied only by its Clear
// method, which the embedder calls after a successful append.
type Buffer struct {
	mu sync.Mutex

	sources  []models.GroundingMetadata
	attempts []models.QueryAttempt
	widgets  []models.Widget
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// AddSources records grounding metadata captured from a grounded call.
func (b *Buffer) AddSources(meta models.GroundingMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, meta)
}

// Sources returns the pending grounding metadata merged into a single
// payload, or nil when the channel is empty. Support source indices
// are shifted so they keep pointing at the right entries in the merged
// source list.
func (b *Buffer) Sources() *models.GroundingMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.sources) == 0 {
		return nil
	}

	merged := &models.GroundingMetadata{
		Queries:  []string{},
		Sources:  []models.GroundingSource{},
		Supports: []models.GroundingSupport{},
	}
	for _, meta := range b.sources {
		offset := len(merged.Sources)
		merged.Queries = append(merged.Queries, meta.Queries...)
		merged.Sources = append(merged.Sources, meta.Sources...)
		for _, support := range meta.Supports {
			shifted := support
			shifted.SourceIndices = make([]int, len(support.SourceIndices))
			for i, idx := range support.SourceIndices {
				shifted.SourceIndices[i] = idx + offset
			}
			merged.Supports = append(merged.Supports, shifted)
		}
	}
	return merged
}

// ClearSources empties the sources channel.
func (b *Buffer) ClearSources() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = nil
}

// AddQueryAttempt records one query execution.
func (b *Buffer) AddQueryAttempt(attempt models.QueryAttempt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = append(b.attempts, attempt)
}

// QueryAttempts returns a snapshot of the attempt history.
func (b *Buffer) QueryAttempts() []models.QueryAttempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.attempts) == 0 {
		return nil
	}
	out := make([]models.QueryAttempt, len(b.attempts))
	copy(out, b.attempts)
	return out
}

// ClearQueryAttempts empties the queries channel.
func (b *Buffer) ClearQueryAttempts() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = nil
}

// AddWidget records a pending widget.
func (b *Buffer) AddWidget(w models.Widget) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.widgets = append(b.widgets, w)
}

// Widgets returns a snapshot of pending widgets in insertion order.
func (b *Buffer) Widgets() []models.Widget {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.widgets) == 0 {
		return nil
	}
	out := make([]models.Widget, len(b.widgets))
	copy(out, b.widgets)
	return out
}

// ClearWidgets empties the widgets channel.
func (b *Buffer) ClearWidgets() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.widgets = nil
}

// Discard empties every channel. Used when a run is aborted: buffered
// data for an aborted run is never retried on a future run.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = nil
	b.attempts = nil
	b.widgets = nil
}

// Empty reports whether every channel is empty.
func (b *Buffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sources) == 0 && len(b.attempts) == 0 && len(b.widgets) == 0
}

// Registry maps session IDs to their buffers. Buffers are created on
// first use and dropped when the session ends.
type Registry struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{buffers: make(map[string]*Buffer)}
}

// ForSession returns the buffer for a session, creating it if needed.
func (r *Registry) ForSession(sessionID string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[sessionID]
	if !ok {
		buf = NewBuffer()
		r.buffers[sessionID] = buf
	}
	return buf
}

// Drop removes a session's buffer.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, sessionID)
}
