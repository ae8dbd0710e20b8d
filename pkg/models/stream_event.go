package models

// StreamEventType identifies the kind of message-framing event.
type StreamEventType string

const (
	// StreamMessageStart opens a visible message.
	StreamMessageStart StreamEventType = "message-start"

	// StreamMessageContent carries an incremental text delta for the
	// active message. Never the full accumulated buffer.
	StreamMessageContent StreamEventType = "message-content"

	// StreamMessageEnd closes the active message.
	StreamMessageEnd StreamEventType = "message-end"

	// StreamTitleGenerated announces an auto-generated session title.
	// Delta carries the title text.
	StreamTitleGenerated StreamEventType = "title-generated"
)

// StreamEvent is a message-framing event exposed to the transport layer.
// Within one run, events are strictly ordered start, content*, end; no
// two starts occur without an intervening end.
type StreamEvent struct {
	// Type identifies the framing marker.
	Type StreamEventType `json:"type"`

	// MessageID identifies the visible message this event belongs to.
	MessageID string `json:"message_id"`

	// Role is set on start events. Always "assistant" for model output.
	Role string `json:"role,omitempty"`

	// Delta is the incremental text, set on content events only.
	Delta string `json:"delta,omitempty"`
}
