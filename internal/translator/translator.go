// Package translator converts raw agent-runtime fragments into ordered
// message-framing events for the transport layer.
//
// The runtime delivers content for a run twice: incrementally as
// partial fragments while the model streams, then once more as a
// consolidated final fragment. The translator reconciles the two
// deliveries so downstream consumers see each piece of content exactly
// once, framed by a single start/content*/end sequence per message.
package translator

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/knowsee/knowsee/internal/semtag"
	"github.com/knowsee/knowsee/pkg/models"
)

// EventTranslator converts turn fragments into stream events. It is
// injected into the runtime by composition; implementations own all
// per-run streaming state.
type EventTranslator interface {
	// TranslateFragment processes one fragment in delivery order and
	// returns the framing events it produced, possibly none.
	TranslateFragment(runID string, frag models.TurnFragment) []models.StreamEvent

	// Flush closes any dangling open message, returning the end event
	// if one was emitted. Used on run abort so accumulated partial
	// text is still terminated rather than left open.
	Flush() []models.StreamEvent
}

// StreamTranslator is the default EventTranslator. One instance serves
// one conversation; fragments for a given run must be delivered
// sequentially, but distinct conversations get distinct translators so
// runs never share state.
type StreamTranslator struct {
	logger *slog.Logger
	newID  func() string

	// Active message state. messageID is non-empty iff streaming.
	streaming   bool
	messageID   string
	accumulated string

	// Dedup markers for the consolidated final fragment that follows a
	// fully streamed message.
	lastFinalText  string
	lastFinalRunID string
}

// NewStreamTranslator creates a translator. If logger is nil,
// slog.Default() is used.
func NewStreamTranslator(logger *slog.Logger) *StreamTranslator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamTranslator{
		logger: logger.With("component", "translator"),
		newID:  uuid.NewString,
	}
}

// Streaming reports whether a message is currently open.
func (t *StreamTranslator) Streaming() bool {
	return t.streaming
}

// TranslateFragment implements EventTranslator.
func (t *StreamTranslator) TranslateFragment(runID string, frag models.TurnFragment) []models.StreamEvent {
	rendered := RenderFragment(frag)

	// No text and not a final response: nothing to do. An empty final
	// response is a valid stream-closing signal and falls through.
	if rendered == "" && !frag.FinalResponse {
		return nil
	}

	if frag.FinalResponse {
		if t.streaming && t.messageID != "" {
			return t.closeOnFinal(runID, rendered)
		}

		// The stream for this run already closed. If the content was
		// fully delivered via partials, this final is a repeat.
		if t.lastFinalRunID == runID && t.lastFinalText != "" {
			t.warnOnLengthMismatch(len(t.lastFinalText), len(rendered))
			t.logger.Debug("skipping final response (content already streamed)", "run_id", runID)
			t.accumulated = ""
			t.clearDedupMarkers()
			return nil
		}

		if rendered == "" {
			// Valid empty turn: nothing streamed, nothing to emit.
			t.logger.Info("final response contained no text; nothing to emit", "run_id", runID)
			t.accumulated = ""
			t.clearDedupMarkers()
			return nil
		}

		// A final with fresh content and no prior streaming opens and
		// closes a message below.
	}

	if rendered == "" {
		return nil
	}

	shouldEnd := (frag.TurnComplete && !frag.Partial) ||
		(frag.FinalResponse && !frag.Partial) ||
		(frag.HasFinishReason() && t.streaming)

	wasStreaming := t.streaming
	var events []models.StreamEvent

	if !t.streaming {
		t.messageID = t.newID()
		t.streaming = true
		t.accumulated = ""
		events = append(events, models.StreamEvent{
			Type:      models.StreamMessageStart,
			MessageID: t.messageID,
			Role:      "assistant",
		})
	}

	if wasStreaming && !frag.Partial && t.isStreamedDuplicate(rendered) {
		t.logger.Info("skipping consolidated text (already delivered via partials)", "run_id", runID)
	} else {
		t.accumulated += rendered
		events = append(events, models.StreamEvent{
			Type:      models.StreamMessageContent,
			MessageID: t.messageID,
			Delta:     rendered,
		})
	}

	if shouldEnd {
		events = append(events, t.endMessage(runID))
	}

	return events
}

// closeOnFinal handles a final-response fragment arriving while a
// message is still open. Content the final carries that was never
// streamed is delivered first; content already delivered via partials
// is skipped to prevent doubling. Either way the message ends here.
func (t *StreamTranslator) closeOnFinal(runID, rendered string) []models.StreamEvent {
	var events []models.StreamEvent

	if rendered != "" {
		if t.isStreamedDuplicate(rendered) {
			t.logger.Info("final response repeats streamed content; closing stream", "run_id", runID)
		} else {
			t.accumulated += rendered
			events = append(events, models.StreamEvent{
				Type:      models.StreamMessageContent,
				MessageID: t.messageID,
				Delta:     rendered,
			})
		}
	} else {
		t.logger.Info("final response event received; closing active stream", "run_id", runID)
	}

	events = append(events, t.endMessage(runID))
	return events
}

// endMessage emits the end marker for the active message and resets
// streaming state, recording the dedup markers for a later
// consolidated repeat.
func (t *StreamTranslator) endMessage(runID string) models.StreamEvent {
	end := models.StreamEvent{
		Type:      models.StreamMessageEnd,
		MessageID: t.messageID,
	}
	if t.accumulated != "" {
		t.lastFinalText = t.accumulated
		t.lastFinalRunID = runID
	}
	t.accumulated = ""
	t.messageID = ""
	t.streaming = false
	return end
}

// Flush implements EventTranslator.
func (t *StreamTranslator) Flush() []models.StreamEvent {
	if !t.streaming || t.messageID == "" {
		return nil
	}
	t.logger.Warn("flushing dangling message on abort", "message_id", t.messageID)
	end := models.StreamEvent{
		Type:      models.StreamMessageEnd,
		MessageID: t.messageID,
	}
	t.accumulated = ""
	t.messageID = ""
	t.streaming = false
	t.clearDedupMarkers()
	return []models.StreamEvent{end}
}

func (t *StreamTranslator) clearDedupMarkers() {
	t.lastFinalText = ""
	t.lastFinalRunID = ""
}

// warnOnLengthMismatch surfaces a consistency warning when the final
// fragment's length differs from the streamed length by more than
// max(100, 10% of streamed). Non-fatal: the streamed content is always
// trusted and the final remains discarded.
func (t *StreamTranslator) warnOnLengthMismatch(streamedLen, finalLen int) {
	diff := streamedLen - finalLen
	if diff < 0 {
		diff = -diff
	}
	threshold := streamedLen / 10
	if threshold < 100 {
		threshold = 100
	}
	if diff > threshold {
		t.logger.Warn("final response length differs significantly from streamed content",
			"final_len", finalLen,
			"streamed_len", streamedLen,
		)
	}
}

// isStreamedDuplicate reports whether text repeats content already in
// the accumulated buffer. Comparison strips thought tags first: a
// consolidated final wraps thoughts once while streaming wrapped them
// per chunk, so raw string equality would miss real duplicates.
func (t *StreamTranslator) isStreamedDuplicate(text string) bool {
	normalized := stripThoughtTags(text)
	if normalized == "" {
		return false
	}
	return strings.HasSuffix(stripThoughtTags(t.accumulated), normalized)
}

func stripThoughtTags(s string) string {
	s = strings.ReplaceAll(s, semtag.ThoughtOpen, "")
	return strings.ReplaceAll(s, semtag.ThoughtClose, "")
}
