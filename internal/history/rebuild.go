// Package history reconstructs frontend chat transcripts from the
// persisted event log.
//
// The raw log is noisier than a chat transcript: a single turn spans
// several events, tool results arrive as separate user-role events, and
// thoughts are interleaved with answer text. Rebuild collapses all of
// that into one user and one assistant message per invocation, with
// structured content rendered as semantic tags so the stored transcript
// matches what was streamed live.
package history

import (
	"github.com/knowsee/knowsee/internal/semtag"
	"github.com/knowsee/knowsee/pkg/models"
)

type messagePair struct {
	user      *models.Message
	assistant *models.Message
}

// Rebuild converts an ordered event log into display messages. Tool
// results are merged inline after their originating call, matched by
// call ID. Grouping uses the event author rather than the content
// role: tool result events carry role "user" but are authored by the
// agent, and must land in the assistant message.
func Rebuild(events []*models.Event) []models.Message {
	// First pass: index tool results by call ID so they can be
	// rendered next to their calls.
	results := make(map[string]*models.ToolResult)
	for _, event := range events {
		for i := range event.Parts {
			if r := event.Parts[i].ToolResult; r != nil && r.ID != "" {
				results[r.ID] = r
			}
		}
	}

	groups := make(map[string]*messagePair)
	var order []string

	for _, event := range events {
		if len(event.Parts) == 0 {
			continue
		}

		invID := event.InvocationID
		if invID == "" {
			invID = "unknown"
		}
		pair, ok := groups[invID]
		if !ok {
			pair = &messagePair{}
			groups[invID] = pair
			order = append(order, invID)
		}

		content := renderParts(event.Parts, results)
		if content == "" {
			continue
		}

		slot := &pair.assistant
		role := "model"
		if event.UserAuthored() {
			slot = &pair.user
			role = "user"
		}

		if *slot == nil {
			*slot = &models.Message{
				Role:         role,
				Content:      content,
				Timestamp:    event.Timestamp,
				InvocationID: invID,
			}
		} else {
			(*slot).Content += content
			(*slot).Timestamp = event.Timestamp
		}
	}

	var out []models.Message
	for _, invID := range order {
		pair := groups[invID]
		if pair.user != nil {
			out = append(out, *pair.user)
		}
		if pair.assistant != nil {
			out = append(out, *pair.assistant)
		}
	}
	return out
}

// renderParts flattens event parts to tagged text. Standalone tool
// results are skipped; they render inline after their call instead.
func renderParts(parts []models.ResponsePart, results map[string]*models.ToolResult) string {
	var text string
	for i := range parts {
		part := &parts[i]

		if part.Text != "" {
			if part.Thought {
				text += semtag.WrapThought(part.Text)
			} else {
				text += part.Text
			}
		}

		if call := part.ToolCall; call != nil {
			text += semtag.WrapToolCall(call)
			if result, ok := results[call.ID]; ok && call.ID != "" {
				text += semtag.WrapToolResult(result)
			}
		}
	}
	return text
}
