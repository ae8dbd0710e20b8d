// Package semtag defines the semantic tag schema for embedding
// structured content in linear text streams.
//
// Tags let the frontend render structured metadata (thoughts, tool
// calls, citations, query history, widgets) distinctly while the
// transport remains a single text stream. All tags are self-contained
// open/close pairs; tags never nest or overlap.
//
// Naming convention: a three-part namespace makes collision with model
// output virtually impossible. 'soch' means 'thought' in Hindi.
package semtag

import (
	"encoding/json"
	"fmt"

	"github.com/knowsee/knowsee/pkg/models"
)

// Tag delimiters. These are a frontend compatibility contract and must
// be reproduced byte-for-byte.
const (
	ThoughtOpen  = "<llm:adk:soch>"
	ThoughtClose = "</llm:adk:soch>"

	toolOpenFormat = `<llm:adk:tool name=%q id=%q>`
	ToolClose      = "</llm:adk:tool>"

	toolResultOpenFormat = `<llm:adk:tool-result id=%q>`
	ToolResultClose      = "</llm:adk:tool-result>"

	SourcesOpen  = "<llm:adk:sources>"
	SourcesClose = "</llm:adk:sources>"

	QueriesOpen  = "<llm:data:queries>"
	QueriesClose = "</llm:data:queries>"

	WidgetOpen  = "<llm:data:widget>"
	WidgetClose = "</llm:data:widget>"
)

// WrapThought wraps reasoning text so it survives concatenation with
// answer text. Thought and answer content are only distinguishable at
// the fragment level, so wrapping must happen before accumulation.
func WrapThought(text string) string {
	return ThoughtOpen + text + ThoughtClose
}

// WrapToolCall serializes a tool invocation as an inline tag. If the
// argument object cannot be encoded, an empty object is substituted
// rather than failing the turn.
func WrapToolCall(call *models.ToolCall) string {
	args := "{}"
	if len(call.Args) > 0 {
		if encoded, err := json.Marshal(call.Args); err == nil {
			args = string(encoded)
		}
	}
	return fmt.Sprintf(toolOpenFormat, call.Name, call.ID) + args + ToolClose
}

// WrapToolResult serializes a tool response as an inline tag keyed by
// the originating call ID. Results without a known call ID are still
// emitted standalone.
func WrapToolResult(result *models.ToolResult) string {
	payload := "{}"
	if len(result.Response) > 0 {
		if encoded, err := json.Marshal(result.Response); err == nil {
			payload = string(encoded)
		}
	}
	return fmt.Sprintf(toolResultOpenFormat, result.ID) + payload + ToolResultClose
}

// WrapSources serializes grounding metadata into a sources tag.
func WrapSources(meta *models.GroundingMetadata) (string, error) {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode sources payload: %w", err)
	}
	return SourcesOpen + string(encoded) + SourcesClose, nil
}

// WrapQueryAttempts serializes the query attempt history into a single
// queries tag.
func WrapQueryAttempts(attempts []models.QueryAttempt) (string, error) {
	encoded, err := json.Marshal(struct {
		Attempts []models.QueryAttempt `json:"attempts"`
	}{Attempts: attempts})
	if err != nil {
		return "", fmt.Errorf("encode query attempts payload: %w", err)
	}
	return QueriesOpen + string(encoded) + QueriesClose, nil
}

// WrapWidget serializes one widget into a widget tag. Multiple widget
// tags are concatenated with newline separators by the embedder.
func WrapWidget(w models.Widget) (string, error) {
	encoded, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode widget payload: %w", err)
	}
	return WidgetOpen + string(encoded) + WidgetClose, nil
}
