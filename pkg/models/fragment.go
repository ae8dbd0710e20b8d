// Package models provides domain types for the Knowsee agent gateway.
package models

// ToolCall is a tool invocation emitted by the model.
type ToolCall struct {
	// Name is the tool/function name.
	Name string `json:"name"`

	// ID correlates the call with its eventual result.
	ID string `json:"id"`

	// Args holds the decoded argument object. May be nil.
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the response to an earlier tool invocation.
type ToolResult struct {
	// ID matches the originating ToolCall.ID. May be empty if the
	// runtime did not assign one; the result is still renderable.
	ID string `json:"id"`

	// Response holds the decoded result object. May be nil.
	Response map[string]any `json:"response,omitempty"`
}

// TurnFragment is one unit of output from the agent runtime within a run.
// Fragments are immutable once emitted and are consumed exactly once by
// the translator.
//
// The runtime may deliver the same content twice: once as incremental
// partial fragments and once as a consolidated final fragment after
// streaming completes. The translator is responsible for reconciling
// the two deliveries.
type TurnFragment struct {
	// Thought marks model-internal reasoning content, as opposed to
	// answer text. Only meaningful when Text is non-empty.
	Thought bool `json:"thought,omitempty"`

	// Text is the fragment's textual content, if any.
	Text string `json:"text,omitempty"`

	// ToolCall is set when the fragment carries a tool invocation.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// ToolResult is set when the fragment carries a tool response.
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// Partial marks an incomplete, still-streaming chunk.
	Partial bool `json:"partial,omitempty"`

	// FinalResponse marks the consolidated, complete version of the
	// run's output. An empty final response is a valid stream-closing
	// signal carrying no new content.
	FinalResponse bool `json:"final_response,omitempty"`

	// TurnComplete is set when the runtime considers the turn finished.
	TurnComplete bool `json:"turn_complete,omitempty"`

	// FinishReason is the model's stop reason, empty if none was
	// reported yet.
	FinishReason string `json:"finish_reason,omitempty"`
}

// HasFinishReason reports whether the runtime attached a stop reason.
func (f TurnFragment) HasFinishReason() bool {
	return f.FinishReason != ""
}
