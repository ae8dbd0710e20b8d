package models

// ResponsePart is one segment of a complete model response.
type ResponsePart struct {
	// Text is the segment's textual content, if any.
	Text string `json:"text,omitempty"`

	// Thought marks reasoning segments. Thought segments are never
	// eligible targets for tag appends.
	Thought bool `json:"thought,omitempty"`

	// ToolCall is set for function-call segments.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// ToolResult is set for function-response segments.
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ModelResponse is the complete response object for one model turn, as
// produced by the agent runtime. After-model hooks may append semantic
// tags to its parts before the response is delivered downstream.
type ModelResponse struct {
	// Parts are the ordered segments of the response.
	Parts []ResponsePart `json:"parts"`

	// Grounding carries citation metadata attached by a grounded
	// retrieval call, if any.
	Grounding *GroundingMetadata `json:"grounding,omitempty"`
}

// LastText returns the concatenation of all non-thought text parts.
func (r *ModelResponse) LastText() string {
	var out string
	for _, p := range r.Parts {
		if p.Text != "" && !p.Thought {
			out += p.Text
		}
	}
	return out
}
