package runtime

import (
	"testing"

	"google.golang.org/genai"

	"github.com/knowsee/knowsee/pkg/models"
)

func TestFragmentsFromParts(t *testing.T) {
	parts := []*genai.Part{
		{Text: "thinking about it", Thought: true},
		{Text: "The answer"},
		{FunctionCall: &genai.FunctionCall{
			ID:   "call-1",
			Name: "query_data",
			Args: map[string]any{"query": "SELECT 1"},
		}},
		{FunctionResponse: &genai.FunctionResponse{
			ID:       "call-1",
			Name:     "query_data",
			Response: map[string]any{"success": true},
		}},
		nil,
	}

	frags := fragmentsFromParts(parts)
	if len(frags) != 4 {
		t.Fatalf("len(frags) = %d, want 4", len(frags))
	}
	if !frags[0].Thought || frags[0].Text != "thinking about it" {
		t.Errorf("thought fragment = %+v", frags[0])
	}
	if frags[1].Thought || frags[1].Text != "The answer" {
		t.Errorf("text fragment = %+v", frags[1])
	}
	if frags[2].ToolCall == nil || frags[2].ToolCall.Name != "query_data" || frags[2].ToolCall.ID != "call-1" {
		t.Errorf("tool call fragment = %+v", frags[2])
	}
	if frags[3].ToolResult == nil || frags[3].ToolResult.ID != "call-1" {
		t.Errorf("tool result fragment = %+v", frags[3])
	}
	for i, frag := range frags {
		if !frag.Partial {
			t.Errorf("fragment %d not marked partial", i)
		}
	}
}

func TestFragmentsFromPartsGeneratesCallID(t *testing.T) {
	frags := fragmentsFromParts([]*genai.Part{
		{FunctionCall: &genai.FunctionCall{Name: "list_datasets"}},
	})
	if len(frags) != 1 || frags[0].ToolCall == nil {
		t.Fatalf("frags = %+v", frags)
	}
	if frags[0].ToolCall.ID == "" {
		t.Error("tool call ID not generated")
	}
}

func TestAccumulateMergesTextRuns(t *testing.T) {
	resp := &models.ModelResponse{}
	accumulate(resp, models.TurnFragment{Text: "consider", Thought: true})
	accumulate(resp, models.TurnFragment{Text: "ing", Thought: true})
	accumulate(resp, models.TurnFragment{Text: "The "})
	accumulate(resp, models.TurnFragment{Text: "answer"})
	accumulate(resp, models.TurnFragment{ToolCall: &models.ToolCall{Name: "t", ID: "1"}})
	accumulate(resp, models.TurnFragment{Text: "after call"})

	if len(resp.Parts) != 4 {
		t.Fatalf("len(Parts) = %d, want 4: %+v", len(resp.Parts), resp.Parts)
	}
	if resp.Parts[0].Text != "considering" || !resp.Parts[0].Thought {
		t.Errorf("part 0 = %+v", resp.Parts[0])
	}
	if resp.Parts[1].Text != "The answer" || resp.Parts[1].Thought {
		t.Errorf("part 1 = %+v", resp.Parts[1])
	}
	if resp.Parts[2].ToolCall == nil {
		t.Errorf("part 2 = %+v", resp.Parts[2])
	}
	if resp.Parts[3].Text != "after call" {
		t.Errorf("part 3 = %+v", resp.Parts[3])
	}
	if got := resp.LastText(); got != "The answerafter call" {
		t.Errorf("LastText() = %q", got)
	}
}
