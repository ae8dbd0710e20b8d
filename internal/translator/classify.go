package translator

import (
	"github.com/knowsee/knowsee/internal/semtag"
	"github.com/knowsee/knowsee/pkg/models"
)

// RenderFragment maps a fragment to its renderable text: answer text
// verbatim, thought text wrapped in thought tags, tool calls and
// results as inline tags. Pure and side-effect free; classifying the
// same fragment twice yields byte-identical output.
//
// Thought wrapping happens here, before accumulation, because thought
// and answer text are only distinguishable at the fragment level.
func RenderFragment(frag models.TurnFragment) string {
	var out string

	if frag.Text != "" {
		if frag.Thought {
			out += semtag.WrapThought(frag.Text)
		} else {
			out += frag.Text
		}
	}

	if frag.ToolCall != nil {
		out += semtag.WrapToolCall(frag.ToolCall)
	}

	if frag.ToolResult != nil {
		out += semtag.WrapToolResult(frag.ToolResult)
	}

	return out
}
