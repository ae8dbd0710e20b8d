package semtag

import (
	"log/slog"

	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/pkg/models"
)

// Embedder drains populated side channels into semantic tags appended
// to a complete model response.
//
// Appends are pure suffix appends, separated by a newline, to the last
// non-thought text part; existing text is never modified or truncated.
// A channel's buffer is cleared only after its tag was successfully
// appended, so a failed serialization leaves the data intact for retry
// on the next response. Embedding never aborts turn delivery: every
// failure degrades to "skip this enhancement".
type Embedder struct {
	logger *slog.Logger
}

// NewEmbedder creates an embedder. If logger is nil, slog.Default() is used.
func NewEmbedder(logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{logger: logger.With("component", "semtag")}
}

// Embed appends tags for every non-empty side channel to resp, in
// fixed order: sources, then query history, then widgets. Thought and
// tool tags are not handled here; they are inlined at classification
// time. Returns true if the response was modified, so callers can skip
// redundant writes when every channel was empty.
func (e *Embedder) Embed(resp *models.ModelResponse, buf *sidechannel.Buffer) bool {
	if resp == nil || buf == nil {
		return false
	}

	changed := false

	if sources := buf.Sources(); sources != nil {
		tag, err := WrapSources(sources)
		if err != nil {
			e.logger.Warn("failed to serialize grounding sources", "error", err)
		} else if AppendTag(resp, tag) {
			buf.ClearSources()
			changed = true
			e.logger.Info("embedded grounding sources in response",
				"sources", len(sources.Sources))
		}
	}

	if attempts := buf.QueryAttempts(); len(attempts) > 0 {
		tag, err := WrapQueryAttempts(attempts)
		if err != nil {
			e.logger.Warn("failed to serialize query attempts", "error", err)
		} else if AppendTag(resp, tag) {
			buf.ClearQueryAttempts()
			changed = true
			succeeded := 0
			for _, a := range attempts {
				if a.Success {
					succeeded++
				}
			}
			e.logger.Info("embedded query attempts in response",
				"attempts", len(attempts), "succeeded", succeeded)
		}
	}

	if widgets := buf.Widgets(); len(widgets) > 0 {
		combined := ""
		ok := true
		for _, w := range widgets {
			tag, err := WrapWidget(w)
			if err != nil {
				e.logger.Warn("failed to serialize widget", "widget_id", w.ID, "error", err)
				ok = false
				break
			}
			if combined != "" {
				combined += "\n"
			}
			combined += tag
		}
		if ok && combined != "" && AppendTag(resp, combined) {
			buf.ClearWidgets()
			changed = true
			e.logger.Info("embedded widgets in response", "widgets", len(widgets))
		}
	}

	return changed
}

// AppendTag appends a tag to the last non-thought text part of resp,
// separated by a newline. If no eligible part exists, a new text part
// containing only the tag is added. Returns false only when resp is nil.
func AppendTag(resp *models.ModelResponse, tag string) bool {
	if resp == nil {
		return false
	}

	for i := len(resp.Parts) - 1; i >= 0; i-- {
		part := &resp.Parts[i]
		if part.Text != "" && !part.Thought {
			part.Text = part.Text + "\n" + tag
			return true
		}
	}

	resp.Parts = append(resp.Parts, models.ResponsePart{Text: tag})
	return true
}
