// Package grounding captures citation metadata from grounded model
// calls and stages it on the session side channel for embedding.
package grounding

import (
	"log/slog"

	"google.golang.org/genai"

	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/pkg/models"
)

// Convert extracts the fields the frontend renders from the SDK's
// grounding payload: search queries, web sources, and the text segment
// to source mappings. Returns nil when the payload carries no web
// sources, so ungrounded calls stay untouched.
func Convert(meta *genai.GroundingMetadata) *models.GroundingMetadata {
	if meta == nil || len(meta.GroundingChunks) == 0 {
		return nil
	}

	out := &models.GroundingMetadata{
		Queries:  append([]string{}, meta.WebSearchQueries...),
		Sources:  []models.GroundingSource{},
		Supports: []models.GroundingSupport{},
	}

	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		out.Sources = append(out.Sources, models.GroundingSource{
			Title:  chunk.Web.Title,
			URI:    chunk.Web.URI,
			Domain: chunk.Web.Domain,
		})
	}
	if len(out.Sources) == 0 {
		return nil
	}

	for _, support := range meta.GroundingSupports {
		if support == nil || support.Segment == nil {
			continue
		}
		indices := make([]int, 0, len(support.GroundingChunkIndices))
		for _, idx := range support.GroundingChunkIndices {
			indices = append(indices, int(idx))
		}
		out.Supports = append(out.Supports, models.GroundingSupport{
			Text:          support.Segment.Text,
			StartIndex:    int(support.Segment.StartIndex),
			EndIndex:      int(support.Segment.EndIndex),
			SourceIndices: indices,
		})
	}

	return out
}

// Capture stages grounding metadata from a model call on the session
// buffer. A later embed pass turns it into a sources tag on the
// response. No-op when the call was not grounded.
func Capture(logger *slog.Logger, buf *sidechannel.Buffer, meta *genai.GroundingMetadata) bool {
	if logger == nil {
		logger = slog.Default()
	}

	converted := Convert(meta)
	if converted == nil {
		return false
	}

	buf.AddSources(*converted)
	logger.Info("captured grounding metadata",
		"sources", len(converted.Sources),
		"queries", len(converted.Queries),
	)
	return true
}
