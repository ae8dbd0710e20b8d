package grounding

import (
	"bytes"
	"log/slog"
	"testing"

	"google.golang.org/genai"

	"github.com/knowsee/knowsee/internal/sidechannel"
)

func TestConvertExtractsWebSources(t *testing.T) {
	meta := &genai.GroundingMetadata{
		WebSearchQueries: []string{"go generics"},
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{Title: "Go Blog", URI: "https://go.dev/blog", Domain: "go.dev"}},
			{}, // non-web chunk
		},
		GroundingSupports: []*genai.GroundingSupport{
			{
				Segment:               &genai.Segment{Text: "type parameters", StartIndex: 5, EndIndex: 20},
				GroundingChunkIndices: []int32{0},
			},
			{}, // support without segment
		},
	}

	got := Convert(meta)
	if got == nil {
		t.Fatal("Convert returned nil")
	}
	if len(got.Sources) != 1 || got.Sources[0].Domain != "go.dev" {
		t.Errorf("sources = %+v", got.Sources)
	}
	if len(got.Queries) != 1 || got.Queries[0] != "go generics" {
		t.Errorf("queries = %+v", got.Queries)
	}
	if len(got.Supports) != 1 {
		t.Fatalf("supports = %+v", got.Supports)
	}
	sup := got.Supports[0]
	if sup.Text != "type parameters" || sup.StartIndex != 5 || sup.EndIndex != 20 {
		t.Errorf("support = %+v", sup)
	}
	if len(sup.SourceIndices) != 1 || sup.SourceIndices[0] != 0 {
		t.Errorf("source indices = %v", sup.SourceIndices)
	}
}

func TestConvertSkipsWhenNoWebChunks(t *testing.T) {
	if got := Convert(nil); got != nil {
		t.Errorf("Convert(nil) = %+v, want nil", got)
	}
	if got := Convert(&genai.GroundingMetadata{WebSearchQueries: []string{"q"}}); got != nil {
		t.Errorf("Convert without chunks = %+v, want nil", got)
	}
	// Chunks present but none web-backed.
	noWeb := &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{{}}}
	if got := Convert(noWeb); got != nil {
		t.Errorf("Convert without web chunks = %+v, want nil", got)
	}
}

func TestCaptureStagesOnBuffer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	buf := sidechannel.NewBuffer()

	meta := &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{Title: "T", URI: "https://example.com", Domain: "example.com"}},
		},
	}
	if !Capture(logger, buf, meta) {
		t.Fatal("Capture returned false for grounded call")
	}
	merged := buf.Sources()
	if merged == nil || len(merged.Sources) != 1 {
		t.Errorf("buffered sources = %+v", merged)
	}

	if Capture(logger, buf, nil) {
		t.Error("Capture returned true for ungrounded call")
	}
}
