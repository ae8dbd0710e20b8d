package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/knowsee/knowsee/internal/grounding"
	"github.com/knowsee/knowsee/pkg/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// maxToolTurns bounds the call-execute-respond loop within one run.
const maxToolTurns = 8

// GeminiRunner executes turns against the Gemini streaming API and
// converts its responses into turn fragments.
type GeminiRunner struct {
	client *genai.Client
	model  string
	tools  ToolSet
	logger *slog.Logger
}

// GeminiOption configures a GeminiRunner.
type GeminiOption func(*GeminiRunner)

// WithToolSet advertises the tool set's functions to the model and
// dispatches its function calls during runs.
func WithToolSet(tools ToolSet) GeminiOption {
	return func(r *GeminiRunner) { r.tools = tools }
}

// NewGeminiRunner creates a runner for the given model.
func NewGeminiRunner(client *genai.Client, model string, logger *slog.Logger, opts ...GeminiOption) *GeminiRunner {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &GeminiRunner{
		client: client,
		model:  model,
		logger: logger.With("component", "gemini"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run streams one turn. Each chunk is emitted as partial fragments;
// function calls are dispatched to the tool set and their results fed
// back to the model until it answers in text. After the last stream
// closes, a consolidated final fragment carries the full answer text
// and the finish reason.
func (r *GeminiRunner) Run(ctx context.Context, req RunRequest, emit func(models.TurnFragment)) (*models.ModelResponse, error) {
	config := &genai.GenerateContentConfig{}
	if len(req.Corpora) > 0 {
		config.SystemInstruction = genai.NewContentFromText(
			"Retrieval corpora available to this user: "+strings.Join(req.Corpora, ", "),
			genai.RoleUser)
	}
	if r.tools != nil {
		config.Tools = []*genai.Tool{{FunctionDeclarations: r.tools.Declarations()}}
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Message, genai.RoleUser)}
	final := &models.ModelResponse{}
	finishReason := ""

	for turn := 0; turn < maxToolTurns; turn++ {
		var calls []*genai.FunctionCall
		var modelParts []*genai.Part

		for resp, err := range r.client.Models.GenerateContentStream(ctx, r.model, contents, config) {
			if err != nil {
				return nil, fmt.Errorf("gemini stream: %w", err)
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			candidate := resp.Candidates[0]
			if candidate == nil {
				continue
			}
			if candidate.FinishReason != "" {
				finishReason = string(candidate.FinishReason)
			}
			if meta := grounding.Convert(candidate.GroundingMetadata); meta != nil {
				final.Grounding = meta
			}
			if candidate.Content == nil {
				continue
			}
			// Assign call IDs before fragment conversion so the
			// streamed call tag and the result tag agree.
			for _, part := range candidate.Content.Parts {
				if part == nil || part.FunctionCall == nil {
					continue
				}
				if part.FunctionCall.ID == "" {
					part.FunctionCall.ID = uuid.NewString()
				}
				calls = append(calls, part.FunctionCall)
			}
			modelParts = append(modelParts, candidate.Content.Parts...)
			for _, frag := range fragmentsFromParts(candidate.Content.Parts) {
				accumulate(final, frag)
				emit(frag)
			}
		}

		if len(calls) == 0 || r.tools == nil {
			break
		}

		contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: modelParts})
		responses := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			r.logger.Info("dispatching tool call", "tool", call.Name, "call_id", call.ID)
			result := r.tools.Call(ctx, req.SessionID, call.Name, call.Args)

			frag := models.TurnFragment{
				Partial:    true,
				ToolResult: &models.ToolResult{ID: call.ID, Response: result},
			}
			accumulate(final, frag)
			emit(frag)

			responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: result,
			}})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	emit(models.TurnFragment{
		Text:          final.LastText(),
		FinalResponse: true,
		TurnComplete:  true,
		FinishReason:  finishReason,
	})
	return final, nil
}

// fragmentsFromParts maps Gemini content parts to turn fragments.
func fragmentsFromParts(parts []*genai.Part) []models.TurnFragment {
	var frags []models.TurnFragment
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			frags = append(frags, models.TurnFragment{
				Text:    part.Text,
				Thought: part.Thought,
				Partial: true,
			})
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			frags = append(frags, models.TurnFragment{
				Partial: true,
				ToolCall: &models.ToolCall{
					Name: part.FunctionCall.Name,
					ID:   id,
					Args: part.FunctionCall.Args,
				},
			})
		}
		if part.FunctionResponse != nil {
			frags = append(frags, models.TurnFragment{
				Partial: true,
				ToolResult: &models.ToolResult{
					ID:       part.FunctionResponse.ID,
					Response: part.FunctionResponse.Response,
				},
			})
		}
	}
	return frags
}

// accumulate folds a streamed fragment into the consolidated response.
// Consecutive text of the same kind merges into one part.
func accumulate(resp *models.ModelResponse, frag models.TurnFragment) {
	switch {
	case frag.Text != "":
		if n := len(resp.Parts); n > 0 {
			last := &resp.Parts[n-1]
			if last.Text != "" && last.Thought == frag.Thought && last.ToolCall == nil && last.ToolResult == nil {
				last.Text += frag.Text
				return
			}
		}
		resp.Parts = append(resp.Parts, models.ResponsePart{Text: frag.Text, Thought: frag.Thought})
	case frag.ToolCall != nil:
		resp.Parts = append(resp.Parts, models.ResponsePart{ToolCall: frag.ToolCall})
	case frag.ToolResult != nil:
		resp.Parts = append(resp.Parts, models.ResponsePart{ToolResult: frag.ToolResult})
	}
}
