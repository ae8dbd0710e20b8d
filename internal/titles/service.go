// Package titles generates short descriptive titles for conversations
// using a lightweight model, with a blocklist and fallback chain that
// keeps generic non-titles out of the sidebar.
package titles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"google.golang.org/genai"

	"github.com/knowsee/knowsee/pkg/models"
)

const (
	// DefaultModel is the cheap model used for title generation.
	DefaultModel = "gemini-2.0-flash-lite"

	// MessageThreshold is how many messages a conversation needs
	// before a title is generated.
	MessageThreshold = 3

	// DefaultTitle is shown for sessions that have no title yet.
	DefaultTitle = "New conversation"

	maxAttempts    = 2
	maxTitleLen    = 50
	maxMessageChrs = 300
	fallbackWords  = 5
)

const promptTemplate = `Generate a specific, descriptive title (2-3 words) for this conversation.

RULES:
- Title Case formatting
- Plain text only (NO markdown, NO asterisks, NO quotes)
- Must be SPECIFIC to this conversation's actual topic
- Must be a substantive topic
- Ignore greetings from your considerations
- NEVER use generic titles like "AI Assistance", "Help Request", "Chat Session", "General Query"
- Focus on the concrete subject matter, not that it's a conversation

EXAMPLES of good titles:
- "Python Import Errors" (for debugging import issues)
- "React Authentication Flow" (for auth implementation discussion)
- "Database Schema Design" (for DB modelling questions)
- "Kubernetes Pod Networking" (for K8s networking help)
- "Sales Report Analysis" (for data analysis requests)

Conversation:
%s

Specific title for this conversation:`

// Generator produces text from a prompt. Satisfied by the genai-backed
// implementation below; tests substitute a stub.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// GenaiGenerator adapts a genai client to the Generator interface.
type GenaiGenerator struct {
	client *genai.Client
}

// NewGenaiGenerator wraps a genai client.
func NewGenaiGenerator(client *genai.Client) *GenaiGenerator {
	return &GenaiGenerator{client: client}
}

// GenerateText implements Generator.
func (g *GenaiGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Service generates conversation titles.
type Service struct {
	gen    Generator
	model  string
	logger *slog.Logger
}

// NewService creates a title service. If model is empty, DefaultModel
// is used; if logger is nil, slog.Default() is used.
func NewService(gen Generator, model string, logger *slog.Logger) *Service {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gen:    gen,
		model:  model,
		logger: logger.With("component", "titles"),
	}
}

// ShouldGenerate reports whether a session is due for a title: it has
// none yet and the conversation has enough substance to name.
func ShouldGenerate(currentTitle string, messageCount int) bool {
	if currentTitle != "" && currentTitle != DefaultTitle {
		return false
	}
	return messageCount >= MessageThreshold
}

// Generate produces a title for the conversation. Generic results are
// retried once; if the model keeps producing generic titles, the
// user's first message supplies a keyword fallback.
func (s *Service) Generate(ctx context.Context, msgs []models.Message) (string, error) {
	conversation := buildConversation(msgs)
	if conversation == "" {
		return "", fmt.Errorf("no text content to summarize")
	}

	prompt := fmt.Sprintf(promptTemplate, conversation)

	var title string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := s.gen.GenerateText(ctx, s.model, prompt)
		if err != nil {
			return "", fmt.Errorf("title generation: %w", err)
		}

		title = cleanTitle(raw)
		if !IsGeneric(title) {
			return title, nil
		}
		s.logger.Warn("generic title detected, retrying", "title", title, "attempt", attempt)
	}

	if fallback := fallbackFromFirstUserMessage(msgs); fallback != "" {
		s.logger.Info("using fallback title from user message", "title", fallback)
		return fallback, nil
	}

	// Last resort: keep the generic title rather than none at all.
	return title, nil
}

// buildConversation flattens messages into "role: text" lines, each
// capped so long pastes do not blow the prompt.
func buildConversation(msgs []models.Message) string {
	var lines []string
	for _, msg := range msgs {
		text := msg.Content
		if text == "" {
			continue
		}
		if len(text) > maxMessageChrs {
			text = text[:maxMessageChrs]
		}
		lines = append(lines, msg.Role+": "+text)
	}
	return strings.Join(lines, "\n")
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'*_`#")
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	return title
}

func fallbackFromFirstUserMessage(msgs []models.Message) string {
	for _, msg := range msgs {
		if msg.Role != "user" || msg.Content == "" {
			continue
		}
		words := strings.Fields(msg.Content)
		if len(words) > fallbackWords {
			words = words[:fallbackWords]
		}
		fallback := titleCase(strings.Join(words, " "))
		if len(fallback) > maxTitleLen {
			fallback = fallback[:maxTitleLen]
		}
		if len(fallback) > 3 {
			return fallback
		}
		return ""
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
