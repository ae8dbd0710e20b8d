// Package runtime drives agent runs: it feeds runner output through
// the stream translator, fans framing events out on the bus, persists
// conversation events, and applies the before-run and after-response
// hooks around each turn.
package runtime

import (
	"context"

	"github.com/knowsee/knowsee/pkg/models"
)

// RunRequest describes one model turn.
type RunRequest struct {
	AppName      string
	UserID       string
	SessionID    string
	InvocationID string

	// Message is the user's input for this turn.
	Message string

	// Corpora names the retrieval corpora the user may ground against,
	// resolved from team membership before the run.
	Corpora []string
}

// Runner executes one model turn. Implementations emit fragments as
// they arrive, including the consolidated final fragment, and return
// the complete response for post-run processing. The emit callback is
// never called after Run returns.
type Runner interface {
	Run(ctx context.Context, req RunRequest, emit func(models.TurnFragment)) (*models.ModelResponse, error)
}
