package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/knowsee/knowsee/internal/eventbus"
	"github.com/knowsee/knowsee/internal/history"
	"github.com/knowsee/knowsee/internal/semtag"
	"github.com/knowsee/knowsee/internal/sessions"
	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/internal/teams"
	"github.com/knowsee/knowsee/internal/titles"
	"github.com/knowsee/knowsee/internal/translator"
	"github.com/knowsee/knowsee/pkg/models"
)

// AgentAuthor is the author recorded on model-generated events.
const AgentAuthor = "knowsee_agent"

// Orchestrator coordinates one run end to end.
type Orchestrator struct {
	appName  string
	runner   Runner
	store    sessions.Store
	bus      *eventbus.Bus
	buffers  *sidechannel.Registry
	embedder *semtag.Embedder
	logger   *slog.Logger

	resolver *teams.Resolver
	titles   *titles.Service

	newID         func() string
	now           func() time.Time
	newTranslator func() translator.EventTranslator
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver enables per-user team context resolution before runs.
func WithResolver(r *teams.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithTitles enables automatic title generation after runs.
func WithTitles(s *titles.Service) Option {
	return func(o *Orchestrator) { o.titles = s }
}

// NewOrchestrator wires the run loop together.
func NewOrchestrator(appName string, runner Runner, store sessions.Store, bus *eventbus.Bus, buffers *sidechannel.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		appName:  appName,
		runner:   runner,
		store:    store,
		bus:      bus,
		buffers:  buffers,
		embedder: semtag.NewEmbedder(logger),
		logger:   logger.With("component", "runtime"),
		newID:    uuid.NewString,
		now:      time.Now,
		newTranslator: func() translator.EventTranslator {
			return translator.NewStreamTranslator(logger)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one user turn against a session. Framing events are
// published to the session's bus subscribers while the run streams;
// the returned response has side-channel tags already embedded.
func (o *Orchestrator) Run(ctx context.Context, userID, sessionID, message string) (*models.ModelResponse, error) {
	session, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	invocationID := o.newID()
	req := RunRequest{
		AppName:      o.appName,
		UserID:       userID,
		SessionID:    sessionID,
		InvocationID: invocationID,
		Message:      message,
	}

	if o.resolver != nil {
		userCtx := o.resolver.Resolve(ctx, userID)
		req.Corpora = userCtx.Corpora
		o.storeUserContext(ctx, session, userCtx)
	}

	if err := o.store.AppendEvent(ctx, &models.Event{
		ID:           o.newID(),
		SessionID:    sessionID,
		InvocationID: invocationID,
		Author:       "user",
		Parts:        []models.ResponsePart{{Text: message}},
		Timestamp:    o.now(),
	}); err != nil {
		return nil, fmt.Errorf("persist user event: %w", err)
	}

	buf := o.buffers.ForSession(sessionID)
	tr := o.newTranslator()
	emit := func(frag models.TurnFragment) {
		for _, ev := range tr.TranslateFragment(invocationID, frag) {
			o.bus.Publish(ctx, sessionID, ev)
		}
	}

	resp, err := o.runner.Run(ctx, req, emit)
	if err != nil {
		for _, ev := range tr.Flush() {
			o.bus.Publish(context.WithoutCancel(ctx), sessionID, ev)
		}
		buf.Discard()
		return nil, fmt.Errorf("run %s: %w", invocationID, err)
	}

	if resp.Grounding != nil {
		buf.AddSources(*resp.Grounding)
	}
	o.embedder.Embed(resp, buf)

	if err := o.store.AppendEvent(ctx, &models.Event{
		ID:           o.newID(),
		SessionID:    sessionID,
		InvocationID: invocationID,
		Author:       AgentAuthor,
		Parts:        resp.Parts,
		Timestamp:    o.now(),
	}); err != nil {
		return nil, fmt.Errorf("persist agent event: %w", err)
	}

	o.maybeGenerateTitle(ctx, session)
	return resp, nil
}

// storeUserContext stages the resolved team context in session state so
// tools see it during the run. Best effort.
func (o *Orchestrator) storeUserContext(ctx context.Context, session *models.Session, userCtx teams.UserContext) {
	if session.State == nil {
		session.State = make(map[string]any)
	}
	session.State["user_context"] = map[string]any{
		"user_id": userCtx.UserID,
		"teams":   userCtx.Teams,
		"corpora": userCtx.Corpora,
	}
	if err := o.store.Update(ctx, session); err != nil {
		o.logger.Warn("failed to store user context", "session_id", session.ID, "error", err)
	}
}

// maybeGenerateTitle replaces the default session title once the
// conversation has enough exchanges to name. Failures are logged and
// the default title kept.
func (o *Orchestrator) maybeGenerateTitle(ctx context.Context, session *models.Session) {
	if o.titles == nil {
		return
	}
	events, err := o.store.Events(ctx, session.ID)
	if err != nil {
		o.logger.Warn("failed to load events for title", "session_id", session.ID, "error", err)
		return
	}
	msgs := history.Rebuild(events)
	if !titles.ShouldGenerate(session.Title, len(msgs)) {
		return
	}

	title, err := o.titles.Generate(ctx, msgs)
	if err != nil {
		o.logger.Warn("title generation failed", "session_id", session.ID, "error", err)
		return
	}

	session.Title = title
	if err := o.store.Update(ctx, session); err != nil {
		o.logger.Warn("failed to save title", "session_id", session.ID, "error", err)
		return
	}
	o.bus.Publish(ctx, session.ID, models.StreamEvent{
		Type:  models.StreamTitleGenerated,
		Delta: title,
	})
	o.logger.Info("session title generated", "session_id", session.ID, "title", title)
}
