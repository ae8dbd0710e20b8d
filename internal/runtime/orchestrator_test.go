package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/knowsee/knowsee/internal/eventbus"
	"github.com/knowsee/knowsee/internal/sessions"
	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/internal/titles"
	"github.com/knowsee/knowsee/pkg/models"
)

type scriptedRunner struct {
	frags []models.TurnFragment
	final *models.ModelResponse
	err   error
	onRun func(req RunRequest)
}

func (r *scriptedRunner) Run(ctx context.Context, req RunRequest, emit func(models.TurnFragment)) (*models.ModelResponse, error) {
	if r.onRun != nil {
		r.onRun(req)
	}
	for _, f := range r.frags {
		emit(f)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.final, nil
}

func drain(sub *eventbus.Subscriber) []models.StreamEvent {
	var out []models.StreamEvent
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func newTestSession(t *testing.T, store sessions.Store, id string) *models.Session {
	t.Helper()
	session := &models.Session{
		ID:        id,
		AppName:   "knowsee",
		UserID:    "alice",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return session
}

func TestRunPublishesFramingAndPersists(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	bus := eventbus.New(nil)
	buffers := sidechannel.NewRegistry()
	newTestSession(t, store, "s1")
	sub := bus.Subscribe("s1")
	defer bus.Unsubscribe("s1", sub)

	runner := &scriptedRunner{
		frags: []models.TurnFragment{
			{Text: "Hel", Partial: true},
			{Text: "lo", Partial: true},
			{Text: "Hello", FinalResponse: true, TurnComplete: true, FinishReason: "STOP"},
		},
		final: &models.ModelResponse{Parts: []models.ResponsePart{{Text: "Hello"}}},
	}

	o := NewOrchestrator("knowsee", runner, store, bus, buffers, nil)
	resp, err := o.Run(ctx, "alice", "s1", "hi there")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := resp.LastText(); got != "Hello" {
		t.Errorf("response text = %q, want %q", got, "Hello")
	}

	events := drain(sub)
	var types []models.StreamEventType
	text := ""
	for _, ev := range events {
		types = append(types, ev.Type)
		text += ev.Delta
	}
	want := []models.StreamEventType{
		models.StreamMessageStart,
		models.StreamMessageContent,
		models.StreamMessageContent,
		models.StreamMessageEnd,
	}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event types = %v, want %v", types, want)
		}
	}
	if text != "Hello" {
		t.Errorf("streamed text = %q, want %q", text, "Hello")
	}

	persisted, err := store.Events(ctx, "s1")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("persisted events = %d, want 2", len(persisted))
	}
	if persisted[0].Author != "user" || persisted[0].Parts[0].Text != "hi there" {
		t.Errorf("user event = %+v", persisted[0])
	}
	if persisted[1].Author != AgentAuthor {
		t.Errorf("agent author = %q, want %q", persisted[1].Author, AgentAuthor)
	}
	if persisted[0].InvocationID != persisted[1].InvocationID {
		t.Errorf("invocation IDs differ: %q vs %q",
			persisted[0].InvocationID, persisted[1].InvocationID)
	}
}

func TestRunEmbedsStagedSideChannels(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	bus := eventbus.New(nil)
	buffers := sidechannel.NewRegistry()
	newTestSession(t, store, "s1")

	runner := &scriptedRunner{
		final: &models.ModelResponse{
			Parts: []models.ResponsePart{{Text: "Revenue is up."}},
			Grounding: &models.GroundingMetadata{
				Sources: []models.GroundingSource{{Title: "Q3 Report", URI: "https://example.com/q3"}},
			},
		},
	}
	runner.onRun = func(req RunRequest) {
		buf := buffers.ForSession(req.SessionID)
		buf.AddQueryAttempt(models.QueryAttempt{Query: "SELECT 1", Success: true, RowCount: 1})
		buf.AddWidget(models.Widget{ID: "w-1", Title: "Revenue", ChartType: "bar"})
	}

	o := NewOrchestrator("knowsee", runner, store, bus, buffers, nil)
	resp, err := o.Run(ctx, "alice", "s1", "how is revenue?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last := resp.Parts[len(resp.Parts)-1].Text
	srcIdx := strings.Index(last, "<llm:adk:sources>")
	qIdx := strings.Index(last, "<llm:data:queries>")
	wIdx := strings.Index(last, "<llm:data:widget>")
	if srcIdx < 0 || qIdx < 0 || wIdx < 0 {
		t.Fatalf("missing embedded tags in %q", last)
	}
	if !(srcIdx < qIdx && qIdx < wIdx) {
		t.Errorf("tag order = sources %d, queries %d, widget %d", srcIdx, qIdx, wIdx)
	}
	if !buffers.ForSession("s1").Empty() {
		t.Error("buffer not drained after embed")
	}

	persisted, err := store.Events(ctx, "s1")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	agentEvent := persisted[len(persisted)-1]
	if !strings.Contains(agentEvent.Parts[len(agentEvent.Parts)-1].Text, "<llm:data:widget>") {
		t.Error("persisted agent event missing embedded tags")
	}
}

func TestRunErrorFlushesAndDiscards(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	bus := eventbus.New(nil)
	buffers := sidechannel.NewRegistry()
	newTestSession(t, store, "s1")
	sub := bus.Subscribe("s1")
	defer bus.Unsubscribe("s1", sub)

	runner := &scriptedRunner{
		frags: []models.TurnFragment{{Text: "partial answer", Partial: true}},
		err:   errors.New("model unavailable"),
	}
	runner.onRun = func(req RunRequest) {
		buffers.ForSession(req.SessionID).AddWidget(models.Widget{ID: "w-1"})
	}

	o := NewOrchestrator("knowsee", runner, store, bus, buffers, nil)
	if _, err := o.Run(ctx, "alice", "s1", "hi"); err == nil {
		t.Fatal("Run() error = nil, want runner error")
	}

	events := drain(sub)
	if len(events) == 0 || events[len(events)-1].Type != models.StreamMessageEnd {
		t.Errorf("events = %+v, want trailing message-end from flush", events)
	}
	if !buffers.ForSession("s1").Empty() {
		t.Error("buffer not discarded on failed run")
	}

	persisted, err := store.Events(ctx, "s1")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("persisted events = %d, want only the user event", len(persisted))
	}
}

type fixedGenerator struct{ title string }

func (g *fixedGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	return g.title, nil
}

func TestTitleGeneratedAfterThreshold(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	bus := eventbus.New(nil)
	buffers := sidechannel.NewRegistry()
	newTestSession(t, store, "s1")
	sub := bus.Subscribe("s1")
	defer bus.Unsubscribe("s1", sub)

	runner := &scriptedRunner{
		final: &models.ModelResponse{Parts: []models.ResponsePart{{Text: "Sure."}}},
	}
	titleSvc := titles.NewService(&fixedGenerator{title: "Database Tuning"}, titles.DefaultModel, nil)

	o := NewOrchestrator("knowsee", runner, store, bus, buffers, nil, WithTitles(titleSvc))

	if _, err := o.Run(ctx, "alice", "s1", "help me tune postgres"); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := o.Run(ctx, "alice", "s1", "what about indexes?"); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	session, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.Title != "Database Tuning" {
		t.Errorf("session title = %q, want %q", session.Title, "Database Tuning")
	}

	found := false
	for _, ev := range drain(sub) {
		if ev.Type == models.StreamTitleGenerated && ev.Delta == "Database Tuning" {
			found = true
		}
	}
	if !found {
		t.Error("no title-generated event published")
	}
}
