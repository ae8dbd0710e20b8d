package translator

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/knowsee/knowsee/pkg/models"
)

func newTestTranslator() *StreamTranslator {
	tr := NewStreamTranslator(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	n := 0
	tr.newID = func() string {
		n++
		return fmt.Sprintf("msg-%d", n)
	}
	return tr
}

func collectText(events []models.StreamEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == models.StreamMessageContent {
			sb.WriteString(ev.Delta)
		}
	}
	return sb.String()
}

func countType(events []models.StreamEvent, typ models.StreamEventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestPartialsThenDuplicateFinal(t *testing.T) {
	tr := newTestTranslator()

	var events []models.StreamEvent
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{Text: "Hel", Partial: true})...)
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{Text: "lo", Partial: true})...)
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		Text:          "Hello",
		FinalResponse: true,
		TurnComplete:  true,
	})...)

	if got := collectText(events); got != "Hello" {
		t.Errorf("delivered text = %q, want %q", got, "Hello")
	}
	if n := countType(events, models.StreamMessageStart); n != 1 {
		t.Errorf("start events = %d, want 1", n)
	}
	if n := countType(events, models.StreamMessageEnd); n != 1 {
		t.Errorf("end events = %d, want 1", n)
	}
	if last := events[len(events)-1]; last.Type != models.StreamMessageEnd {
		t.Errorf("last event = %q, want %q", last.Type, models.StreamMessageEnd)
	}
}

func TestThoughtThenAnswer(t *testing.T) {
	tr := newTestTranslator()

	var events []models.StreamEvent
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		Text:    "considering X",
		Thought: true,
		Partial: true,
	})...)
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		Text:          "The answer is 42",
		FinalResponse: true,
		TurnComplete:  true,
	})...)

	want := "<llm:adk:soch>considering X</llm:adk:soch>The answer is 42"
	if got := collectText(events); got != want {
		t.Errorf("delivered text = %q, want %q", got, want)
	}
	if n := countType(events, models.StreamMessageStart); n != 1 {
		t.Errorf("start events = %d, want 1", n)
	}
	if n := countType(events, models.StreamMessageEnd); n != 1 {
		t.Errorf("end events = %d, want 1", n)
	}
}

func TestFinalWithoutPriorStreaming(t *testing.T) {
	tr := newTestTranslator()

	events := tr.TranslateFragment("run-1", models.TurnFragment{
		Text:          "direct answer",
		FinalResponse: true,
		TurnComplete:  true,
	})

	wantTypes := []models.StreamEventType{
		models.StreamMessageStart,
		models.StreamMessageContent,
		models.StreamMessageEnd,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event[%d].Type = %q, want %q", i, events[i].Type, want)
		}
	}
	if got := collectText(events); got != "direct answer" {
		t.Errorf("delivered text = %q, want %q", got, "direct answer")
	}
}

func TestFinalAfterClosedStreamDiscarded(t *testing.T) {
	tr := newTestTranslator()

	var events []models.StreamEvent
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{Text: "chunk one ", Partial: true})...)
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		Text:         "chunk two",
		TurnComplete: true,
	})...)

	// Consolidated repeat after the turn-complete fragment already
	// closed the message.
	late := tr.TranslateFragment("run-1", models.TurnFragment{
		Text:          "chunk one chunk two",
		FinalResponse: true,
		TurnComplete:  true,
	})
	if len(late) != 0 {
		t.Errorf("late final produced %d events, want 0", len(late))
	}
	if n := countType(events, models.StreamMessageEnd); n != 1 {
		t.Errorf("end events = %d, want 1", n)
	}
}

func TestStartEndPairing(t *testing.T) {
	tr := newTestTranslator()

	var events []models.StreamEvent
	for run := 1; run <= 3; run++ {
		runID := fmt.Sprintf("run-%d", run)
		events = append(events, tr.TranslateFragment(runID, models.TurnFragment{Text: "a", Partial: true})...)
		events = append(events, tr.TranslateFragment(runID, models.TurnFragment{Text: "b", Partial: true})...)
		events = append(events, tr.TranslateFragment(runID, models.TurnFragment{
			Text:          "ab",
			FinalResponse: true,
			TurnComplete:  true,
		})...)
	}

	open := map[string]bool{}
	for _, ev := range events {
		switch ev.Type {
		case models.StreamMessageStart:
			if open[ev.MessageID] {
				t.Errorf("message %q started twice", ev.MessageID)
			}
			open[ev.MessageID] = true
		case models.StreamMessageContent:
			if !open[ev.MessageID] {
				t.Errorf("content for %q before its start event", ev.MessageID)
			}
		case models.StreamMessageEnd:
			if !open[ev.MessageID] {
				t.Errorf("end for %q without matching start", ev.MessageID)
			}
			open[ev.MessageID] = false
		}
	}
	for id, isOpen := range open {
		if isOpen {
			t.Errorf("message %q never ended", id)
		}
	}
	if n := countType(events, models.StreamMessageStart); n != 3 {
		t.Errorf("start events = %d, want 3", n)
	}
}

func TestEmptyFragmentsProduceNothing(t *testing.T) {
	tr := newTestTranslator()

	if events := tr.TranslateFragment("run-1", models.TurnFragment{Partial: true}); len(events) != 0 {
		t.Errorf("empty partial produced %d events, want 0", len(events))
	}
	if events := tr.TranslateFragment("run-1", models.TurnFragment{
		FinalResponse: true,
		TurnComplete:  true,
	}); len(events) != 0 {
		t.Errorf("empty final produced %d events, want 0", len(events))
	}
	if tr.Streaming() {
		t.Error("translator streaming after empty fragments")
	}
}

func TestFinishReasonClosesActiveStream(t *testing.T) {
	tr := newTestTranslator()

	var events []models.StreamEvent
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{Text: "partial ", Partial: true})...)
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		Text:         "tail",
		Partial:      true,
		FinishReason: "STOP",
	})...)

	if n := countType(events, models.StreamMessageEnd); n != 1 {
		t.Errorf("end events = %d, want 1", n)
	}
	if tr.Streaming() {
		t.Error("translator still streaming after finish reason")
	}
	if got := collectText(events); got != "partial tail" {
		t.Errorf("delivered text = %q, want %q", got, "partial tail")
	}
}

func TestToolCallAndResultInline(t *testing.T) {
	tr := newTestTranslator()

	var events []models.StreamEvent
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		ToolCall: &models.ToolCall{Name: "search", ID: "call-1", Args: map[string]any{"q": "go"}},
		Partial:  true,
	})...)
	events = append(events, tr.TranslateFragment("run-1", models.TurnFragment{
		ToolResult:    &models.ToolResult{ID: "call-1", Response: map[string]any{"hits": float64(3)}},
		FinalResponse: true,
		TurnComplete:  true,
	})...)

	text := collectText(events)
	if !strings.Contains(text, `<llm:adk:tool name="search" id="call-1">`) {
		t.Errorf("missing tool call tag in %q", text)
	}
	if !strings.Contains(text, `<llm:adk:tool-result id="call-1">`) {
		t.Errorf("missing tool result tag in %q", text)
	}
	if n := countType(events, models.StreamMessageEnd); n != 1 {
		t.Errorf("end events = %d, want 1", n)
	}
}

func TestRenderFragmentIdempotent(t *testing.T) {
	frags := []models.TurnFragment{
		{Text: "plain answer"},
		{Text: "inner thought", Thought: true},
		{ToolCall: &models.ToolCall{Name: "lookup", ID: "c1"}},
		{
			Text:       "mixed",
			ToolResult: &models.ToolResult{ID: "c2", Response: map[string]any{"ok": true}},
		},
	}
	for _, frag := range frags {
		first := RenderFragment(frag)
		second := RenderFragment(frag)
		if first != second {
			t.Errorf("RenderFragment not idempotent: %q vs %q", first, second)
		}
	}

	if got := RenderFragment(models.TurnFragment{Text: "hmm", Thought: true}); got != "<llm:adk:soch>hmm</llm:adk:soch>" {
		t.Errorf("thought render = %q, want wrapped", got)
	}
}

func TestFlushClosesDanglingMessage(t *testing.T) {
	tr := newTestTranslator()

	tr.TranslateFragment("run-1", models.TurnFragment{Text: "abandoned", Partial: true})
	events := tr.Flush()
	if len(events) != 1 || events[0].Type != models.StreamMessageEnd {
		t.Fatalf("Flush events = %+v, want single end", events)
	}
	if tr.Streaming() {
		t.Error("translator still streaming after Flush")
	}
	if again := tr.Flush(); len(again) != 0 {
		t.Errorf("second Flush produced %d events, want 0", len(again))
	}
}

func TestLengthMismatchWarning(t *testing.T) {
	var logs bytes.Buffer
	tr := NewStreamTranslator(slog.New(slog.NewTextHandler(&logs, nil)))
	tr.newID = func() string { return "msg-1" }

	streamed := strings.Repeat("x", 400)
	tr.TranslateFragment("run-1", models.TurnFragment{Text: streamed, Partial: true})
	tr.TranslateFragment("run-1", models.TurnFragment{Text: streamed, TurnComplete: true, FinalResponse: true})

	// Late final for the same run with a drastically shorter body.
	tr.TranslateFragment("run-1", models.TurnFragment{
		Text:          "x",
		FinalResponse: true,
		TurnComplete:  true,
	})

	if !strings.Contains(logs.String(), "differs significantly") {
		t.Error("expected length mismatch warning in logs")
	}
}
