package tool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"codepilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// stubTool is a configurable tool for registry tests.
type stubTool struct {
	name     string
	params   map[string]any
	response domain.Response
	err      error
	panics   bool
	calls    int
}

func (s *stubTool) Name() string { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Parameters() map[string]any {
	if s.params != nil {
		return s.params
	}
	return map[string]any{"type": "object"}
}
func (s *stubTool) Execute(context.Context, map[string]any) (domain.Response, error) {
	s.calls++
	if s.panics {
		panic("stub exploded")
	}
	return s.response, s.err
}

func TestDispatch_UnknownTool(t *testing.T) {
	r := NewRegistry(testLogger())

	outcome := r.Dispatch(context.Background(), "nope", nil)

	if outcome.Success {
		t.Error("unknown tool must fail")
	}
	if outcome.Error == "" || !strings.Contains(outcome.Error, "unknown tool") {
		t.Errorf("error = %q", outcome.Error)
	}
	if outcome.Tool != "nope" {
		t.Errorf("tool name not set: %q", outcome.Tool)
	}
	// The attempt is still logged.
	log := r.Log()
	if len(log) != 1 || log[0].Tool != "nope" || log[0].Success {
		t.Errorf("log entry wrong: %+v", log)
	}
}

func TestDispatch_MissingRequiredArguments(t *testing.T) {
	s := &stubTool{
		name: "needy",
		params: map[string]any{
			"type":     "object",
			"required": []string{"a", "b"},
		},
	}
	r := NewRegistry(testLogger())
	r.Register(s)

	outcome := r.Dispatch(context.Background(), "needy", map[string]any{"a": 1})

	if outcome.Success {
		t.Error("missing required argument must fail")
	}
	if !strings.Contains(outcome.Error, "b") {
		t.Errorf("error should name the missing argument: %q", outcome.Error)
	}
	if s.calls != 0 {
		t.Error("operation must not be invoked with incomplete arguments")
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	s := &stubTool{name: "bomb", panics: true}
	r := NewRegistry(testLogger())
	r.Register(s)

	outcome := r.Dispatch(context.Background(), "bomb", nil)

	if outcome.Success {
		t.Error("panicking tool must produce a failed outcome")
	}
	if !strings.Contains(outcome.Error, "stub exploded") {
		t.Errorf("panic value missing from error: %q", outcome.Error)
	}
	if !strings.Contains(outcome.Error, "goroutine") {
		t.Error("stack trace missing from error")
	}
}

func TestDispatch_ToolError(t *testing.T) {
	s := &stubTool{name: "failing", err: errors.New("disk full")}
	r := NewRegistry(testLogger())
	r.Register(s)

	outcome := r.Dispatch(context.Background(), "failing", nil)

	if outcome.Success {
		t.Error("expected failure")
	}
	if outcome.Error != "disk full" {
		t.Errorf("error = %q", outcome.Error)
	}
	if outcome.Duration < 0 {
		t.Error("duration must be measured on failure too")
	}
}

func TestDispatch_Success(t *testing.T) {
	s := &stubTool{name: "ok", response: domain.Response{Content: "done", Data: map[string]any{"n": 1}}}
	r := NewRegistry(testLogger())
	r.Register(s)

	outcome := r.Dispatch(context.Background(), "ok", map[string]any{"x": "y"})

	if !outcome.Success || outcome.Content != "done" {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestRegistry_LogAppendAndClear(t *testing.T) {
	s := &stubTool{name: "ok"}
	r := NewRegistry(testLogger())
	r.Register(s)

	r.Dispatch(context.Background(), "ok", nil)
	r.Dispatch(context.Background(), "missing", nil)

	if got := len(r.Log()); got != 2 {
		t.Fatalf("expected 2 log entries, got %d", got)
	}

	r.ClearLog()
	if got := len(r.Log()); got != 0 {
		t.Errorf("log not cleared: %d entries", got)
	}
}

func TestRegistry_GetDefinitionsSorted(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubTool{name: "zeta"})
	r.Register(&stubTool{name: "alpha"})
	r.Register(&stubTool{name: "mid"})

	defs := r.GetDefinitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	if defs[0].Name != "alpha" || defs[2].Name != "zeta" {
		t.Errorf("definitions not sorted: %v", []string{defs[0].Name, defs[1].Name, defs[2].Name})
	}
}

func TestOutcome_Text(t *testing.T) {
	o := domain.Outcome{Content: "hello", Error: "oops"}
	text := o.Text()
	if !strings.Contains(text, "hello") || !strings.Contains(text, "oops") {
		t.Errorf("Text() = %q", text)
	}

	empty := domain.Outcome{}
	if empty.Text() == "" {
		t.Error("empty outcome must still render placeholder text")
	}
}
