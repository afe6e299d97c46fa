package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"codepilot/internal/domain"
	"codepilot/internal/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	responses []*domain.ChatResponse
	err       error
	requests  []domain.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.requests) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Models() []string { return nil }
func (p *scriptedProvider) Healthy(context.Context) error { return nil }

// echoTool returns a fixed response, recording invocations.
type echoTool struct {
	name    string
	content string
	calls   int
}

func (t *echoTool) Name() string { return t.name }
func (t *echoTool) Description() string { return "test tool" }
func (t *echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *echoTool) Execute(context.Context, map[string]any) (domain.Response, error) {
	t.calls++
	return domain.Response{Content: t.content}, nil
}

func testEngine(t *testing.T, p domain.Provider, tools ...domain.Tool) *Engine {
	t.Helper()
	reg := tool.NewRegistry(testLogger())
	for _, tl := range tools {
		reg.Register(tl)
	}
	return NewEngine(EngineConfig{
		Provider: p,
		Tools:    reg,
		Prompt:   NewPromptBuilder(t.TempDir(), ""),
		Logger:   testLogger(),
		Budget:   domain.Budget{MaxIterations: 10, MaxDuration: time.Minute, StepDelay: 0},
	})
}

func collect(ch <-chan domain.StepRecord) []domain.StepRecord {
	var steps []domain.StepRecord
	for step := range ch {
		steps = append(steps, step)
	}
	return steps
}

func TestEngine_ToolCallThenWrapUp(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{ToolCalls: []domain.ToolCall{{ID: "c1", Name: "write", Arguments: map[string]any{"filePath": "a.txt"}}}},
		{Content: "The file has been written as requested."},
	}}
	wt := &echoTool{name: "write", content: "file saved: a.txt"}
	e := testEngine(t, p, wt)

	steps := collect(e.Run(context.Background(), "create a README", "", ""))

	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Done {
		t.Error("tool-call step must not be done")
	}
	if len(steps[0].Outcomes) != 1 || !steps[0].Outcomes[0].Success {
		t.Errorf("outcome not recorded: %+v", steps[0].Outcomes)
	}
	if !steps[1].Done {
		t.Error("wrap-up step after tool calls must be done")
	}
	if steps[1].FinalMessage == "" {
		t.Error("done step must carry the final message")
	}
	if wt.calls != 1 {
		t.Errorf("tool called %d times", wt.calls)
	}
}

func TestEngine_QuestionEndsRun(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{ToolCalls: []domain.ToolCall{
			{ID: "c1", Name: "ask", Arguments: map[string]any{}},
			{ID: "c2", Name: "write", Arguments: map[string]any{}},
		}},
		{Content: "should never be reached"},
	}}
	ask := &echoTool{name: "ask", content: domain.QuestionSentinel}
	wt := &echoTool{name: "write", content: "file saved"}
	e := testEngine(t, p, ask, wt)

	steps := collect(e.Run(context.Background(), "create something", "", ""))

	if len(steps) != 1 {
		t.Fatalf("run must end after the question step, got %d steps", len(steps))
	}
	// Other invocations in the same request still execute.
	if wt.calls != 1 {
		t.Errorf("second tool of the step should still run, calls=%d", wt.calls)
	}
	if len(p.requests) != 1 {
		t.Errorf("no further provider request expected, got %d", len(p.requests))
	}
}

func TestEngine_IterationBudget(t *testing.T) {
	// Operational task with an unhelpful reply never completes on its own.
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{Content: "I am thinking about how to approach creating this."},
	}}
	e := testEngine(t, p)
	e.budget.MaxIterations = 3

	steps := collect(e.Run(context.Background(), "create a README", "", ""))

	if len(steps) > e.budget.MaxIterations+1 {
		t.Errorf("history %d exceeds budget %d", len(steps), e.budget.MaxIterations)
	}
	for _, s := range steps {
		if s.Done {
			t.Error("no step should be done")
		}
	}
}

func TestEngine_NoStepAfterDone(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{Content: "Binary search halves a sorted range each probe until the target is found."},
	}}
	e := testEngine(t, p)

	steps := collect(e.Run(context.Background(), "explain what a binary search is", "", ""))

	if len(steps) != 1 {
		t.Fatalf("expected exactly 1 step, got %d", len(steps))
	}
	if !steps[0].Done {
		t.Error("informational task answered in prose must be done")
	}
}

func TestEngine_OperationalTaskContinues(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{Content: "Let me think about the best structure for this file first."},
		{ToolCalls: []domain.ToolCall{{ID: "c1", Name: "write", Arguments: map[string]any{}}}},
		{Content: "All set."},
	}}
	wt := &echoTool{name: "write", content: "file saved: README.md"}
	e := testEngine(t, p, wt)

	steps := collect(e.Run(context.Background(), "create a README", "", ""))

	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].Done {
		t.Error("stalling reply on an operational task must not be done")
	}
	if !steps[2].Done {
		t.Error("wrap-up after a tool step must be done")
	}
}

func TestEngine_Stop(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{Content: "Let me think about creating this some more."},
	}}
	e := testEngine(t, p)
	e.budget.StepDelay = 10 * time.Millisecond

	ch := e.Run(context.Background(), "create a file", "", "")

	// Consume the first step, then request a stop.
	first := <-ch
	if first.Done {
		t.Fatal("first step unexpectedly done")
	}
	e.Stop()

	var last domain.StepRecord
	for step := range ch {
		last = step
	}
	if last.FinalMessage != "task interrupted" {
		t.Errorf("expected interrupted step, got %+v", last)
	}
	if last.Done {
		t.Error("interrupted step must not be done")
	}
}

func TestEngine_CancelDeliversInterruptedStep(t *testing.T) {
	// Cancellation races the send of the synthetic interrupted step, so a
	// single pass can succeed by luck. Repeat enough times that a dropped
	// record would show up.
	for trial := 0; trial < 25; trial++ {
		p := &scriptedProvider{responses: []*domain.ChatResponse{
			{Content: "Let me think about creating this some more."},
		}}
		e := testEngine(t, p)

		ctx, cancel := context.WithCancel(context.Background())
		ch := e.Run(ctx, "create a file", "", "")

		first := <-ch
		if first.Done {
			t.Fatal("first step unexpectedly done")
		}
		cancel()

		interrupted := false
		for step := range ch {
			if step.FinalMessage == "task interrupted" {
				interrupted = true
				if step.Done {
					t.Error("interrupted step must not be done")
				}
			}
		}
		if !interrupted {
			t.Fatalf("trial %d: interrupted step never delivered", trial)
		}
	}
}

func TestEngine_ProviderErrorAbortsRun(t *testing.T) {
	p := &scriptedProvider{err: errors.New("connection refused")}
	e := testEngine(t, p)

	steps := collect(e.Run(context.Background(), "create a file", "", ""))

	if len(steps) != 1 {
		t.Fatalf("expected single diagnostic step, got %d", len(steps))
	}
	if !steps[0].Done {
		t.Error("fault step must be done")
	}
	if !strings.Contains(steps[0].FinalMessage, "connection refused") {
		t.Errorf("fault detail missing: %q", steps[0].FinalMessage)
	}
}

func TestEngine_EchoesToolCallsVerbatim(t *testing.T) {
	raw := `{"filePath":"a.txt"}`
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{ToolCalls: []domain.ToolCall{{
			ID:           "c1",
			Name:         "write",
			Arguments:    map[string]any{"filePath": "a.txt"},
			RawArguments: raw,
		}}},
		{Content: "Your file is ready now."},
	}}
	wt := &echoTool{name: "write", content: "file saved: a.txt"}
	e := testEngine(t, p, wt)

	collect(e.Run(context.Background(), "create a.txt", "", ""))

	if len(p.requests) != 2 {
		t.Fatalf("expected 2 provider requests, got %d", len(p.requests))
	}
	var found bool
	for _, m := range p.requests[1].Messages {
		for _, tc := range m.ToolCalls {
			found = true
			if tc.RawArguments != raw {
				t.Errorf("raw arguments reshaped: %q", tc.RawArguments)
			}
		}
	}
	if !found {
		t.Error("assistant tool-call entry missing from follow-up conversation")
	}

	// The matching tool entry must directly follow with the call id.
	msgs := p.requests[1].Messages
	for i, m := range msgs {
		if len(m.ToolCalls) > 0 {
			if i+1 >= len(msgs) || msgs[i+1].Role != domain.RoleTool || msgs[i+1].ToolCallID != "c1" {
				t.Error("tool entry must follow the assistant entry carrying the call")
			}
		}
	}
}

func TestEngine_SummaryScansHistory(t *testing.T) {
	p := &scriptedProvider{responses: []*domain.ChatResponse{
		{ToolCalls: []domain.ToolCall{
			{ID: "c1", Name: "write", Arguments: map[string]any{}},
			{ID: "c2", Name: "missing_tool", Arguments: map[string]any{}},
		}},
		{Content: "Finished writing the file you asked for."},
	}}
	wt := &echoTool{name: "write", content: "file saved"}
	e := testEngine(t, p, wt)

	collect(e.Run(context.Background(), "create a file", "", ""))

	summary := e.Summary()
	if summary.TotalSteps != 2 {
		t.Errorf("TotalSteps = %d", summary.TotalSteps)
	}
	if summary.TotalToolCalls != 2 || summary.SuccessfulToolCalls != 1 {
		t.Errorf("tool call counts wrong: %+v", summary)
	}
	if summary.FailedSteps != 1 || summary.SuccessfulSteps != 1 {
		t.Errorf("step counts wrong: %+v", summary)
	}
	if !summary.Completed || summary.FinalMessage == "" {
		t.Errorf("completion not reflected: %+v", summary)
	}
}

func TestEngine_StatusWhileIdle(t *testing.T) {
	e := testEngine(t, &scriptedProvider{responses: []*domain.ChatResponse{{Content: "x"}}})
	status := e.Status()
	if status.Running {
		t.Error("engine should be idle before Run")
	}
	if status.TotalSteps != 0 {
		t.Errorf("expected 0 steps, got %d", status.TotalSteps)
	}
}
