package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"codepilot/internal/domain"
	"codepilot/internal/tool"
)

const (
	defaultMaxIterations = 200
	defaultMaxDuration   = 15 * time.Minute
	defaultStepDelay     = 500 * time.Millisecond

	chatMaxTokens = 4096
	// Near-deterministic decoding so tool selection is reproducible for
	// identical conversation prefixes.
	chatTemperature = 0.1
)

// Engine drives the task-execution loop: ask the provider for the next
// action, dispatch requested tools, fold results back into the
// conversation, and decide completion. One engine runs one task at a time;
// each run resets the conversation and step history.
type Engine struct {
	provider domain.Provider
	tools    *tool.Registry
	prompt   *PromptBuilder
	logger   *slog.Logger
	budget   domain.Budget
	model    string

	stopRequested atomic.Bool

	mu           sync.Mutex
	running      bool
	started      time.Time
	task         string
	conversation []domain.Message
	history      []domain.StepRecord
}

// EngineConfig holds the dependencies and tuning for an engine.
type EngineConfig struct {
	Provider domain.Provider
	Tools    *tool.Registry
	Prompt   *PromptBuilder
	Logger   *slog.Logger
	Budget   domain.Budget
	Model    string
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Budget.MaxIterations <= 0 {
		cfg.Budget.MaxIterations = defaultMaxIterations
	}
	if cfg.Budget.MaxDuration <= 0 {
		cfg.Budget.MaxDuration = defaultMaxDuration
	}
	if cfg.Budget.StepDelay < 0 {
		cfg.Budget.StepDelay = defaultStepDelay
	}
	return &Engine{
		provider: cfg.Provider,
		tools:    cfg.Tools,
		prompt:   cfg.Prompt,
		logger:   cfg.Logger,
		budget:   cfg.Budget,
		model:    cfg.Model,
	}
}

// Run starts a new run and returns a channel of step records. The channel
// is unbuffered: each step is produced only when the consumer reads the
// previous one, and it is closed when the run ends. The caller must keep
// receiving until close; to end a run early, cancel ctx or call Stop and
// drain the remaining records. systemPrompt overrides the built-in prompt
// when non-empty; sessionContext seeds the run with earlier-task history.
func (e *Engine) Run(ctx context.Context, task, systemPrompt, sessionContext string) <-chan domain.StepRecord {
	if systemPrompt == "" {
		systemPrompt = e.prompt.SystemPrompt(e.tools.GetDefinitions(), sessionContext)
	}

	e.stopRequested.Store(false)
	e.mu.Lock()
	e.running = true
	e.started = time.Now()
	e.task = task
	e.history = nil
	e.conversation = []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt, Timestamp: time.Now()},
		{Role: domain.RoleUser, Content: task, Timestamp: time.Now()},
	}
	e.mu.Unlock()

	out := make(chan domain.StepRecord)
	go e.loop(ctx, task, out)
	return out
}

// Stop requests the run to end. Takes effect at the next step boundary.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

func (e *Engine) loop(ctx context.Context, task string, out chan<- domain.StepRecord) {
	defer close(out)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.logger.Info("run started", "task_len", len(task), "max_iterations", e.budget.MaxIterations)

	for seq := 1; ; seq++ {
		// Stop and cancellation are observed only here, between steps.
		if e.stopRequested.Load() || ctx.Err() != nil {
			step := domain.StepRecord{
				Seq:          seq,
				Timestamp:    time.Now(),
				Task:         task,
				Done:         false,
				FinalMessage: "task interrupted",
			}
			e.record(step)
			out <- step
			e.logger.Info("run interrupted", "steps", seq)
			return
		}

		if seq > e.budget.MaxIterations {
			e.logger.Warn("iteration budget exhausted", "max_iterations", e.budget.MaxIterations)
			return
		}
		if time.Since(e.started) > e.budget.MaxDuration {
			e.logger.Warn("time budget exhausted", "max_duration", e.budget.MaxDuration)
			return
		}

		step, fault := e.step(ctx, seq, task)
		if fault != nil {
			// Faults never escape the step boundary; they end the run
			// as a diagnostic final step.
			step = domain.StepRecord{
				Seq:          seq,
				Timestamp:    time.Now(),
				Task:         task,
				Done:         true,
				FinalMessage: fmt.Sprintf("run aborted: %s", fault),
			}
			e.logger.Error("step fault", "seq", seq, "error", fault)
		}

		e.record(step)
		out <- step

		if step.Done {
			e.logger.Info("run completed", "steps", seq)
			return
		}

		// A question outcome means the run blocks for human input: end
		// the sequence even though other tool calls may have run.
		if len(step.Outcomes) > 0 && step.Outcomes[0].Content == domain.QuestionSentinel {
			e.logger.Info("run paused for user input", "steps", seq)
			return
		}

		if e.budget.StepDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.budget.StepDelay):
			}
		}
	}
}

// step performs one "ask → act → record" cycle. A panic anywhere inside is
// converted into a fault with the stack attached.
func (e *Engine) step(ctx context.Context, seq int, task string) (rec domain.StepRecord, fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("step panic: %v\n%s", r, debug.Stack())
		}
	}()

	e.mu.Lock()
	messages := make([]domain.Message, len(e.conversation))
	copy(messages, e.conversation)
	e.mu.Unlock()

	resp, err := e.provider.Chat(ctx, domain.ChatRequest{
		Messages:    messages,
		Tools:       e.tools.GetDefinitions(),
		Model:       e.model,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		return rec, fmt.Errorf("provider request failed: %w", err)
	}

	rec = domain.StepRecord{
		Seq:       seq,
		Timestamp: time.Now(),
		Task:      task,
		Reply:     resp.Content,
		Thinking:  resp.Thinking,
	}

	if resp.HasToolCalls() {
		// Echo the calls verbatim so the provider sees exactly what it
		// produced on the next turn.
		e.appendMessage(domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		})

		rec.ToolCalls = resp.ToolCalls
		for _, tc := range resp.ToolCalls {
			e.logger.Info("dispatching tool", "seq", seq, "tool", tc.Name)
			outcome := e.tools.Dispatch(ctx, tc.Name, tc.Arguments)
			rec.Outcomes = append(rec.Outcomes, outcome)
			e.appendMessage(domain.Message{
				Role:       domain.RoleTool,
				Content:    outcome.Text(),
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Timestamp:  time.Now(),
			})
		}
		return rec, nil
	}

	// Free text only: record it and decide completion.
	e.appendMessage(domain.Message{
		Role:      domain.RoleAssistant,
		Content:   resp.Content,
		Timestamp: time.Now(),
	})

	e.mu.Lock()
	history := make([]domain.StepRecord, len(e.history))
	copy(history, e.history)
	e.mu.Unlock()

	rec.Done = evaluateCompletion(task, resp.Content, history)
	if rec.Done {
		rec.FinalMessage = resp.Content
	}
	return rec, nil
}

func (e *Engine) record(step domain.StepRecord) {
	e.mu.Lock()
	e.history = append(e.history, step)
	e.mu.Unlock()
}

func (e *Engine) appendMessage(m domain.Message) {
	e.mu.Lock()
	e.conversation = append(e.conversation, m)
	e.mu.Unlock()
}

// Status reports a snapshot of the engine, computed from step history.
func (e *Engine) Status() domain.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := domain.RunStatus{
		Running:    e.running,
		TotalSteps: len(e.history),
	}
	if len(e.history) > 0 {
		status.CurrentStep = e.history[len(e.history)-1].Seq
	}
	if e.running {
		status.Elapsed = time.Since(e.started)
	} else if len(e.history) > 0 {
		status.Elapsed = e.history[len(e.history)-1].Timestamp.Sub(e.started)
	}
	return status
}

// History returns a copy of the step records so far.
func (e *Engine) History() []domain.StepRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.StepRecord, len(e.history))
	copy(out, e.history)
	return out
}

// Summary aggregates the run by scanning step history. No separate
// counters are kept anywhere.
func (e *Engine) Summary() domain.RunSummary {
	e.mu.Lock()
	history := make([]domain.StepRecord, len(e.history))
	copy(history, e.history)
	started := e.started
	running := e.running
	e.mu.Unlock()

	summary := domain.RunSummary{TotalSteps: len(history)}
	for _, step := range history {
		failed := false
		for _, outcome := range step.Outcomes {
			summary.TotalToolCalls++
			if outcome.Success {
				summary.SuccessfulToolCalls++
			} else {
				failed = true
			}
		}
		if failed {
			summary.FailedSteps++
		} else {
			summary.SuccessfulSteps++
		}
		if step.Done {
			summary.Completed = true
			summary.FinalMessage = step.FinalMessage
		}
	}
	if running {
		summary.Elapsed = time.Since(started)
	} else if len(history) > 0 {
		summary.Elapsed = history[len(history)-1].Timestamp.Sub(started)
	}
	return summary
}
