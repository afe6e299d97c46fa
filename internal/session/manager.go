package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"codepilot/internal/domain"
)

const currentSessionKey = "current_session"

// Manager tracks the active session and records finished runs. The current
// session pointer survives restarts via the store's meta table.
type Manager struct {
	store  *SQLiteStore
	logger *slog.Logger
}

func NewManager(store *SQLiteStore, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Current returns the active session, creating one when none exists or the
// recorded one was deleted or archived.
func (m *Manager) Current(ctx context.Context, workdir string) (*domain.Session, error) {
	id, err := m.store.GetMeta(ctx, currentSessionKey)
	if err != nil {
		return nil, fmt.Errorf("read current session: %w", err)
	}
	if id != "" {
		sess, err := m.store.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil && sess.Status == domain.SessionActive {
			return sess, nil
		}
	}
	return m.StartSession(ctx, workdir)
}

// StartSession creates a fresh session and makes it current.
func (m *Manager) StartSession(ctx context.Context, workdir string) (*domain.Session, error) {
	sess := domain.Session{
		ID:      uuid.New().String(),
		Status:  domain.SessionActive,
		Workdir: workdir,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := m.store.SetMeta(ctx, currentSessionKey, sess.ID); err != nil {
		return nil, fmt.Errorf("set current session: %w", err)
	}
	m.logger.Info("session started", "session", sess.ID, "workdir", workdir)
	created, err := m.store.GetSession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Use switches the current session to an existing one.
func (m *Manager) Use(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err := m.store.SetMeta(ctx, currentSessionKey, id); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) List(ctx context.Context, limit int) ([]domain.Session, error) {
	return m.store.ListSessions(ctx, limit)
}

func (m *Manager) Archive(ctx context.Context, id string) error {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", id)
	}
	sess.Status = domain.SessionArchived
	return m.store.UpdateSession(ctx, *sess)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteSession(ctx, id)
}

// RecordRun persists a completed run: the task, all of its steps, and the
// result summary shown in session listings.
func (m *Manager) RecordRun(ctx context.Context, sessionID, task string, steps []domain.StepRecord, summary string) error {
	taskID, err := m.store.AddTask(ctx, domain.TaskRecord{SessionID: sessionID, Task: task})
	if err != nil {
		return fmt.Errorf("record task: %w", err)
	}
	for _, step := range steps {
		if err := m.store.AddStep(ctx, sessionID, taskID, step); err != nil {
			return fmt.Errorf("record step %d: %w", step.Seq, err)
		}
	}
	if summary != "" {
		if err := m.store.SetTaskSummary(ctx, taskID, summary); err != nil {
			return fmt.Errorf("record summary: %w", err)
		}
		sess, err := m.store.GetSession(ctx, sessionID)
		if err == nil && sess != nil {
			sess.Summary = truncate(summary, 200)
			if err := m.store.UpdateSession(ctx, *sess); err != nil {
				m.logger.Warn("cannot update session summary", "session", sessionID, "err", err)
			}
		}
	}
	return nil
}

// ContextPrompt renders the session's earlier tasks as a short preamble, so
// follow-up tasks in the same session see what already happened.
func (m *Manager) ContextPrompt(ctx context.Context, sessionID string) (string, error) {
	tasks, err := m.store.ListTasks(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Earlier tasks in this session:\n")
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s", i+1, truncate(t.Task, 120))
		if t.Summary != "" {
			fmt.Fprintf(&b, " -> %s", truncate(t.Summary, 160))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// StepDetail formats a stored step for display.
func (m *Manager) StepDetail(ctx context.Context, sessionID string, seq int) (string, error) {
	step, err := m.store.GetStep(ctx, sessionID, seq)
	if err != nil {
		return "", err
	}
	if step == nil {
		return "", fmt.Errorf("no step %d recorded in session %s", seq, sessionID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Step %d (%s)\n", step.Seq, step.Timestamp.Format(time.RFC3339))
	if step.Reply != "" {
		fmt.Fprintf(&b, "Reply: %s\n", step.Reply)
	}
	for _, call := range step.ToolCalls {
		fmt.Fprintf(&b, "Tool call: %s %v\n", call.Name, call.Arguments)
	}
	for _, outcome := range step.Outcomes {
		status := "ok"
		if !outcome.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "Outcome [%s] %s: %s\n", status, outcome.Tool, truncate(outcome.Text(), 500))
	}
	if step.Done {
		fmt.Fprintf(&b, "Done: %s\n", step.FinalMessage)
	}
	return b.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
