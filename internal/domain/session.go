package domain

import (
	"context"
	"time"
)

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// Session groups the tasks a user submitted from one working context.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	Workdir   string        `json:"workdir"`
	Summary   string        `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TaskRecord is one task submitted within a session, with the short result
// summary produced when the run ended.
type TaskRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Task      string    `json:"task"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredStep is a StepRecord as persisted, annotated with its session and
// task. Step numbers are unique per session, not per task.
type StoredStep struct {
	StepRecord
	SessionID string `json:"session_id"`
	TaskID    int64  `json:"task_id"`
}

// SessionStore persists sessions, their tasks, and the step journal. The
// storage medium is owned here; the engine only emits the linear records.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	UpdateSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, id string) error

	AddTask(ctx context.Context, t TaskRecord) (int64, error)
	ListTasks(ctx context.Context, sessionID string) ([]TaskRecord, error)
	SetTaskSummary(ctx context.Context, taskID int64, summary string) error

	AddStep(ctx context.Context, sessionID string, taskID int64, step StepRecord) error
	GetStep(ctx context.Context, sessionID string, seq int) (*StoredStep, error)

	Close() error
}
