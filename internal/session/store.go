package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"codepilot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.SessionStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		status      TEXT NOT NULL DEFAULT 'active',
		workdir     TEXT,
		summary     TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		task        TEXT NOT NULL,
		summary     TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id, created_at);

	CREATE TABLE IF NOT EXISTS steps (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		task_id       INTEGER NOT NULL,
		seq           INTEGER NOT NULL,
		timestamp     DATETIME,
		task          TEXT,
		reply         TEXT,
		tool_calls    TEXT,
		outcomes      TEXT,
		done          INTEGER DEFAULT 0,
		final_message TEXT,
		thinking      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_steps_session ON steps(session_id, seq);

	CREATE TABLE IF NOT EXISTS meta (
		key    TEXT PRIMARY KEY,
		value  TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess domain.Session) error {
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = now
	}
	if sess.Status == "" {
		sess.Status = domain.SessionActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, status, workdir, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Status), sess.Workdir, sess.Summary, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	var status string
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, workdir, summary, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &status, &sess.Workdir, &summary, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Status = domain.SessionStatus(status)
	sess.Summary = summary.String
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, workdir, summary, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		var status string
		var summary sql.NullString
		if err := rows.Scan(&sess.ID, &status, &sess.Workdir, &summary, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sess.Status = domain.SessionStatus(status)
		sess.Summary = summary.String
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess domain.Session) error {
	sess.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status=?, workdir=?, summary=?, updated_at=? WHERE id=?`,
		string(sess.Status), sess.Workdir, sess.Summary, sess.UpdatedAt, sess.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM steps WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM tasks WHERE session_id = ?`, id)
	return err
}

func (s *SQLiteStore) AddTask(ctx context.Context, t domain.TaskRecord) (int64, error) {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (session_id, task, summary, created_at) VALUES (?, ?, ?, ?)`,
		t.SessionID, t.Task, t.Summary, t.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, t.SessionID)
	return res.LastInsertId()
}

func (s *SQLiteStore) ListTasks(ctx context.Context, sessionID string) ([]domain.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, task, summary, created_at
		 FROM tasks WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.TaskRecord
	for rows.Next() {
		var t domain.TaskRecord
		var summary sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Task, &summary, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Summary = summary.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) SetTaskSummary(ctx context.Context, taskID int64, summary string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET summary = ? WHERE id = ?`, summary, taskID)
	return err
}

func (s *SQLiteStore) AddStep(ctx context.Context, sessionID string, taskID int64, step domain.StepRecord) error {
	toolCalls, err := json.Marshal(step.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	outcomes, err := json.Marshal(step.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO steps (session_id, task_id, seq, timestamp, task, reply, tool_calls, outcomes, done, final_message, thinking)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, taskID, step.Seq, step.Timestamp, step.Task, step.Reply,
		string(toolCalls), string(outcomes), step.Done, step.FinalMessage, step.Thinking,
	)
	return err
}

// GetStep returns the most recent step with the given sequence number in
// the session. Sequence numbers restart at 1 for every task, so the latest
// row wins.
func (s *SQLiteStore) GetStep(ctx context.Context, sessionID string, seq int) (*domain.StoredStep, error) {
	var step domain.StoredStep
	var toolCalls, outcomes, finalMessage, thinking sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, task_id, seq, timestamp, task, reply, tool_calls, outcomes, done, final_message, thinking
		 FROM steps WHERE session_id = ? AND seq = ? ORDER BY id DESC LIMIT 1`,
		sessionID, seq,
	).Scan(&step.SessionID, &step.TaskID, &step.Seq, &step.Timestamp, &step.Task, &step.Reply,
		&toolCalls, &outcomes, &step.Done, &finalMessage, &thinking)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	step.FinalMessage = finalMessage.String
	step.Thinking = thinking.String
	if toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &step.ToolCalls); err != nil {
			s.logger.Warn("corrupt tool_calls column", "session", sessionID, "seq", seq, "err", err)
		}
	}
	if outcomes.String != "" {
		if err := json.Unmarshal([]byte(outcomes.String), &step.Outcomes); err != nil {
			s.logger.Warn("corrupt outcomes column", "session", sessionID, "seq", seq, "err", err)
		}
	}
	return &step, nil
}

// GetMeta reads a key from the meta table; missing keys return "".
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.SessionStore = (*SQLiteStore)(nil)
