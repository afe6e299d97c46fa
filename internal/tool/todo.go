package tool

import (
	"context"
	"fmt"
	"sync"

	"codepilot/internal/domain"
)

// TodoTool maintains the task checklist the agent uses to break down work.
// The list is replaced wholesale on every call; the CLI reads it back to
// display progress.
type TodoTool struct {
	mu    sync.Mutex
	todos []map[string]any
}

func NewTodoTool() *TodoTool { return &TodoTool{} }

func (t *TodoTool) Name() string { return "todowrite" }
func (t *TodoTool) Description() string {
	return "Replace the task checklist. Each item should have content and a status (pending | in_progress | completed)."
}
func (t *TodoTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"todos": {Type: "array", Description: "The full checklist; replaces any previous list"},
		},
		[]string{"todos"},
	)
}

func (t *TodoTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	raw, ok := args["todos"].([]any)
	if !ok {
		return domain.Response{}, fmt.Errorf("todos must be an array")
	}

	todos := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			todos = append(todos, m)
		} else {
			todos = append(todos, map[string]any{"content": fmt.Sprintf("%v", item)})
		}
	}

	t.mu.Lock()
	t.todos = todos
	t.mu.Unlock()

	return domain.Response{
		Content: fmt.Sprintf("todo list updated (%d item(s))", len(todos)),
		Data:    map[string]any{"todos": todos},
	}, nil
}

// List returns a copy of the current checklist.
func (t *TodoTool) List() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]map[string]any, len(t.todos))
	copy(out, t.todos)
	return out
}

var _ domain.Tool = (*TodoTool)(nil)
