package tool

import (
	"context"
	"fmt"

	"codepilot/internal/domain"
)

// StepDetailer resolves a recorded step into display text. Implemented by
// the session manager.
type StepDetailer interface {
	StepDetail(ctx context.Context, sessionID string, seq int) (string, error)
}

// SessionDetailTool lets the model inspect an earlier step of the current
// session by number.
type SessionDetailTool struct {
	detailer  StepDetailer
	sessionID func() string
}

func NewSessionDetailTool(detailer StepDetailer, sessionID func() string) *SessionDetailTool {
	return &SessionDetailTool{detailer: detailer, sessionID: sessionID}
}

func (t *SessionDetailTool) Name() string { return "session_detail" }

func (t *SessionDetailTool) Description() string {
	return "Show the full record of an earlier step in this session: the reply, tool calls, and their results."
}

func (t *SessionDetailTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"stepNumber": {Type: "integer", Description: "Step number to inspect, starting at 1"},
	}, []string{"stepNumber"})
}

func (t *SessionDetailTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	seq := ArgsInt(args, "stepNumber", 0)
	if seq < 1 {
		return domain.Response{}, fmt.Errorf("stepNumber must be a positive integer")
	}

	id := t.sessionID()
	if id == "" {
		return domain.Response{}, fmt.Errorf("no active session")
	}

	detail, err := t.detailer.StepDetail(ctx, id, seq)
	if err != nil {
		return domain.Response{}, err
	}
	return domain.Response{
		Content: detail,
		Data:    map[string]any{"session": id, "step": seq},
	}, nil
}

var _ domain.Tool = (*SessionDetailTool)(nil)
