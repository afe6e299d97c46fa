package tool

import (
	"context"
	"fmt"

	"codepilot/internal/domain"
)

// QuestionTool relays clarifying questions to the user. It does not wait
// for an answer itself; emitting the sentinel content is what makes the
// agent loop stop and hand control back to the human.
type QuestionTool struct{}

func NewQuestionTool() *QuestionTool { return &QuestionTool{} }

func (t *QuestionTool) Name() string { return "question" }
func (t *QuestionTool) Description() string {
	return "Ask the user one or more clarifying questions. Use when requirements are ambiguous or a decision needs human input. The run pauses until the user replies."
}
func (t *QuestionTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"questions": {Type: "array", Description: "Questions to present to the user"},
		},
		[]string{"questions"},
	)
}

func (t *QuestionTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	raw, ok := args["questions"].([]any)
	if !ok || len(raw) == 0 {
		return domain.Response{}, fmt.Errorf("questions must be a non-empty array")
	}

	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		questions = append(questions, fmt.Sprintf("%v", q))
	}

	return domain.Response{
		Content: domain.QuestionSentinel,
		Data: map[string]any{
			"questions": questions,
			"pending":   true,
		},
	}, nil
}

var _ domain.Tool = (*QuestionTool)(nil)
