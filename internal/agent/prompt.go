package agent

import (
	"fmt"
	"runtime"
	"strings"

	"codepilot/internal/domain"
)

// PromptBuilder assembles the system prompt for a run.
type PromptBuilder struct {
	workspace         string
	systemPromptExtra string
}

func NewPromptBuilder(workspace, systemPromptExtra string) *PromptBuilder {
	return &PromptBuilder{workspace: workspace, systemPromptExtra: systemPromptExtra}
}

// SystemPrompt renders the default system prompt: identity, environment,
// the tool catalog, and working rules. A session preamble (earlier tasks)
// is appended when present.
func (p *PromptBuilder) SystemPrompt(tools []domain.ToolDefinition, sessionContext string) string {
	var b strings.Builder

	b.WriteString("You are CodePilot, an autonomous coding agent. You complete tasks by calling tools, one step at a time, and you verify your work before declaring it done.\n\n")

	fmt.Fprintf(&b, "Environment:\n- OS: %s/%s\n- Working directory: %s\n\n", runtime.GOOS, runtime.GOARCH, p.workspace)

	if len(tools) > 0 {
		b.WriteString("Available tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Rules:
- Use tools to act. Do not describe what you would do; do it.
- All file paths are relative to the working directory.
- When a command must run, use the bash tool and check its output.
- If a requirement is genuinely ambiguous, use the question tool once and stop.
- When the task is finished, reply with a short summary in plain text without calling any tool.
`)

	if sessionContext != "" {
		b.WriteString("\n")
		b.WriteString(sessionContext)
	}

	if p.systemPromptExtra != "" {
		b.WriteString("\n")
		b.WriteString(p.systemPromptExtra)
		b.WriteString("\n")
	}

	return b.String()
}
