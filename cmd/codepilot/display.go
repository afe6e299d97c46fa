package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"codepilot/internal/domain"
)

var (
	stepColor    = color.New(color.FgCyan, color.Bold)
	toolColor    = color.New(color.FgYellow)
	okColor      = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	finalColor   = color.New(color.FgGreen, color.Bold)
	dimColor     = color.New(color.Faint)
	summaryColor = color.New(color.FgCyan)
)

func printStep(step domain.StepRecord) {
	stepColor.Printf("● step %d\n", step.Seq)

	if step.Thinking != "" {
		dimColor.Printf("  %s\n", firstLine(step.Thinking))
	}
	if step.Reply != "" && len(step.ToolCalls) == 0 && !step.Done {
		fmt.Printf("  %s\n", step.Reply)
	}

	for i, call := range step.ToolCalls {
		toolColor.Printf("  → %s", call.Name)
		dimColor.Printf(" %s\n", compactArgs(call))
		if i < len(step.Outcomes) {
			printOutcome(step.Outcomes[i])
		}
	}

	if step.Done {
		if step.FinalMessage != "" {
			finalColor.Printf("✔ %s\n", step.FinalMessage)
		} else {
			finalColor.Println("✔ done")
		}
	}
	if !step.Done && step.FinalMessage == "task interrupted" {
		failColor.Println("✖ task interrupted")
	}
}

func printOutcome(o domain.Outcome) {
	text := firstLine(o.Text())
	if o.Success {
		okColor.Printf("    ✔ %s", text)
	} else {
		failColor.Printf("    ✖ %s", text)
	}
	dimColor.Printf(" (%s)\n", o.Duration.Round(time.Millisecond))
}

func printSummary(s domain.RunSummary) {
	summaryColor.Printf("\n%d step(s), %d/%d tool call(s) succeeded, %s elapsed\n",
		s.TotalSteps, s.SuccessfulToolCalls, s.TotalToolCalls, s.Elapsed.Round(time.Millisecond))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + " …"
	}
	if len(s) > 160 {
		s = s[:160] + "…"
	}
	return s
}

func compactArgs(call domain.ToolCall) string {
	if len(call.Arguments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(call.Arguments))
	for k, v := range call.Arguments {
		val := fmt.Sprintf("%v", v)
		if len(val) > 60 {
			val = val[:60] + "…"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, val))
	}
	return strings.Join(parts, " ")
}
