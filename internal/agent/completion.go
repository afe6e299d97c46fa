package agent

import (
	"strings"

	"codepilot/internal/domain"
)

// Marker sets for the completion heuristic. Matching is case-insensitive
// substring search. The rule order below is load-bearing: reordering the
// rules changes when runs terminate.

// successMarkers end a run when a prior tool result carries one.
var successMarkers = []string{
	"success",
	"file saved",
	"created successfully",
	"replacement applied",
	"command completed",
}

// completionPhrases end a run when the reply itself announces completion.
var completionPhrases = []string{
	"task complete",
	"task completed",
	"task is complete",
	"created successfully",
	"successfully created",
	"successfully completed",
	"finished successfully",
	"all done",
}

// saveMarkers are the looser save/creation signals checked late in the
// rule chain.
var saveMarkers = []string{
	"saved",
	"created",
	"wrote",
	"written",
}

// questionWords classify a task as informational.
var questionWords = []string{
	"explain",
	"what is",
	"what are",
	"what does",
	"how does",
	"how do",
	"why",
	"describe",
	"tell me about",
}

// operationWords classify a task as side-effecting.
var operationWords = []string{
	"create",
	"write",
	"edit",
	"delete",
	"remove",
	"run",
	"execute",
	"generate",
	"modify",
	"build",
	"install",
	"fix",
	"add",
	"update",
}

// evaluateCompletion decides whether a free-text-only reply ends the run.
// Rules are applied in order; the first match wins:
//
//  1. any earlier step this run issued tool calls
//  2. a prior tool result matches a success marker
//  3. the reply contains a completion phrase
//  4. the reply is shorter than 10 characters (not done)
//  5. the task is a question and not an operation
//  6. the task is an operation and no tool call can be extracted from
//     the reply (not done)
//  7. a prior tool result contains a save/creation marker
//  8. otherwise not done
func evaluateCompletion(task, reply string, history []domain.StepRecord) bool {
	taskLower := strings.ToLower(task)
	replyLower := strings.ToLower(reply)

	// Rule 1: tools already ran this run, so the free text is a wrap-up.
	for _, step := range history {
		if len(step.ToolCalls) > 0 {
			return true
		}
	}

	// Rule 2: a prior tool result reported success.
	if anyOutcomeContains(history, successMarkers) {
		return true
	}

	// Rule 3: the reply announces completion.
	if containsAny(replyLower, completionPhrases) {
		return true
	}

	// Rule 4: too short to be a real answer.
	if len(strings.TrimSpace(reply)) < 10 {
		return false
	}

	// Rule 5: an informational task is answered by prose alone.
	if containsAny(taskLower, questionWords) && !containsAny(taskLower, operationWords) {
		return true
	}

	// Rule 6: an operational task without an actionable reply means the
	// model stalled; keep iterating.
	if containsAny(taskLower, operationWords) && len(extractToolCallsFromContent(reply)) == 0 {
		return false
	}

	// Rule 7: something was saved or created at some point.
	if anyOutcomeContains(history, saveMarkers) {
		return true
	}

	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func anyOutcomeContains(history []domain.StepRecord, markers []string) bool {
	for _, step := range history {
		for _, outcome := range step.Outcomes {
			if containsAny(strings.ToLower(outcome.Text()), markers) {
				return true
			}
		}
	}
	return false
}
