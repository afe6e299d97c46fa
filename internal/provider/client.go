package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"codepilot/internal/domain"
)

const defaultHTTPTimeout = 120 * time.Second

// retryPolicy bounds transient-failure handling for provider HTTP calls.
// Network errors, 5xx responses, and 429 rate limits are retried with
// quadratic backoff plus jitter; everything else is returned as-is. Tool
// work is never retried, only the transport.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

// chatRetry is the policy completeChat runs under. Package-level so tests
// can shrink the backoff.
var chatRetry = retryPolicy{attempts: 3, baseDelay: time.Second}

func transientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// do issues the request, retrying transient failures. The request carries a
// body, so it is rebuilt for every attempt.
func (p retryPolicy) do(ctx context.Context, client *http.Client, logger *slog.Logger, buildReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && !transientStatus(resp.StatusCode) {
			return resp, nil
		}
		if err == nil {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
		}
		if attempt >= p.attempts {
			return nil, fmt.Errorf("giving up after %d retries: %w", p.attempts, err)
		}

		n := time.Duration(attempt + 1)
		backoff := n * n * p.baseDelay
		backoff += time.Duration(rand.Int63n(int64(backoff/2 + 1)))
		logger.Warn("provider request failed, retrying",
			"attempt", attempt+1, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Wire types for the OpenAI-compatible chat completions protocol. All three
// back-ends (OpenAI, DashScope, BigModel) speak this shape with small
// vendor extensions carried as optional fields.

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`

	// DashScope extension: thinking must be explicitly toggled for
	// non-streaming calls.
	EnableThinking *bool `json:"enable_thinking,omitempty"`
	// BigModel extension.
	Thinking *wireThinking `json:"thinking,omitempty"`
}

type wireThinking struct {
	Type string `json:"type"`
}

type wireMessage struct {
	Role             string         `json:"role"`
	Content          string         `json:"content"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	ToolCalls        []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"`
	Name             string         `json:"name,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireToolCall struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Function wireToolCallFn `json:"function"`
}

type wireToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// buildWireMessages converts domain messages to the wire shape. Assistant
// tool-call arguments are echoed back using the exact serialized text the
// back-end produced, so the round trip is byte-identical.
func buildWireMessages(messages []domain.Message) []wireMessage {
	msgs := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content}
		if m.ToolCallID != "" {
			wm.ToolCallID = m.ToolCallID
			wm.Name = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			args := tc.RawArguments
			if args == "" {
				raw, _ := json.Marshal(tc.Arguments)
				args = string(raw)
			}
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				Type: "function",
				ID:   tc.ID,
				Function: wireToolCallFn{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		msgs = append(msgs, wm)
	}
	return msgs
}

func buildWireTools(tools []domain.ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// decodeToolCall parses the serialized arguments and keeps the raw text
// alongside. Arguments that are not valid JSON land under the "raw" key
// rather than failing the step.
func decodeToolCall(tc wireToolCall) domain.ToolCall {
	args := make(map[string]any)
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || args == nil {
			args = map[string]any{domain.RawArgKey: tc.Function.Arguments}
		}
	}
	return domain.ToolCall{
		ID:           tc.ID,
		Name:         tc.Function.Name,
		Arguments:    args,
		RawArguments: tc.Function.Arguments,
	}
}

// completeChat posts a chat completion request and maps the response. Shared
// by every OpenAI-compatible back-end.
func completeChat(ctx context.Context, client *http.Client, logger *slog.Logger, name, endpoint, apiKey string, body wireRequest) (*domain.ChatResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+apiKey)
		}
		return httpReq, nil
	}

	start := time.Now()
	resp, err := chatRetry.do(ctx, client, logger, buildReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %d: %s", name, resp.StatusCode, string(respBody))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if len(wire.Choices) == 0 {
		return &domain.ChatResponse{FinishReason: "stop", LatencyMs: time.Since(start).Milliseconds()}, nil
	}

	choice := wire.Choices[0]
	out := &domain.ChatResponse{
		Content:      choice.Message.Content,
		Thinking:     choice.Message.ReasoningContent,
		FinishReason: choice.FinishReason,
		Usage: domain.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, decodeToolCall(tc))
	}
	return out, nil
}

// checkModelsEndpoint probes GET {base}/models, the cheapest health signal an
// OpenAI-compatible service offers.
func checkModelsEndpoint(ctx context.Context, client *http.Client, name, apiBase, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", apiBase+"/models", nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s not reachable: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: invalid API key", name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", name, resp.StatusCode)
	}
	return nil
}
