package provider

import (
	"context"
	"log/slog"
	"net/http"

	"codepilot/internal/domain"
)

// Qwen implements domain.Provider for Alibaba DashScope's OpenAI-compatible
// mode. Thinking output arrives as reasoning_content and must be explicitly
// enabled or disabled per request.
type Qwen struct {
	apiKey         string
	apiBase        string
	model          string
	enableThinking bool
	client         *http.Client
	logger         *slog.Logger
}

type QwenConfig struct {
	APIKey         string
	APIBase        string
	Model          string
	EnableThinking bool
	Logger         *slog.Logger
}

func NewQwen(cfg QwenConfig) *Qwen {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen-plus"
	}
	return &Qwen{
		apiKey:         cfg.APIKey,
		apiBase:        cfg.APIBase,
		model:          cfg.Model,
		enableThinking: cfg.EnableThinking,
		client:         &http.Client{Timeout: defaultHTTPTimeout},
		logger:         cfg.Logger,
	}
}

func (q *Qwen) Name() string { return "qwen" }

func (q *Qwen) Models() []string {
	return []string{"qwen-plus", "qwen-max", "qwen-turbo", "qwen3-coder-plus"}
}

func (q *Qwen) Healthy(ctx context.Context) error {
	return checkModelsEndpoint(ctx, q.client, "qwen", q.apiBase, q.apiKey)
}

func (q *Qwen) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = q.model
	}

	enable := q.enableThinking
	body := wireRequest{
		Model:          model,
		Messages:       buildWireMessages(req.Messages),
		Tools:          buildWireTools(req.Tools),
		Stream:         false,
		EnableThinking: &enable,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	return completeChat(ctx, q.client, q.logger, "qwen", q.apiBase+"/chat/completions", q.apiKey, body)
}

var _ domain.Provider = (*Qwen)(nil)
