package provider

import (
	"context"
	"log/slog"
	"net/http"

	"codepilot/internal/domain"
)

// OpenAI implements domain.Provider for OpenAI-compatible APIs. It also
// serves local inference servers (Ollama, vLLM, LM Studio) pointed at via
// APIBase, where the API key may be empty.
type OpenAI struct {
	name    string
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	Name    string // provider name for logs and errors, defaults to "openai"
	APIKey  string
	APIBase string
	Model   string
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		name:    cfg.Name,
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:  cfg.Logger,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Models() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "o3-mini"}
}

func (o *OpenAI) Healthy(ctx context.Context) error {
	return checkModelsEndpoint(ctx, o.client, o.name, o.apiBase, o.apiKey)
}

func (o *OpenAI) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	body := wireRequest{
		Model:    model,
		Messages: buildWireMessages(req.Messages),
		Tools:    buildWireTools(req.Tools),
		Stream:   false,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	return completeChat(ctx, o.client, o.logger, o.name, o.apiBase+"/chat/completions", o.apiKey, body)
}

var _ domain.Provider = (*OpenAI)(nil)
