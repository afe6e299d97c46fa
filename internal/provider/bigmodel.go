package provider

import (
	"context"
	"log/slog"
	"net/http"

	"codepilot/internal/domain"
)

// BigModel implements domain.Provider for Zhipu's GLM API. The protocol is
// OpenAI-compatible; thinking is requested through a vendor-specific
// thinking object.
type BigModel struct {
	apiKey         string
	apiBase        string
	model          string
	enableThinking bool
	client         *http.Client
	logger         *slog.Logger
}

type BigModelConfig struct {
	APIKey         string
	APIBase        string
	Model          string
	EnableThinking bool
	Logger         *slog.Logger
}

func NewBigModel(cfg BigModelConfig) *BigModel {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://open.bigmodel.cn/api/paas/v4"
	}
	if cfg.Model == "" {
		cfg.Model = "glm-4.7"
	}
	return &BigModel{
		apiKey:         cfg.APIKey,
		apiBase:        cfg.APIBase,
		model:          cfg.Model,
		enableThinking: cfg.EnableThinking,
		client:         &http.Client{Timeout: defaultHTTPTimeout},
		logger:         cfg.Logger,
	}
}

func (b *BigModel) Name() string { return "bigmodel" }

func (b *BigModel) Models() []string {
	return []string{"glm-4.7", "glm-4.6", "glm-4-air"}
}

func (b *BigModel) Healthy(ctx context.Context) error {
	return checkModelsEndpoint(ctx, b.client, "bigmodel", b.apiBase, b.apiKey)
}

func (b *BigModel) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	body := wireRequest{
		Model:    model,
		Messages: buildWireMessages(req.Messages),
		Tools:    buildWireTools(req.Tools),
		Stream:   false,
	}
	if b.enableThinking {
		body.Thinking = &wireThinking{Type: "enabled"}
	} else {
		body.Thinking = &wireThinking{Type: "disabled"}
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	return completeChat(ctx, b.client, b.logger, "bigmodel", b.apiBase+"/chat/completions", b.apiKey, body)
}

var _ domain.Provider = (*BigModel)(nil)
