package tool

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"codepilot/internal/domain"
)

const (
	fetchTimeout    = 30 * time.Second
	fetchMaxBytes   = 512 * 1024
	fetchMaxOutput  = 5000
	userAgentString = "CodePilot/0.2"
)

// WebFetchTool retrieves a URL and returns its content, optionally stripped
// down to plain text.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

func (t *WebFetchTool) Name() string { return "webfetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch the content of a URL. Use format 'text' to strip HTML tags, 'markdown' (default) to keep the raw body."
}
func (t *WebFetchTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"url":    {Type: "string", Description: "URL to fetch"},
			"format": {Type: "string", Description: "Output format: markdown | text | html (default markdown)"},
		},
		[]string{"url"},
	)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	rawURL := ArgsString(args, "url")
	if rawURL == "" {
		return domain.Response{}, fmt.Errorf("missing argument: url")
	}
	format := ArgsString(args, "format")
	if format == "" {
		format = "markdown"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentString)

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Response{}, fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes))
	if err != nil {
		return domain.Response{}, fmt.Errorf("read response: %w", err)
	}

	content := string(body)
	if format == "text" {
		content = tagPattern.ReplaceAllString(content, "")
		content = html.UnescapeString(content)
		content = strings.TrimSpace(whitespacePattern.ReplaceAllString(content, " "))
	}

	size := len(content)
	if size > fetchMaxOutput {
		content = content[:fetchMaxOutput]
	}

	return domain.Response{
		Content: content,
		Data: map[string]any{
			"url":    rawURL,
			"format": format,
			"size":   size,
		},
	}, nil
}

var _ domain.Tool = (*WebFetchTool)(nil)
