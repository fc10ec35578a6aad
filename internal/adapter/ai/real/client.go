// Package real implements domain.AIClient against an OpenAI-compatible chat
// completions API.
package real

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/career-readiness/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const provider = "openai"

// Client calls /chat/completions once per ChatJSON. Retries belong to the
// orchestrator, not to this adapter.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
	hc          *http.Client
}

// New validates credentials eagerly; a missing key is domain.ErrMissingAPIKey.
func New(cfg config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		slog.Error("OpenAI API key missing", slog.String("provider", provider))
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", domain.ErrMissingAPIKey)
	}
	timeout := cfg.AITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		temperature: cfg.AITemperature,
		maxTokens:   cfg.AIMaxTokens,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatJSON requests a JSON-object completion and returns the first choice's content.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (out string, err error) {
	op := opts.Operation
	if op == "" {
		op = "chat"
	}
	start := time.Now()
	defer func() { observability.ObserveAIRequest(provider, op, start, err) }()

	body := chatRequest{
		Model:          c.model,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if opts.Temperature > 0 {
		body.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		body.MaxTokens = opts.MaxTokens
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: encode chat request: %v", domain.ErrInternal, err)
	}

	lg := observability.Logger(ctx)
	endpoint := c.baseURL + "/chat/completions"
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: build chat request: %v", domain.ErrInternal, err)
	}
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(r)
	if err != nil {
		lg.Warn("ai provider request failed", slog.String("provider", provider), slog.String("op", op), slog.Any("error", err))
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(bodyBytes)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		lg.Warn("ai provider non-2xx",
			slog.String("provider", provider),
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.model),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
			slog.String("body", snippet))
		return "", statusError(resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(bodyBytes, &cr); err != nil {
		lg.Error("ai provider decode error", slog.String("provider", provider), slog.String("op", op), slog.Any("error", err))
		return "", fmt.Errorf("%w: decode chat response: %v", domain.ErrUpstream, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices from provider", domain.ErrSchemaInvalid)
	}
	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content from provider", domain.ErrSchemaInvalid)
	}

	c.logUsage(lg, op, cr, systemPrompt, userPrompt, content)
	return content, nil
}

func (c *Client) logUsage(lg *slog.Logger, op string, cr chatResponse, systemPrompt, userPrompt, content string) {
	model := cr.Model
	if model == "" {
		model = c.model
	}
	if cr.Usage != nil {
		lg.Info("ai provider call successful",
			slog.String("provider", provider),
			slog.String("op", op),
			slog.String("model", model),
			slog.Int("prompt_tokens", cr.Usage.PromptTokens),
			slog.Int("completion_tokens", cr.Usage.CompletionTokens))
		return
	}
	usage := tokencount.Default.Usage(systemPrompt, userPrompt, content, model, provider)
	lg.Info("ai provider call successful",
		slog.String("provider", provider),
		slog.String("op", op),
		slog.String("model", model),
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens),
		slog.Bool("estimated_tokens", usage.Estimated))
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamRateLimit, code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials (status %d)", domain.ErrConfig, code)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamTimeout, code)
	default:
		return fmt.Errorf("%w: chat status %d", domain.ErrUpstream, code)
	}
}

func classifyTransportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
}
