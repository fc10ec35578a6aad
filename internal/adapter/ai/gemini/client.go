// Package gemini implements domain.AIClient on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const provider = "gemini"

// Client wraps a genai.Client. One attempt per ChatJSON.
type Client struct {
	gc          *genai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// New dials the Gemini API. An empty key is domain.ErrMissingAPIKey.
func New(ctx context.Context, cfg config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", domain.ErrMissingAPIKey)
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", domain.ErrConfig, err)
	}
	return &Client{
		gc:          gc,
		model:       cfg.GeminiModel,
		temperature: cfg.AITemperature,
		maxTokens:   cfg.AIMaxTokens,
		timeout:     cfg.AITimeout,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.gc == nil {
		return nil
	}
	return c.gc.Close()
}

// ChatJSON asks for an application/json response with the system prompt as
// the model's system instruction.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (out string, err error) {
	op := opts.Operation
	if op == "" {
		op = "chat"
	}
	start := time.Now()
	defer func() { observability.ObserveAIRequest(provider, op, start, err) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	m := c.gc.GenerativeModel(c.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	m.ResponseMIMEType = "application/json"
	temp := c.temperature
	if opts.Temperature > 0 {
		temp = opts.Temperature
	}
	m.SetTemperature(temp)
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}

	lg := observability.Logger(ctx)
	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		lg.Warn("ai provider request failed", slog.String("provider", provider), slog.String("op", op), slog.String("model", c.model), slog.Any("error", err))
		return "", classify(ctx, err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	if u := resp.UsageMetadata; u != nil {
		lg.Info("ai provider call successful",
			slog.String("provider", provider),
			slog.String("op", op),
			slog.String("model", c.model),
			slog.Int("prompt_tokens", int(u.PromptTokenCount)),
			slog.Int("completion_tokens", int(u.CandidatesTokenCount)))
	}
	return text, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", domain.ErrSchemaInvalid)
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content in response (finish reason %v)", domain.ErrSchemaInvalid, cand.FinishReason)
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("%w: no text parts in response", domain.ErrSchemaInvalid)
	}
	return out, nil
}

func classify(ctx context.Context, err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamRateLimit, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", domain.ErrConfig, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamRateLimit, err)
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %v", domain.ErrConfig, err)
		case codes.DeadlineExceeded:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamRateLimit, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
}
