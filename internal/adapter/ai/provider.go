package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/career-readiness/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/career-readiness/internal/adapter/ai/real"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// New builds the configured provider client, paced by waiter when non-nil.
// The returned client may implement io.Closer.
func New(ctx context.Context, cfg config.Config, waiter Waiter) (domain.AIClient, error) {
	var (
		base domain.AIClient
		err  error
	)
	switch p := cfg.Provider(); p {
	case config.ProviderOpenAI:
		base, err = real.New(cfg)
	case config.ProviderGemini:
		base, err = gemini.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown AI provider %q", domain.ErrConfig, p)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("ai provider configured", slog.String("provider", cfg.Provider()))
	return NewRateLimited(base, waiter, "ai:"+cfg.Provider()), nil
}
