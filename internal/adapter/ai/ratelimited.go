package ai

import (
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// Waiter blocks until cost tokens are available in the named bucket.
type Waiter interface {
	Wait(ctx domain.Context, key string, cost int64) error
}

type rateLimited struct {
	base   domain.AIClient
	waiter Waiter
	key    string
}

// NewRateLimited paces calls to base through w. A nil waiter returns base unchanged.
func NewRateLimited(base domain.AIClient, w Waiter, key string) domain.AIClient {
	if w == nil {
		return base
	}
	return &rateLimited{base: base, waiter: w, key: key}
}

func (r *rateLimited) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	if err := r.waiter.Wait(ctx, r.key, 1); err != nil {
		return "", err
	}
	return r.base.ChatJSON(ctx, systemPrompt, userPrompt, opts)
}

// Close forwards to the wrapped client when it holds resources.
func (r *rateLimited) Close() error {
	if c, ok := r.base.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
