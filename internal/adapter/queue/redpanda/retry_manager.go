package redpanda

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// taskPublisher is what the retry manager needs from the producer.
type taskPublisher interface {
	EnqueueAnalysis(ctx domain.Context, task domain.AnalysisTask) (string, error)
	PublishDeadLetter(ctx domain.Context, task domain.AnalysisTask, cause error) error
}

// RetryPolicy bounds re-delivery of failed triggers.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Cooldown is the minimum delay after the provider signalled backpressure.
	Cooldown time.Duration
}

// DefaultRetryPolicy matches the processing retry budget of three attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   5 * time.Second,
	MaxDelay:    2 * time.Minute,
	Cooldown:    30 * time.Second,
}

// Delay returns the wait before the given zero-based attempt is re-published.
func (p RetryPolicy) Delay(attempt int, cause error) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if errors.Is(cause, domain.ErrUpstreamRateLimit) || errors.Is(cause, domain.ErrUpstreamTimeout) {
		if d < p.Cooldown {
			d = p.Cooldown
		}
	}
	return d
}

// RetryManager decides what happens to a trigger whose run failed: a delayed
// re-publish or the dead-letter topic.
type RetryManager struct {
	pub    taskPublisher
	policy RetryPolicy
	// after schedules f; replaced in tests.
	after func(d time.Duration, f func())
}

// NewRetryManager returns a manager publishing through pub.
func NewRetryManager(pub taskPublisher, policy RetryPolicy) *RetryManager {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return &RetryManager{
		pub:    pub,
		policy: policy,
		after:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Handle routes a failed task. Non-retryable causes and exhausted attempts go
// to the dead-letter topic; the rest are re-published after a delay.
func (rm *RetryManager) Handle(ctx context.Context, task domain.AnalysisTask, cause error) error {
	lg := observability.Logger(ctx).With(
		slog.String("assessment_id", task.AssessmentID),
		slog.String("message_id", task.MessageID),
		slog.Int("attempt", task.Attempt),
		slog.String("error_code", domain.ErrorCode(cause)))

	if !domain.IsRetryable(cause) || task.Attempt+1 >= rm.policy.MaxAttempts {
		lg.Warn("moving analysis trigger to dead-letter topic", slog.Any("error", cause))
		return rm.pub.PublishDeadLetter(ctx, task, cause)
	}

	delay := rm.policy.Delay(task.Attempt, cause)
	next := task
	next.Attempt++
	next.Reason = "retry"
	next.EnqueuedAt = time.Time{}
	detached := context.WithoutCancel(ctx)
	lg.Info("scheduling analysis retry", slog.Duration("delay", delay))
	rm.after(delay, func() {
		if _, err := rm.pub.EnqueueAnalysis(detached, next); err != nil {
			observability.Logger(detached).Error("analysis retry publish failed",
				slog.String("assessment_id", next.AssessmentID),
				slog.Any("error", err))
		}
	})
	return nil
}
