package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService prunes rate-limit bucket mirrors nobody has touched within
// the retention window. Assessment records are owned elsewhere and never deleted.
type CleanupService struct {
	Pool      PgxPool
	Retention time.Duration
	Now       func() time.Time
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(pool PgxPool, retention time.Duration) *CleanupService {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &CleanupService{Pool: pool, Retention: retention, Now: time.Now}
}

// PruneBuckets deletes idle bucket rows and returns how many went.
func (s *CleanupService) PruneBuckets(ctx context.Context) (int64, error) {
	cutoff := s.Now().Add(-s.Retention)
	tag, err := s.Pool.Exec(ctx, `DELETE FROM rate_limit_buckets WHERE last_refill < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.prune_buckets: %w", err)
	}
	n := tag.RowsAffected()
	slog.Info("rate limit bucket cleanup completed", slog.Int64("deleted_buckets", n), slog.Time("cutoff", cutoff))
	return n, nil
}

// RunPeriodic prunes once, then every interval until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour // daily by default
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.PruneBuckets(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if _, err := s.PruneBuckets(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
