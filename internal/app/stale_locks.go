package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/usecase"
)

// Retriggerer re-submits an assessment for analysis. usecase.TriggerService implements it.
type Retriggerer interface {
	Trigger(ctx domain.Context, id, assessmentType, reason string) (usecase.TriggerResult, error)
}

// StaleLockSweeper finds assessments whose processing lock outlived the
// processing timeout and triggers them again. The triggered run performs the
// actual recovery; in-flight work is never cancelled.
type StaleLockSweeper struct {
	lister   domain.StaleLockLister
	trigger  Retriggerer
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	recent map[string]time.Time
}

const staleSweepPageSize = 100

// NewStaleLockSweeper returns nil when the store cannot list stale locks.
func NewStaleLockSweeper(lister domain.StaleLockLister, trigger Retriggerer, maxAge, interval time.Duration) *StaleLockSweeper {
	if lister == nil || trigger == nil {
		return nil
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StaleLockSweeper{
		lister:   lister,
		trigger:  trigger,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		recent:   map[string]time.Time{},
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *StaleLockSweeper) Run(ctx context.Context) error {
	if s == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stale lock sweeper stopping")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce re-triggers every stale assessment not already re-triggered within
// the last maxAge and returns how many were submitted.
func (s *StaleLockSweeper) SweepOnce(ctx context.Context) int {
	ctx, span := otel.Tracer("app.sweeper").Start(ctx, "StaleLockSweeper.SweepOnce")
	defer span.End()

	now := s.now()
	cutoff := now.Add(-s.maxAge)
	span.SetAttributes(attribute.Float64("sweeper.max_age_seconds", s.maxAge.Seconds()))

	stale, err := s.lister.ListStaleProcessing(ctx, cutoff, staleSweepPageSize)
	if err != nil {
		span.RecordError(err)
		slog.Error("stale lock sweep failed to list assessments", slog.Any("error", err))
		return 0
	}

	s.mu.Lock()
	for id, at := range s.recent {
		if now.Sub(at) >= s.maxAge {
			delete(s.recent, id)
		}
	}
	s.mu.Unlock()

	submitted := 0
	for _, a := range stale {
		s.mu.Lock()
		_, seen := s.recent[a.ID]
		s.mu.Unlock()
		if seen {
			continue
		}
		if _, err := s.trigger.Trigger(ctx, a.ID, string(a.Type), "stale_lock"); err != nil {
			slog.Error("stale lock re-trigger failed", slog.String("assessment_id", a.ID), slog.Any("error", err))
			continue
		}
		s.mu.Lock()
		s.recent[a.ID] = now
		s.mu.Unlock()
		submitted++
		slog.Info("stale processing lock re-triggered", slog.String("assessment_id", a.ID), slog.String("assessment_type", string(a.Type)))
	}
	span.SetAttributes(
		attribute.Int("sweeper.stale", len(stale)),
		attribute.Int("sweeper.submitted", submitted),
	)
	return submitted
}
