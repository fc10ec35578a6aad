package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
	"github.com/fairyhunter13/career-readiness/internal/scoring/heuristic"
)

// Outcome reports what a Run did.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeRetriesExhausted Outcome = "retries_exhausted"
	OutcomeLocked           Outcome = "locked"
)

// Scoring methods stored in scoringMethod.
const (
	ScoringAI        = "ai"
	ScoringHeuristic = "heuristic"
	ScoringDefault   = "default"
)

// Analyst is the model-backed part of the pipeline. *analysis.Analyzer implements it.
type Analyst interface {
	ScoreResponses(ctx context.Context, actx domain.AssessmentContext) (domain.ScoreSet, error)
	AnalyzeResume(ctx context.Context, text string, actx domain.AssessmentContext) (domain.ResumeAnalysis, error)
	AssessCareerFit(ctx context.Context, actx domain.AssessmentContext, ra *domain.ResumeAnalysis) (domain.CareerFit, error)
	Recommend(ctx context.Context, actx domain.AssessmentContext, scores domain.ScoreSet, fit *domain.CareerFit) ([]domain.Recommendation, error)
}

// ProcessingConfig holds the lock windows, retry bound and pacing.
type ProcessingConfig struct {
	ConcurrentLockTime time.Duration
	ProcessingTimeout  time.Duration
	MaxRetryAttempts   int
	StageDelay         time.Duration
	LongStageDelay     time.Duration
	FormWeight         int
	// ReleaseBackOff builds the retry policy for the lock-release write.
	ReleaseBackOff func() backoff.BackOff
}

// ProcessingConfigFrom maps application config onto ProcessingConfig.
func ProcessingConfigFrom(cfg config.Config) ProcessingConfig {
	return ProcessingConfig{
		ConcurrentLockTime: cfg.ConcurrentLockTime,
		ProcessingTimeout:  cfg.ProcessingTimeout,
		MaxRetryAttempts:   cfg.MaxRetryAttempts,
		StageDelay:         cfg.StageDelay,
		LongStageDelay:     cfg.LongStageDelay,
		FormWeight:         cfg.FormWeight,
		ReleaseBackOff:     cfg.ReleaseBackOff,
	}
}

// ProcessingService runs the analysis pipeline for one assessment at a time.
type ProcessingService struct {
	Repo      domain.AssessmentRepository
	Analyst   Analyst
	Heuristic *heuristic.Scorer
	Validator *scoring.Validator
	Cfg       ProcessingConfig

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewProcessingService wires a ProcessingService with real time.
func NewProcessingService(repo domain.AssessmentRepository, analyst Analyst, h *heuristic.Scorer, v *scoring.Validator, cfg ProcessingConfig) *ProcessingService {
	if v == nil {
		v = scoring.NewValidator(nil)
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.FormWeight <= 0 {
		cfg.FormWeight = scoring.DefaultFormWeight
	}
	return &ProcessingService{
		Repo:      repo,
		Analyst:   analyst,
		Heuristic: h,
		Validator: v,
		Cfg:       cfg,
		Now:       func() time.Time { return time.Now().UTC() },
		Sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes one assessment. It returns a non-completed Outcome with a nil
// error when guards decide there is nothing to do. When the pipeline fails
// after the lock was taken, the lock is released and the error is returned.
func (s *ProcessingService) Run(ctx context.Context, id string, t domain.AssessmentType) (out Outcome, err error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ProcessingService.Run")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.id", id))
	lg := observability.Logger(ctx).With(slog.String("assessment_id", id))

	rec, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrAssessmentNotFound, id)
		}
		return "", fmt.Errorf("op=processing.load: %w", err)
	}
	if t == "" {
		t = rec.Type
	}
	span.SetAttributes(attribute.String("assessment.type", string(t)))
	typ := string(t)

	now := s.Now()
	d := rec.Data
	switch {
	case d.AIProcessed:
		observability.SkipAnalysis(typ, string(OutcomeAlreadyProcessed))
		return OutcomeAlreadyProcessed, nil
	case d.AIError != nil && d.AIRetryCount >= s.Cfg.MaxRetryAttempts:
		observability.SkipAnalysis(typ, string(OutcomeRetriesExhausted))
		return OutcomeRetriesExhausted, nil
	case d.LockHeld():
		elapsed := s.Cfg.ProcessingTimeout + time.Nanosecond
		if d.AIAnalysisStartedAt != nil {
			elapsed = now.Sub(*d.AIAnalysisStartedAt)
		}
		if elapsed <= s.Cfg.ProcessingTimeout {
			reason := string(OutcomeLocked)
			if elapsed >= s.Cfg.ConcurrentLockTime {
				reason = "lock_aging"
			}
			lg.Info("assessment locked by another worker", slog.Duration("lock_age", elapsed), slog.String("reason", reason))
			observability.SkipAnalysis(typ, reason)
			return OutcomeLocked, nil
		}
		lg.Warn("recovering stale processing lock", slog.Duration("lock_age", elapsed))
		observability.RecordStaleLockRecovery(typ)
		d.AIProcessingInProgress = false
		d.AIAnalysisStarted = false
	}

	if len(d.Responses) == 0 {
		return "", domain.ErrMissingResponses
	}

	// Acquire the lock before any external call.
	d.AIAnalysisStarted = true
	d.AIAnalysisStartedAt = &now
	d.AIProcessingInProgress = true
	d.AIError = nil
	d.AIErrorAt = nil
	d.AIRetryCount++
	lock := domain.AssessmentUpdate{Status: domain.StatusPtr(domain.StatusProcessing), Data: &d}
	if cu, ok := s.Repo.(domain.ConditionalUpdater); ok {
		err = cu.UpdateIfUnmodified(ctx, id, rec.UpdatedAt, lock)
		if errors.Is(err, domain.ErrConflict) {
			lg.Info("lost lock race", slog.Any("error", err))
			observability.SkipAnalysis(typ, "lost_race")
			return OutcomeLocked, nil
		}
	} else {
		err = s.Repo.Update(ctx, id, lock)
	}
	if err != nil {
		return "", fmt.Errorf("op=processing.lock: %w", err)
	}
	observability.StartAnalysis(typ)
	lg.Info("analysis started", slog.String("assessment_type", typ), slog.Int("attempt", d.AIRetryCount))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in analysis pipeline: %v", domain.ErrInternal, r)
			out = ""
		}
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.FailAnalysis(typ, err)
		lg.Error("analysis failed", slog.Any("error", err))
		if rerr := s.release(ctx, id, err); rerr != nil {
			lg.Error("failed to release processing lock", slog.Any("error", rerr))
		}
	}()

	res, err := s.pipeline(ctx, t, d)
	if err != nil {
		return "", err
	}
	if err := s.complete(ctx, id, res); err != nil {
		return "", err
	}
	observability.CompleteAnalysis(typ)
	observability.ObserveScores(res.scores.Overall, res.combined)
	lg.Info("analysis completed",
		slog.Int("overall_score", res.scores.Overall),
		slog.String("readiness_level", res.readiness),
		slog.String("scoring_method", res.method))
	return OutcomeCompleted, nil
}

type pipelineResult struct {
	scores          domain.ScoreSet
	method          string
	readiness       string
	resume          *domain.ResumeAnalysis
	fit             *domain.CareerFit
	combined        *domain.CombinedScore
	recommendations []domain.Recommendation
	strengths       []string
	improvements    []string
	summary         string
}

func (s *ProcessingService) pipeline(ctx context.Context, t domain.AssessmentType, d domain.AssessmentData) (pipelineResult, error) {
	actx := domain.ContextFromData(t, d)
	texts := d.Responses.Texts()
	var res pipelineResult

	res.scores, res.method = s.scoreStage(ctx, actx, texts)
	if err := s.Sleep(ctx, s.Cfg.StageDelay); err != nil {
		return res, err
	}

	if d.HasResume() {
		ra, err := s.stage(ctx, "resume_analysis", func(ctx context.Context) (any, error) {
			return s.Analyst.AnalyzeResume(ctx, d.ResumeText, actx)
		})
		if err != nil {
			return res, fmt.Errorf("resume analysis: %w", err)
		}
		r := ra.(domain.ResumeAnalysis)
		res.resume = &r
		if err := s.Sleep(ctx, s.Cfg.LongStageDelay); err != nil {
			return res, err
		}
	}

	fit, err := s.stage(ctx, "career_fit", func(ctx context.Context) (any, error) {
		return s.Analyst.AssessCareerFit(ctx, actx, res.resume)
	})
	if err != nil {
		return res, fmt.Errorf("career fit: %w", err)
	}
	f := fit.(domain.CareerFit)
	res.fit = &f
	if err := s.Sleep(ctx, s.Cfg.StageDelay); err != nil {
		return res, err
	}

	recs, err := s.stage(ctx, "recommendations", func(ctx context.Context) (any, error) {
		return s.Analyst.Recommend(ctx, actx, res.scores, res.fit)
	})
	if err != nil {
		observability.Logger(ctx).Warn("recommendations fell back to heuristic", slog.Any("error", err))
		observability.RecordFallback("recommendations")
		res.recommendations = s.Heuristic.Recommend(res.scores, t)
	} else {
		res.recommendations = recs.([]domain.Recommendation)
	}

	res.strengths, res.improvements = s.Heuristic.StrengthsAndImprovements(texts, t)

	if res.resume != nil {
		w := s.Cfg.FormWeight
		cs := scoring.Combine(scoring.FormContribution(res.scores.Overall, w), res.resume.OverallResumeScore, w)
		res.combined = &cs
	}
	res.readiness = scoring.ReadinessLevel(res.scores.Overall)
	res.summary = Summarize(t, res.readiness, res.scores, d.TargetRole, res.fit, res.combined)
	return res, nil
}

// stage runs fn in its own span.
func (s *ProcessingService) stage(ctx context.Context, name string, fn func(context.Context) (any, error)) (any, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "stage."+name)
	defer span.End()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

// scoreStage tries the model, then the heuristic scorer, then neutral defaults.
// Whatever produced the raw scores, the validator has the last word.
func (s *ProcessingService) scoreStage(ctx context.Context, actx domain.AssessmentContext, texts map[string]string) (domain.ScoreSet, string) {
	lg := observability.Logger(ctx)
	raw, err := s.stage(ctx, "form_scoring", func(ctx context.Context) (any, error) {
		if s.Analyst == nil {
			return nil, fmt.Errorf("%w: no analyst configured", domain.ErrConfig)
		}
		return s.Analyst.ScoreResponses(ctx, actx)
	})
	method := ScoringAI
	var set domain.ScoreSet
	switch {
	case err == nil:
		set = raw.(domain.ScoreSet)
	case s.Heuristic != nil:
		lg.Warn("form scoring fell back to heuristic", slog.Any("error", err))
		observability.RecordFallback("form_scoring")
		set = s.Heuristic.Analyze(texts, actx.Type).Scores
		method = ScoringHeuristic
	default:
		lg.Warn("form scoring fell back to defaults", slog.Any("error", err))
		observability.RecordFallback("form_scoring_default")
		return s.Validator.Defaults(actx.Type, texts, actx.ResumeText), ScoringDefault
	}
	validated, adj := s.Validator.Check(actx.Type, set, texts, actx.ResumeText)
	for _, kind := range adj.Kinds() {
		observability.RecordScoreAdjustment(kind)
	}
	return validated, method
}

// complete re-reads the record and writes the results over the fresh copy.
func (s *ProcessingService) complete(ctx context.Context, id string, res pipelineResult) error {
	rec, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("op=processing.complete: %w", err)
	}
	now := s.Now()
	d := rec.Data
	scores := res.scores
	d.Scores = &scores
	d.ScoringMethod = res.method
	d.ReadinessLevel = res.readiness
	d.Recommendations = res.recommendations
	d.Strengths = res.strengths
	d.Improvements = res.improvements
	d.ResumeAnalysis = res.resume
	d.CareerFit = res.fit
	d.CombinedScore = res.combined
	d.Summary = res.summary
	d.AIProcessed = true
	d.AIProcessedAt = &now
	d.AIProcessingInProgress = false
	d.AIError = nil
	d.AIErrorAt = nil
	if err := s.Repo.Update(ctx, id, domain.AssessmentUpdate{Status: domain.StatusPtr(domain.StatusCompleted), Data: &d}); err != nil {
		return fmt.Errorf("op=processing.complete: %w", err)
	}
	return nil
}

// release re-reads the record, clears the in-progress flag and stores the
// error. Retryable failures go back to pending until the attempt budget is
// spent. The write is retried on a context that ignores caller cancellation.
func (s *ProcessingService) release(ctx context.Context, id string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	var bo backoff.BackOff = backoff.NewExponentialBackOff()
	if s.Cfg.ReleaseBackOff != nil {
		bo = s.Cfg.ReleaseBackOff()
	}
	op := func() error {
		rec, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		now := s.Now()
		d := rec.Data
		status := domain.StatusPending
		if d.AIRetryCount >= s.Cfg.MaxRetryAttempts || !domain.IsRetryable(cause) {
			status = domain.StatusFailed
		}
		msg := cause.Error()
		d.AIProcessingInProgress = false
		d.AIError = &msg
		d.AIErrorAt = &now
		return s.Repo.Update(ctx, id, domain.AssessmentUpdate{Status: domain.StatusPtr(status), Data: &d})
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
