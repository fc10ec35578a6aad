package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
	"github.com/fairyhunter13/career-readiness/internal/scoring/heuristic"
)

// QuickResult is the stateless analysis of a questionnaire.
type QuickResult struct {
	heuristic.Result
	ScoringMethod string `json:"scoringMethod"`
}

// ScoreAnalyst is the single model call the quick route makes.
type ScoreAnalyst interface {
	ScoreResponses(ctx context.Context, actx domain.AssessmentContext) (domain.ScoreSet, error)
}

// QuickAnalysisService scores responses without touching the store.
type QuickAnalysisService struct {
	Analyst   ScoreAnalyst
	Heuristic *heuristic.Scorer
	Validator *scoring.Validator
}

// NewQuickAnalysisService constructs a QuickAnalysisService. analyst may be nil,
// in which case every request is scored heuristically.
func NewQuickAnalysisService(a ScoreAnalyst, h *heuristic.Scorer, v *scoring.Validator) QuickAnalysisService {
	if v == nil {
		v = scoring.NewValidator(nil)
	}
	return QuickAnalysisService{Analyst: a, Heuristic: h, Validator: v}
}

// Analyze scores with the model and falls back to the heuristic scorer on any
// failure. Either way the raw scores go through the validator.
func (s QuickAnalysisService) Analyze(ctx context.Context, responses domain.Responses, t domain.AssessmentType) (QuickResult, error) {
	if len(responses) == 0 {
		return QuickResult{}, domain.ErrMissingResponses
	}
	if s.Heuristic == nil {
		return QuickResult{}, fmt.Errorf("%w: heuristic scorer not configured", domain.ErrConfig)
	}
	texts := responses.Texts()
	base := s.Heuristic.Analyze(texts, t)
	raw, method := base.Scores, ScoringHeuristic
	if s.Analyst != nil {
		scored, err := s.Analyst.ScoreResponses(ctx, domain.AssessmentContext{Type: t, Responses: responses})
		if err != nil {
			observability.Logger(ctx).Warn("quick analysis fell back to heuristic", slog.Any("error", err))
			observability.RecordFallback("quick_analysis")
		} else {
			raw, method = scored, ScoringAI
		}
	}

	scores := s.Validator.Validate(t, raw, texts, "")
	level := scoring.ReadinessLevel(scores.Overall)
	out := base
	out.Scores = scores
	out.ReadinessLevel = level
	out.Recommendations = s.Heuristic.Recommend(scores, t)
	out.Summary = heuristic.Summarize(level, scores, t)
	for c, ins := range out.CategoryAnalysis {
		if v, ok := scores.Categories[c]; ok {
			ins.Score = v
			out.CategoryAnalysis[c] = ins
		}
	}
	return QuickResult{Result: out, ScoringMethod: method}, nil
}
