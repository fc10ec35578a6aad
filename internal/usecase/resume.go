package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/analysis"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

// ResumeAnalyzer produces the combined resume verdict. *analysis.Analyzer implements it.
type ResumeAnalyzer interface {
	Analyze(ctx context.Context, text string, actx domain.AssessmentContext) (analysis.Result, error)
}

// ResumeReport is the response of a stateless resume analysis.
type ResumeReport struct {
	Extraction     domain.ExtractedText `json:"extraction"`
	ReadinessLevel string               `json:"readinessLevel"`
	analysis.Result
}

// ResumeAnalysisService extracts an uploaded resume and analyzes it without
// touching the assessment store.
type ResumeAnalysisService struct {
	Extraction ExtractionService
	Analyzer   ResumeAnalyzer
}

// NewResumeAnalysisService constructs a ResumeAnalysisService.
func NewResumeAnalysisService(ex ExtractionService, a ResumeAnalyzer) ResumeAnalysisService {
	return ResumeAnalysisService{Extraction: ex, Analyzer: a}
}

// Analyze runs extraction then the resume and career-fit verdicts. Unlike the
// form stage there is no heuristic fallback: a failed model call is returned.
func (s ResumeAnalysisService) Analyze(ctx context.Context, data []byte, mimeType string, actx domain.AssessmentContext) (ResumeReport, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ResumeAnalysisService.Analyze")
	defer span.End()

	if s.Analyzer == nil {
		return ResumeReport{}, fmt.Errorf("%w: resume analyzer not configured", domain.ErrConfig)
	}
	if actx.Type == "" {
		actx.Type = domain.TypeIdealJob
	}
	ext, err := s.Extraction.Extract(ctx, data, mimeType)
	if err != nil {
		return ResumeReport{}, err
	}
	if strings.TrimSpace(ext.Text) == "" {
		return ResumeReport{}, domain.ErrNoUsableText
	}
	actx.ResumeText = ext.Text
	res, err := s.Analyzer.Analyze(ctx, ext.Text, actx)
	if err != nil {
		observability.Logger(ctx).Warn("resume analysis failed", slog.String("method", ext.Method), slog.Any("error", err))
		return ResumeReport{}, fmt.Errorf("op=resume.analyze: %w", err)
	}
	return ResumeReport{
		Extraction:     ext,
		ReadinessLevel: scoring.ReadinessLevel(res.Scores.Overall),
		Result:         res,
	}, nil
}
