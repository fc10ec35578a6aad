package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/analysis"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

type fakeResumeAnalyzer struct {
	got  domain.AssessmentContext
	text string
	res  analysis.Result
	err  error
}

func (f *fakeResumeAnalyzer) Analyze(_ context.Context, text string, actx domain.AssessmentContext) (analysis.Result, error) {
	f.text, f.got = text, actx
	return f.res, f.err
}

func TestResumeAnalysis_Analyze(t *testing.T) {
	ocr := &fakeOCR{docText: longResume}
	a := &fakeResumeAnalyzer{res: analysis.Result{Scores: domain.ScoreSet{Overall: 72}}}
	svc := NewResumeAnalysisService(NewExtractionService(ocr, nil, 0), a)

	rep, err := svc.Analyze(context.Background(), pdfBytes, "application/pdf", domain.AssessmentContext{TargetRole: "Backend Engineer"})
	require.NoError(t, err)

	assert.Equal(t, MethodOCRDocument, rep.Extraction.Method)
	assert.Equal(t, scoring.LevelApproaching, rep.ReadinessLevel)
	assert.Equal(t, 72, rep.Scores.Overall)
	assert.Equal(t, domain.TypeIdealJob, a.got.Type, "type defaults to ideal job")
	assert.Equal(t, "Backend Engineer", a.got.TargetRole)
	assert.Equal(t, a.text, a.got.ResumeText)
	assert.Contains(t, a.text, "Software Engineer")
}

func TestResumeAnalysis_Errors(t *testing.T) {
	t.Run("validation before any call", func(t *testing.T) {
		ocr := &fakeOCR{docText: longResume}
		a := &fakeResumeAnalyzer{}
		_, err := NewResumeAnalysisService(NewExtractionService(ocr, nil, 0), a).
			Analyze(context.Background(), []byte("plain text"), "text/plain", domain.AssessmentContext{})
		assert.ErrorIs(t, err, domain.ErrUnsupportedMIME)
		assert.Zero(t, ocr.docCalls)
		assert.Empty(t, a.text)
	})
	t.Run("model failure is returned", func(t *testing.T) {
		a := &fakeResumeAnalyzer{err: fmt.Errorf("%w: deadline", domain.ErrUpstreamTimeout)}
		_, err := NewResumeAnalysisService(NewExtractionService(&fakeOCR{docText: longResume}, nil, 0), a).
			Analyze(context.Background(), pdfBytes, "application/pdf", domain.AssessmentContext{Type: domain.TypeFirstJob})
		assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	})
	t.Run("no analyzer", func(t *testing.T) {
		_, err := NewResumeAnalysisService(NewExtractionService(nil, nil, 0), nil).
			Analyze(context.Background(), pdfBytes, "application/pdf", domain.AssessmentContext{})
		assert.ErrorIs(t, err, domain.ErrConfig)
	})
}
