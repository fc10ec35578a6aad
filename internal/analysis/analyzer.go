// Package analysis turns questionnaire answers and resume text into validated
// model verdicts: form scores, resume analysis, career fit and recommendations.
//
// Every model response is cleaned, parsed and checked against a JSON Schema.
// A response that fails any check is an error wrapping domain.ErrSchemaInvalid;
// nothing in this package substitutes defaults for a malformed verdict.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	aipkg "github.com/fairyhunter13/career-readiness/internal/adapter/ai"
	"github.com/fairyhunter13/career-readiness/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
	"github.com/fairyhunter13/career-readiness/pkg/textx"
)

// Temperature is the sampling temperature used for every verdict.
const Temperature float32 = 0.3

// Options tune prompt construction.
type Options struct {
	// Model is used for token counting only.
	Model string
	// ResumeTokenBudget caps the resume text embedded in a prompt. Zero means no cap.
	ResumeTokenBudget int
	MaxTokens         int
}

// Analyzer issues the model calls of the pipeline.
type Analyzer struct {
	ai        domain.AIClient
	validator *scoring.Validator
	counter   *tokencount.Counter
	opts      Options
}

// New returns an Analyzer. A nil validator gets a clock-seeded one.
func New(ai domain.AIClient, v *scoring.Validator, opts Options) *Analyzer {
	if v == nil {
		v = scoring.NewValidator(nil)
	}
	return &Analyzer{ai: ai, validator: v, counter: tokencount.Default, opts: opts}
}

// Result is the combined resume verdict.
type Result struct {
	Scores         domain.ScoreSet       `json:"scores"`
	ResumeAnalysis domain.ResumeAnalysis `json:"resumeAnalysis"`
	CareerFit      domain.CareerFit      `json:"careerFit"`
}

// complete runs one model call and returns the cleaned document once it passes schema.
func (a *Analyzer) complete(ctx context.Context, op, system, user string, schema *gojsonschema.Schema) (string, error) {
	raw, err := a.ai.ChatJSON(ctx, system, user, domain.ChatOptions{
		Temperature: Temperature,
		MaxTokens:   a.opts.MaxTokens,
		Operation:   op,
	})
	if err != nil {
		return "", err
	}
	doc, err := aipkg.CleanJSON(raw)
	if err != nil {
		return "", err
	}
	if err := validate(schema, op, doc); err != nil {
		observability.Logger(ctx).Warn("model response rejected",
			slog.String("op", op),
			slog.Any("error", err),
			slog.Int("response_length", len(raw)))
		return "", err
	}
	return doc, nil
}

func (a *Analyzer) resumeForPrompt(ctx context.Context, text string) string {
	text = textx.SanitizeText(text)
	out, cut := a.counter.Truncate(text, a.opts.Model, a.opts.ResumeTokenBudget)
	if cut {
		observability.Logger(ctx).Info("resume text truncated for prompt",
			slog.Int("budget_tokens", a.opts.ResumeTokenBudget),
			slog.Int("original_chars", len(text)),
			slog.Int("kept_chars", len(out)))
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ScoreResponses asks the model for a raw per-category score set. The result
// still has to go through scoring.Validator.
func (a *Analyzer) ScoreResponses(ctx context.Context, actx domain.AssessmentContext) (scores domain.ScoreSet, err error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "Analyzer.ScoreResponses")
	defer span.End()
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("assessment.type", string(actx.Type)))

	if len(actx.Responses) == 0 {
		return domain.ScoreSet{}, domain.ErrMissingResponses
	}
	schema, err := formSchema(actx.Type)
	if err != nil {
		return domain.ScoreSet{}, err
	}
	doc, err := a.complete(ctx, "form_scoring", systemFormScoring, formScoringPrompt(actx, a.resumeForPrompt(ctx, actx.ResumeText)), schema)
	if err != nil {
		return domain.ScoreSet{}, err
	}
	if err := json.Unmarshal([]byte(doc), &scores); err != nil {
		return domain.ScoreSet{}, fmt.Errorf("%w: decode form scores: %v", domain.ErrSchemaInvalid, err)
	}
	return scores, nil
}

// AnalyzeResume judges resume quality. overallResumeScore is always the
// rounded mean of the four sub-scores. categoryScores must cover every
// category of the assessment type.
func (a *Analyzer) AnalyzeResume(ctx context.Context, text string, actx domain.AssessmentContext) (ra domain.ResumeAnalysis, err error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "Analyzer.AnalyzeResume")
	defer span.End()
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(text) == "" {
		return domain.ResumeAnalysis{}, fmt.Errorf("%w: resume text required", domain.ErrInvalidArgument)
	}
	doc, err := a.complete(ctx, "resume_analysis", systemResume, resumePrompt(actx, a.resumeForPrompt(ctx, text)), resumeSchema)
	if err != nil {
		return domain.ResumeAnalysis{}, err
	}
	if err := json.Unmarshal([]byte(doc), &ra); err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("%w: decode resume analysis: %v", domain.ErrSchemaInvalid, err)
	}
	if missing := scoring.MissingCategories(actx.Type, ra.CategoryScores); len(missing) > 0 {
		ve := &ValidationError{Document: "resume_analysis"}
		for _, c := range missing {
			ve.Errors = append(ve.Errors, FieldError{Field: "categoryScores." + c, Message: c + " is required"})
		}
		return domain.ResumeAnalysis{}, ve
	}
	ra.OverallResumeScore = ResumeOverall(ra)
	span.SetAttributes(attribute.Int("resume.overall", ra.OverallResumeScore))
	return ra, nil
}

// ResumeOverall is round(mean) of the four resume sub-scores.
func ResumeOverall(ra domain.ResumeAnalysis) int {
	sum := ra.ContentQuality + ra.ExperienceRelevance + ra.SkillsEvidence + ra.Presentation
	return int(math.Round(float64(sum) / 4))
}

// AssessCareerFit judges fit for the target role. ra may be nil when no resume exists.
func (a *Analyzer) AssessCareerFit(ctx context.Context, actx domain.AssessmentContext, ra *domain.ResumeAnalysis) (fit domain.CareerFit, err error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "Analyzer.AssessCareerFit")
	defer span.End()
	defer func() { endSpan(span, err) }()

	doc, err := a.complete(ctx, "career_fit", systemCareerFit, careerFitPrompt(actx, ra), careerFitSchema)
	if err != nil {
		return domain.CareerFit{}, err
	}
	if err := json.Unmarshal([]byte(doc), &fit); err != nil {
		return domain.CareerFit{}, fmt.Errorf("%w: decode career fit: %v", domain.ErrSchemaInvalid, err)
	}
	return fit, nil
}

// Recommend asks for development recommendations given validated scores.
func (a *Analyzer) Recommend(ctx context.Context, actx domain.AssessmentContext, scores domain.ScoreSet, fit *domain.CareerFit) (recs []domain.Recommendation, err error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "Analyzer.Recommend")
	defer span.End()
	defer func() { endSpan(span, err) }()

	doc, err := a.complete(ctx, "recommendations", systemRecommend, recommendPrompt(actx, scores, fit), recommendationsSchema)
	if err != nil {
		return nil, err
	}
	var out struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("%w: decode recommendations: %v", domain.ErrSchemaInvalid, err)
	}
	for i := range out.Recommendations {
		if out.Recommendations[i].Priority == "" {
			out.Recommendations[i].Priority = "medium"
		}
	}
	return out.Recommendations, nil
}

// Analyze runs resume analysis then career fit and derives a validated score
// set from the resume's category scores.
func (a *Analyzer) Analyze(ctx context.Context, text string, actx domain.AssessmentContext) (Result, error) {
	ra, err := a.AnalyzeResume(ctx, text, actx)
	if err != nil {
		return Result{}, fmt.Errorf("resume analysis: %w", err)
	}
	fit, err := a.AssessCareerFit(ctx, actx, &ra)
	if err != nil {
		return Result{}, fmt.Errorf("career fit: %w", err)
	}
	rc := ra.ResumeConsistency
	raw := domain.ScoreSet{
		Categories:        ra.CategoryScores,
		ResumeConsistency: &rc,
		EvidenceLevel:     ra.EvidenceLevel,
	}
	scores := a.validator.Validate(actx.Type, raw, actx.Responses.Texts(), text)
	return Result{Scores: scores, ResumeAnalysis: ra, CareerFit: fit}, nil
}
