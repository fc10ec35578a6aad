package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// ErrorView is the stored failure as shown to API clients.
type ErrorView struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	At      *time.Time `json:"at,omitempty"`
}

// AnalysisView is the completed analysis.
type AnalysisView struct {
	Scores          *domain.ScoreSet        `json:"scores"`
	ReadinessLevel  string                  `json:"readinessLevel"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Strengths       []string                `json:"strengths"`
	Improvements    []string                `json:"improvements"`
	ResumeAnalysis  *domain.ResumeAnalysis  `json:"resumeAnalysis,omitempty"`
	CareerFit       *domain.CareerFit       `json:"careerFit,omitempty"`
	CombinedScore   *domain.CombinedScore   `json:"combinedScore,omitempty"`
	Summary         string                  `json:"summary"`
	ScoringMethod   string                  `json:"scoringMethod,omitempty"`
	ProcessedAt     *time.Time              `json:"processedAt,omitempty"`
}

// StatusView is the read model of an assessment's analysis state.
type StatusView struct {
	ID         string                  `json:"id"`
	Type       domain.AssessmentType   `json:"assessmentType"`
	Status     domain.AssessmentStatus `json:"status"`
	Processing bool                    `json:"processing"`
	RetryCount int                     `json:"retryCount"`
	StartedAt  *time.Time              `json:"startedAt,omitempty"`
	Error      *ErrorView              `json:"error,omitempty"`
	Analysis   *AnalysisView           `json:"analysis,omitempty"`
}

// StatusService reads analysis state.
type StatusService struct {
	Repo domain.AssessmentRepository
}

// NewStatusService constructs a StatusService.
func NewStatusService(r domain.AssessmentRepository) StatusService { return StatusService{Repo: r} }

// Get returns the status view for id.
func (s StatusService) Get(ctx domain.Context, id string) (StatusView, error) {
	if strings.TrimSpace(id) == "" {
		return StatusView{}, fmt.Errorf("%w: assessment id required", domain.ErrInvalidArgument)
	}
	rec, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return StatusView{}, fmt.Errorf("%w: %s", domain.ErrAssessmentNotFound, id)
		}
		return StatusView{}, err
	}
	d := rec.Data
	v := StatusView{
		ID:         rec.ID,
		Type:       rec.Type,
		Status:     rec.Status,
		Processing: d.AIProcessingInProgress,
		RetryCount: d.AIRetryCount,
		StartedAt:  d.AIAnalysisStartedAt,
	}
	if d.AIError != nil {
		v.Error = &ErrorView{Code: ErrorCodeFromMessage(*d.AIError), Message: *d.AIError, At: d.AIErrorAt}
	}
	if d.AIProcessed {
		v.Analysis = &AnalysisView{
			Scores:          d.Scores,
			ReadinessLevel:  d.ReadinessLevel,
			Recommendations: d.Recommendations,
			Strengths:       d.Strengths,
			Improvements:    d.Improvements,
			ResumeAnalysis:  d.ResumeAnalysis,
			CareerFit:       d.CareerFit,
			CombinedScore:   d.CombinedScore,
			Summary:         d.Summary,
			ScoringMethod:   d.ScoringMethod,
			ProcessedAt:     d.AIProcessedAt,
		}
	}
	return v, nil
}

// ErrorCodeFromMessage classifies a stored error message into a stable code.
// Stored messages start with the wrapped sentinel's text.
func ErrorCodeFromMessage(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case strings.Contains(s, domain.ErrSchemaInvalid.Error()):
		return "SCHEMA_INVALID"
	case strings.Contains(s, domain.ErrUpstreamRateLimit.Error()), strings.Contains(s, "rate limit"):
		return "UPSTREAM_RATE_LIMIT"
	case strings.Contains(s, domain.ErrUpstreamTimeout.Error()), strings.Contains(s, "deadline exceeded"):
		return "UPSTREAM_TIMEOUT"
	case strings.Contains(s, domain.ErrConfig.Error()):
		return "CONFIGURATION"
	case strings.Contains(s, domain.ErrExtraction.Error()):
		return "EXTRACTION_FAILED"
	case strings.Contains(s, domain.ErrNotFound.Error()):
		return "NOT_FOUND"
	case strings.Contains(s, domain.ErrInvalidArgument.Error()):
		return "INVALID_ARGUMENT"
	case strings.Contains(s, domain.ErrUpstream.Error()):
		return "UPSTREAM_ERROR"
	default:
		return "INTERNAL"
	}
}

// ETag returns a strong validator for any JSON-encodable view.
func ETag(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
