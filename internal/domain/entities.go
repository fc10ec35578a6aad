package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AssessmentStatus is the lifecycle state of an assessment's analysis.
type AssessmentStatus string

const (
	StatusPending    AssessmentStatus = "pending"
	StatusProcessing AssessmentStatus = "processing"
	StatusCompleted  AssessmentStatus = "completed"
	StatusError      AssessmentStatus = "error"
	StatusFailed     AssessmentStatus = "failed"
)

// AssessmentType identifies the questionnaire and therefore the category taxonomy.
type AssessmentType string

const (
	TypeFirstJob          AssessmentType = "fjrl"
	TypeIdealJob          AssessmentType = "ijrl"
	TypeCareerDevelopment AssessmentType = "cdrl"
	TypeCareerComeback    AssessmentType = "ccrl"
	TypeCareerTransition  AssessmentType = "ctrl"
	TypeRetirement        AssessmentType = "rrl"
	TypeInternship        AssessmentType = "irl"
)

// AssessmentTypes lists the known assessment codes.
var AssessmentTypes = []AssessmentType{
	TypeFirstJob, TypeIdealJob, TypeCareerDevelopment, TypeCareerComeback,
	TypeCareerTransition, TypeRetirement, TypeInternship,
}

// ParseAssessmentType normalizes a type code. Unknown non-empty codes are accepted
// as-is; they resolve to the default taxonomy.
func ParseAssessmentType(s string) (AssessmentType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: assessment type required", ErrInvalidArgument)
	}
	return AssessmentType(s), nil
}

// Known reports whether t is one of the closed set of assessment codes.
func (t AssessmentType) Known() bool {
	for _, k := range AssessmentTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Assessment is the externally owned record the pipeline reads and transitions.
type Assessment struct {
	ID        string
	Type      AssessmentType
	Status    AssessmentStatus
	Tier      string
	Data      AssessmentData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Responses maps question text to the submitted answer. Answers are usually
// strings; multi-select and numeric answers arrive as arrays and numbers.
type Responses map[string]any

// Texts flattens every answer into a string.
func (r Responses) Texts() map[string]string {
	out := make(map[string]string, len(r))
	for q, v := range r {
		out[q] = AnswerText(v)
	}
	return out
}

// SortedQuestions returns the question keys in ascending order.
func (r Responses) SortedQuestions() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AnswerText renders one answer value as text.
func AnswerText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := AnswerText(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// AssessmentData is the typed view over the record's open data document.
// Keys the pipeline does not own are kept in Extra and written back untouched.
type AssessmentData struct {
	Responses    Responses       `json:"responses,omitempty"`
	ResumeText   string          `json:"resumeText,omitempty"`
	PersonalInfo json.RawMessage `json:"personalInfo,omitempty"`
	TargetRole   string          `json:"targetRole,omitempty"`
	Personality  string          `json:"personality,omitempty"`

	// Processing lock and retry bookkeeping. Written on every update so that a
	// top-level merge can clear them.
	AIAnalysisStarted      bool       `json:"aiAnalysisStarted"`
	AIAnalysisStartedAt    *time.Time `json:"aiAnalysisStartedAt"`
	AIProcessingInProgress bool       `json:"aiProcessingInProgress"`
	AIProcessed            bool       `json:"aiProcessed"`
	AIProcessedAt          *time.Time `json:"aiProcessedAt"`
	AIError                *string    `json:"aiError"`
	AIErrorAt              *time.Time `json:"aiErrorAt"`
	AIRetryCount           int        `json:"aiRetryCount"`

	Scores          *ScoreSet        `json:"scores,omitempty"`
	ReadinessLevel  string           `json:"readinessLevel,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Strengths       []string         `json:"strengths,omitempty"`
	Improvements    []string         `json:"improvements,omitempty"`
	ResumeAnalysis  *ResumeAnalysis  `json:"resumeAnalysis,omitempty"`
	CareerFit       *CareerFit       `json:"careerFit,omitempty"`
	CombinedScore   *CombinedScore   `json:"combinedScore,omitempty"`
	Summary         string           `json:"summary,omitempty"`
	ScoringMethod   string           `json:"scoringMethod,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type assessmentDataAlias AssessmentData

// MarshalJSON writes the known fields and merges back any unknown keys.
func (d AssessmentData) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(assessmentDataAlias(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(d.Extra)+24)
	for k, v := range d.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known fields and keeps the rest in Extra.
func (d *AssessmentData) UnmarshalJSON(b []byte) error {
	var alias assessmentDataAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range knownDataKeys {
		delete(all, k)
	}
	*d = AssessmentData(alias)
	if len(all) > 0 {
		d.Extra = all
	}
	return nil
}

var knownDataKeys = []string{
	"responses", "resumeText", "personalInfo", "targetRole", "personality",
	"aiAnalysisStarted", "aiAnalysisStartedAt", "aiProcessingInProgress", "aiProcessed",
	"aiProcessedAt", "aiError", "aiErrorAt", "aiRetryCount",
	"scores", "readinessLevel", "recommendations", "strengths", "improvements",
	"resumeAnalysis", "careerFit", "combinedScore", "summary", "scoringMethod",
}

// HasResume reports whether non-blank resume text is attached.
func (d AssessmentData) HasResume() bool { return strings.TrimSpace(d.ResumeText) != "" }

// LockHeld reports whether the processing lock fields are set.
func (d AssessmentData) LockHeld() bool { return d.AIAnalysisStarted && d.AIProcessingInProgress }

// AssessmentUpdate is a partial update. A nil field leaves the stored value alone;
// a non-nil Data replaces the document by merging its top-level keys over the stored ones.
type AssessmentUpdate struct {
	Status *AssessmentStatus
	Data   *AssessmentData
}

// StatusPtr is a convenience for building updates.
func StatusPtr(s AssessmentStatus) *AssessmentStatus { return &s }

// AnalysisTask is the trigger message carried by the queue.
type AnalysisTask struct {
	MessageID      string         `json:"message_id"`
	AssessmentID   string         `json:"assessment_id"`
	AssessmentType AssessmentType `json:"assessment_type"`
	Reason         string         `json:"reason,omitempty"`
	Attempt        int            `json:"attempt,omitempty"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
}

// Context is an alias so ports can be declared without every adapter importing
// the context package under a different name.
type Context = context.Context
