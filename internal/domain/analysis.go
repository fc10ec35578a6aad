package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EvidenceLevel qualifies how far a score set is backed by documentary evidence.
type EvidenceLevel string

const (
	EvidenceStrong       EvidenceLevel = "STRONG"
	EvidenceModerate     EvidenceLevel = "MODERATE"
	EvidenceWeak         EvidenceLevel = "WEAK"
	EvidenceInsufficient EvidenceLevel = "INSUFFICIENT"
)

// ExperienceLevel is the seniority band inferred from a resume.
type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "ENTRY"
	ExperienceJunior    ExperienceLevel = "JUNIOR"
	ExperienceMid       ExperienceLevel = "MID"
	ExperienceSenior    ExperienceLevel = "SENIOR"
	ExperienceExecutive ExperienceLevel = "EXECUTIVE"
)

// FitLevel is the career-fit verdict band.
type FitLevel string

const (
	FitExcellent  FitLevel = "EXCELLENT"
	FitGood       FitLevel = "GOOD"
	FitFair       FitLevel = "FAIR"
	FitPoor       FitLevel = "POOR"
	FitUnsuitable FitLevel = "UNSUITABLE"
)

// TimeToReadiness estimates how long until the candidate is ready for the target role.
type TimeToReadiness string

const (
	ReadyNow          TimeToReadiness = "READY_NOW"
	Ready3To6Months   TimeToReadiness = "3_6_MONTHS"
	Ready6To12Months  TimeToReadiness = "6_12_MONTHS"
	Ready1To2Years    TimeToReadiness = "1_2_YEARS"
	ReadyTwoPlusYears TimeToReadiness = "2_PLUS_YEARS"
)

// ScoreSet holds per-category scores plus the derived aggregate. It serializes
// flat: {"technicalSkills":72,"overallScore":68,...}.
type ScoreSet struct {
	Categories        map[string]int
	Overall           int
	ResumeConsistency *int
	EvidenceLevel     EvidenceLevel
}

const (
	scoreKeyOverall           = "overallScore"
	scoreKeyResumeConsistency = "resumeConsistency"
	scoreKeyEvidenceLevel     = "evidenceLevel"
)

// Names returns category names in ascending order.
func (s ScoreSet) Names() []string {
	names := make([]string, 0, len(s.Categories))
	for k := range s.Categories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON flattens the categories next to the synthetic fields.
func (s ScoreSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Categories)+3)
	for k, v := range s.Categories {
		m[k] = v
	}
	m[scoreKeyOverall] = s.Overall
	if s.ResumeConsistency != nil {
		m[scoreKeyResumeConsistency] = *s.ResumeConsistency
	}
	if s.EvidenceLevel != "" {
		m[scoreKeyEvidenceLevel] = s.EvidenceLevel
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat score document. Numeric keys other than the
// synthetic ones become categories.
func (s *ScoreSet) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := ScoreSet{Categories: make(map[string]int, len(raw))}
	for k, v := range raw {
		switch k {
		case scoreKeyEvidenceLevel:
			if err := json.Unmarshal(v, &out.EvidenceLevel); err != nil {
				return fmt.Errorf("scores.%s: %w", k, err)
			}
		case scoreKeyOverall:
			n, err := decodeScore(v)
			if err != nil {
				return fmt.Errorf("scores.%s: %w", k, err)
			}
			out.Overall = n
		case scoreKeyResumeConsistency:
			n, err := decodeScore(v)
			if err != nil {
				return fmt.Errorf("scores.%s: %w", k, err)
			}
			out.ResumeConsistency = &n
		default:
			n, err := decodeScore(v)
			if err != nil {
				// non-numeric siblings are not categories
				continue
			}
			out.Categories[k] = n
		}
	}
	*s = out
	return nil
}

func decodeScore(v json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, err
	}
	if f < 0 {
		return int(f - 0.5), nil
	}
	return int(f + 0.5), nil
}

// CareerFit is the verdict on suitability for the stated target role.
type CareerFit struct {
	FitLevel              FitLevel        `json:"fitLevel"`
	FitPercentage         int             `json:"fitPercentage"`
	HonestAssessment      string          `json:"honestAssessment"`
	RealityCheck          string          `json:"realityCheck"`
	MarketCompetitiveness string          `json:"marketCompetitiveness"`
	TimeToReadiness       TimeToReadiness `json:"timeToReadiness"`
	CriticalGaps          []string        `json:"criticalGaps"`
	CompetitiveAdvantages []string        `json:"competitiveAdvantages"`
}

// ResumeAnalysis is the validated resume-quality verdict.
type ResumeAnalysis struct {
	ContentQuality      int             `json:"contentQuality"`
	ExperienceRelevance int             `json:"experienceRelevance"`
	SkillsEvidence      int             `json:"skillsEvidence"`
	Presentation        int             `json:"presentation"`
	OverallResumeScore  int             `json:"overallResumeScore"`
	ExperienceLevel     ExperienceLevel `json:"experienceLevel"`
	EvidenceLevel       EvidenceLevel   `json:"evidenceLevel"`
	ResumeConsistency   int             `json:"resumeConsistency"`
	ValidatedSkills     []string        `json:"validatedSkills"`
	UnsupportedClaims   []string        `json:"unsupportedClaims"`
	GapAnalysis         []string        `json:"gapAnalysis"`
	CategoryScores      map[string]int  `json:"categoryScores,omitempty"`
}

// CombinedScore blends the form-derived and resume-derived contributions.
type CombinedScore struct {
	FormContribution   int    `json:"formContribution"`
	ResumeContribution int    `json:"resumeContribution"`
	FinalScore         int    `json:"finalScore"`
	ReadinessLevel     string `json:"readinessLevel"`
}

// Recommendation is one actionable suggestion with ordered steps.
type Recommendation struct {
	Category string   `json:"category"`
	Title    string   `json:"title"`
	Steps    []string `json:"steps"`
	Priority string   `json:"priority,omitempty"`
}

// AssessmentContext is what prompts and heuristics need to know about an assessment.
type AssessmentContext struct {
	Type        AssessmentType
	TargetRole  string
	Personality string
	Responses   Responses
	ResumeText  string
}

// ContextFromData builds an AssessmentContext from a stored record.
func ContextFromData(t AssessmentType, d AssessmentData) AssessmentContext {
	return AssessmentContext{
		Type:        t,
		TargetRole:  d.TargetRole,
		Personality: d.Personality,
		Responses:   d.Responses,
		ResumeText:  d.ResumeText,
	}
}

// ExtractedText is the cleaned output of document extraction.
type ExtractedText struct {
	Text   string `json:"text"`
	Method string `json:"method"`
	MIME   string `json:"mime"`
	Pages  int    `json:"pages,omitempty"`
}
