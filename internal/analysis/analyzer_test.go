package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

type call struct {
	system, user string
	opts         domain.ChatOptions
}

// scriptedAI answers each call with the next queued response.
type scriptedAI struct {
	replies []string
	errs    []error
	calls   []call
}

func (s *scriptedAI) ChatJSON(_ domain.Context, system, user string, opts domain.ChatOptions) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, call{system, user, opts})
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i >= len(s.replies) {
		return "", errors.New("no scripted reply")
	}
	return s.replies[i], nil
}

const goodResume = `{
  "contentQuality": 70, "experienceRelevance": 61, "skillsEvidence": 58, "presentation": 80,
  "overallResumeScore": 99,
  "experienceLevel": "JUNIOR", "evidenceLevel": "MODERATE", "resumeConsistency": 66,
  "validatedSkills": ["Go"], "unsupportedClaims": ["Kubernetes"], "gapAnalysis": ["no leadership"],
  "categoryScores": {"technicalSkills": 64, "communicationSkills": 58, "problemSolving": 61,
    "teamwork": 70, "adaptability": 55, "professionalism": 66}
}`

const goodFit = `{
  "fitLevel": "FAIR", "fitPercentage": 58, "honestAssessment": "Close but not yet.",
  "realityCheck": "Roles ask for two years.", "marketCompetitiveness": "Below median.",
  "timeToReadiness": "6_12_MONTHS", "criticalGaps": ["production experience"],
  "competitiveAdvantages": ["strong fundamentals"]
}`

func testContext() domain.AssessmentContext {
	return domain.AssessmentContext{
		Type:       domain.TypeFirstJob,
		TargetRole: "Backend Engineer",
		Responses: domain.Responses{
			"What technical skills do you have?": "Go and SQL, built two services",
			"How do you work in a team?":         "I pair with others",
		},
	}
}

func newTestAnalyzer(ai domain.AIClient) *Analyzer {
	return New(ai, scoring.NewValidator(rand.NewSource(1)), Options{Model: "gpt-4o-mini"})
}

func TestAnalyzeResume_RecomputesOverall(t *testing.T) {
	ai := &scriptedAI{replies: []string{"```json\n" + goodResume + "\n```"}}
	ra, err := newTestAnalyzer(ai).AnalyzeResume(context.Background(), "Resume: Go developer", testContext())
	require.NoError(t, err)

	assert.Equal(t, 67, ra.OverallResumeScore) // (70+61+58+80)/4 = 67.25
	assert.Equal(t, domain.ExperienceJunior, ra.ExperienceLevel)
	assert.Equal(t, []string{"Kubernetes"}, ra.UnsupportedClaims)

	require.Len(t, ai.calls, 1)
	c := ai.calls[0]
	assert.Equal(t, "resume_analysis", c.opts.Operation)
	assert.InDelta(t, 0.3, c.opts.Temperature, 1e-6)
	assert.Contains(t, c.user, "Backend Engineer")
	assert.Contains(t, c.user, "Resume: Go developer")
	assert.Contains(t, c.user, "Entry-level evidence: 40-65")
	assert.Contains(t, c.user, "85-100 ONLY for exceptional")
	assert.Contains(t, c.user, "First Job Readiness")
}

func TestAnalyzeResume_FailsLoud(t *testing.T) {
	cases := map[string]string{
		"out of range":    strings.Replace(goodResume, `"presentation": 80`, `"presentation": 120`, 1),
		"wrong type":      strings.Replace(goodResume, `"presentation": 80`, `"presentation": "80"`, 1),
		"fractional":      strings.Replace(goodResume, `"presentation": 80`, `"presentation": 80.5`, 1),
		"bad enum":        strings.Replace(goodResume, `"JUNIOR"`, `"INTERN"`, 1),
		"missing field":   strings.Replace(goodResume, `"skillsEvidence": 58,`, ``, 1),
		"category range":  strings.Replace(goodResume, `"teamwork": 70`, `"teamwork": -1`, 1),
		"no categories":   resumeWithCategories(t, nil),
		"some categories": resumeWithCategories(t, map[string]int{"technicalSkills": 64, "teamwork": 70}),
		"not json":        "I cannot help with that.",
		"empty":           "",
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			ai := &scriptedAI{replies: []string{reply}}
			_, err := newTestAnalyzer(ai).AnalyzeResume(context.Background(), "resume", testContext())
			assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
		})
	}
}

// resumeWithCategories rewrites goodResume's categoryScores; nil drops the key.
func resumeWithCategories(t *testing.T, cats map[string]int) string {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(goodResume), &doc))
	if cats == nil {
		delete(doc, "categoryScores")
	} else {
		doc["categoryScores"] = cats
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(b)
}

func TestAnalyzeResume_RequiresText(t *testing.T) {
	ai := &scriptedAI{}
	_, err := newTestAnalyzer(ai).AnalyzeResume(context.Background(), "  ", testContext())
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, ai.calls)
}

func TestAnalyzeResume_PropagatesUpstreamError(t *testing.T) {
	ai := &scriptedAI{errs: []error{domain.ErrUpstreamTimeout}}
	_, err := newTestAnalyzer(ai).AnalyzeResume(context.Background(), "resume", testContext())
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestAnalyzeResume_TruncatesToBudget(t *testing.T) {
	ai := &scriptedAI{replies: []string{goodResume}}
	a := New(ai, nil, Options{Model: "gpt-4o-mini", ResumeTokenBudget: 20})
	long := strings.Repeat("Built and operated payment services. ", 200)
	_, err := a.AnalyzeResume(context.Background(), long, testContext())
	require.NoError(t, err)
	assert.NotContains(t, ai.calls[0].user, long)
	assert.Contains(t, ai.calls[0].user, "Built and operated")
}

func TestAssessCareerFit(t *testing.T) {
	ai := &scriptedAI{replies: []string{goodFit}}
	fit, err := newTestAnalyzer(ai).AssessCareerFit(context.Background(), testContext(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.FitFair, fit.FitLevel)
	assert.Equal(t, domain.Ready6To12Months, fit.TimeToReadiness)
	assert.Contains(t, ai.calls[0].user, "no resume supplied")

	bad := strings.Replace(goodFit, `"6_12_MONTHS"`, `"SOON"`, 1)
	_, err = newTestAnalyzer(&scriptedAI{replies: []string{bad}}).AssessCareerFit(context.Background(), testContext(), nil)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestScoreResponses(t *testing.T) {
	reply := `{"technicalSkills": 62, "communicationSkills": 55, "problemSolving": 60,
	  "teamwork": 58, "adaptability": 52, "professionalism": 64, "overallScore": 97,
	  "evidenceLevel": "WEAK"}`
	ai := &scriptedAI{replies: []string{reply}}
	scores, err := newTestAnalyzer(ai).ScoreResponses(context.Background(), testContext())
	require.NoError(t, err)
	assert.Equal(t, 62, scores.Categories["technicalSkills"])
	assert.Equal(t, domain.EvidenceWeak, scores.EvidenceLevel)
	for _, c := range scoring.CategoriesFor(domain.TypeFirstJob) {
		assert.Contains(t, ai.calls[0].user, c)
	}
	assert.Contains(t, ai.calls[0].user, "Treat all answers as unverified self-report")
}

func TestScoreResponses_MissingCategoryRejected(t *testing.T) {
	ai := &scriptedAI{replies: []string{`{"technicalSkills": 62}`}}
	_, err := newTestAnalyzer(ai).ScoreResponses(context.Background(), testContext())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.NotEmpty(t, ve.Errors)
}

func TestScoreResponses_NoResponses(t *testing.T) {
	actx := testContext()
	actx.Responses = nil
	_, err := newTestAnalyzer(&scriptedAI{}).ScoreResponses(context.Background(), actx)
	assert.ErrorIs(t, err, domain.ErrMissingResponses)
}

func TestRecommend(t *testing.T) {
	reply := `{"recommendations": [
	  {"category": "adaptability", "title": "Practice change", "steps": ["Volunteer for a new project"]},
	  {"category": "general", "title": "Plan", "steps": ["Set goals"], "priority": "high"}]}`
	ai := &scriptedAI{replies: []string{reply}}
	scores := domain.ScoreSet{Categories: map[string]int{"adaptability": 40, "teamwork": 70}, Overall: 55}
	fit := &domain.CareerFit{FitLevel: domain.FitPoor, TimeToReadiness: domain.Ready1To2Years}

	recs, err := newTestAnalyzer(ai).Recommend(context.Background(), testContext(), scores, fit)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "medium", recs[0].Priority)
	assert.Equal(t, "high", recs[1].Priority)
	assert.Contains(t, ai.calls[0].user, "- adaptability: 40")
	assert.Contains(t, ai.calls[0].user, "CAREER FIT: POOR")

	_, err = newTestAnalyzer(&scriptedAI{replies: []string{`{"recommendations": []}`}}).
		Recommend(context.Background(), testContext(), scores, nil)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestAnalyze(t *testing.T) {
	ai := &scriptedAI{replies: []string{goodResume, goodFit}}
	res, err := newTestAnalyzer(ai).Analyze(context.Background(), "Resume: Go developer", testContext())
	require.NoError(t, err)

	assert.Equal(t, 67, res.ResumeAnalysis.OverallResumeScore)
	assert.Equal(t, domain.FitFair, res.CareerFit.FitLevel)
	assert.Len(t, res.Scores.Categories, 6)
	assert.Equal(t, scoring.Overall(res.Scores.Categories), res.Scores.Overall)
	require.NotNil(t, res.Scores.ResumeConsistency)
	assert.Equal(t, 66, *res.Scores.ResumeConsistency)
	assert.Equal(t, domain.EvidenceModerate, res.Scores.EvidenceLevel)
	require.Len(t, ai.calls, 2)
	assert.Contains(t, ai.calls[1].user, "Validated skills: Go")
}

func TestAnalyze_StopsAfterResumeFailure(t *testing.T) {
	ai := &scriptedAI{replies: []string{`{"contentQuality": 500}`, goodFit}}
	_, err := newTestAnalyzer(ai).Analyze(context.Background(), "resume", testContext())
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.Len(t, ai.calls, 1)
}

func TestAnalyze_RejectsIncompleteCategoryScores(t *testing.T) {
	tests := []struct {
		name string
		cats map[string]int
		want []string
	}{
		{"absent", nil, []string{"categoryScores"}},
		{"partial", map[string]int{
			"technicalSkills": 64, "communicationSkills": 58, "problemSolving": 61, "adaptability": 55,
		}, []string{"categoryScores.teamwork", "categoryScores.professionalism"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &scriptedAI{replies: []string{resumeWithCategories(t, tt.cats), goodFit}}
			res, err := newTestAnalyzer(ai).Analyze(context.Background(), "Resume: Go developer", testContext())
			require.ErrorIs(t, err, domain.ErrSchemaInvalid)
			assert.Empty(t, res.Scores.Categories)
			assert.Len(t, ai.calls, 1, "career fit is not requested")
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}
