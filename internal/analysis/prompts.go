package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

// scoringBands is embedded in every scoring prompt to hold the model to
// evidence-based ranges.
const scoringBands = `SCORING BANDS (0-100):
- Entry-level evidence: 40-65
- Mid-level evidence: 55-75
- Senior-level evidence: 65-85
- 85-100 ONLY for exceptional, documented evidence
Self-reported answers without supporting evidence must not score above the band their evidence supports.
Do not give every category the same score.`

const (
	systemFormScoring = `You are a rigorous career readiness assessor. You score questionnaire answers honestly and conservatively. Respond with a single JSON object only.`
	systemResume      = `You are an experienced recruiter reviewing a resume against a candidate's stated goals. Judge only what the resume text evidences. Respond with a single JSON object only.`
	systemCareerFit   = `You are a candid career advisor judging whether a candidate fits a target role in today's job market. Be honest rather than encouraging. Respond with a single JSON object only.`
	systemRecommend   = `You are a career coach writing concrete, actionable development recommendations. Respond with a single JSON object only.`
)

var typeNames = map[domain.AssessmentType]string{
	domain.TypeFirstJob:          "First Job Readiness",
	domain.TypeIdealJob:          "Ideal Job Readiness",
	domain.TypeCareerDevelopment: "Career Development Readiness",
	domain.TypeCareerComeback:    "Career Comeback Readiness",
	domain.TypeCareerTransition:  "Career Transition Readiness",
	domain.TypeRetirement:        "Retirement Readiness",
	domain.TypeInternship:        "Internship Readiness",
}

// TypeName returns the display name of an assessment type.
func TypeName(t domain.AssessmentType) string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "Career Readiness (" + string(t) + ")"
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not provided"
	}
	return s
}

func responsesJSON(r domain.Responses) string {
	if len(r) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func contextBlock(sb *strings.Builder, actx domain.AssessmentContext) {
	fmt.Fprintf(sb, "ASSESSMENT TYPE: %s\n", TypeName(actx.Type))
	fmt.Fprintf(sb, "TARGET ROLE: %s\n", orNotProvided(actx.TargetRole))
	fmt.Fprintf(sb, "PERSONALITY: %s\n\n", orNotProvided(actx.Personality))
	fmt.Fprintf(sb, "QUESTIONNAIRE RESPONSES (JSON):\n%s\n\n", responsesJSON(actx.Responses))
}

func resumeBlock(sb *strings.Builder, resume string) {
	if strings.TrimSpace(resume) == "" {
		sb.WriteString("RESUME: none supplied. Treat all answers as unverified self-report.\n\n")
		return
	}
	fmt.Fprintf(sb, "RESUME TEXT:\n---\n%s\n---\n\n", resume)
}

func formScoringPrompt(actx domain.AssessmentContext, resume string) string {
	cats := scoring.CategoriesFor(actx.Type)
	var sb strings.Builder
	contextBlock(&sb, actx)
	resumeBlock(&sb, resume)
	sb.WriteString(scoringBands)
	sb.WriteString("\n\nScore each of these categories as an integer:\n")
	for _, c := range cats {
		fmt.Fprintf(&sb, "- %s (%s)\n", c, scoring.CategoryLabel(c))
	}
	sb.WriteString("\nReturn JSON with exactly these keys:\n{\n")
	for _, c := range cats {
		fmt.Fprintf(&sb, "  %q: <integer 0-100>,\n", c)
	}
	sb.WriteString(`  "resumeConsistency": <integer 0-100, how well answers match the resume>,
  "evidenceLevel": "STRONG|MODERATE|WEAK|INSUFFICIENT"
}`)
	return sb.String()
}

func resumePrompt(actx domain.AssessmentContext, resume string) string {
	var sb strings.Builder
	contextBlock(&sb, actx)
	resumeBlock(&sb, resume)
	sb.WriteString(scoringBands)
	sb.WriteString(`

Evaluate the resume. Check every skill claimed in the responses against the resume and list the ones it supports and the ones it does not.

Return JSON:
{
  "contentQuality": <integer 0-100>,
  "experienceRelevance": <integer 0-100, relevance to the target role>,
  "skillsEvidence": <integer 0-100>,
  "presentation": <integer 0-100>,
  "overallResumeScore": <integer 0-100>,
  "experienceLevel": "ENTRY|JUNIOR|MID|SENIOR|EXECUTIVE",
  "evidenceLevel": "STRONG|MODERATE|WEAK|INSUFFICIENT",
  "resumeConsistency": <integer 0-100>,
  "validatedSkills": ["..."],
  "unsupportedClaims": ["..."],
  "gapAnalysis": ["..."],
  "categoryScores": {`)
	cats := scoring.CategoriesFor(actx.Type)
	for i, c := range cats {
		sep := ", "
		if i == len(cats)-1 {
			sep = ""
		}
		fmt.Fprintf(&sb, "%q: <integer 0-100>%s", c, sep)
	}
	sb.WriteString("}\n}")
	return sb.String()
}

func careerFitPrompt(actx domain.AssessmentContext, ra *domain.ResumeAnalysis) string {
	var sb strings.Builder
	contextBlock(&sb, actx)
	if ra != nil {
		fmt.Fprintf(&sb, "RESUME FINDINGS: overall %d/100, experience level %s, evidence %s\n",
			ra.OverallResumeScore, ra.ExperienceLevel, ra.EvidenceLevel)
		if len(ra.ValidatedSkills) > 0 {
			fmt.Fprintf(&sb, "Validated skills: %s\n", strings.Join(ra.ValidatedSkills, ", "))
		}
		if len(ra.GapAnalysis) > 0 {
			fmt.Fprintf(&sb, "Gaps: %s\n", strings.Join(ra.GapAnalysis, "; "))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("RESUME FINDINGS: no resume supplied; judge from the responses alone and say so.\n\n")
	}
	sb.WriteString(scoringBands)
	sb.WriteString(`

Judge the candidate's fit for the target role.

Return JSON:
{
  "fitLevel": "EXCELLENT|GOOD|FAIR|POOR|UNSUITABLE",
  "fitPercentage": <integer 0-100>,
  "honestAssessment": "<two or three sentences>",
  "realityCheck": "<what the market will expect>",
  "marketCompetitiveness": "<how the candidate compares>",
  "timeToReadiness": "READY_NOW|3_6_MONTHS|6_12_MONTHS|1_2_YEARS|2_PLUS_YEARS",
  "criticalGaps": ["..."],
  "competitiveAdvantages": ["..."]
}`)
	return sb.String()
}

func recommendPrompt(actx domain.AssessmentContext, scores domain.ScoreSet, fit *domain.CareerFit) string {
	var sb strings.Builder
	contextBlock(&sb, actx)
	sb.WriteString("CATEGORY SCORES:\n")
	for _, c := range scoring.CategoriesFor(actx.Type) {
		if v, ok := scores.Categories[c]; ok {
			fmt.Fprintf(&sb, "- %s: %d\n", c, v)
		}
	}
	fmt.Fprintf(&sb, "OVERALL: %d\n\n", scores.Overall)
	if fit != nil {
		fmt.Fprintf(&sb, "CAREER FIT: %s (%d%%), ready in %s\n", fit.FitLevel, fit.FitPercentage, fit.TimeToReadiness)
		if len(fit.CriticalGaps) > 0 {
			fmt.Fprintf(&sb, "Critical gaps: %s\n", strings.Join(fit.CriticalGaps, "; "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Write 3 to 5 recommendations that target the weakest categories first. Each step must be something the candidate can start this month.

Return JSON:
{
  "recommendations": [
    {"category": "<category key or general>", "title": "...", "steps": ["...", "..."], "priority": "high|medium|low"}
  ]
}`)
	return sb.String()
}
