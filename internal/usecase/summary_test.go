package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

func TestSummarize(t *testing.T) {
	scores := domain.ScoreSet{Categories: map[string]int{"technicalSkills": 80, "teamwork": 40}, Overall: 60}

	base := Summarize(domain.TypeFirstJob, scoring.LevelDevelopingCompetent, scores, "", nil, nil)
	assert.Contains(t, base, "60/100")
	assert.NotContains(t, base, "combined")

	fit := &domain.CareerFit{FitLevel: domain.FitFair, FitPercentage: 55, TimeToReadiness: domain.Ready6To12Months}
	combined := &domain.CombinedScore{FinalScore: 62, ReadinessLevel: scoring.TierDeveloping}
	full := Summarize(domain.TypeFirstJob, scoring.LevelDevelopingCompetent, scores, "Data Analyst", fit, combined)
	assert.Contains(t, full, "combined score of 62/100 (Developing Readiness)")
	assert.Contains(t, full, "Fit for Data Analyst is fair at 55%; readiness is roughly 6 to 12 months away.")

	noRole := Summarize(domain.TypeFirstJob, scoring.LevelDevelopingCompetent, scores, "  ", &domain.CareerFit{FitLevel: domain.FitPoor, FitPercentage: 20}, nil)
	assert.Contains(t, noRole, "Fit for your target role is poor at 20%.")
}
