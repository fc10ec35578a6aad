package scoring

import (
	"math"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// DefaultFormWeight is the percentage of the final score taken from the questionnaire.
const DefaultFormWeight = 60

// Combined readiness tiers, highest first.
const (
	TierExceptional = "Exceptional Readiness"
	TierStrong      = "Strong Readiness"
	TierModerate    = "Moderate Readiness"
	TierDeveloping  = "Developing Readiness"
	TierBasic       = "Basic Readiness"
	TierEarly       = "Early Development"
)

var combinedTiers = []struct {
	min  int
	name string
}{
	{85, TierExceptional},
	{75, TierStrong},
	{65, TierModerate},
	{55, TierDeveloping},
	{45, TierBasic},
}

// FormContribution scales an overall questionnaire score by the form weight.
func FormContribution(overall, formWeight int) int {
	formWeight = Clamp(formWeight, 0, 100)
	return int(math.Round(float64(Clamp(overall, MinScore, MaxScore)*formWeight) / 100))
}

// Combine blends an already-weighted form contribution with a raw resume score.
// resumeContribution = round(resumeScore × (100−formWeight)/100).
func Combine(formContribution, resumeScore, formWeight int) domain.CombinedScore {
	formWeight = Clamp(formWeight, 0, 100)
	resume := int(math.Round(float64(Clamp(resumeScore, MinScore, MaxScore)*(100-formWeight)) / 100))
	final := Clamp(formContribution+resume, MinScore, MaxScore)
	return domain.CombinedScore{
		FormContribution:   formContribution,
		ResumeContribution: resume,
		FinalScore:         final,
		ReadinessLevel:     CombinedTier(final),
	}
}

// CombinedTier maps a final combined score to its tier name.
func CombinedTier(score int) string {
	for _, t := range combinedTiers {
		if score >= t.min {
			return t.name
		}
	}
	return TierEarly
}
