package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring/heuristic"
)

var readinessPhrases = map[domain.TimeToReadiness]string{
	domain.ReadyNow:          "you could apply now",
	domain.Ready3To6Months:   "readiness is roughly 3 to 6 months away",
	domain.Ready6To12Months:  "readiness is roughly 6 to 12 months away",
	domain.Ready1To2Years:    "readiness is roughly 1 to 2 years away",
	domain.ReadyTwoPlusYears: "readiness is more than 2 years away",
}

// Summarize writes the narrative stored with a completed analysis.
func Summarize(t domain.AssessmentType, level string, scores domain.ScoreSet, targetRole string, fit *domain.CareerFit, combined *domain.CombinedScore) string {
	parts := []string{heuristic.Summarize(level, scores, t)}
	if combined != nil {
		parts = append(parts, fmt.Sprintf("Weighing your resume alongside your answers gives a combined score of %d/100 (%s).",
			combined.FinalScore, combined.ReadinessLevel))
	}
	if fit != nil && fit.FitLevel != "" {
		role := strings.TrimSpace(targetRole)
		if role == "" {
			role = "your target role"
		}
		s := fmt.Sprintf("Fit for %s is %s at %d%%", role, strings.ToLower(string(fit.FitLevel)), fit.FitPercentage)
		if p, ok := readinessPhrases[fit.TimeToReadiness]; ok {
			s += "; " + p
		}
		parts = append(parts, s+".")
	}
	return strings.Join(parts, " ")
}
