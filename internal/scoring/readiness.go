package scoring

// Readiness levels derived from an overall questionnaire score.
const (
	LevelEarlyDevelopment    = "Early Development"
	LevelDevelopingCompetent = "Developing Competency"
	LevelApproaching         = "Approaching Readiness"
	LevelFullyPrepared       = "Fully Prepared"
)

// ReadinessLevel returns the four-tier label for an overall score.
func ReadinessLevel(overall int) string {
	switch {
	case overall < 50:
		return LevelEarlyDevelopment
	case overall < 70:
		return LevelDevelopingCompetent
	case overall < 85:
		return LevelApproaching
	default:
		return LevelFullyPrepared
	}
}
