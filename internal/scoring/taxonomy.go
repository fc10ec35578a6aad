// Package scoring holds the pure scoring rules shared by the AI and heuristic paths:
// category taxonomies, score validation, readiness tiers and the form/resume blend.
package scoring

import (
	"strings"
	"unicode"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// defaultCategories applies to any assessment type without its own taxonomy.
var defaultCategories = []string{
	"technicalSkills",
	"communicationSkills",
	"problemSolving",
	"adaptability",
	"leadership",
	"industryKnowledge",
}

var taxonomies = map[domain.AssessmentType][]string{
	domain.TypeFirstJob: {
		"technicalSkills",
		"communicationSkills",
		"problemSolving",
		"teamwork",
		"adaptability",
		"professionalism",
	},
	domain.TypeIdealJob: {
		"skillsAlignment",
		"valuesAlignment",
		"workEnvironmentFit",
		"careerGoalClarity",
		"marketReadiness",
	},
	domain.TypeCareerDevelopment: {
		"leadershipPotential",
		"strategicThinking",
		"skillDevelopment",
		"networkBuilding",
		"performanceImpact",
		"careerPlanning",
	},
	domain.TypeCareerComeback: {
		"skillsCurrency",
		"confidenceLevel",
		"industryKnowledge",
		"networkStrength",
		"adaptability",
		"gapExplanation",
	},
	domain.TypeCareerTransition: {
		"transferableSkills",
		"industryKnowledge",
		"learningAgility",
		"networkBuilding",
		"financialPreparedness",
		"motivationClarity",
	},
	domain.TypeRetirement: {
		"financialReadiness",
		"emotionalReadiness",
		"lifestylePlanning",
		"healthWellness",
		"socialConnections",
		"purposeMeaning",
	},
	domain.TypeInternship: {
		"academicFoundation",
		"technicalSkills",
		"communicationSkills",
		"professionalAwareness",
		"learningOrientation",
		"teamwork",
	},
}

// CategoriesFor returns the ordered category names for t. Unknown types get the
// default taxonomy. The returned slice is a copy.
func CategoriesFor(t domain.AssessmentType) []string {
	cats, ok := taxonomies[t]
	if !ok {
		cats = defaultCategories
	}
	out := make([]string, len(cats))
	copy(out, cats)
	return out
}

// HasCategory reports whether name belongs to t's taxonomy.
func HasCategory(t domain.AssessmentType, name string) bool {
	for _, c := range CategoriesFor(t) {
		if c == name {
			return true
		}
	}
	return false
}

// CategoryLabel renders a camelCase category name as lower-case words,
// e.g. "technicalSkills" -> "technical skills".
func CategoryLabel(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
