package scoring

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// Validation constants.
const (
	MinScore = 0
	MaxScore = 100

	// A category missing from the raw set starts at the neutral midpoint.
	neutralScore = 50

	conservatismThreshold = 80
	conservatismPenalty   = 12
	conservatismFloor     = 25

	uniformityMinCategories = 4
	uniformitySpread        = 10
	uniformityFloor         = 15
	uniformityCeiling       = 95

	consistencyWithResume    = 75
	consistencyWithoutResume = 50

	// Mean answer length at which self-report counts as weak evidence rather than none.
	substantiveAnswerChars = 40
)

// Adjustments records which corrections Check applied.
type Adjustments struct {
	Clamped      bool
	Defaulted    []string
	Conservative bool
	Uniform      bool
}

// Kinds lists the adjustments that fired, for metrics labels.
func (a Adjustments) Kinds() []string {
	var out []string
	if a.Clamped {
		out = append(out, "clamped")
	}
	if len(a.Defaulted) > 0 {
		out = append(out, "defaulted")
	}
	if a.Conservative {
		out = append(out, "conservative")
	}
	if a.Uniform {
		out = append(out, "uniform")
	}
	return out
}

// Validator normalizes raw score sets from the model or the heuristic scorer.
// It is safe for concurrent use.
type Validator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewValidator builds a Validator drawing variation from src. A nil src is
// seeded from the clock.
func NewValidator(src rand.Source) *Validator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Validator{rng: rand.New(src)}
}

// Validate returns the normalized score set for t. See Check.
func (v *Validator) Validate(t domain.AssessmentType, raw domain.ScoreSet, responses map[string]string, resumeText string) domain.ScoreSet {
	out, _ := v.Check(t, raw, responses, resumeText)
	return out
}

// Check normalizes raw against t's taxonomy:
//   - categories outside the taxonomy are dropped, missing ones start at 50 and are listed in
//     Adjustments.Defaulted, all are clamped to [0,100];
//   - with no resume text and a mean above 80, every category loses 12 points (floor 25);
//   - more than three identical categories get random variation of up to 10 points (floor 15, ceiling 95),
//     downward only when the conservatism penalty applied;
//   - overallScore is recomputed as the rounded mean;
//   - resumeConsistency and evidenceLevel are defaulted when absent.
func (v *Validator) Check(t domain.AssessmentType, raw domain.ScoreSet, responses map[string]string, resumeText string) (domain.ScoreSet, Adjustments) {
	var adj Adjustments
	cats := CategoriesFor(t)
	scores := make(map[string]int, len(cats))
	for _, c := range cats {
		s, ok := raw.Categories[c]
		if !ok {
			s = neutralScore
			adj.Defaulted = append(adj.Defaulted, c)
		}
		if cl := Clamp(s, MinScore, MaxScore); cl != s {
			adj.Clamped = true
			s = cl
		}
		scores[c] = s
	}

	hasResume := strings.TrimSpace(resumeText) != ""
	if !hasResume && mean(scores) > conservatismThreshold {
		adj.Conservative = true
		for c, s := range scores {
			scores[c] = max(s-conservatismPenalty, conservatismFloor)
		}
	}

	if len(cats) >= uniformityMinCategories && allEqual(scores) {
		adj.Uniform = true
		v.vary(cats, scores, adj.Conservative)
	}

	out := domain.ScoreSet{
		Categories:    scores,
		Overall:       int(math.Round(mean(scores))),
		EvidenceLevel: raw.EvidenceLevel,
	}

	rc := consistencyWithoutResume
	if hasResume {
		rc = consistencyWithResume
	}
	if raw.ResumeConsistency != nil {
		rc = Clamp(*raw.ResumeConsistency, MinScore, MaxScore)
	}
	out.ResumeConsistency = &rc

	if !validEvidence(out.EvidenceLevel) {
		out.EvidenceLevel = defaultEvidence(hasResume, responses)
	}
	return out, adj
}

// Defaults is the last-resort score set when neither the model nor the
// heuristic scorer produced one: every category at the neutral midpoint with
// no variation.
func (v *Validator) Defaults(t domain.AssessmentType, responses map[string]string, resumeText string) domain.ScoreSet {
	cats := CategoriesFor(t)
	scores := make(map[string]int, len(cats))
	for _, c := range cats {
		scores[c] = neutralScore
	}
	hasResume := strings.TrimSpace(resumeText) != ""
	rc := consistencyWithoutResume
	if hasResume {
		rc = consistencyWithResume
	}
	return domain.ScoreSet{
		Categories:        scores,
		Overall:           neutralScore,
		ResumeConsistency: &rc,
		EvidenceLevel:     defaultEvidence(hasResume, responses),
	}
}

// MissingCategories lists t's taxonomy categories absent from scores, in taxonomy order.
func MissingCategories(t domain.AssessmentType, scores map[string]int) []string {
	var out []string
	for _, c := range CategoriesFor(t) {
		if _, ok := scores[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func (v *Validator) vary(cats []string, scores map[string]int, downOnly bool) {
	v.mu.Lock()
	for _, c := range cats {
		var delta int
		if downOnly {
			delta = -v.rng.Intn(uniformitySpread + 1)
		} else {
			delta = v.rng.Intn(2*uniformitySpread+1) - uniformitySpread
		}
		scores[c] = Clamp(scores[c]+delta, uniformityFloor, uniformityCeiling)
	}
	v.mu.Unlock()

	// The draw can land every category on the same value; break the tie deterministically.
	if allEqual(scores) {
		first := cats[0]
		if scores[first] > uniformityFloor {
			scores[first]--
		} else {
			scores[first]++
		}
	}
}

func defaultEvidence(hasResume bool, responses map[string]string) domain.EvidenceLevel {
	if hasResume {
		return domain.EvidenceModerate
	}
	if len(responses) == 0 {
		return domain.EvidenceInsufficient
	}
	total := 0
	for _, a := range responses {
		total += len(strings.TrimSpace(a))
	}
	if total/len(responses) >= substantiveAnswerChars {
		return domain.EvidenceWeak
	}
	return domain.EvidenceInsufficient
}

func validEvidence(e domain.EvidenceLevel) bool {
	switch e {
	case domain.EvidenceStrong, domain.EvidenceModerate, domain.EvidenceWeak, domain.EvidenceInsufficient:
		return true
	}
	return false
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Overall returns the rounded mean of the category scores, or 0 for an empty set.
func Overall(scores map[string]int) int {
	return int(math.Round(mean(scores)))
}

func mean(scores map[string]int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

func allEqual(scores map[string]int) bool {
	first := true
	var v int
	for _, s := range scores {
		if first {
			v, first = s, false
			continue
		}
		if s != v {
			return false
		}
	}
	return true
}
