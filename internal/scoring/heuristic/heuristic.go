// Package heuristic scores questionnaire responses with keyword sentiment so an
// assessment can be analysed without calling any external model.
package heuristic

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

const (
	neutralScore     = 50
	lengthBonus      = 10
	longAnswerChars  = 100
	shortAnswerChars = 20
	strengthMin      = 70
	improvementBelow = 50
	generalThreshold = 70
	maxPhrases       = 5
	lowestCategories = 2
)

// CategoryInsight describes how one category score was reached.
type CategoryInsight struct {
	Score      int    `json:"score"`
	Responses  int    `json:"responses"`
	Assessment string `json:"assessment"`
}

// Result is the full heuristic analysis of one questionnaire.
type Result struct {
	Scores           domain.ScoreSet            `json:"scores"`
	ReadinessLevel   string                     `json:"readinessLevel"`
	Recommendations  []domain.Recommendation    `json:"recommendations"`
	Summary          string                     `json:"summary"`
	Strengths        []string                   `json:"strengths"`
	Improvements     []string                   `json:"improvements"`
	CategoryAnalysis map[string]CategoryInsight `json:"categoryAnalysis"`
}

type keywords struct {
	exact    map[string]struct{}
	prefixes []string
}

func newKeywords(lists ...[]string) keywords {
	k := keywords{exact: map[string]struct{}{}}
	for _, l := range lists {
		for _, w := range l {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if p, ok := strings.CutSuffix(w, "*"); ok {
				k.prefixes = append(k.prefixes, p)
				continue
			}
			k.exact[w] = struct{}{}
		}
	}
	return k
}

func (k keywords) match(token string) bool {
	if _, ok := k.exact[token]; ok {
		return true
	}
	for _, p := range k.prefixes {
		if strings.HasPrefix(token, p) {
			return true
		}
	}
	return false
}

type typeProfile struct {
	positive keywords
	negative keywords
	rules    []Rule
	fallback string
}

// Scorer is the heuristic analyzer. It is immutable after construction and
// safe for concurrent use.
type Scorer struct {
	cfg      Config
	profiles map[domain.AssessmentType]typeProfile
	base     typeProfile
}

// NewScorer builds a Scorer from validated keyword data.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{cfg: cfg, profiles: make(map[domain.AssessmentType]typeProfile, len(cfg.Types))}
	s.base = s.profile(cfg.Default)
	for name, tc := range cfg.Types {
		s.profiles[domain.AssessmentType(strings.ToLower(name))] = s.profile(tc)
	}
	return s, nil
}

// NewDefaultScorer builds a Scorer from the embedded keyword data.
func NewDefaultScorer() (*Scorer, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return NewScorer(cfg)
}

func (s *Scorer) profile(tc TypeConfig) typeProfile {
	rules := make([]Rule, len(tc.Rules))
	for i, r := range tc.Rules {
		m := make([]string, len(r.Match))
		for j, w := range r.Match {
			m[j] = strings.ToLower(w)
		}
		rules[i] = Rule{Category: r.Category, Match: m}
	}
	return typeProfile{
		positive: newKeywords(s.cfg.Positive, tc.Positive),
		negative: newKeywords(s.cfg.Negative, tc.Negative),
		rules:    rules,
		fallback: tc.FallbackCategory,
	}
}

func (s *Scorer) profileFor(t domain.AssessmentType) typeProfile {
	if p, ok := s.profiles[t]; ok {
		return p
	}
	return s.base
}

// Sentiment scores one answer: positive share of keyword matches scaled to
// 0–100 (50 with no matches), ±10 for long or short answers, clamped.
func (s *Scorer) Sentiment(answer string, t domain.AssessmentType) int {
	p := s.profileFor(t)
	pos, neg := 0, 0
	for _, tok := range tokenize(answer) {
		if p.positive.match(tok) {
			pos++
		}
		if p.negative.match(tok) {
			neg++
		}
	}
	score := float64(neutralScore)
	if pos+neg > 0 {
		score = float64(pos) / float64(pos+neg) * 100
	}
	n := len(strings.TrimSpace(answer))
	switch {
	case n > longAnswerChars:
		score += lengthBonus
	case n < shortAnswerChars:
		score -= lengthBonus
	}
	return scoring.Clamp(int(math.Round(score)), scoring.MinScore, scoring.MaxScore)
}

// CategoryFor maps a question to a category by the first rule whose match
// text occurs in the question, else the type's fallback category.
func (s *Scorer) CategoryFor(question string, t domain.AssessmentType) string {
	p := s.profileFor(t)
	q := strings.ToLower(question)
	for _, r := range p.rules {
		for _, m := range r.Match {
			if strings.Contains(q, m) {
				return r.Category
			}
		}
	}
	return p.fallback
}

type answerScore struct {
	question string
	category string
	score    int
}

// scoreAnswers walks responses in ascending question order.
func (s *Scorer) scoreAnswers(responses map[string]string, t domain.AssessmentType) []answerScore {
	qs := make([]string, 0, len(responses))
	for q := range responses {
		qs = append(qs, q)
	}
	sort.Strings(qs)
	out := make([]answerScore, 0, len(qs))
	for _, q := range qs {
		out = append(out, answerScore{
			question: q,
			category: s.CategoryFor(q, t),
			score:    s.Sentiment(responses[q], t),
		})
	}
	return out
}

// Analyze runs the full heuristic analysis.
func (s *Scorer) Analyze(responses map[string]string, t domain.AssessmentType) Result {
	answers := s.scoreAnswers(responses, t)
	cats := scoring.CategoriesFor(t)

	running := make(map[string]float64, len(cats))
	counts := make(map[string]int, len(cats))
	for _, a := range answers {
		if prev, seen := running[a.category]; seen {
			running[a.category] = (prev + float64(a.score)) / 2
		} else {
			running[a.category] = float64(a.score)
		}
		counts[a.category]++
	}

	scores := make(map[string]int, len(cats))
	insights := make(map[string]CategoryInsight, len(cats))
	for _, c := range cats {
		v := neutralScore
		if r, ok := running[c]; ok {
			v = scoring.Clamp(int(math.Round(r)), scoring.MinScore, scoring.MaxScore)
		}
		scores[c] = v
		insights[c] = CategoryInsight{Score: v, Responses: counts[c], Assessment: describe(c, v, counts[c])}
	}
	overall := scoring.Overall(scores)
	set := domain.ScoreSet{Categories: scores, Overall: overall}
	level := scoring.ReadinessLevel(overall)
	strengths, improvements := s.phrases(answers)

	return Result{
		Scores:           set,
		ReadinessLevel:   level,
		Recommendations:  s.Recommend(set, t),
		Summary:          Summarize(level, set, t),
		Strengths:        strengths,
		Improvements:     improvements,
		CategoryAnalysis: insights,
	}
}

// StrengthsAndImprovements returns exactly five strengths and five improvements.
func (s *Scorer) StrengthsAndImprovements(responses map[string]string, t domain.AssessmentType) ([]string, []string) {
	return s.phrases(s.scoreAnswers(responses, t))
}

func (s *Scorer) phrases(answers []answerScore) ([]string, []string) {
	var strengths, improvements []string
	for _, a := range answers {
		label := scoring.CategoryLabel(a.category)
		switch {
		case a.score >= strengthMin:
			strengths = appendUnique(strengths, fmt.Sprintf("Demonstrates strong %s", label))
		case a.score < improvementBelow:
			improvements = appendUnique(improvements, fmt.Sprintf("Build more confidence and evidence in %s", label))
		}
	}
	return topUp(strengths, s.cfg.FillerStrengths), topUp(improvements, s.cfg.FillerImprovements)
}

// Recommend targets the two lowest categories (ties by taxonomy order) and
// appends one general recommendation gated on an overall score of 70.
func (s *Scorer) Recommend(scores domain.ScoreSet, t domain.AssessmentType) []domain.Recommendation {
	cats := scoring.CategoriesFor(t)
	ordered := make([]string, 0, len(cats))
	for _, c := range cats {
		if _, ok := scores.Categories[c]; ok {
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return scores.Categories[ordered[i]] < scores.Categories[ordered[j]]
	})
	if len(ordered) > lowestCategories {
		ordered = ordered[:lowestCategories]
	}

	recs := make([]domain.Recommendation, 0, len(ordered)+1)
	for _, c := range ordered {
		steps, ok := s.cfg.CategorySteps[c]
		if !ok || len(steps) == 0 {
			steps = s.cfg.GenericSteps
		}
		recs = append(recs, domain.Recommendation{
			Category: c,
			Title:    fmt.Sprintf("Strengthen your %s", scoring.CategoryLabel(c)),
			Steps:    append([]string(nil), steps...),
			Priority: "high",
		})
	}
	overall := scores.Overall
	if overall == 0 && len(scores.Categories) > 0 {
		overall = scoring.Overall(scores.Categories)
	}
	if overall < generalThreshold {
		recs = append(recs, s.cfg.General.Below.toDomain())
	} else {
		recs = append(recs, s.cfg.General.AtOrAbove.toDomain())
	}
	return recs
}

// Summarize renders a short narrative for a score set.
func Summarize(level string, scores domain.ScoreSet, t domain.AssessmentType) string {
	high, low := Extremes(scores, t)
	if high == "" {
		return fmt.Sprintf("Your responses indicate %s with an overall score of %d/100.", level, scores.Overall)
	}
	return fmt.Sprintf("Your responses indicate %s with an overall score of %d/100. Your strongest area is %s and the area to focus on next is %s.",
		level, scores.Overall, scoring.CategoryLabel(high), scoring.CategoryLabel(low))
}

// Extremes returns the highest and lowest scoring categories, ties broken by
// taxonomy order.
func Extremes(scores domain.ScoreSet, t domain.AssessmentType) (high, low string) {
	for _, c := range scoring.CategoriesFor(t) {
		v, ok := scores.Categories[c]
		if !ok {
			continue
		}
		if high == "" || v > scores.Categories[high] {
			high = c
		}
		if low == "" || v < scores.Categories[low] {
			low = c
		}
	}
	return high, low
}

func describe(category string, score, n int) string {
	label := scoring.CategoryLabel(category)
	switch {
	case n == 0:
		return fmt.Sprintf("No responses addressed %s; scored as neutral.", label)
	case score >= strengthMin:
		return fmt.Sprintf("Responses show clear strength in %s.", label)
	case score < improvementBelow:
		return fmt.Sprintf("Responses suggest %s needs development.", label)
	default:
		return fmt.Sprintf("Responses show moderate %s.", label)
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return list
		}
	}
	return append(list, v)
}

func topUp(list, filler []string) []string {
	if len(list) > maxPhrases {
		list = list[:maxPhrases]
	}
	for _, f := range filler {
		if len(list) >= maxPhrases {
			break
		}
		list = appendUnique(list, f)
	}
	return list
}
