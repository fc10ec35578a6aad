package heuristic

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Config is the externalized keyword and mapping data driving the scorer.
type Config struct {
	Positive           []string              `yaml:"positive"`
	Negative           []string              `yaml:"negative"`
	Types              map[string]TypeConfig `yaml:"types"`
	Default            TypeConfig            `yaml:"default"`
	CategorySteps      map[string][]string   `yaml:"categorySteps"`
	GenericSteps       []string              `yaml:"genericSteps"`
	General            GeneralConfig         `yaml:"general"`
	FillerStrengths    []string              `yaml:"fillerStrengths"`
	FillerImprovements []string              `yaml:"fillerImprovements"`
}

// TypeConfig holds the per-assessment-type additions.
type TypeConfig struct {
	Positive         []string `yaml:"positive"`
	Negative         []string `yaml:"negative"`
	Rules            []Rule   `yaml:"rules"`
	FallbackCategory string   `yaml:"fallbackCategory"`
}

// Rule maps a question to Category when its text contains any of Match.
type Rule struct {
	Category string   `yaml:"category"`
	Match    []string `yaml:"match"`
}

// GeneralConfig holds the recommendation appended after the category ones,
// chosen by whether the overall score is below 70.
type GeneralConfig struct {
	Below     RecommendationConfig `yaml:"below"`
	AtOrAbove RecommendationConfig `yaml:"atOrAbove"`
}

type RecommendationConfig struct {
	Category string   `yaml:"category"`
	Title    string   `yaml:"title"`
	Priority string   `yaml:"priority"`
	Steps    []string `yaml:"steps"`
}

func (r RecommendationConfig) toDomain() domain.Recommendation {
	return domain.Recommendation{
		Category: r.Category,
		Title:    r.Title,
		Priority: r.Priority,
		Steps:    append([]string(nil), r.Steps...),
	}
}

// DefaultConfig parses the embedded keyword data.
func DefaultConfig() (Config, error) {
	return ParseConfig(defaultKeywords)
}

// LoadConfig reads keyword data from a YAML file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read heuristic config: %v", domain.ErrConfig, err)
	}
	return ParseConfig(b)
}

// ParseConfig decodes and validates keyword data.
func ParseConfig(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: yaml parse: %v", domain.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every rule targets a category of its type's taxonomy.
func (c Config) Validate() error {
	if len(c.Positive) == 0 || len(c.Negative) == 0 {
		return fmt.Errorf("%w: heuristic keyword lists are empty", domain.ErrConfig)
	}
	if len(c.FillerStrengths) < maxPhrases || len(c.FillerImprovements) < maxPhrases {
		return fmt.Errorf("%w: heuristic filler phrases need at least %d entries", domain.ErrConfig, maxPhrases)
	}
	check := func(t domain.AssessmentType, tc TypeConfig) error {
		if !scoring.HasCategory(t, tc.FallbackCategory) {
			return fmt.Errorf("%w: heuristic type %q: fallback category %q not in taxonomy", domain.ErrConfig, t, tc.FallbackCategory)
		}
		for _, r := range tc.Rules {
			if !scoring.HasCategory(t, r.Category) {
				return fmt.Errorf("%w: heuristic type %q: rule category %q not in taxonomy", domain.ErrConfig, t, r.Category)
			}
		}
		return nil
	}
	for name, tc := range c.Types {
		if err := check(domain.AssessmentType(strings.ToLower(name)), tc); err != nil {
			return err
		}
	}
	// Unknown types fall back to the default taxonomy.
	return check("", c.Default)
}
