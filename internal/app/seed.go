package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// SeedFile is the YAML shape accepted by LoadSeed:
//
//	assessments:
//	  - id: demo-1
//	    type: ijrl
//	    targetRole: Data Analyst
//	    responses:
//	      "How do you approach learning a new tool?": "I build a small project with it"
type SeedFile struct {
	Assessments []SeedAssessment `yaml:"assessments"`
}

// SeedAssessment is one record in a seed file.
type SeedAssessment struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Status      string         `yaml:"status"`
	Tier        string         `yaml:"tier"`
	TargetRole  string         `yaml:"targetRole"`
	Personality string         `yaml:"personality"`
	ResumeText  string         `yaml:"resumeText"`
	Responses   map[string]any `yaml:"responses"`
}

// Inserter writes a new record. The memory store and the postgres repo both
// provide one.
type Inserter func(ctx context.Context, a domain.Assessment) error

// InserterFor returns the inserter matching the container's store.
func (c *Container) InserterFor() (Inserter, error) {
	switch s := c.Store.(type) {
	case interface {
		Insert(domain.Context, domain.Assessment) error
	}:
		return s.Insert, nil
	case interface{ Put(domain.Assessment) error }:
		return func(_ context.Context, a domain.Assessment) error { return s.Put(a) }, nil
	default:
		return nil, fmt.Errorf("%w: store %T cannot insert records", domain.ErrConfig, c.Store)
	}
}

// ParseSeed decodes and checks a seed document.
func ParseSeed(b []byte) ([]domain.Assessment, error) {
	var doc SeedFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: seed yaml: %v", domain.ErrInvalidArgument, err)
	}
	out := make([]domain.Assessment, 0, len(doc.Assessments))
	for i, s := range doc.Assessments {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: seed entry %d has no id", domain.ErrInvalidArgument, i)
		}
		t, err := domain.ParseAssessmentType(s.Type)
		if err != nil {
			return nil, fmt.Errorf("seed entry %s: %w", id, err)
		}
		out = append(out, domain.Assessment{
			ID:     id,
			Type:   t,
			Status: domain.AssessmentStatus(s.Status),
			Tier:   s.Tier,
			Data: domain.AssessmentData{
				Responses:   domain.Responses(s.Responses),
				ResumeText:  s.ResumeText,
				TargetRole:  s.TargetRole,
				Personality: s.Personality,
			},
		})
	}
	return out, nil
}

// LoadSeed reads path and inserts every assessment it lists. It returns how
// many were written.
func LoadSeed(ctx context.Context, insert Inserter, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: seed file not found: %s", domain.ErrInvalidArgument, path)
		}
		return 0, fmt.Errorf("op=app.load_seed: %w", err)
	}
	recs, err := ParseSeed(b)
	if err != nil {
		return 0, err
	}
	for i, a := range recs {
		if err := insert(ctx, a); err != nil {
			return i, fmt.Errorf("op=app.load_seed id=%s: %w", a.ID, err)
		}
	}
	slog.Info("seeded assessments", slog.String("path", path), slog.Int("count", len(recs)))
	return len(recs), nil
}
