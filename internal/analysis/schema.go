package analysis

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	resumeSchema          = mustSchema("schemas/resume_analysis.json")
	careerFitSchema       = mustSchema("schemas/career_fit.json")
	recommendationsSchema = mustSchema("schemas/recommendations.json")

	formSchemas sync.Map // domain.AssessmentType -> *gojsonschema.Schema
)

func mustSchema(name string) *gojsonschema.Schema {
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("analysis: read %s: %v", name, err))
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		panic(fmt.Sprintf("analysis: compile %s: %v", name, err))
	}
	return s
}

// formSchema requires every taxonomy category of t as an integer score.
func formSchema(t domain.AssessmentType) (*gojsonschema.Schema, error) {
	if s, ok := formSchemas.Load(t); ok {
		return s.(*gojsonschema.Schema), nil
	}
	score := map[string]any{"type": "integer", "minimum": scoring.MinScore, "maximum": scoring.MaxScore}
	cats := scoring.CategoriesFor(t)
	props := map[string]any{
		"overallScore":      map[string]any{"type": "number"},
		"resumeConsistency": score,
		"evidenceLevel":     map[string]any{"enum": []string{"STRONG", "MODERATE", "WEAK", "INSUFFICIENT"}},
	}
	for _, c := range cats {
		props[c] = score
	}
	doc := map[string]any{
		"type":       "object",
		"required":   cats,
		"properties": props,
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: form schema for %s: %v", domain.ErrInternal, t, err)
	}
	formSchemas.Store(t, s)
	return s, nil
}

// FieldError is one schema violation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a model response. It unwraps
// to domain.ErrSchemaInvalid.
type ValidationError struct {
	Document string
	Errors   []FieldError
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s response failed validation:", e.Document)
	for i, fe := range e.Errors {
		if i == 5 {
			fmt.Fprintf(&sb, " (+%d more)", len(e.Errors)-i)
			break
		}
		fmt.Fprintf(&sb, " %s: %s;", fe.Field, fe.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func (e *ValidationError) Unwrap() error { return domain.ErrSchemaInvalid }

// validate checks doc against s. Documents that are not JSON are ErrSchemaInvalid too.
func validate(s *gojsonschema.Schema, name, doc string) error {
	res, err := s.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s response is not JSON: %v", domain.ErrSchemaInvalid, name, err)
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{Document: name, Errors: make([]FieldError, 0, len(res.Errors()))}
	for _, d := range res.Errors() {
		f := d.Field()
		if f == "" {
			f = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: f, Message: d.Description()})
	}
	return ve
}
