package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const maxJSONBody = 1 << 20

var (
	assessmentIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	assessmentTypePattern = regexp.MustCompile(`^[A-Za-z]{2,16}$`)

	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		_ = vld.RegisterValidation("assessment_id", func(fl validator.FieldLevel) bool {
			return assessmentIDPattern.MatchString(fl.Field().String())
		})
		_ = vld.RegisterValidation("assessment_type", func(fl validator.FieldLevel) bool {
			return assessmentTypePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

type triggerRequest struct {
	ID             string `json:"-" validate:"required,assessment_id"`
	AssessmentType string `json:"assessmentType" validate:"omitempty,assessment_type"`
	Reason         string `json:"reason" validate:"omitempty,max=64"`
}

type quickRequest struct {
	AssessmentType string           `json:"assessmentType" validate:"required,assessment_type"`
	Responses      domain.Responses `json:"responses" validate:"required,min=1,max=200"`
}

type resumeContext struct {
	AssessmentType string `validate:"omitempty,assessment_type"`
	TargetRole     string `validate:"max=200"`
	Personality    string `validate:"max=200"`
}

// ValidateAssessmentID checks a path id before any store access.
func ValidateAssessmentID(id string) error {
	if err := getValidator().Var(id, "required,assessment_id"); err != nil {
		return fmt.Errorf("%w: invalid assessment id", domain.ErrInvalidArgument)
	}
	return nil
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidArgument, mbe.Limit)
		}
		return fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// validateStruct runs struct validation and returns per-field failures as details.
func validateStruct(v any) (map[string]string, error) {
	err := getValidator().Struct(v)
	if err == nil {
		return nil, nil
	}
	details := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			if field == "" {
				field = strings.ToLower(fe.StructField())
			}
			details[field] = fe.Tag()
		}
	}
	return details, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument)
}
