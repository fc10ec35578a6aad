package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrConfig            = errors.New("configuration error")
	ErrExtraction        = errors.New("extraction failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstream          = errors.New("upstream error")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Named pipeline errors. Each wraps one sentinel so callers can branch with errors.Is
// on either the specific condition or its class.
var (
	ErrAssessmentNotFound = fmt.Errorf("%w: assessment not found", ErrNotFound)
	ErrMissingResponses   = fmt.Errorf("%w: assessment has no responses", ErrInvalidArgument)
	ErrFileTooLarge       = fmt.Errorf("%w: file too large", ErrInvalidArgument)
	ErrUnsupportedMIME    = fmt.Errorf("%w: unsupported file type", ErrInvalidArgument)
	ErrMissingAPIKey      = fmt.Errorf("%w: api key missing", ErrConfig)
	ErrNoUsableText       = fmt.Errorf("%w: no usable text found", ErrExtraction)
)

// ErrorCode maps an error to the stable code used in API envelopes and stored
// error metadata.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrConfig):
		return "CONFIGURATION"
	case errors.Is(err, ErrExtraction):
		return "EXTRACTION_FAILED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrUpstreamTimeout):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, ErrUpstreamRateLimit):
		return "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, ErrSchemaInvalid):
		return "SCHEMA_INVALID"
	case errors.Is(err, ErrUpstream):
		return "UPSTREAM_ERROR"
	default:
		return "INTERNAL"
	}
}

// IsRetryable reports whether an orchestrator failure may succeed on a later
// attempt. Configuration and input errors are terminal for the invocation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConfig), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrNotFound):
		return false
	}
	return true
}
