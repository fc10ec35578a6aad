// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the analysis trigger and status endpoints, the stateless quick
// analysis and resume routes, and the health probes.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to an HTTP status and envelope code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, domain.ErrUnsupportedMIME):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrConfig):
		return http.StatusServiceUnavailable, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, domain.ErrUpstreamRateLimit), errors.Is(err, domain.ErrSchemaInvalid):
		return http.StatusServiceUnavailable, domain.ErrorCode(err)
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, domain.ErrorCode(err)
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.Logger(r.Context()).Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: msg, Details: details}})
}
