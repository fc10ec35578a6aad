package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{domain.ErrUnsupportedMIME, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{domain.ErrMissingResponses, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{domain.ErrAssessmentNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{domain.ErrNoUsableText, http.StatusUnprocessableEntity, "EXTRACTION_FAILED"},
		{domain.ErrMissingAPIKey, http.StatusServiceUnavailable, "CONFIGURATION"},
		{domain.ErrUpstreamTimeout, http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"},
		{domain.ErrUpstreamRateLimit, http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMIT"},
		{domain.ErrSchemaInvalid, http.StatusServiceUnavailable, "SCHEMA_INVALID"},
		{fmt.Errorf("op=x: %w", domain.ErrUpstream), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, errors.New("pq: password authentication failed"), nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL", e.Code)
	assert.NotContains(t, e.Message, "password")
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("nil map") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decodeEnvelope(t, rec).Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := ulid.ParseStrict(seen)
	require.NoError(t, err, "generated ids are ULIDs")
	assert.Equal(t, seen, rec.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "client-supplied-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied-1", seen)
	assert.Equal(t, "client-supplied-1", rec.Header().Get(headerRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, strings.Repeat("a", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 26, "oversized ids are replaced")
}

func TestRequireJSON(t *testing.T) {
	h := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	for accept, want := range map[string]int{
		"":                                http.StatusNoContent,
		"application/json":                http.StatusNoContent,
		"text/html, */*;q=0.8":            http.StatusNoContent,
		"application/*":                   http.StatusNoContent,
		"text/html":                       http.StatusNotAcceptable,
		"application/xml, text/plain;q=1": http.StatusNotAcceptable,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, accept)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	h := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "TIMEOUT", decodeEnvelope(t, rec).Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

func TestTraceAndAccessLog_PassThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(TraceMiddleware, RequestID(), AccessLog())
	r.Get("/v1/assessments/{id}/analysis", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/assessments/a1/analysis", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestValidateAssessmentID(t *testing.T) {
	for _, id := range []string{"a1", "abc_DEF-123", strings.Repeat("x", 128)} {
		assert.NoError(t, ValidateAssessmentID(id), id)
	}
	for _, id := range []string{"", "has space", "dot.id", "slash/id", strings.Repeat("x", 129)} {
		assert.ErrorIs(t, ValidateAssessmentID(id), domain.ErrInvalidArgument, id)
	}
}
