package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

func TestHTTPMetricsMiddleware_Basic(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	mw := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }))
	mw.ServeHTTP(rec, r)
	assert.Equal(t, 204, rec.Result().StatusCode)
	assert.GreaterOrEqual(t, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/x", "GET", "No Content")), 1.0)
}

func TestAnalysisMetricsHelpers(t *testing.T) {
	InitMetrics()
	InitMetrics()

	EnqueueAnalysis("fjrl")
	StartAnalysis("fjrl")
	CompleteAnalysis("fjrl")
	StartAnalysis("fjrl")
	FailAnalysis("fjrl", domain.ErrSchemaInvalid)
	SkipAnalysis("fjrl", "locked")
	RecordStaleLockRecovery("fjrl")
	RecordFallback("form_scoring")
	RecordScoreAdjustment("uniform")
	RecordExtraction("vision_document", "ok")
	ObserveScores(72, &domain.CombinedScore{FinalScore: 68})

	assert.Equal(t, 0.0, testutil.ToFloat64(AnalysisProcessing.WithLabelValues("fjrl")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(AnalysisFailedTotal.WithLabelValues("fjrl", "SCHEMA_INVALID")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(AnalysisSkippedTotal.WithLabelValues("fjrl", "locked")), 1.0)
}

func TestObserveAIRequest_CountsErrorsByCode(t *testing.T) {
	before := testutil.ToFloat64(AIRequestErrorsTotal.WithLabelValues("openai", "test_op", "UPSTREAM_TIMEOUT"))
	ObserveAIRequest("openai", "test_op", time.Now(), nil)
	ObserveAIRequest("openai", "test_op", time.Now(), errors.Join(domain.ErrUpstreamTimeout))
	after := testutil.ToFloat64(AIRequestErrorsTotal.WithLabelValues("openai", "test_op", "UPSTREAM_TIMEOUT"))
	assert.Equal(t, before+1, after)
}

func TestNewLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	lg := newLogger(&buf, config.Config{AppEnv: "dev", OTELServiceName: "svc"})
	lg.Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "svc", line["service"])
	assert.Equal(t, "dev", line["env"])
	assert.Equal(t, "DEBUG", line["level"])

	buf.Reset()
	prod := newLogger(&buf, config.Config{AppEnv: "prod", OTELServiceName: "svc"})
	prod.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestContextLogger(t *testing.T) {
	lg := slog.Default()
	base := context.Background()

	ctx := ContextWithLogger(base, lg)
	assert.Same(t, lg, LoggerFromContext(ctx))
	assert.Equal(t, base, ContextWithLogger(base, nil))
	assert.Same(t, slog.Default(), LoggerFromContext(base))

	ctx = ContextWithRequestID(base, "01HX")
	assert.Equal(t, "01HX", RequestIDFromContext(ctx))
	assert.Equal(t, base, ContextWithRequestID(base, ""))
	assert.Equal(t, "", RequestIDFromContext(base))
}

func TestLogger_AddsTraceAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	old := slog.Default()
	slog.SetDefault(base)
	t.Cleanup(func() { slog.SetDefault(old) })

	tid, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sid, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithRequestID(ctx, "req-1")

	Logger(ctx).Info("x")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, tid.String(), line["trace_id"])
	assert.Equal(t, sid.String(), line["span_id"])
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}

func TestSamplingRatio(t *testing.T) {
	assert.Equal(t, 0.25, samplingRatio(config.Config{AppEnv: "prod"}))
	assert.Equal(t, 1.0, samplingRatio(config.Config{AppEnv: "dev"}))
}
