package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_request_errors_total",
			Help: "Failed AI requests by provider, operation and error code",
		},
		[]string{"provider", "operation", "code"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	AnalysisEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_enqueued_total",
			Help: "Total number of analysis triggers enqueued",
		},
		[]string{"assessment_type"},
	)
	AnalysisProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analysis_processing",
			Help: "Number of analyses currently holding the processing lock in this process",
		},
		[]string{"assessment_type"},
	)
	AnalysisCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_completed_total",
			Help: "Total number of analyses completed",
		},
		[]string{"assessment_type"},
	)
	AnalysisFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_failed_total",
			Help: "Total number of failed analysis runs by error code",
		},
		[]string{"assessment_type", "code"},
	)
	AnalysisSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_skipped_total",
			Help: "Analysis invocations that returned without work, by reason",
		},
		[]string{"assessment_type", "reason"},
	)
	StaleLockRecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_stale_lock_recoveries_total",
			Help: "Processing locks found older than the processing timeout and cleared",
		},
		[]string{"assessment_type"},
	)
	FallbackActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_fallback_activations_total",
			Help: "Stages that fell back to the heuristic scorer",
		},
		[]string{"stage"},
	)
	ScoreAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_adjustments_total",
			Help: "Corrections applied by the score validator",
		},
		[]string{"kind"},
	)
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_extractions_total",
			Help: "Resume text extractions by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	OverallScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_overall_score",
			Help:    "Distribution of validated overall scores [0,100]",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)
	CombinedScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_combined_score",
			Help:    "Distribution of combined form and resume scores [0,100]",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestErrorsTotal,
			AIRequestDuration,
			AnalysisEnqueuedTotal,
			AnalysisProcessing,
			AnalysisCompletedTotal,
			AnalysisFailedTotal,
			AnalysisSkippedTotal,
			StaleLockRecoveriesTotal,
			FallbackActivationsTotal,
			ScoreAdjustmentsTotal,
			ExtractionsTotal,
			OverallScoreHistogram,
			CombinedScoreHistogram,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveAIRequest records one completion call.
func ObserveAIRequest(provider, operation string, start time.Time, err error) {
	AIRequestsTotal.WithLabelValues(provider, operation).Inc()
	AIRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		AIRequestErrorsTotal.WithLabelValues(provider, operation, domain.ErrorCode(err)).Inc()
	}
}

func EnqueueAnalysis(assessmentType string) {
	AnalysisEnqueuedTotal.WithLabelValues(assessmentType).Inc()
}

func StartAnalysis(assessmentType string) {
	AnalysisProcessing.WithLabelValues(assessmentType).Inc()
}

func CompleteAnalysis(assessmentType string) {
	AnalysisProcessing.WithLabelValues(assessmentType).Dec()
	AnalysisCompletedTotal.WithLabelValues(assessmentType).Inc()
}

func FailAnalysis(assessmentType string, err error) {
	AnalysisProcessing.WithLabelValues(assessmentType).Dec()
	AnalysisFailedTotal.WithLabelValues(assessmentType, domain.ErrorCode(err)).Inc()
}

func SkipAnalysis(assessmentType, reason string) {
	AnalysisSkippedTotal.WithLabelValues(assessmentType, reason).Inc()
}

func RecordStaleLockRecovery(assessmentType string) {
	StaleLockRecoveriesTotal.WithLabelValues(assessmentType).Inc()
}

func RecordFallback(stage string) {
	FallbackActivationsTotal.WithLabelValues(stage).Inc()
}

func RecordScoreAdjustment(kind string) {
	ScoreAdjustmentsTotal.WithLabelValues(kind).Inc()
}

func RecordExtraction(method, outcome string) {
	ExtractionsTotal.WithLabelValues(method, outcome).Inc()
}

// ObserveScores records the validated overall score and, when a resume was
// analysed, the combined final score.
func ObserveScores(overall int, combined *domain.CombinedScore) {
	if overall >= 0 && overall <= 100 {
		OverallScoreHistogram.Observe(float64(overall))
	}
	if combined != nil && combined.FinalScore >= 0 && combined.FinalScore <= 100 {
		CombinedScoreHistogram.Observe(float64(combined.FinalScore))
	}
}
