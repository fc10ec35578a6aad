package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/adapter/repo/memory"
	"github.com/fairyhunter13/career-readiness/internal/analysis"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring/heuristic"
	"github.com/fairyhunter13/career-readiness/internal/usecase"
)

type queueStub struct {
	mu    sync.Mutex
	tasks []domain.AnalysisTask
	err   error
}

func (q *queueStub) EnqueueAnalysis(_ domain.Context, task domain.AnalysisTask) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return task.MessageID, nil
}

type runnerStub struct {
	out   usecase.Outcome
	err   error
	calls int
}

func (r *runnerStub) Run(_ context.Context, _ string, _ domain.AssessmentType) (usecase.Outcome, error) {
	r.calls++
	return r.out, r.err
}

type ocrStub struct {
	text string
	err  error
}

func (o ocrStub) DetectDocumentText(_ context.Context, _ []byte, _ string) (string, error) {
	return o.text, o.err
}

func (o ocrStub) DetectText(_ context.Context, _ []byte) (string, error) { return o.text, o.err }

type resumeAnalyzerStub struct {
	res  analysis.Result
	err  error
	seen domain.AssessmentContext
}

func (a *resumeAnalyzerStub) Analyze(_ context.Context, _ string, actx domain.AssessmentContext) (analysis.Result, error) {
	a.seen = actx
	return a.res, a.err
}

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	ocrText  = "Jane Doe, Software Engineer. Four years of Go, Postgres and Kafka."
)

type fixture struct {
	store    *memory.Store
	queue    *queueStub
	runner   *runnerStub
	analyzer *resumeAnalyzerStub
	srv      *Server
	router   http.Handler
}

type fixtureOpt func(*fixtureSettings)

type fixtureSettings struct {
	cfg    config.Config
	inline bool
	ocr    domain.OCRClient
	checks []ReadinessCheck
}

func withInline() fixtureOpt { return func(s *fixtureSettings) { s.inline = true } }

func withOCR(o domain.OCRClient) fixtureOpt { return func(s *fixtureSettings) { s.ocr = o } }

func withUploadMB(mb int64) fixtureOpt { return func(s *fixtureSettings) { s.cfg.MaxUploadMB = mb } }

func withChecks(c ...ReadinessCheck) fixtureOpt { return func(s *fixtureSettings) { s.checks = c } }

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	set := fixtureSettings{
		cfg: config.Config{AppEnv: "test", MaxUploadMB: 15},
		ocr: ocrStub{text: ocrText},
	}
	for _, o := range opts {
		o(&set)
	}

	f := &fixture{
		store:    memory.New(),
		queue:    &queueStub{},
		runner:   &runnerStub{out: usecase.OutcomeCompleted},
		analyzer: &resumeAnalyzerStub{},
	}
	require.NoError(t, f.store.Put(domain.Assessment{
		ID:   "a1",
		Type: domain.TypeFirstJob,
		Data: domain.AssessmentData{Responses: domain.Responses{
			"Describe your technical skills": "I built two Go services and mentored an intern",
		}},
	}))
	require.NoError(t, f.store.Put(domain.Assessment{ID: "empty", Type: domain.TypeFirstJob}))

	h, err := heuristic.NewDefaultScorer()
	require.NoError(t, err)

	var q domain.Queue = f.queue
	if set.inline {
		q = nil
	}
	ex := usecase.NewExtractionService(set.ocr, nil, set.cfg.MaxUploadBytes())
	f.srv = NewServer(set.cfg,
		usecase.NewTriggerService(f.store, q, f.runner),
		usecase.NewStatusService(f.store),
		usecase.NewQuickAnalysisService(nil, h, nil),
		usecase.NewResumeAnalysisService(ex, f.analyzer),
		set.checks...,
	)
	f.router = testRouter(f.srv)
	return f
}

func testRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(), RequestID())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/assessments/{id}/analysis", s.TriggerHandler())
		r.Get("/assessments/{id}/analysis", s.StatusHandler())
		r.Post("/analysis/quick", s.QuickHandler())
		r.Post("/resume/extract", s.ExtractHandler())
		r.Post("/resume/analyze", s.ResumeAnalyzeHandler())
	})
	r.Get("/healthz", HealthzHandler)
	r.Get("/readyz", s.ReadyzHandler())
	return r
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func multipartRequest(t *testing.T, target, partType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="resume"`)
		if partType != "" {
			h.Set("Content-Type", partType)
		}
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}
