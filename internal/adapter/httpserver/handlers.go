package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/usecase"
)

// ReadinessCheck is one dependency probe reported by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Trigger    usecase.TriggerService
	Status     usecase.StatusService
	Quick      usecase.QuickAnalysisService
	Extraction usecase.ExtractionService
	Resume     usecase.ResumeAnalysisService
	Checks     []ReadinessCheck
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, trigger usecase.TriggerService, status usecase.StatusService, quick usecase.QuickAnalysisService, resume usecase.ResumeAnalysisService, checks ...ReadinessCheck) *Server {
	return &Server{
		Cfg:        cfg,
		Trigger:    trigger,
		Status:     status,
		Quick:      quick,
		Extraction: resume.Extraction,
		Resume:     resume,
		Checks:     checks,
	}
}

// TriggerHandler accepts an analysis request for a stored assessment. A queued
// trigger answers 202; an inline run answers 200 with its outcome.
func (s *Server) TriggerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req triggerRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeError(w, r, err, nil)
			return
		}
		req.ID = chi.URLParam(r, "id")
		if details, err := validateStruct(req); err != nil {
			writeError(w, r, err, details)
			return
		}
		reason := req.Reason
		if reason == "" {
			reason = "api"
		}
		res, err := s.Trigger.Trigger(r.Context(), req.ID, req.AssessmentType, reason)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Location", "/v1/assessments/"+req.ID+"/analysis")
		status := http.StatusOK
		if res.Queued {
			status = http.StatusAccepted
		}
		writeJSON(w, status, res)
	}
}

// StatusHandler returns the analysis state. It honours If-None-Match.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateAssessmentID(id); err != nil {
			writeError(w, r, err, map[string]string{"id": "assessment_id"})
			return
		}
		view, err := s.Status.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		etag := usecase.ETag(view)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimPrefix(strings.TrimSpace(cand), "W/")
		if cand == "*" || cand == etag {
			return true
		}
	}
	return false
}

// QuickHandler scores a questionnaire without storing anything.
func (s *Server) QuickHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quickRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if details, err := validateStruct(req); err != nil {
			writeError(w, r, err, details)
			return
		}
		t, err := domain.ParseAssessmentType(req.AssessmentType)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Quick.Analyze(r.Context(), req.Responses, t)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ExtractHandler returns the text of an uploaded resume.
func (s *Server) ExtractHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, mimeType, err := s.readUpload(w, r)
		if err != nil {
			writeError(w, r, err, map[string]any{"field": "file", "max_mb": s.Cfg.MaxUploadMB})
			return
		}
		ext, err := s.Extraction.Extract(r.Context(), data, mimeType)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, ext)
	}
}

// ResumeAnalyzeHandler extracts an uploaded resume and runs the resume and
// career-fit verdicts. Optional form fields: assessmentType, targetRole,
// personality and responses (a JSON object).
func (s *Server) ResumeAnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, mimeType, err := s.readUpload(w, r)
		if err != nil {
			writeError(w, r, err, map[string]any{"field": "file", "max_mb": s.Cfg.MaxUploadMB})
			return
		}
		rc := resumeContext{
			AssessmentType: r.FormValue("assessmentType"),
			TargetRole:     strings.TrimSpace(r.FormValue("targetRole")),
			Personality:    strings.TrimSpace(r.FormValue("personality")),
		}
		if details, err := validateStruct(rc); err != nil {
			writeError(w, r, err, details)
			return
		}
		actx := domain.AssessmentContext{
			Type:        domain.AssessmentType(strings.ToLower(strings.TrimSpace(rc.AssessmentType))),
			TargetRole:  rc.TargetRole,
			Personality: rc.Personality,
		}
		if raw := r.FormValue("responses"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &actx.Responses); err != nil {
				writeError(w, r, fmt.Errorf("%w: responses must be a JSON object", domain.ErrInvalidArgument), map[string]string{"responses": "json"})
				return
			}
		}
		rep, err := s.Resume.Analyze(r.Context(), data, mimeType, actx)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// readUpload reads the multipart "file" part within the upload cap.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, "", fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument)
	}
	limit := s.Cfg.MaxUploadBytes()
	if limit <= 0 {
		limit = usecase.DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, "", fmt.Errorf("%w: upload exceeds %d MB", domain.ErrFileTooLarge, limit>>20)
		}
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: file part required", domain.ErrInvalidArgument)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read upload: %v", domain.ErrInvalidArgument, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%w: upload exceeds %d MB", domain.ErrFileTooLarge, limit>>20)
	}
	return data, hdr.Header.Get("Content-Type"), nil
}

// HealthzHandler reports liveness.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyzHandler probes every configured dependency.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		out := make([]check, 0, len(s.Checks))
		ok := true
		for _, c := range s.Checks {
			if err := c.Check(ctx); err != nil {
				ok = false
				out = append(out, check{Name: c.Name, Details: err.Error()})
				continue
			}
			out = append(out, check{Name: c.Name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": out})
	}
}
