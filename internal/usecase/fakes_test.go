package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// fakeRepo is an in-memory AssessmentRepository that records every update.
type fakeRepo struct {
	mu         sync.Mutex
	recs       map[string]domain.Assessment
	updates    []domain.AssessmentUpdate
	updateErrs []error
	findErr    error
	clock      time.Time
}

func newFakeRepo(recs ...domain.Assessment) *fakeRepo {
	r := &fakeRepo{recs: map[string]domain.Assessment{}, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, a := range recs {
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = r.clock
		}
		r.recs[a.ID] = a
	}
	return r
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (domain.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return domain.Assessment{}, r.findErr
	}
	a, ok := r.recs[id]
	if !ok {
		return domain.Assessment{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) Update(_ context.Context, id string, upd domain.AssessmentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(id, upd)
}

func (r *fakeRepo) applyLocked(id string, upd domain.AssessmentUpdate) error {
	if len(r.updateErrs) > 0 {
		err := r.updateErrs[0]
		r.updateErrs = r.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	a, ok := r.recs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.updates = append(r.updates, snapshot(upd))
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.Data != nil {
		a.Data = *upd.Data
	}
	r.clock = r.clock.Add(time.Second)
	a.UpdatedAt = r.clock
	r.recs[id] = a
	return nil
}

func (r *fakeRepo) get(id string) domain.Assessment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recs[id]
}

func (r *fakeRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// snapshot deep-copies an update through JSON so later mutation by the caller
// does not leak into the recorded history.
func snapshot(upd domain.AssessmentUpdate) domain.AssessmentUpdate {
	out := domain.AssessmentUpdate{Status: upd.Status}
	if upd.Data != nil {
		b, _ := json.Marshal(upd.Data)
		var d domain.AssessmentData
		_ = json.Unmarshal(b, &d)
		out.Data = &d
	}
	return out
}

// conditionalRepo adds optimistic concurrency on top of fakeRepo.
type conditionalRepo struct {
	*fakeRepo
	conflict bool
}

func (r *conditionalRepo) UpdateIfUnmodified(_ context.Context, id string, since time.Time, upd domain.AssessmentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflict || !r.recs[id].UpdatedAt.Equal(since) {
		return domain.ErrConflict
	}
	return r.applyLocked(id, upd)
}

// fakeAnalyst returns canned results. A non-nil panicIn names the stage to panic in.
type fakeAnalyst struct {
	mu sync.Mutex

	scores    domain.ScoreSet
	scoresErr error
	resume    domain.ResumeAnalysis
	resumeErr error
	fit       domain.CareerFit
	fitErr    error
	recs      []domain.Recommendation
	recsErr   error
	panicIn   string

	calls   []string
	fitSeen []*domain.ResumeAnalysis
}

func (f *fakeAnalyst) record(stage string) {
	f.mu.Lock()
	f.calls = append(f.calls, stage)
	f.mu.Unlock()
	if f.panicIn == stage {
		panic("boom in " + stage)
	}
}

func (f *fakeAnalyst) ScoreResponses(_ context.Context, _ domain.AssessmentContext) (domain.ScoreSet, error) {
	f.record("score")
	return f.scores, f.scoresErr
}

func (f *fakeAnalyst) AnalyzeResume(_ context.Context, _ string, _ domain.AssessmentContext) (domain.ResumeAnalysis, error) {
	f.record("resume")
	return f.resume, f.resumeErr
}

func (f *fakeAnalyst) AssessCareerFit(_ context.Context, _ domain.AssessmentContext, ra *domain.ResumeAnalysis) (domain.CareerFit, error) {
	f.mu.Lock()
	f.fitSeen = append(f.fitSeen, ra)
	f.mu.Unlock()
	f.record("fit")
	return f.fit, f.fitErr
}

func (f *fakeAnalyst) Recommend(_ context.Context, _ domain.AssessmentContext, _ domain.ScoreSet, _ *domain.CareerFit) ([]domain.Recommendation, error) {
	f.record("recommend")
	return f.recs, f.recsErr
}

func (f *fakeAnalyst) called(stage string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == stage {
			return true
		}
	}
	return false
}
