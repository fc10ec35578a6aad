// Package memory is an in-process assessment store for local runs and tests.
// It mirrors the Postgres merge semantics.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// Store keeps assessments keyed by id. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	recs map[string]stored
	now  func() time.Time
}

// stored keeps the data document as JSON so merges behave like a jsonb `||`.
type stored struct {
	a    domain.Assessment
	data map[string]json.RawMessage
}

// New returns an empty Store.
func New() *Store {
	return &Store{recs: map[string]stored{}, now: func() time.Time { return time.Now().UTC() }}
}

// Put inserts or replaces a record.
func (s *Store) Put(a domain.Assessment) error {
	doc, err := toDoc(a.Data)
	if err != nil {
		return fmt.Errorf("op=memory.put: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	s.recs[a.ID] = stored{a: a, data: doc}
	return nil
}

// FindByID returns a copy of the record.
func (s *Store) FindByID(_ domain.Context, id string) (domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return domain.Assessment{}, fmt.Errorf("op=memory.find: %w", domain.ErrNotFound)
	}
	return r.materialize()
}

// Update merges upd over the record.
func (s *Store) Update(_ domain.Context, id string, upd domain.AssessmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(id, nil, upd)
}

// UpdateIfUnmodified merges upd only when the record is unchanged since since.
func (s *Store) UpdateIfUnmodified(_ domain.Context, id string, since time.Time, upd domain.AssessmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(id, &since, upd)
}

// ListStaleProcessing returns processing records locked before cutoff, oldest first.
func (s *Store) ListStaleProcessing(_ domain.Context, cutoff time.Time, limit int) ([]domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Assessment
	for _, r := range s.recs {
		a, err := r.materialize()
		if err != nil {
			return nil, err
		}
		if a.Status != domain.StatusProcessing || !a.Data.AIProcessingInProgress {
			continue
		}
		locked := a.UpdatedAt
		if a.Data.AIAnalysisStartedAt != nil {
			locked = *a.Data.AIAnalysisStartedAt
		}
		if locked.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) applyLocked(id string, since *time.Time, upd domain.AssessmentUpdate) error {
	r, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("op=memory.update: %w", domain.ErrNotFound)
	}
	if since != nil && !r.a.UpdatedAt.Equal(*since) {
		return fmt.Errorf("op=memory.update: %w", domain.ErrConflict)
	}
	if upd.Data != nil {
		doc, err := toDoc(*upd.Data)
		if err != nil {
			return fmt.Errorf("op=memory.update: %w", err)
		}
		for k, v := range doc {
			r.data[k] = v
		}
	}
	if upd.Status != nil {
		r.a.Status = *upd.Status
	}
	r.a.UpdatedAt = s.tick()
	s.recs[id] = r
	return nil
}

// tick returns a strictly increasing timestamp so conditional updates can
// tell two writes apart.
func (s *Store) tick() time.Time {
	now := s.now()
	for _, r := range s.recs {
		if !now.After(r.a.UpdatedAt) {
			now = r.a.UpdatedAt.Add(time.Microsecond)
		}
	}
	return now
}

func (r stored) materialize() (domain.Assessment, error) {
	b, err := json.Marshal(r.data)
	if err != nil {
		return domain.Assessment{}, err
	}
	a := r.a
	a.Data = domain.AssessmentData{}
	if err := json.Unmarshal(b, &a.Data); err != nil {
		return domain.Assessment{}, fmt.Errorf("%w: decode data of %s: %v", domain.ErrInternal, a.ID, err)
	}
	return a, nil
}

func toDoc(d domain.AssessmentData) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
