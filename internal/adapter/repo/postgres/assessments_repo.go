// Package postgres provides the PostgreSQL assessment store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AssessmentRepo reads and transitions assessment records. Updates merge the
// data document's top-level keys over the stored ones, so keys written by
// other services survive.
type AssessmentRepo struct{ Pool PgxPool }

// NewAssessmentRepo constructs an AssessmentRepo with the given pool.
func NewAssessmentRepo(p PgxPool) *AssessmentRepo { return &AssessmentRepo{Pool: p} }

const selectAssessment = `SELECT id, type, status, COALESCE(tier,''), data, created_at, updated_at FROM assessments`

// FindByID loads an assessment by id.
func (r *AssessmentRepo) FindByID(ctx domain.Context, id string) (domain.Assessment, error) {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.FindByID")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.id", id))

	a, err := scanAssessment(r.Pool.QueryRow(ctx, selectAssessment+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assessment{}, fmt.Errorf("op=assessment.find: %w", domain.ErrNotFound)
		}
		return domain.Assessment{}, fmt.Errorf("op=assessment.find: %w", err)
	}
	return a, nil
}

// Update applies upd. A missing row is domain.ErrNotFound.
func (r *AssessmentRepo) Update(ctx domain.Context, id string, upd domain.AssessmentUpdate) error {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.Update")
	defer span.End()

	status, data, err := updateArgs(upd)
	if err != nil {
		return fmt.Errorf("op=assessment.update: %w", err)
	}
	q := `UPDATE assessments
	SET status = COALESCE($2::text, status),
	    data = data || COALESCE($3::jsonb, '{}'::jsonb),
	    updated_at = now()
	WHERE id = $1`
	tag, err := r.Pool.Exec(ctx, q, id, status, data)
	if err != nil {
		return fmt.Errorf("op=assessment.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=assessment.update: %w", domain.ErrNotFound)
	}
	return nil
}

// UpdateIfUnmodified applies upd only when updated_at still equals since.
// Another writer in between yields domain.ErrConflict.
func (r *AssessmentRepo) UpdateIfUnmodified(ctx domain.Context, id string, since time.Time, upd domain.AssessmentUpdate) error {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.UpdateIfUnmodified")
	defer span.End()

	status, data, err := updateArgs(upd)
	if err != nil {
		return fmt.Errorf("op=assessment.update_cond: %w", err)
	}
	q := `UPDATE assessments
	SET status = COALESCE($2::text, status),
	    data = data || COALESCE($3::jsonb, '{}'::jsonb),
	    updated_at = now()
	WHERE id = $1 AND updated_at = $4`
	tag, err := r.Pool.Exec(ctx, q, id, status, data, since)
	if err != nil {
		return fmt.Errorf("op=assessment.update_cond: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var one int
	if err := r.Pool.QueryRow(ctx, `SELECT 1 FROM assessments WHERE id=$1`, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("op=assessment.update_cond: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("op=assessment.update_cond: %w", err)
	}
	return fmt.Errorf("op=assessment.update_cond: %w", domain.ErrConflict)
}

// ListStaleProcessing returns records still marked processing whose lock was
// taken before cutoff, oldest first.
func (r *AssessmentRepo) ListStaleProcessing(ctx domain.Context, cutoff time.Time, limit int) ([]domain.Assessment, error) {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.ListStaleProcessing")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	q := selectAssessment + `
	WHERE status = 'processing'
	  AND COALESCE((data->>'aiProcessingInProgress')::boolean, false)
	  AND COALESCE((data->>'aiAnalysisStartedAt')::timestamptz, updated_at) < $1
	ORDER BY updated_at
	LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("op=assessment.list_stale: %w", err)
	}
	defer rows.Close()

	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("op=assessment.list_stale: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=assessment.list_stale: %w", err)
	}
	span.SetAttributes(attribute.Int("assessments.stale", len(out)))
	return out, nil
}

// Insert stores a new assessment. Used by seeding tools; the pipeline never creates records.
func (r *AssessmentRepo) Insert(ctx domain.Context, a domain.Assessment) error {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.Insert")
	defer span.End()

	data, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("op=assessment.insert: %w", err)
	}
	status := a.Status
	if status == "" {
		status = domain.StatusPending
	}
	q := `INSERT INTO assessments (id, type, status, tier, data) VALUES ($1,$2,$3,NULLIF($4,''),$5::jsonb)`
	if _, err := r.Pool.Exec(ctx, q, a.ID, string(a.Type), string(status), a.Tier, data); err != nil {
		return fmt.Errorf("op=assessment.insert: %w", err)
	}
	return nil
}

func updateArgs(upd domain.AssessmentUpdate) (*string, []byte, error) {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	var data []byte
	if upd.Data != nil {
		b, err := json.Marshal(upd.Data)
		if err != nil {
			return nil, nil, err
		}
		data = b
	}
	return status, data, nil
}

func scanAssessment(row pgx.Row) (domain.Assessment, error) {
	var (
		a           domain.Assessment
		typ, status string
		raw         []byte
	)
	if err := row.Scan(&a.ID, &typ, &status, &a.Tier, &raw, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Assessment{}, err
	}
	a.Type = domain.AssessmentType(typ)
	a.Status = domain.AssessmentStatus(status)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a.Data); err != nil {
			return domain.Assessment{}, fmt.Errorf("%w: decode data of %s: %v", domain.ErrInternal, a.ID, err)
		}
	}
	return a, nil
}
