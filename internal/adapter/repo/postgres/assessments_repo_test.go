package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

var ts = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func storedRow(id string, data string) []any {
	return []any{id, "fjrl", "pending", "premium", []byte(data), ts, ts}
}

func TestAssessmentRepo_FindByID(t *testing.T) {
	pool := &poolStub{rows: [][]any{storedRow("a1", `{"responses":{"q1":"yes"},"aiRetryCount":1,"profileId":"p-1"}`)}}
	repo := postgres.NewAssessmentRepo(pool)

	a, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, domain.TypeFirstJob, a.Type)
	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Equal(t, "premium", a.Tier)
	assert.Equal(t, ts, a.UpdatedAt)
	assert.Equal(t, "yes", a.Data.Responses["q1"])
	assert.Equal(t, 1, a.Data.AIRetryCount)
	assert.JSONEq(t, `"p-1"`, string(a.Data.Extra["profileId"]))
	assert.Equal(t, []any{"a1"}, pool.calls[0].args)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pool = &poolStub{rows: [][]any{storedRow("bad", `not json`)}}
	_, err = postgres.NewAssessmentRepo(pool).FindByID(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrInternal)

	pool = &poolStub{rowErr: assert.AnError}
	_, err = postgres.NewAssessmentRepo(pool).FindByID(context.Background(), "a1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=assessment.find")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestAssessmentRepo_Update(t *testing.T) {
	pool := &poolStub{}
	repo := postgres.NewAssessmentRepo(pool)
	d := domain.AssessmentData{AIProcessingInProgress: true, AIRetryCount: 2}

	err := repo.Update(context.Background(), "a1", domain.AssessmentUpdate{Status: domain.StatusPtr(domain.StatusProcessing), Data: &d})
	require.NoError(t, err)
	require.Len(t, pool.calls, 1)
	c := pool.calls[0]
	assert.Contains(t, c.sql, "data || COALESCE($3::jsonb")
	assert.Equal(t, "a1", c.args[0])
	require.NotNil(t, c.args[1])
	assert.Equal(t, "processing", *(c.args[1].(*string)))
	var sent map[string]any
	require.NoError(t, json.Unmarshal(c.args[2].([]byte), &sent))
	assert.Equal(t, true, sent["aiProcessingInProgress"])
	assert.Contains(t, sent, "aiError", "bookkeeping keys are always written so a merge can clear them")

	// status-only update sends no document
	require.NoError(t, repo.Update(context.Background(), "a1", domain.AssessmentUpdate{Status: domain.StatusPtr(domain.StatusFailed)}))
	assert.Nil(t, pool.calls[1].args[2])

	pool = &poolStub{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")}}
	err = postgres.NewAssessmentRepo(pool).Update(context.Background(), "nope", domain.AssessmentUpdate{Data: &d})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pool = &poolStub{execErr: assert.AnError}
	err = postgres.NewAssessmentRepo(pool).Update(context.Background(), "a1", domain.AssessmentUpdate{Data: &d})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAssessmentRepo_UpdateIfUnmodified(t *testing.T) {
	d := domain.AssessmentData{AIAnalysisStarted: true}
	upd := domain.AssessmentUpdate{Status: domain.StatusPtr(domain.StatusProcessing), Data: &d}

	t.Run("applied", func(t *testing.T) {
		pool := &poolStub{}
		require.NoError(t, postgres.NewAssessmentRepo(pool).UpdateIfUnmodified(context.Background(), "a1", ts, upd))
		assert.Contains(t, pool.calls[0].sql, "updated_at = $4")
		assert.Equal(t, ts, pool.calls[0].args[3])
	})
	t.Run("conflict", func(t *testing.T) {
		pool := &poolStub{
			tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")},
			rows: [][]any{{1}},
		}
		err := postgres.NewAssessmentRepo(pool).UpdateIfUnmodified(context.Background(), "a1", ts, upd)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
	t.Run("missing", func(t *testing.T) {
		pool := &poolStub{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")}}
		err := postgres.NewAssessmentRepo(pool).UpdateIfUnmodified(context.Background(), "a1", ts, upd)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAssessmentRepo_ListStaleProcessing(t *testing.T) {
	pool := &poolStub{listed: [][]any{
		storedRow("a1", `{"aiProcessingInProgress":true}`),
		storedRow("a2", `{"aiProcessingInProgress":true}`),
	}}
	cutoff := ts.Add(-10 * time.Minute)

	got, err := postgres.NewAssessmentRepo(pool).ListStaleProcessing(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[1].ID)
	assert.True(t, got[0].Data.AIProcessingInProgress)
	assert.Equal(t, []any{cutoff, 100}, pool.calls[0].args)

	pool = &poolStub{rowErr: assert.AnError}
	_, err = postgres.NewAssessmentRepo(pool).ListStaleProcessing(context.Background(), cutoff, 5)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAssessmentRepo_Insert(t *testing.T) {
	pool := &poolStub{}
	err := postgres.NewAssessmentRepo(pool).Insert(context.Background(), domain.Assessment{
		ID:   "a1",
		Type: domain.TypeInternship,
		Data: domain.AssessmentData{Responses: domain.Responses{"q": "a"}},
	})
	require.NoError(t, err)
	args := pool.calls[0].args
	assert.Equal(t, "irl", args[1])
	assert.Equal(t, "pending", args[2])
}

func TestMigrate(t *testing.T) {
	pool := &poolStub{}
	require.NoError(t, postgres.Migrate(context.Background(), pool))
	assert.Contains(t, pool.calls[0].sql, "CREATE TABLE IF NOT EXISTS assessments")
	assert.Contains(t, pool.calls[0].sql, "rate_limit_buckets")

	assert.Error(t, postgres.Migrate(context.Background(), &poolStub{execErr: assert.AnError}))
}

func TestCleanupService_PruneBuckets(t *testing.T) {
	pool := &poolStub{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 3")}}
	svc := postgres.NewCleanupService(pool, 0)
	svc.Now = func() time.Time { return ts }

	n, err := svc.PruneBuckets(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, ts.Add(-7*24*time.Hour), pool.calls[0].args[0])
}

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := postgres.NewPool(context.Background(), "://bad")
	assert.Error(t, err)
}
