package redpanda

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

func TestNewTaskRecord(t *testing.T) {
	task := domain.AnalysisTask{
		MessageID:      "m-1",
		AssessmentID:   "a-1",
		AssessmentType: domain.TypeFirstJob,
		Attempt:        2,
		EnqueuedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	rec, err := newTaskRecord(TopicAnalysis, task, "req-9")
	require.NoError(t, err)

	assert.Equal(t, TopicAnalysis, rec.Topic)
	assert.Equal(t, []byte("a-1"), rec.Key)
	assert.Equal(t, "m-1", header(rec, headerMessageID))
	assert.Equal(t, "a-1", header(rec, headerAssessmentID))
	assert.Equal(t, "fjrl", header(rec, headerAssessmentType))
	assert.Equal(t, "2", header(rec, headerAttempt))
	assert.Equal(t, "req-9", header(rec, headerRequestID))
	assert.Equal(t, "", header(rec, "missing"))

	var got domain.AnalysisTask
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, task, got)
}

func TestNewTaskRecord_NoRequestIDHeader(t *testing.T) {
	rec, err := newTaskRecord(TopicAnalysis, domain.AnalysisTask{AssessmentID: "a"}, "")
	require.NoError(t, err)
	for _, h := range rec.Headers {
		assert.NotEqual(t, headerRequestID, h.Key)
	}
}

func TestNewTaskRecord_RequiresAssessmentID(t *testing.T) {
	_, err := newTaskRecord(TopicAnalysis, domain.AnalysisTask{}, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(t.Context(), nil)
	assert.ErrorIs(t, err, domain.ErrConfig)
}
