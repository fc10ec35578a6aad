package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// Runner runs the pipeline synchronously. *ProcessingService implements it.
type Runner interface {
	Run(ctx context.Context, id string, t domain.AssessmentType) (Outcome, error)
}

// TriggerResult reports how a trigger was handled.
type TriggerResult struct {
	AssessmentID string                  `json:"assessmentId"`
	Type         string                  `json:"assessmentType"`
	Queued       bool                    `json:"queued"`
	MessageID    string                  `json:"messageId,omitempty"`
	Outcome      Outcome                 `json:"outcome,omitempty"`
	Status       domain.AssessmentStatus `json:"status"`
}

// TriggerService accepts analysis requests. With a queue configured it
// enqueues; otherwise it runs the pipeline inline.
type TriggerService struct {
	Repo   domain.AssessmentRepository
	Queue  domain.Queue
	Runner Runner
}

// NewTriggerService constructs a TriggerService. q or r may be nil, not both.
func NewTriggerService(repo domain.AssessmentRepository, q domain.Queue, r Runner) TriggerService {
	return TriggerService{Repo: repo, Queue: q, Runner: r}
}

// Trigger validates the request and hands it to the queue or the runner.
func (s TriggerService) Trigger(ctx domain.Context, id, assessmentType, reason string) (TriggerResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return TriggerResult{}, fmt.Errorf("%w: assessment id required", domain.ErrInvalidArgument)
	}
	rec, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TriggerResult{}, fmt.Errorf("%w: %s", domain.ErrAssessmentNotFound, id)
		}
		return TriggerResult{}, err
	}
	t := rec.Type
	if strings.TrimSpace(assessmentType) != "" {
		if t, err = domain.ParseAssessmentType(assessmentType); err != nil {
			return TriggerResult{}, err
		}
	}
	if t == "" {
		return TriggerResult{}, fmt.Errorf("%w: assessment type required", domain.ErrInvalidArgument)
	}
	if len(rec.Data.Responses) == 0 {
		return TriggerResult{}, domain.ErrMissingResponses
	}
	res := TriggerResult{AssessmentID: id, Type: string(t), Status: rec.Status}

	if s.Queue != nil {
		task := domain.AnalysisTask{
			MessageID:      uuid.NewString(),
			AssessmentID:   id,
			AssessmentType: t,
			Reason:         reason,
			EnqueuedAt:     time.Now().UTC(),
		}
		msgID, err := s.Queue.EnqueueAnalysis(ctx, task)
		if err != nil {
			return TriggerResult{}, fmt.Errorf("op=trigger.enqueue: %w", err)
		}
		observability.EnqueueAnalysis(string(t))
		res.Queued = true
		res.MessageID = msgID
		return res, nil
	}
	if s.Runner == nil {
		return TriggerResult{}, fmt.Errorf("%w: neither queue nor runner configured", domain.ErrConfig)
	}
	out, err := s.Runner.Run(ctx, id, t)
	if err != nil {
		return TriggerResult{}, err
	}
	res.Outcome = out
	if rec, err := s.Repo.FindByID(ctx, id); err == nil {
		res.Status = rec.Status
	}
	return res, nil
}
