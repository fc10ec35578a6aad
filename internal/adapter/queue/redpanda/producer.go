// Package redpanda carries analysis triggers over Redpanda/Kafka.
//
// The producer publishes one record per trigger, keyed by assessment id so
// that triggers for the same assessment land on one partition in order. The
// consumer runs them through a bounded worker pool and commits offsets only
// after a whole fetch has been handled.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const (
	// TopicAnalysis carries analysis triggers.
	TopicAnalysis = "assessment-analysis"
	// TopicDeadLetter receives triggers that will not be retried.
	TopicDeadLetter = "assessment-analysis-dlq"

	headerMessageID      = "message_id"
	headerAssessmentID   = "assessment_id"
	headerAssessmentType = "assessment_type"
	headerAttempt        = "attempt"
	headerRequestID      = "request_id"
	headerFailureReason  = "failure_reason"
	headerFailureCode    = "failure_code"
)

// DefaultTopics are created on startup when missing.
var DefaultTopics = []TopicSpec{
	{Name: TopicAnalysis, Partitions: 8, ReplicationFactor: 1},
	{Name: TopicDeadLetter, Partitions: 1, ReplicationFactor: 1},
}

// Producer implements domain.Queue.
type Producer struct {
	client *kgo.Client
	topic  string
}

func kotelHooks() kgo.Opt {
	k := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	return kgo.WithHooks(k.Hooks()...)
}

// NewProducer connects an idempotent producer and makes sure the topics exist.
func NewProducer(ctx context.Context, brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: no seed brokers provided", domain.ErrConfig)
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.new_producer: %w", err)
	}
	if err := ensureTopics(ctx, client, DefaultTopics...); err != nil {
		// the broker may forbid topic creation; producing still works if they exist
		slog.Warn("failed to ensure topics", slog.Any("error", err))
	}
	return &Producer{client: client, topic: TopicAnalysis}, nil
}

// EnqueueAnalysis publishes task and returns its message id. A blank
// MessageID is filled in.
func (p *Producer) EnqueueAnalysis(ctx domain.Context, task domain.AnalysisTask) (string, error) {
	if task.MessageID == "" {
		task.MessageID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	rec, err := newTaskRecord(p.topic, task, observability.RequestIDFromContext(ctx))
	if err != nil {
		return "", err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		observability.Logger(ctx).Error("enqueue analysis failed",
			slog.String("assessment_id", task.AssessmentID),
			slog.String("message_id", task.MessageID),
			slog.Any("error", err))
		return "", fmt.Errorf("%w: op=redpanda.enqueue: %v", domain.ErrUpstream, err)
	}
	observability.Logger(ctx).Info("analysis enqueued",
		slog.String("assessment_id", task.AssessmentID),
		slog.String("message_id", task.MessageID),
		slog.Int("attempt", task.Attempt),
		slog.String("reason", task.Reason))
	return task.MessageID, nil
}

// PublishDeadLetter parks task on the dead-letter topic with the failure that
// stopped it.
func (p *Producer) PublishDeadLetter(ctx domain.Context, task domain.AnalysisTask, cause error) error {
	rec, err := newTaskRecord(TopicDeadLetter, task, observability.RequestIDFromContext(ctx))
	if err != nil {
		return err
	}
	rec.Headers = append(rec.Headers,
		kgo.RecordHeader{Key: headerFailureReason, Value: []byte(cause.Error())},
		kgo.RecordHeader{Key: headerFailureCode, Value: []byte(domain.ErrorCode(cause))},
	)
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("%w: op=redpanda.dead_letter: %v", domain.ErrUpstream, err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		slog.Warn("producer flush on close failed", slog.Any("error", err))
	}
	p.client.Close()
}

func newTaskRecord(topic string, task domain.AnalysisTask, requestID string) (*kgo.Record, error) {
	if task.AssessmentID == "" {
		return nil, fmt.Errorf("%w: assessment id required", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("%w: op=redpanda.marshal: %v", domain.ErrInternal, err)
	}
	headers := []kgo.RecordHeader{
		{Key: headerMessageID, Value: []byte(task.MessageID)},
		{Key: headerAssessmentID, Value: []byte(task.AssessmentID)},
		{Key: headerAssessmentType, Value: []byte(task.AssessmentType)},
		{Key: headerAttempt, Value: []byte(strconv.Itoa(task.Attempt))},
	}
	if requestID != "" {
		headers = append(headers, kgo.RecordHeader{Key: headerRequestID, Value: []byte(requestID)})
	}
	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(task.AssessmentID),
		Value:   b,
		Headers: headers,
	}, nil
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
