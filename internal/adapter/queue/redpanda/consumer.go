package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// Handler runs one analysis trigger.
type Handler func(ctx context.Context, task domain.AnalysisTask) error

// fetcher is the slice of *kgo.Client the poll loop drives.
type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	AllowRebalance()
	Close()
}

// ConsumerConfig configures the group consumer.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Topic      string
	MaxWorkers int
}

// Consumer reads analysis triggers and hands them to a Handler.
type Consumer struct {
	client  fetcher
	handle  Handler
	retry   *RetryManager
	workers int
	poller  *AdaptivePoller
	tracer  trace.Tracer
	topic   string
}

// NewConsumer joins cfg.GroupID on cfg.Topic. retry may be nil, in which case
// failed triggers are only logged.
func NewConsumer(cfg ConsumerConfig, handle Handler, retry *RetryManager) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no seed brokers provided", domain.ErrConfig)
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("%w: consumer group id required", domain.ErrConfig)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: consumer handler required", domain.ErrConfig)
	}
	if cfg.Topic == "" {
		cfg.Topic = TopicAnalysis
	}
	slog.Info("creating redpanda consumer",
		slog.Any("brokers", cfg.Brokers),
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic),
		slog.Int("max_workers", cfg.MaxWorkers))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.FetchMaxWait(2*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.new_consumer: %w", err)
	}
	return newConsumer(client, cfg, handle, retry), nil
}

func newConsumer(client fetcher, cfg ConsumerConfig, handle Handler, retry *RetryManager) *Consumer {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{
		client:  client,
		handle:  handle,
		retry:   retry,
		workers: workers,
		poller:  NewAdaptivePoller(time.Second),
		tracer:  otel.Tracer("queue.redpanda"),
		topic:   cfg.Topic,
	}
}

// Start polls until ctx is cancelled. Each fetch is processed by at most
// MaxWorkers goroutines and committed once every record in it was handled.
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("consumer started", slog.String("topic", c.topic), slog.Int("workers", c.workers))
	for {
		if ctx.Err() != nil {
			return nil
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		var fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
			fetchErr = err
		})
		if fetchErr != nil {
			c.poller.RecordFailure()
			c.client.AllowRebalance()
			wait := c.poller.NextInterval()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		c.poller.RecordSuccess()

		records := fetches.Records()
		if len(records) == 0 {
			c.client.AllowRebalance()
			continue
		}
		c.processBatch(ctx, records)
		// commit with a detached context so a shutdown does not drop finished work
		if err := c.client.CommitRecords(context.WithoutCancel(ctx), records...); err != nil {
			slog.Error("commit offsets failed", slog.Int("records", len(records)), slog.Any("error", err))
		}
		c.client.AllowRebalance()
	}
}

func (c *Consumer) processBatch(ctx context.Context, records []*kgo.Record) {
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	for _, r := range records {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			c.processRecord(ctx, r)
		}()
	}
	wg.Wait()
}

func (c *Consumer) processRecord(ctx context.Context, r *kgo.Record) {
	task, decodeErr := decodeTask(r)

	reqID := header(r, headerRequestID)
	if reqID == "" {
		reqID = task.MessageID
	}
	ctx = observability.ContextWithRequestID(ctx, reqID)
	lg := observability.Logger(ctx).With(
		slog.String("assessment_id", task.AssessmentID),
		slog.String("message_id", task.MessageID),
		slog.Int("partition", int(r.Partition)),
		slog.Int64("offset", r.Offset))
	ctx = observability.ContextWithLogger(ctx, lg)

	ctx, span := c.tracer.Start(ctx, "Consumer.processRecord", trace.WithAttributes(
		attribute.String("assessment.id", task.AssessmentID),
		attribute.String("messaging.message.id", task.MessageID),
		attribute.Int("analysis.attempt", task.Attempt),
	))
	defer span.End()

	if decodeErr != nil {
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, "decode")
		lg.Error("undecodable analysis trigger", slog.Any("error", decodeErr))
		c.deadLetter(ctx, task, decodeErr)
		return
	}

	start := time.Now()
	err := c.handle(ctx, task)
	if err == nil {
		lg.Info("analysis trigger handled", slog.Duration("took", time.Since(start)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, domain.ErrorCode(err))
	lg.Error("analysis trigger failed", slog.Duration("took", time.Since(start)), slog.Any("error", err))
	if c.retry == nil {
		return
	}
	if rerr := c.retry.Handle(ctx, task, err); rerr != nil {
		lg.Error("retry routing failed", slog.Any("error", rerr))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, task domain.AnalysisTask, cause error) {
	if c.retry == nil {
		return
	}
	if err := c.retry.pub.PublishDeadLetter(ctx, task, cause); err != nil {
		observability.Logger(ctx).Error("dead-letter publish failed", slog.Any("error", err))
	}
}

// decodeTask reads the JSON payload. On failure the returned task carries
// whatever the headers identify so it can still be dead-lettered.
func decodeTask(r *kgo.Record) (domain.AnalysisTask, error) {
	var task domain.AnalysisTask
	err := json.Unmarshal(r.Value, &task)
	if err == nil && task.AssessmentID == "" {
		err = errors.New("missing assessment_id")
	}
	if err == nil {
		return task, nil
	}
	fallback := domain.AnalysisTask{
		MessageID:      header(r, headerMessageID),
		AssessmentID:   header(r, headerAssessmentID),
		AssessmentType: domain.AssessmentType(header(r, headerAssessmentType)),
	}
	if fallback.AssessmentID == "" {
		fallback.AssessmentID = string(r.Key)
	}
	if n, aerr := strconv.Atoi(header(r, headerAttempt)); aerr == nil {
		fallback.Attempt = n
	}
	return fallback, fmt.Errorf("%w: decode analysis trigger: %v", domain.ErrInvalidArgument, err)
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
	slog.Info("consumer closed", slog.String("topic", c.topic))
}
