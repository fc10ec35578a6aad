package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// TopicSpec describes a topic the adapter expects to exist.
type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
}

// requester is the slice of *kgo.Client used for admin requests.
type requester interface {
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
}

// ensureTopics creates every topic that is missing. An already existing topic
// is not an error.
func ensureTopics(ctx context.Context, client requester, specs ...TopicSpec) error {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000
	for _, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("op=ensure_topics: topic name cannot be empty")
		}
		if s.Partitions <= 0 || s.ReplicationFactor <= 0 {
			return fmt.Errorf("op=ensure_topics topic=%s: partitions and replication factor must be positive", s.Name)
		}
		t := kmsg.NewCreateTopicsRequestTopic()
		t.Topic = s.Name
		t.NumPartitions = s.Partitions
		t.ReplicationFactor = s.ReplicationFactor
		req.Topics = append(req.Topics, t)
	}
	if len(req.Topics) == 0 {
		return nil
	}

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("op=ensure_topics: %w", err)
	}
	created, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("op=ensure_topics: unexpected response type %T", resp)
	}

	var errs []error
	for _, t := range created.Topics {
		err := kerr.ErrorForCode(t.ErrorCode)
		switch {
		case err == nil:
			slog.Info("topic created", slog.String("topic", t.Topic), slog.Int("partitions", int(t.NumPartitions)))
		case errors.Is(err, kerr.TopicAlreadyExists):
			slog.Debug("topic already exists", slog.String("topic", t.Topic))
		default:
			msg := ""
			if t.ErrorMessage != nil {
				msg = *t.ErrorMessage
			}
			errs = append(errs, fmt.Errorf("topic=%s: %w %s", t.Topic, err, msg))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("op=ensure_topics: %w", errors.Join(errs...))
	}
	return nil
}

var _ requester = (*kgo.Client)(nil)
