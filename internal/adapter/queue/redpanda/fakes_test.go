package redpanda

import (
	"context"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

type publisherStub struct {
	mu         sync.Mutex
	enqueued   []domain.AnalysisTask
	deadLetter []domain.AnalysisTask
	causes     []error
	err        error
}

func (p *publisherStub) EnqueueAnalysis(_ domain.Context, task domain.AnalysisTask) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.enqueued = append(p.enqueued, task)
	return task.MessageID, nil
}

func (p *publisherStub) PublishDeadLetter(_ domain.Context, task domain.AnalysisTask, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadLetter = append(p.deadLetter, task)
	p.causes = append(p.causes, cause)
	return p.err
}

// fetcherStub hands out the queued fetches, then cancels the poll loop.
type fetcherStub struct {
	mu        sync.Mutex
	fetches   []kgo.Fetches
	cancel    context.CancelFunc
	committed []*kgo.Record
	allowed   int
	closed    bool
}

func (f *fetcherStub) PollFetches(ctx context.Context) kgo.Fetches {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetches) == 0 {
		f.cancel()
		return nil
	}
	next := f.fetches[0]
	f.fetches = f.fetches[1:]
	return next
}

func (f *fetcherStub) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, rs...)
	return nil
}

func (f *fetcherStub) AllowRebalance() {
	f.mu.Lock()
	f.allowed++
	f.mu.Unlock()
}

func (f *fetcherStub) Close() { f.closed = true }

func fetchOf(records ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      TopicAnalysis,
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: records}},
	}}}}
}

func fetchErr(err error) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      TopicAnalysis,
		Partitions: []kgo.FetchPartition{{Partition: 0, Err: err}},
	}}}}
}
