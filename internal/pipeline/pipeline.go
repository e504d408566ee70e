package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/station-mapper-service/internal/domain"
	"github.com/couchcryptid/station-mapper-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw submission into a serialized batch result.
// An error means the message could not be decoded at all.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

const (
	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 5 * time.Second

	statusUnknown = "unknown"
)

// Pipeline turns queued station submissions into accepted or rejected
// batch results on the sink topic.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once a batch of results has been produced.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not produced any station results yet")
	}
	return nil
}

// Run processes submission batches until the context is cancelled. Extract
// and load failures are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	retry := newRetryBackOff()
	for ctx.Err() == nil {
		err := p.processBatch(ctx)
		if err == nil {
			retry.Reset()
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wait := retry.NextBackOff()
		p.logger.Error("batch failed, retrying", "error", err, "retry_in", wait)
		if !sleepWithContext(ctx, wait) {
			break
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// submissionBatch is one extracted batch split by decode outcome.
type submissionBatch struct {
	results     []domain.OutputEvent
	produced    []domain.RawEvent // sources of results, committed after load
	undecodable []domain.RawEvent
}

// resultTally counts produced results by their status header.
type resultTally map[string]int

func tallyResults(results []domain.OutputEvent) resultTally {
	tally := resultTally{}
	for _, r := range results {
		switch status := r.Headers["status"]; status {
		case domain.StatusAccepted, domain.StatusRejected:
			tally[status]++
		default:
			tally[statusUnknown]++
		}
	}
	return tally
}

// processBatch runs one consume-parse-produce cycle.
func (p *Pipeline) processBatch(ctx context.Context) error {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract batch: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	p.metrics.SubmissionsConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	batch := p.transformBatch(ctx, raws)
	for _, raw := range batch.undecodable {
		p.commitOffset(ctx, raw)
	}
	if len(batch.results) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, batch.results); err != nil {
		return fmt.Errorf("load %d results: %w", len(batch.results), err)
	}
	for _, raw := range batch.produced {
		p.commitOffset(ctx, raw)
	}

	tally := tallyResults(batch.results)
	for status, n := range tally {
		p.metrics.ResultsProduced.WithLabelValues(status).Add(float64(n))
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Info("station results produced",
		"submissions", len(raws),
		"accepted", tally[domain.StatusAccepted],
		"rejected", tally[domain.StatusRejected],
		"skipped", len(batch.undecodable),
	)
	return nil
}

func (p *Pipeline) transformBatch(ctx context.Context, raws []domain.RawEvent) submissionBatch {
	batch := submissionBatch{
		results:  make([]domain.OutputEvent, 0, len(raws)),
		produced: make([]domain.RawEvent, 0, len(raws)),
	}
	for _, raw := range raws {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("undecodable submission, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.DecodeErrors.Inc()
			batch.undecodable = append(batch.undecodable, raw)
			continue
		}
		batch.results = append(batch.results, out)
		batch.produced = append(batch.produced, raw)
	}
	return batch
}

func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
