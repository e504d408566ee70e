package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/station-mapper-service/internal/domain"
	"github.com/couchcryptid/station-mapper-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// SubmissionTransformer implements Transformer. It parses a queued
// submission into a station table, optionally labels the stations by
// reverse geocoding, and serializes the result.
type SubmissionTransformer struct {
	geocoder domain.Geocoder
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTransformer creates a SubmissionTransformer. Pass a nil geocoder to
// disable station labelling.
func NewTransformer(geocoder domain.Geocoder, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *SubmissionTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SubmissionTransformer{
		geocoder: geocoder,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// Transform returns an error only when the message is not a submission.
// Validation failures become rejected results so producers always get an answer.
func (t *SubmissionTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	sub, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	result := domain.ProcessSubmission(sub)
	if result.Status == domain.StatusRejected {
		kind := string(result.Error.Kind)
		if kind == "" {
			kind = "unknown"
		}
		t.metrics.RecordParse("kafka", string(result.Mode), kind, 0)
		t.logger.Info("submission rejected",
			"submission_id", result.SubmissionID,
			"kind", result.Error.Kind,
			"error", result.Error.Message,
		)
	} else {
		t.metrics.RecordParse("kafka", string(result.Mode), "", len(result.Stations))
		if len(result.Stations) > domain.MaxStations {
			t.logger.Warn("submission exceeds recommended station count",
				"submission_id", result.SubmissionID,
				"stations", len(result.Stations),
				"max", domain.MaxStations,
			)
		}
		result.Stations = domain.LabelStations(ctx, result.Stations, t.geocoder, t.logger)
	}

	result.ProcessedAt = t.clock.Now().UTC()
	return domain.SerializeBatchResult(result)
}
