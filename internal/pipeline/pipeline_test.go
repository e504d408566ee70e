package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/station-mapper-service/internal/domain"
	"github.com/couchcryptid/station-mapper-service/internal/observability"
	"github.com/couchcryptid/station-mapper-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockBatchExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockBatchExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{
		Key:     raw.Key,
		Value:   raw.Value,
		Headers: map[string]string{"status": domain.StatusAccepted},
	}, nil
}

type mockBatchLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
}

func (m *mockBatchLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, events...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawEvent(t, domain.Submission{ID: "sub-1", Mode: "decimal", Latitudes: "48.65", Longitudes: "-126.65"})

	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockBatchLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 50)
	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SubmissionsConsumed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultsProduced.WithLabelValues(domain.StatusAccepted)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockBatchExtractor{} // no batches, blocks
	ldr := &mockBatchLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_DecodeErrorSkipsAndCommits(t *testing.T) {
	var committed atomic.Bool
	raw := domain.RawEvent{Key: []byte("bad"), Value: []byte("not-json{{{")}
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockBatchLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.True(t, committed.Load(), "poison message offset should be committed")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DecodeErrors), 0)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int64
	commit := func(context.Context) error {
		commits.Add(1)
		return nil
	}

	batch := make([]domain.RawEvent, 3)
	for i := range batch {
		batch[i] = makeRawEvent(t, domain.Submission{Mode: "decimal", Latitudes: "1", Longitudes: "2"})
		batch[i].Commit = commit
	}

	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockBatchLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.loaded, 3)
	assert.Equal(t, int64(3), commits.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawEvent(t, domain.Submission{Mode: "decimal", Latitudes: "1", Longitudes: "2"})
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockBatchLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, committed.Load(), "offset must not be committed when the result was not produced")
}

func TestPipeline_Run_TalliesResultsByStatus(t *testing.T) {
	batch := []domain.RawEvent{
		makeRawEvent(t, domain.Submission{ID: "p-decimal", Mode: "decimal", Latitudes: "48.65,49.57", Longitudes: "-126.65,-138.67"}),
		makeRawEvent(t, domain.Submission{ID: "p-dms", Mode: "dms", Latitudes: "48N", Longitudes: "126W", LatMinutes: "39", LonMinutes: "39"}),
		makeRawEvent(t, domain.Submission{ID: "no-hemisphere", Mode: "dms", Latitudes: "48", Longitudes: "126W"}),
		{Key: []byte("garbage"), Value: []byte("not-json{{{")},
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(nil, clockwork.NewFakeClock(), metrics, discardLogger())
	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockBatchLoader{}

	p := pipeline.New(ext, transformer, ldr, logger, metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 3)
	assert.Equal(t, "no-hemisphere", string(ldr.loaded[2].Key))
	assert.Equal(t, domain.StatusRejected, ldr.loaded[2].Headers["status"])

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ResultsProduced.WithLabelValues(domain.StatusAccepted)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultsProduced.WithLabelValues(domain.StatusRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DecodeErrors), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.SubmissionsConsumed), 0)

	var summary map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "station results produced" {
			summary = entry
		}
	}
	require.NotNil(t, summary, "missing per-batch summary log")
	assert.InDelta(t, 4, summary["submissions"], 0)
	assert.InDelta(t, 2, summary["accepted"], 0)
	assert.InDelta(t, 1, summary["rejected"], 0)
	assert.InDelta(t, 1, summary["skipped"], 0)
}

func TestPipeline_Run_UnlabelledResultCountedAsUnknown(t *testing.T) {
	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{{{Key: []byte("k"), Value: []byte("{}")}}}}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, headerlessTransformer{}, &mockBatchLoader{}, discardLogger(), metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultsProduced.WithLabelValues("unknown")), 0)
}

type headerlessTransformer struct{}

func (headerlessTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

func TestPipeline_Run_RetriesAfterLoadFailure(t *testing.T) {
	raw := makeRawEvent(t, domain.Submission{ID: "retry", Mode: "decimal", Latitudes: "1", Longitudes: "2"})
	ext := &mockBatchExtractor{batches: [][]domain.RawEvent{{raw}, {raw}}}
	ldr := &flakyLoader{failures: 1}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(2), ldr.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultsProduced.WithLabelValues(domain.StatusAccepted)), 0)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

type flakyLoader struct {
	failures int64
	calls    atomic.Int64
}

func (f *flakyLoader) LoadBatch(context.Context, []domain.OutputEvent) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("leader not available")
	}
	return nil
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockBatchExtractor{err: errors.New("connection refused")}
	ldr := &mockBatchLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

// --- transformer tests ---

func TestSubmissionTransformer_Accepted(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	tfm := pipeline.NewTransformer(nil, clock, metrics, discardLogger())

	raw := makeRawEvent(t, domain.Submission{
		ID:         "cruise-42",
		Mode:       "dms",
		Latitudes:  "48N,48N",
		Longitudes: "126W,130W",
		LatMinutes: "39,58.2",
		LonMinutes: "39.0,40.0",
	})

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("cruise-42"), out.Key)
	assert.Equal(t, domain.StatusAccepted, out.Headers["status"])
	assert.Equal(t, "2024-04-26T15:10:00Z", out.Headers["processed_at"])

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(out.Value, &result))

	type row struct {
		Station  int
		Lat, Lon float64
	}
	got := make([]row, 0, len(result.Stations))
	for _, s := range result.Stations {
		got = append(got, row{Station: s.Station, Lat: s.Latitude, Lon: s.Longitude})
	}
	want := []row{
		{Station: 1, Lat: 48.65, Lon: -126.65},
		{Station: 2, Lat: 48.97, Lon: -(130 + 40.0/60)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("station table mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, domain.ModeDMS, result.Mode)
	assert.Nil(t, result.Error)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BatchesParsed.WithLabelValues("kafka", "dms")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.StationsParsed), 0)
}

func TestSubmissionTransformer_Rejected(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	tfm := pipeline.NewTransformer(nil, clockwork.NewFakeClock(), metrics, discardLogger())

	raw := makeRawEvent(t, domain.Submission{
		ID:         "cruise-43",
		Mode:       "dms",
		Latitudes:  "48N,49",
		Longitudes: "126W,130W",
	})

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err, "validation failures produce a rejected result, not an error")
	assert.Equal(t, domain.StatusRejected, out.Headers["status"])

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(out.Value, &result))
	assert.Empty(t, result.Stations)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.KindMissingHemisphere, result.Error.Kind)
	assert.Equal(t, 2, result.Error.Station)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ValidationFailures.WithLabelValues("kafka", "missing_hemisphere")), 0)
}

func TestSubmissionTransformer_InvalidJSON(t *testing.T) {
	tfm := pipeline.NewTransformer(nil, nil, observability.NewMetricsForTesting(), discardLogger())
	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse submission")
}

type stubGeocoder struct{}

func (stubGeocoder) ReverseGeocode(_ context.Context, lat, _ float64) (domain.GeocodingResult, error) {
	if lat > 45 {
		return domain.GeocodingResult{}, nil
	}
	return domain.GeocodingResult{PlaceName: "Woods Hole", FormattedAddress: "Woods Hole, Massachusetts", Confidence: 0.9}, nil
}

func TestSubmissionTransformer_LabelsStations(t *testing.T) {
	tfm := pipeline.NewTransformer(stubGeocoder{}, clockwork.NewFakeClock(), observability.NewMetricsForTesting(), discardLogger())

	raw := makeRawEvent(t, domain.Submission{Mode: "decimal", Latitudes: "41.5265,48.65", Longitudes: "-70.6731,-126.65"})
	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(out.Value, &result))
	require.Len(t, result.Stations, 2)
	assert.Equal(t, "Woods Hole", result.Stations[0].PlaceName)
	assert.Equal(t, domain.GeoSourceReverse, result.Stations[0].GeoSource)
	assert.Equal(t, domain.GeoSourceOriginal, result.Stations[1].GeoSource)
	assert.InDelta(t, 48.65, result.Stations[1].Latitude, 0)
}

// --- helpers ---

func makeRawEvent(t *testing.T, sub domain.Submission) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(sub)
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(sub.ID),
		Value: data,
	}
}
