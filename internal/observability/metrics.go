package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the station mapper.
type Metrics struct {
	SubmissionsConsumed prometheus.Counter
	ResultsProduced     *prometheus.CounterVec // labels: status={accepted,rejected,unknown}
	DecodeErrors        prometheus.Counter
	PipelineRunning     prometheus.Gauge

	// Parsing outcomes shared by the pipeline and the HTTP API.
	BatchesParsed      *prometheus.CounterVec // labels: source={kafka,http}, mode={decimal,dms}
	ValidationFailures *prometheus.CounterVec // labels: source={kafka,http}, kind
	StationsParsed     prometheus.Counter

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SubmissionsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "submissions_consumed_total",
			Help:      "Total submissions read from the source topic.",
		}),
		ResultsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "results_produced_total",
			Help:      "Batch results written to the sink topic by status.",
		}, []string{"status"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "decode_errors_total",
			Help:      "Total submissions that could not be decoded.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "station_mapper",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "batches_parsed_total",
			Help:      "Coordinate batches parsed successfully by source and mode.",
		}, []string{"source", "mode"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "validation_failures_total",
			Help:      "Coordinate batches rejected by source and error kind.",
		}, []string{"source", "kind"}),
		StationsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "stations_parsed_total",
			Help:      "Total stations normalized to decimal degrees.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "station_mapper",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "station_mapper",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "station_mapper",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "station_mapper",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "station_mapper",
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.SubmissionsConsumed,
		m.ResultsProduced,
		m.DecodeErrors,
		m.PipelineRunning,
		m.BatchesParsed,
		m.ValidationFailures,
		m.StationsParsed,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SubmissionsConsumed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "station_mapper", Name: "submissions_consumed_total"}),
		ResultsProduced:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "station_mapper", Name: "results_produced_total"}, []string{"status"}),
		DecodeErrors:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "station_mapper", Name: "decode_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "station_mapper", Name: "pipeline_running"}),
		BatchesParsed:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "station_mapper", Name: "batches_parsed_total"}, []string{"source", "mode"}),
		ValidationFailures:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "station_mapper", Name: "validation_failures_total"}, []string{"source", "kind"}),
		StationsParsed:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "station_mapper", Name: "stations_parsed_total"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "station_mapper", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "station_mapper", Name: "batch_processing_duration_seconds"}),
		GeocodeRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "station_mapper", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "station_mapper", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "station_mapper", Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "station_mapper", Name: "geocode_enabled"}),
	}
}

// RecordParse counts the outcome of one batch parse. kind is empty on success.
func (m *Metrics) RecordParse(source, mode, kind string, stations int) {
	if kind != "" {
		m.ValidationFailures.WithLabelValues(source, kind).Inc()
		return
	}
	m.BatchesParsed.WithLabelValues(source, mode).Inc()
	m.StationsParsed.Add(float64(stations))
}
