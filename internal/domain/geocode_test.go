package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	results map[float64]GeocodingResult // keyed by latitude
	errs    map[float64]error
	calls   int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, lat, _ float64) (GeocodingResult, error) {
	m.calls++
	if err, ok := m.errs[lat]; ok {
		return GeocodingResult{}, err
	}
	return m.results[lat], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestLabelStations_NilGeocoder(t *testing.T) {
	rows := Table([]Coordinate{{30.2672, -97.7431}})

	result := LabelStations(context.Background(), rows, nil, discardLogger())

	assert.Equal(t, rows, result)
	assert.Empty(t, result[0].GeoSource)
}

func TestLabelStations_Reverse(t *testing.T) {
	geo := &mockGeocoder{
		results: map[float64]GeocodingResult{
			30.2672: {FormattedAddress: "Austin, Travis County, Texas", PlaceName: "Austin", Confidence: 0.98},
		},
	}
	rows := Table([]Coordinate{{30.2672, -97.7431}})

	result := LabelStations(context.Background(), rows, geo, discardLogger())

	require.Len(t, result, 1)
	assert.Equal(t, "Austin, Travis County, Texas", result[0].FormattedAddress)
	assert.Equal(t, "Austin", result[0].PlaceName)
	assert.Equal(t, 0.98, result[0].GeoConfidence)
	assert.Equal(t, GeoSourceReverse, result[0].GeoSource)
	assert.Equal(t, 30.2672, result[0].Latitude)
	assert.Empty(t, rows[0].GeoSource, "input rows must not be mutated")
}

func TestLabelStations_EmptyResultIsOriginal(t *testing.T) {
	geo := &mockGeocoder{}
	rows := Table([]Coordinate{{48.65, -126.65}})

	result := LabelStations(context.Background(), rows, geo, discardLogger())

	assert.Equal(t, GeoSourceOriginal, result[0].GeoSource)
	assert.Empty(t, result[0].FormattedAddress)
}

func TestLabelStations_ErrorOnlyAffectsOneStation(t *testing.T) {
	geo := &mockGeocoder{
		results: map[float64]GeocodingResult{
			20: {FormattedAddress: "Somewhere", PlaceName: "Somewhere"},
		},
		errs: map[float64]error{10: errors.New("rate limited")},
	}
	rows := Table([]Coordinate{{10, 100}, {20, 110}})

	result := LabelStations(context.Background(), rows, geo, discardLogger())

	assert.Equal(t, 2, geo.calls)
	assert.Equal(t, GeoSourceFailed, result[0].GeoSource)
	assert.Equal(t, 10.0, result[0].Latitude)
	assert.Equal(t, GeoSourceReverse, result[1].GeoSource)
	assert.Equal(t, 2, result[1].Station)
}

func TestLabelStations_CancelledContext(t *testing.T) {
	geo := &mockGeocoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := LabelStations(ctx, Table([]Coordinate{{1, 2}, {3, 4}}), geo, discardLogger())

	assert.Equal(t, 0, geo.calls)
	assert.Equal(t, GeoSourceFailed, result[0].GeoSource)
	assert.Equal(t, GeoSourceFailed, result[1].GeoSource)
}
