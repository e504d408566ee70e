package domain

import (
	"context"
	"log/slog"
)

// Geo source labels recorded on each station row.
const (
	GeoSourceReverse  = "reverse"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
)

// LabelStations reverse geocodes each row. A nil geocoder returns rows
// untouched. A failed lookup marks only that row and the rest continue
// (graceful degradation); coordinates are never modified.
func LabelStations(ctx context.Context, rows []StationRow, geocoder Geocoder, logger *slog.Logger) []StationRow {
	if geocoder == nil || len(rows) == 0 {
		return rows
	}

	labelled := make([]StationRow, len(rows))
	copy(labelled, rows)

	for i := range labelled {
		row := &labelled[i]
		if ctx.Err() != nil {
			row.GeoSource = GeoSourceFailed
			continue
		}

		result, err := geocoder.ReverseGeocode(ctx, row.Latitude, row.Longitude)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"station", row.Station,
				"lat", row.Latitude,
				"lon", row.Longitude,
				"error", err,
			)
			row.GeoSource = GeoSourceFailed
			continue
		}
		if result.FormattedAddress == "" {
			// Open ocean stations usually land here.
			row.GeoSource = GeoSourceOriginal
			continue
		}
		row.PlaceName = result.PlaceName
		row.FormattedAddress = result.FormattedAddress
		row.GeoConfidence = result.Confidence
		row.GeoSource = GeoSourceReverse
	}
	return labelled
}
