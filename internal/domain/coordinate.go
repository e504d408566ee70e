package domain

import (
	"fmt"
	"math"
	"strings"
)

// MaxStations is the advisory per-field station limit shown to users.
// Batches above it are still parsed.
const MaxStations = 50

// Mode selects how a RawBatchInput is interpreted.
type Mode string

const (
	ModeDecimal Mode = "decimal"
	ModeDMS     Mode = "dms"
)

// ParseMode maps user-facing mode names (including the single-letter
// "d" and "s" forms) onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "decimal", "d":
		return ModeDecimal, nil
	case "dms", "s":
		return ModeDMS, nil
	default:
		return "", &ValidationError{Kind: KindInvalidMode, Field: FieldMode, Index: -1, Token: s}
	}
}

// Coordinate is a (latitude, longitude) pair in signed decimal degrees.
// Values are not range checked.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Hemisphere is the single-letter suffix that carries the sign of a DMS value.
type Hemisphere string

const (
	North Hemisphere = "N"
	South Hemisphere = "S"
	East  Hemisphere = "E"
	West  Hemisphere = "W"
)

// Sign returns -1 for S and W, 1 otherwise.
func (h Hemisphere) Sign() float64 {
	if h == South || h == West {
		return -1
	}
	return 1
}

// IsLatitude reports whether h is N or S.
func (h Hemisphere) IsLatitude() bool {
	return h == North || h == South
}

// DMSValue is a sexagesimal angle. Degrees is a magnitude; the sign comes
// from Hemisphere alone.
type DMSValue struct {
	Degrees    int        `json:"degrees"`
	Minutes    float64    `json:"minutes"`
	Seconds    float64    `json:"seconds"`
	Hemisphere Hemisphere `json:"hemisphere"`
}

// Decimal converts v to signed decimal degrees.
func (v DMSValue) Decimal() float64 {
	return ToDecimal(v.Degrees, v.Minutes, v.Seconds, v.Hemisphere)
}

func (v DMSValue) String() string {
	return fmt.Sprintf("%d°%g'%g\"%s", v.Degrees, v.Minutes, v.Seconds, v.Hemisphere)
}

// ToDecimal computes degrees + minutes/60 + seconds/3600, negated for the
// southern and western hemispheres. No rounding is applied.
func ToDecimal(degrees int, minutes, seconds float64, h Hemisphere) float64 {
	decimal := float64(degrees) + minutes/60 + seconds/3600
	return decimal * h.Sign()
}

// FromDecimal splits a signed decimal degree into whole degrees, whole
// minutes and fractional seconds, choosing N/S when isLatitude and E/W
// otherwise.
func FromDecimal(value float64, isLatitude bool) DMSValue {
	h := East
	if isLatitude {
		h = North
	}
	if value < 0 {
		value = -value
		if isLatitude {
			h = South
		} else {
			h = West
		}
	}

	deg := math.Floor(value)
	rem := (value - deg) * 60
	minutes := math.Floor(rem)
	seconds := (rem - minutes) * 60

	// Carry float noise such as 38'59.99999999" up to 39'0".
	if 60-seconds < 1e-6 {
		seconds = 0
		minutes++
	}
	if minutes >= 60 {
		minutes -= 60
		deg++
	}

	return DMSValue{
		Degrees:    int(deg),
		Minutes:    minutes,
		Seconds:    seconds,
		Hemisphere: h,
	}
}

// StationRow is one line of the station table. Station numbers start at 1
// and follow input order.
type StationRow struct {
	Station   int     `json:"station"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Reverse geocoding enrichment fields.
	PlaceName        string  `json:"place_name,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "reverse", "original", "failed"
}

// Table numbers coordinates from 1 in the order given.
func Table(coords []Coordinate) []StationRow {
	rows := make([]StationRow, len(coords))
	for i, c := range coords {
		rows[i] = StationRow{
			Station:   i + 1,
			Latitude:  c.Lat,
			Longitude: c.Lon,
		}
	}
	return rows
}
