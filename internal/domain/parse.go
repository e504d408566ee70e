package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawBatchInput holds the text fields of one submission. Decimal mode reads
// Latitudes and Longitudes as decimal degrees. DMS mode reads them as degree
// tokens with a hemisphere suffix ("48N", "126W") and uses the four
// minutes/seconds fields. Every field is a comma-separated list with one entry
// per station.
type RawBatchInput struct {
	Mode       Mode   `json:"mode"`
	Latitudes  string `json:"latitudes"`
	Longitudes string `json:"longitudes"`
	LatMinutes string `json:"lat_minutes,omitempty"`
	LatSeconds string `json:"lat_seconds,omitempty"`
	LonMinutes string `json:"lon_minutes,omitempty"`
	LonSeconds string `json:"lon_seconds,omitempty"`
}

// ParseBatch validates in and returns one Coordinate per station in input
// order. The first invalid station aborts the whole batch; no partial result
// is returned alongside an error.
func ParseBatch(in RawBatchInput) ([]Coordinate, error) {
	switch in.Mode {
	case ModeDecimal:
		return ParseDecimal(in.Latitudes, in.Longitudes)
	case ModeDMS:
		return ParseDMS(in.Latitudes, in.Longitudes, in.LatMinutes, in.LatSeconds, in.LonMinutes, in.LonSeconds)
	default:
		return nil, &ValidationError{Kind: KindInvalidMode, Field: FieldMode, Index: -1, Token: string(in.Mode)}
	}
}

// ParseDecimal pairs comma-separated decimal latitudes and longitudes.
func ParseDecimal(latField, lonField string) ([]Coordinate, error) {
	lats := splitField(latField)
	lons := splitField(lonField)
	if len(lons) != len(lats) {
		return nil, lengthMismatch(FieldLongitude, len(lons), len(lats))
	}

	coords := make([]Coordinate, len(lats))
	for i := range lats {
		lat, err := parseNumber(lats[i], FieldLatitude, i, false)
		if err != nil {
			return nil, err
		}
		lon, err := parseNumber(lons[i], FieldLongitude, i, false)
		if err != nil {
			return nil, err
		}
		coords[i] = Coordinate{Lat: lat, Lon: lon}
	}
	return coords, nil
}

// ParseDMS converts six parallel DMS fields into decimal coordinates. Degree
// tokens must end in N/S (latitude) or E/W (longitude). Empty minutes and
// seconds tokens count as 0, and a field left blank entirely counts as 0 for
// every station.
func ParseDMS(latDeg, lonDeg, latMin, latSec, lonMin, lonSec string) ([]Coordinate, error) {
	latDegs := splitField(latDeg)
	lonDegs := splitField(lonDeg)
	n := len(latDegs)

	if len(lonDegs) != n {
		return nil, lengthMismatch(FieldLonDegrees, len(lonDegs), n)
	}

	latMins, err := splitAuxField(latMin, FieldLatMinutes, n)
	if err != nil {
		return nil, err
	}
	latSecs, err := splitAuxField(latSec, FieldLatSeconds, n)
	if err != nil {
		return nil, err
	}
	lonMins, err := splitAuxField(lonMin, FieldLonMinutes, n)
	if err != nil {
		return nil, err
	}
	lonSecs, err := splitAuxField(lonSec, FieldLonSeconds, n)
	if err != nil {
		return nil, err
	}

	coords := make([]Coordinate, 0, n)
	for i := 0; i < n; i++ {
		latHem, latMag, lonHem, lonMag, err := splitHemispheres(latDegs[i], lonDegs[i], i)
		if err != nil {
			return nil, err
		}

		latDegValue, err := parseDegrees(latMag, latDegs[i], FieldLatDegrees, i)
		if err != nil {
			return nil, err
		}
		lonDegValue, err := parseDegrees(lonMag, lonDegs[i], FieldLonDegrees, i)
		if err != nil {
			return nil, err
		}

		latMinValue, err := parseOptional(latMins[i], FieldLatMinutes, i)
		if err != nil {
			return nil, err
		}
		latSecValue, err := parseOptional(latSecs[i], FieldLatSeconds, i)
		if err != nil {
			return nil, err
		}
		lonMinValue, err := parseOptional(lonMins[i], FieldLonMinutes, i)
		if err != nil {
			return nil, err
		}
		lonSecValue, err := parseOptional(lonSecs[i], FieldLonSeconds, i)
		if err != nil {
			return nil, err
		}

		coords = append(coords, Coordinate{
			Lat: ToDecimal(latDegValue, latMinValue, latSecValue, latHem),
			Lon: ToDecimal(lonDegValue, lonMinValue, lonSecValue, lonHem),
		})
	}
	return coords, nil
}

// ParseDMSValue converts one degrees/minutes/seconds/hemisphere reading.
// The hemisphere may be given on its own or as the degrees suffix. Errors
// carry Index -1 since no station table is involved.
func ParseDMSValue(degrees, minutes, seconds, hemisphere string) (DMSValue, error) {
	degrees = strings.TrimSpace(degrees)
	hemisphere = strings.TrimSpace(hemisphere)

	h := Hemisphere(hemisphere)
	magnitude := degrees
	suffix, rest, suffixed := cutHemisphere(degrees)
	switch {
	case hemisphere == "" && !suffixed:
		return DMSValue{}, &ValidationError{Kind: KindMissingHemisphere, Field: FieldDegrees, Index: -1, Token: degrees}
	case hemisphere == "":
		h, magnitude = suffix, rest
	case suffixed && suffix == h:
		magnitude = rest
	case suffixed:
		return DMSValue{}, &ValidationError{
			Kind: KindMissingHemisphere, Field: FieldHemisphere, Index: -1, Token: hemisphere,
			Err: fmt.Errorf("degrees %q end in %s but hemisphere is %s", degrees, suffix, hemisphere),
		}
	}
	switch h {
	case North, South, East, West:
	default:
		return DMSValue{}, &ValidationError{Kind: KindMissingHemisphere, Field: FieldHemisphere, Index: -1, Token: hemisphere}
	}

	deg, err := parseDegrees(magnitude, degrees, FieldDegrees, -1)
	if err != nil {
		return DMSValue{}, err
	}
	mins, err := parseOptional(strings.TrimSpace(minutes), FieldMinutes, -1)
	if err != nil {
		return DMSValue{}, err
	}
	secs, err := parseOptional(strings.TrimSpace(seconds), FieldSeconds, -1)
	if err != nil {
		return DMSValue{}, err
	}
	return DMSValue{Degrees: deg, Minutes: mins, Seconds: secs, Hemisphere: h}, nil
}

// splitField splits on commas and trims whitespace around each token.
func splitField(field string) []string {
	tokens := strings.Split(field, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	return tokens
}

// splitAuxField splits a minutes or seconds field. A blank field expands to
// n empty tokens; otherwise the token count must equal n.
func splitAuxField(raw, field string, n int) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return make([]string, n), nil
	}
	tokens := splitField(raw)
	if len(tokens) != n {
		return nil, lengthMismatch(field, len(tokens), n)
	}
	return tokens, nil
}

// splitHemispheres checks both degree tokens for their hemisphere suffix
// before either magnitude is parsed.
func splitHemispheres(latToken, lonToken string, index int) (latHem Hemisphere, latMag string, lonHem Hemisphere, lonMag string, err error) {
	latHem, latMag, latOK := cutHemisphere(latToken)
	lonHem, lonMag, lonOK := cutHemisphere(lonToken)
	if !latOK || !latHem.IsLatitude() {
		return "", "", "", "", &ValidationError{Kind: KindMissingHemisphere, Field: FieldLatDegrees, Index: index, Token: latToken}
	}
	if !lonOK || lonHem.IsLatitude() {
		return "", "", "", "", &ValidationError{Kind: KindMissingHemisphere, Field: FieldLonDegrees, Index: index, Token: lonToken}
	}
	return latHem, latMag, lonHem, lonMag, nil
}

// cutHemisphere splits the trailing hemisphere letter from a degree token.
func cutHemisphere(token string) (Hemisphere, string, bool) {
	if token == "" {
		return "", "", false
	}
	h := Hemisphere(token[len(token)-1:])
	switch h {
	case North, South, East, West:
		return h, strings.TrimSpace(token[:len(token)-1]), true
	default:
		return "", "", false
	}
}

func parseDegrees(magnitude, token, field string, index int) (int, error) {
	v, err := strconv.Atoi(magnitude)
	if err == nil && v < 0 {
		err = errors.New("degrees must be a non-negative magnitude")
	}
	if err != nil {
		return 0, &ValidationError{Kind: KindNumericFormat, Field: field, Index: index, Token: token, Err: err}
	}
	return v, nil
}

// parseOptional parses a minutes or seconds token, treating "" as 0.
func parseOptional(token, field string, index int) (float64, error) {
	if token == "" {
		return 0, nil
	}
	return parseNumber(token, field, index, true)
}

func parseNumber(token, field string, index int, nonNegative bool) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	switch {
	case err != nil:
	case isHexLiteral(token):
		err = errors.New("hexadecimal notation is not accepted")
	case math.IsNaN(v) || math.IsInf(v, 0):
		err = errors.New("value must be finite")
	case nonNegative && v < 0:
		err = errors.New("value must not be negative")
	}
	if err != nil {
		return 0, &ValidationError{Kind: KindNumericFormat, Field: field, Index: index, Token: token, Err: err}
	}
	return v, nil
}

// isHexLiteral reports whether token uses Go's hexadecimal float syntax.
func isHexLiteral(token string) bool {
	t := strings.TrimLeft(token, "+-")
	return len(t) > 1 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X')
}

func lengthMismatch(field string, got, want int) error {
	return &ValidationError{Kind: KindFieldLengthMismatch, Field: field, Index: -1, Got: got, Want: want}
}
