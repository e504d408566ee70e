package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindMissingHemisphere   ErrorKind = "missing_hemisphere"
	KindNumericFormat       ErrorKind = "numeric_format"
	KindFieldLengthMismatch ErrorKind = "field_length_mismatch"
	KindInvalidMode         ErrorKind = "invalid_mode"
)

// Sentinel errors matched by errors.Is against a *ValidationError of the same kind.
var (
	ErrMissingHemisphere   = errors.New("missing hemisphere")
	ErrNumericFormat       = errors.New("numeric format")
	ErrFieldLengthMismatch = errors.New("field length mismatch")
	ErrInvalidMode         = errors.New("invalid mode")
)

// Field names reported in validation errors.
const (
	FieldLatitude   = "latitude"
	FieldLongitude  = "longitude"
	FieldLatDegrees = "lat_degrees"
	FieldLonDegrees = "lon_degrees"
	FieldLatMinutes = "lat_minutes"
	FieldLatSeconds = "lat_seconds"
	FieldLonMinutes = "lon_minutes"
	FieldLonSeconds = "lon_seconds"
	FieldMode       = "mode"

	// Single-value conversion fields.
	FieldDegrees    = "degrees"
	FieldMinutes    = "minutes"
	FieldSeconds    = "seconds"
	FieldHemisphere = "hemisphere"
)

// ValidationError describes why a batch was rejected. Index is the 0-based
// station position; it is -1 when the failure is not tied to one station.
// Got and Want are only set for KindFieldLengthMismatch.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Index int
	Token string
	Got   int
	Want  int
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindMissingHemisphere:
		if e.Err != nil {
			return e.stationPrefix() + e.Err.Error()
		}
		return e.stationPrefix() + "add N, S, E, or W to the degrees for latitude and longitude"
	case KindNumericFormat:
		return e.stationPrefix() + fmt.Sprintf("%s value %q is not a valid number", e.Field, e.Token)
	case KindFieldLengthMismatch:
		return fmt.Sprintf("%s has %d values, expected %d (one per station)", e.Field, e.Got, e.Want)
	case KindInvalidMode:
		return fmt.Sprintf("unknown coordinate mode %q, use decimal or dms", e.Token)
	default:
		return fmt.Sprintf("invalid input: %s", e.Kind)
	}
}

func (e *ValidationError) stationPrefix() string {
	if e.Index < 0 {
		return ""
	}
	return fmt.Sprintf("station %d: ", e.Index+1)
}

// Unwrap exposes both the kind sentinel and the underlying parse error.
func (e *ValidationError) Unwrap() []error {
	var errs []error
	if s := sentinelFor(e.Kind); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindMissingHemisphere:
		return ErrMissingHemisphere
	case KindNumericFormat:
		return ErrNumericFormat
	case KindFieldLengthMismatch:
		return ErrFieldLengthMismatch
	case KindInvalidMode:
		return ErrInvalidMode
	default:
		return nil
	}
}

// ErrorDetail is the JSON shape of a validation failure returned to callers.
// Station is 1-indexed to match the exported table; 0 means no single station.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Station int       `json:"station,omitempty"`
	Token   string    `json:"token,omitempty"`
	Message string    `json:"message"`
}

// NewErrorDetail projects err onto an ErrorDetail. It returns nil for errors
// that are not validation failures.
func NewErrorDetail(err error) *ErrorDetail {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return &ErrorDetail{
		Kind:    ve.Kind,
		Field:   ve.Field,
		Station: ve.Index + 1,
		Token:   ve.Token,
		Message: ve.Error(),
	}
}
