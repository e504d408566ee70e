// Package domain models station coordinate submissions and their
// normalization into signed decimal degrees.
//
// # Input Conventions
//
// Every field is a comma-separated list with one entry per station. Entry i
// of every field describes station i, and station numbering in exported
// tables starts at 1:
//
//	latitudes:  "48N,48N,49N"
//	lat minutes: "39,58.2,16.9"
//
// Up to 50 stations per field is the documented limit. It is advisory; longer
// batches are parsed the same way.
//
// Decimal mode:
//
//	Two fields, latitudes and longitudes, each token a signed float:
//	"10,20,30" and "100,110,120" → (10,100), (20,110), (30,120).
//
// DMS mode:
//
//	Six fields. Degree tokens are a bare integer magnitude followed by a
//	hemisphere letter: "48N", "126W". Latitude tokens must end in N or S,
//	longitude tokens in E or W. Letters are case-sensitive.
//	Minutes and seconds may be fractional. An empty token means 0, and a
//	minutes or seconds field left blank entirely means 0 for every station.
//
// Whitespace around tokens is ignored.
//
// # Conversion
//
//	decimal = degrees + minutes/60 + seconds/3600, negated for S and W.
//
// No rounding and no range clamping are applied: a latitude of 95 passes
// through as 95. See [ToDecimal] and [FromDecimal].
//
// # Validation
//
// A batch is all-or-nothing. The first failing station aborts parsing and
// the caller receives a [*ValidationError] whose Kind is one of
// missing_hemisphere, numeric_format, field_length_mismatch or invalid_mode.
// Field token counts must match in both modes; a mismatch is reported before
// any station is parsed.
//
// # ID Generation
//
// Submissions without an ID get a deterministic SHA-256 hash of their mode and
// fields, so replayed messages produce the same result key. See [generateID].
package domain
