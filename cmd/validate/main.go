// Command validate performs data integrity checks on the station submission
// fixture: the decimal source CSV, the generated submissions, and the parse
// outcomes the domain package produces for them. It verifies station counts,
// coordinate agreement within tolerance, rejection kinds, and the DMS
// round-trip property.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/line_p_stations.csv \
//	  -fixture data/mock/station_submissions.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/station-mapper-service/internal/domain"
	"github.com/gookit/color"
)

const tolerance = 1e-9

type fixtureEntry struct {
	Submission domain.Submission `json:"submission"`
	Expected   struct {
		Status    string              `json:"status"`
		Stations  []domain.Coordinate `json:"stations"`
		ErrorKind domain.ErrorKind    `json:"error_kind"`
	} `json:"expected"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "station CSV with station,latitude,longitude columns")
	fixturePath := flag.String("fixture", "", "path to the submission fixture")
	flag.Parse()

	if *csvPath == "" || *fixturePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *fixturePath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, fixturePath string) int {
	fmt.Println("=== Station Fixture Integrity Validation ===")
	fmt.Println()

	source, err := loadStations(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load station CSV: %v\n", err)
		return 1
	}

	entries, err := loadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSourceParity(source, entries),
		validateParseOutcomes(entries),
		validateRoundTrip(entries),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := color.RenderString(color.Green.Code(), "PASS")
		if !p.passed() {
			status = color.RenderString(color.Red.Code(), fmt.Sprintf("FAIL (%d errors)", len(p.errors)))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Stations: %d source CSV; submissions: %d fixture\n", len(source), len(entries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadStations(path string) ([]domain.Coordinate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	idx := map[string]int{}
	for i, h := range all[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	latCol, okLat := idx["latitude"]
	lonCol, okLon := idx["longitude"]
	if !okLat || !okLon {
		return nil, fmt.Errorf("%s: latitude and longitude columns are required", path)
	}

	coords := make([]domain.Coordinate, 0, len(all)-1)
	for i, row := range all[1:] {
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d latitude: %w", i+2, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d longitude: %w", i+2, err)
		}
		coords = append(coords, domain.Coordinate{Lat: lat, Lon: lon})
	}
	return coords, nil
}

func loadFixture(path string) ([]fixtureEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []fixtureEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ── Phase 1: source parity ──

// validateSourceParity checks that every accepted entry generated from the
// CSV (IDs prefixed line-p- other than the handbook example) expects exactly
// the CSV coordinates.
func validateSourceParity(source []domain.Coordinate, entries []fixtureEntry) *phase {
	p := &phase{name: "Phase 1: CSV → fixture parity"}
	checked := 0
	for _, e := range entries {
		id := e.Submission.ID
		if !strings.HasPrefix(id, "line-p-") || id == "line-p-example" {
			continue
		}
		checked++
		if len(e.Expected.Stations) != len(source) {
			p.errorf("%s: %d expected stations, CSV has %d", id, len(e.Expected.Stations), len(source))
			continue
		}
		for i, want := range source {
			got := e.Expected.Stations[i]
			if !near(got.Lat, want.Lat) || !near(got.Lon, want.Lon) {
				p.errorf("%s station %d: expected (%v, %v), CSV has (%v, %v)", id, i+1, got.Lat, got.Lon, want.Lat, want.Lon)
			}
		}
	}
	if checked == 0 {
		p.errorf("no CSV-derived submissions found in fixture")
	}
	fmt.Printf("  %s: %d submissions checked\n", p.name, checked)
	return p
}

// ── Phase 2: parse outcomes ──

func validateParseOutcomes(entries []fixtureEntry) *phase {
	p := &phase{name: "Phase 2: Parse outcomes"}
	var accepted, rejected int
	for _, e := range entries {
		id := e.Submission.ID
		result := domain.ProcessSubmission(e.Submission)

		if result.Status != e.Expected.Status {
			p.errorf("%s: status %q, expected %q", id, result.Status, e.Expected.Status)
			continue
		}

		if result.Status == domain.StatusRejected {
			rejected++
			if len(result.Stations) != 0 {
				p.errorf("%s: rejected result carries %d stations", id, len(result.Stations))
			}
			if result.Error == nil || result.Error.Kind != e.Expected.ErrorKind {
				p.errorf("%s: error %+v, expected kind %q", id, result.Error, e.Expected.ErrorKind)
			}
			continue
		}

		accepted++
		if len(result.Stations) != len(e.Expected.Stations) {
			p.errorf("%s: %d stations, expected %d", id, len(result.Stations), len(e.Expected.Stations))
			continue
		}
		for i, row := range result.Stations {
			want := e.Expected.Stations[i]
			if row.Station != i+1 {
				p.errorf("%s: row %d numbered %d", id, i, row.Station)
			}
			if !near(row.Latitude, want.Lat) || !near(row.Longitude, want.Lon) {
				p.errorf("%s station %d: got (%v, %v), expected (%v, %v)", id, i+1, row.Latitude, row.Longitude, want.Lat, want.Lon)
			}
		}
	}
	fmt.Printf("  %s: %d accepted, %d rejected\n", p.name, accepted, rejected)
	return p
}

// ── Phase 3: DMS round trip ──

func validateRoundTrip(entries []fixtureEntry) *phase {
	p := &phase{name: "Phase 3: DMS round trip"}
	checked := 0
	for _, e := range entries {
		for i, c := range e.Expected.Stations {
			for _, v := range []struct {
				value float64
				lat   bool
			}{{c.Lat, true}, {c.Lon, false}} {
				back := domain.FromDecimal(v.value, v.lat).Decimal()
				if !near(back, v.value) {
					p.errorf("%s station %d: %v round-trips to %v", e.Submission.ID, i+1, v.value, back)
				}
				checked++
			}
		}
	}
	fmt.Printf("  %s: %d values checked\n", p.name, checked)
	return p
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}
