// Command genmock reads a station CSV (station,latitude,longitude) and
// generates the submission fixture used by the pipeline and integration test
// suites. DMS submissions are derived from the decimal source with the domain
// package's own FromDecimal so the fixture exercises the real conversion.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/line_p_stations.csv \
//	  -out data/mock/station_submissions.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/station-mapper-service/internal/domain"
)

type station struct {
	name string
	lat  float64
	lon  float64
}

type fixtureEntry struct {
	Submission domain.Submission `json:"submission"`
	Expected   expected          `json:"expected"`
}

type expected struct {
	Status    string              `json:"status"`
	Stations  []domain.Coordinate `json:"stations,omitempty"`
	ErrorKind domain.ErrorKind    `json:"error_kind,omitempty"`
}

// handbookExample is the five-station DMS entry shown to new users.
var handbookExample = struct {
	latDeg, latMin []float64
	lonDeg, lonMin []float64
}{
	latDeg: []float64{48, 48, 49, 49, 49},
	latMin: []float64{39, 58.2, 16.9, 33.8, 59.9},
	lonDeg: []float64{126, 130, 134, 138, 144},
	lonMin: []float64{39.0, 40.0, 39.9, 39.9, 18.2},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "station CSV with station,latitude,longitude columns")
	out := flag.String("out", "", "output path for the submission fixture")
	flag.Parse()

	if *csvPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -out")
	}

	stations, err := readStations(*csvPath)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *csvPath, err)
	}
	log.Printf("%s: %d stations", filepath.Base(*csvPath), len(stations))

	entries := []fixtureEntry{exampleEntry()}
	entries = append(entries,
		dmsEntry("line-p-dms", stations),
		decimalEntry("line-p-decimal", stations),
	)
	entries = append(entries, rejectedEntries(stations)...)

	if err := writeJSON(*out, entries); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s (%d submissions)", *out, len(entries))
	return nil
}

func readStations(path string) ([]station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	stations := make([]station, 0, len(rows)-1)
	for n, row := range rows[1:] {
		lat, err := strconv.ParseFloat(get(row, colIdx, "latitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d latitude: %w", n+2, err)
		}
		lon, err := strconv.ParseFloat(get(row, colIdx, "longitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d longitude: %w", n+2, err)
		}
		stations = append(stations, station{name: get(row, colIdx, "station"), lat: lat, lon: lon})
	}
	return stations, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func exampleEntry() fixtureEntry {
	ex := handbookExample
	n := len(ex.latDeg)
	latDeg := make([]string, n)
	lonDeg := make([]string, n)
	latMin := make([]string, n)
	lonMin := make([]string, n)
	zeros := make([]string, n)
	coords := make([]domain.Coordinate, n)
	for i := range n {
		latDeg[i] = formatFloat(ex.latDeg[i]) + "N"
		lonDeg[i] = formatFloat(ex.lonDeg[i]) + "W"
		latMin[i] = formatFloat(ex.latMin[i])
		lonMin[i] = strconv.FormatFloat(ex.lonMin[i], 'f', 1, 64)
		zeros[i] = "0"
		coords[i] = domain.Coordinate{
			Lat: domain.ToDecimal(int(ex.latDeg[i]), ex.latMin[i], 0, domain.North),
			Lon: domain.ToDecimal(int(ex.lonDeg[i]), ex.lonMin[i], 0, domain.West),
		}
	}
	return fixtureEntry{
		Submission: domain.Submission{
			ID:         "line-p-example",
			Mode:       string(domain.ModeDMS),
			Latitudes:  strings.Join(latDeg, ","),
			Longitudes: strings.Join(lonDeg, ","),
			LatMinutes: strings.Join(latMin, ","),
			LatSeconds: strings.Join(zeros, ","),
			LonMinutes: strings.Join(lonMin, ","),
			LonSeconds: strings.Join(zeros, ","),
		},
		Expected: expected{Status: domain.StatusAccepted, Stations: coords},
	}
}

func dmsEntry(id string, stations []station) fixtureEntry {
	var latDeg, lonDeg, latMin, latSec, lonMin, lonSec []string
	for _, s := range stations {
		lat := domain.FromDecimal(s.lat, true)
		lon := domain.FromDecimal(s.lon, false)
		latDeg = append(latDeg, strconv.Itoa(lat.Degrees)+string(lat.Hemisphere))
		lonDeg = append(lonDeg, strconv.Itoa(lon.Degrees)+string(lon.Hemisphere))
		latMin = append(latMin, formatFloat(lat.Minutes))
		lonMin = append(lonMin, formatFloat(lon.Minutes))
		latSec = append(latSec, formatSeconds(lat.Seconds))
		lonSec = append(lonSec, formatSeconds(lon.Seconds))
	}
	return fixtureEntry{
		Submission: domain.Submission{
			ID:         id,
			Mode:       string(domain.ModeDMS),
			Latitudes:  strings.Join(latDeg, ","),
			Longitudes: strings.Join(lonDeg, ","),
			LatMinutes: strings.Join(latMin, ","),
			LatSeconds: strings.Join(latSec, ","),
			LonMinutes: strings.Join(lonMin, ","),
			LonSeconds: strings.Join(lonSec, ","),
		},
		Expected: expected{Status: domain.StatusAccepted, Stations: coordinates(stations)},
	}
}

func decimalEntry(id string, stations []station) fixtureEntry {
	lats := make([]string, len(stations))
	lons := make([]string, len(stations))
	for i, s := range stations {
		lats[i] = formatFloat(s.lat)
		lons[i] = formatFloat(s.lon)
	}
	return fixtureEntry{
		Submission: domain.Submission{
			ID:         id,
			Mode:       "d",
			Latitudes:  strings.Join(lats, ", "),
			Longitudes: strings.Join(lons, ", "),
		},
		Expected: expected{Status: domain.StatusAccepted, Stations: coordinates(stations)},
	}
}

// rejectedEntries corrupts the generated DMS submission once per error kind.
func rejectedEntries(stations []station) []fixtureEntry {
	base := dmsEntry("", stations).Submission
	last := len(stations) - 1

	missingHemisphere := base
	missingHemisphere.ID = "missing-hemisphere"
	latDegs := strings.Split(base.Latitudes, ",")
	latDegs[last] = strings.TrimRight(latDegs[last], "NS")
	missingHemisphere.Latitudes = strings.Join(latDegs, ",")

	lengthMismatch := base
	lengthMismatch.ID = "length-mismatch"
	lengthMismatch.LatMinutes = base.LatMinutes[:strings.LastIndex(base.LatMinutes, ",")]

	badNumber := base
	badNumber.ID = "bad-number"
	badNumber.LonSeconds = strings.Replace(base.LonSeconds, ",", ",x", 1)

	unknownMode := base
	unknownMode.ID = "unknown-mode"
	unknownMode.Mode = "utm"

	return []fixtureEntry{
		rejected(missingHemisphere, domain.KindMissingHemisphere),
		rejected(lengthMismatch, domain.KindFieldLengthMismatch),
		rejected(badNumber, domain.KindNumericFormat),
		rejected(unknownMode, domain.KindInvalidMode),
	}
}

func rejected(sub domain.Submission, kind domain.ErrorKind) fixtureEntry {
	return fixtureEntry{Submission: sub, Expected: expected{Status: domain.StatusRejected, ErrorKind: kind}}
}

func coordinates(stations []station) []domain.Coordinate {
	coords := make([]domain.Coordinate, len(stations))
	for i, s := range stations {
		coords[i] = domain.Coordinate{Lat: s.lat, Lon: s.lon}
	}
	return coords
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSeconds rounds to microseconds of arc, well inside the 1e-9 degree
// tolerance validate applies.
func formatSeconds(v float64) string {
	return formatFloat(math.Round(v*1e6) / 1e6)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
