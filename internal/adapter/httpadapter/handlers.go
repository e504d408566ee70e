package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/station-mapper-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// Five stations along the Line P transect, entered the way a cruise planner
// would type them.
var exampleSubmission = domain.Submission{
	ID:         "example",
	Mode:       string(domain.ModeDMS),
	Latitudes:  "48N,48N,49N,49N,49N",
	Longitudes: "126W,130W,134W,138W,144W",
	LatMinutes: "39,58.2,16.9,33.8,59.9",
	LatSeconds: "0,0,0,0,0",
	LonMinutes: "39.0,40.0,39.9,39.9,18.2",
	LonSeconds: "0,0,0,0,0",
}

type stationsResponse struct {
	Mode     domain.Mode         `json:"mode"`
	Stations []domain.StationRow `json:"stations"`
}

type exampleResponse struct {
	Input    domain.Submission   `json:"input"`
	Stations []domain.StationRow `json:"stations"`
}

type dmsResponse struct {
	Decimal   float64         `json:"decimal"`
	DMS       domain.DMSValue `json:"dms"`
	Formatted string          `json:"formatted"`
}

type errorResponse struct {
	Error *domain.ErrorDetail `json:"error"`
}

func (s *Server) handleParseJSON(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: &domain.ErrorDetail{
			Kind:    "bad_request",
			Message: "request body must be a JSON object: " + err.Error(),
		}})
		return
	}
	s.parseAndRespond(w, r, sub)
}

func (s *Server) handleParseQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.parseAndRespond(w, r, domain.Submission{
		Mode:       q.Get("mode"),
		Latitudes:  q.Get("latitudes"),
		Longitudes: q.Get("longitudes"),
		LatMinutes: q.Get("lat_minutes"),
		LatSeconds: q.Get("lat_seconds"),
		LonMinutes: q.Get("lon_minutes"),
		LonSeconds: q.Get("lon_seconds"),
	})
}

func (s *Server) parseAndRespond(w http.ResponseWriter, r *http.Request, sub domain.Submission) {
	result := domain.ProcessSubmission(sub)
	if result.Status == domain.StatusRejected {
		s.metrics.RecordParse("http", string(result.Mode), string(result.Error.Kind), 0)
		s.logger.Debug("station batch rejected", "kind", result.Error.Kind, "error", result.Error.Message)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: result.Error})
		return
	}

	s.metrics.RecordParse("http", string(result.Mode), "", len(result.Stations))
	if len(result.Stations) > domain.MaxStations {
		s.logger.Warn("batch exceeds recommended station count",
			"stations", len(result.Stations),
			"max", domain.MaxStations,
		)
	}

	rows := domain.LabelStations(r.Context(), result.Stations, s.geocoder, s.logger)
	writeJSON(w, http.StatusOK, stationsResponse{Mode: result.Mode, Stations: rows})
}

func (s *Server) handleDMS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := domain.ParseDMSValue(q.Get("degrees"), q.Get("minutes"), q.Get("seconds"), q.Get("hemisphere"))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			s.metrics.RecordParse("http", string(domain.ModeDMS), string(ve.Kind), 0)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: domain.NewErrorDetail(err)})
		return
	}
	writeJSON(w, http.StatusOK, dmsResponse{
		Decimal:   v.Decimal(),
		DMS:       v,
		Formatted: v.String(),
	})
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	result := domain.ProcessSubmission(exampleSubmission)
	rows := domain.LabelStations(r.Context(), result.Stations, s.geocoder, s.logger)
	writeJSON(w, http.StatusOK, exampleResponse{Input: exampleSubmission, Stations: rows})
}
