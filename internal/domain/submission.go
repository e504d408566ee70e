package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Result statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// RawEvent represents an unprocessed message from the submissions topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Submission is a queued batch of station fields. Mode is kept as text so an
// unknown mode surfaces as a validation failure rather than a decode error.
type Submission struct {
	ID         string `json:"id,omitempty"`
	Mode       string `json:"mode"`
	Latitudes  string `json:"latitudes"`
	Longitudes string `json:"longitudes"`
	LatMinutes string `json:"lat_minutes,omitempty"`
	LatSeconds string `json:"lat_seconds,omitempty"`
	LonMinutes string `json:"lon_minutes,omitempty"`
	LonSeconds string `json:"lon_seconds,omitempty"`
}

// BatchResult is the outcome of one submission. Rejected results carry Error
// and never a partial station list.
type BatchResult struct {
	SubmissionID string       `json:"submission_id"`
	Mode         Mode         `json:"mode,omitempty"`
	Status       string       `json:"status"`
	Stations     []StationRow `json:"stations,omitempty"`
	Error        *ErrorDetail `json:"error,omitempty"`
	ProcessedAt  time.Time    `json:"processed_at"`
}

// ParseRawEvent decodes a submission from a raw message and assigns a
// deterministic ID when the producer did not supply one.
func ParseRawEvent(raw RawEvent) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal(raw.Value, &sub); err != nil {
		return Submission{}, fmt.Errorf("parse submission: %w", err)
	}
	sub.ID = strings.TrimSpace(sub.ID)
	if sub.ID == "" {
		sub.ID = generateID(sub)
	}
	return sub, nil
}

// ProcessSubmission resolves the mode and parses the batch. ProcessedAt is
// left for the caller to stamp.
func ProcessSubmission(sub Submission) BatchResult {
	result := BatchResult{SubmissionID: sub.ID}

	mode, err := ParseMode(sub.Mode)
	if err != nil {
		return reject(result, err)
	}
	result.Mode = mode

	coords, err := ParseBatch(RawBatchInput{
		Mode:       mode,
		Latitudes:  sub.Latitudes,
		Longitudes: sub.Longitudes,
		LatMinutes: sub.LatMinutes,
		LatSeconds: sub.LatSeconds,
		LonMinutes: sub.LonMinutes,
		LonSeconds: sub.LonSeconds,
	})
	if err != nil {
		return reject(result, err)
	}

	result.Status = StatusAccepted
	result.Stations = Table(coords)
	return result
}

func reject(result BatchResult, err error) BatchResult {
	result.Status = StatusRejected
	result.Error = NewErrorDetail(err)
	if result.Error == nil {
		result.Error = &ErrorDetail{Message: err.Error()}
	}
	return result
}

// SerializeBatchResult marshals a result into an OutputEvent keyed by
// submission ID.
func SerializeBatchResult(result BatchResult) (OutputEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize batch result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(result.SubmissionID),
		Value: data,
		Headers: map[string]string{
			"status":       result.Status,
			"processed_at": result.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

// generateID hashes the submission fields so replaying the same submission
// yields the same ID.
func generateID(sub Submission) string {
	input := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(sub.Mode)),
		sub.Latitudes, sub.Longitudes,
		sub.LatMinutes, sub.LatSeconds,
		sub.LonMinutes, sub.LonSeconds,
	}, "|")
	hash := sha256.Sum256([]byte(input))
	return "sub-" + hex.EncodeToString(hash[:8])
}
