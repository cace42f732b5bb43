package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// RunEvent announces the outcome of one consolidation run.
type RunEvent struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	AsOf          string    `json:"as_of"`
	SnapshotStart string    `json:"snapshot_start,omitempty"`
	SnapshotEnd   string    `json:"snapshot_end,omitempty"`
	Snapshots     int       `json:"snapshots"`
	Invoices      int       `json:"invoices"`
	Clients       int       `json:"clients"`
	Rows          int       `json:"rows"`
	Sinks         []string  `json:"sinks,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// NewRunID returns a fresh identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// ToJSON converts the event to JSON bytes
func (e *RunEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RunEventFromJSON is the consumer-side decoder for messages published on the
// run exchange. It rejects bodies whose run_id is not a UUID.
func RunEventFromJSON(data []byte) (*RunEvent, error) {
	var e RunEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(e.RunID); err != nil {
		return nil, err
	}
	return &e, nil
}
