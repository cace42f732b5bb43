package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEventWireFormat(t *testing.T) {
	event := &RunEvent{
		RunID:      NewRunID(),
		Status:     StatusSucceeded,
		AsOf:       "2024-04-15",
		Snapshots:  4,
		Rows:       7,
		StartedAt:  time.Date(2024, 4, 15, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 4, 15, 8, 0, 3, 0, time.UTC),
	}

	body, err := event.ToJSON()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, "succeeded", fields["status"])
	assert.Equal(t, "2024-04-15", fields["as_of"])
	assert.NotContains(t, fields, "error")
	assert.NotContains(t, fields, "snapshot_start")

	decoded, err := RunEventFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, event.RunID, decoded.RunID)
	assert.Equal(t, 7, decoded.Rows)
}

func TestRunEventFromJSONRejectsBadRunID(t *testing.T) {
	_, err := RunEventFromJSON([]byte(`{"run_id":"not-a-uuid","status":"failed"}`))
	assert.Error(t, err)

	_, err = RunEventFromJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestNewRunIDIsUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), &RunEvent{}))
	assert.NoError(t, p.Close())
}
