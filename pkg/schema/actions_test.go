package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCreate_MarshalDropsDeprecatedFields(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	s := StateCreate{
		Type:      StateTypeCompleted,
		Name:      "Completed",
		Timestamp: &ts,
		ID:        &id,
	}

	out, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "COMPLETED", m["type"])
	assert.Equal(t, "Completed", m["name"])
	assert.NotContains(t, m, "timestamp")
	assert.NotContains(t, m, "id")
}

func TestStateCreate_UnmarshalAcceptsDeprecatedFields(t *testing.T) {
	in := `{"type":"RUNNING","timestamp":"2024-03-01T12:00:00Z","id":"` + uuid.New().String() + `"}`

	var s StateCreate
	require.NoError(t, json.Unmarshal([]byte(in), &s))
	assert.Equal(t, StateTypeRunning, s.Type)
	require.NotNil(t, s.Timestamp)
	assert.Equal(t, 2024, s.Timestamp.Year())
	assert.NotNil(t, s.ID)
}

func TestStateType_DisplayName(t *testing.T) {
	assert.Equal(t, "Scheduled", StateTypeScheduled.DisplayName())
	assert.Equal(t, "Cancelling", StateTypeCancelling.DisplayName())
	assert.Empty(t, StateType("NOPE").DisplayName())
}

func TestStateType_Valid(t *testing.T) {
	assert.True(t, StateTypeCrashed.Valid())
	assert.False(t, StateType("").Valid())
	assert.False(t, StateType("running").Valid())
}
