package schema

import (
	"time"

	"github.com/google/uuid"
)

// StateType enumerates the canonical run state types.
type StateType string

const (
	StateTypeScheduled  StateType = "SCHEDULED"
	StateTypePending    StateType = "PENDING"
	StateTypeRunning    StateType = "RUNNING"
	StateTypeCompleted  StateType = "COMPLETED"
	StateTypeFailed     StateType = "FAILED"
	StateTypeCancelled  StateType = "CANCELLED"
	StateTypeCancelling StateType = "CANCELLING"
	StateTypeCrashed    StateType = "CRASHED"
	StateTypePaused     StateType = "PAUSED"
)

// stateDisplayNames maps each state type to its canonical display name,
// used when a state is created without an explicit name.
var stateDisplayNames = map[StateType]string{
	StateTypeScheduled:  "Scheduled",
	StateTypePending:    "Pending",
	StateTypeRunning:    "Running",
	StateTypeCompleted:  "Completed",
	StateTypeFailed:     "Failed",
	StateTypeCancelled:  "Cancelled",
	StateTypeCancelling: "Cancelling",
	StateTypeCrashed:    "Crashed",
	StateTypePaused:     "Paused",
}

// DisplayName returns the canonical display name for the state type,
// or "" for an unknown type.
func (t StateType) DisplayName() string {
	return stateDisplayNames[t]
}

// Valid reports whether the state type is one of the canonical types.
func (t StateType) Valid() bool {
	_, ok := stateDisplayNames[t]
	return ok
}

// StateDetails carries auxiliary state information. Only the fields the
// admission layer touches are modeled; the rest pass through opaquely.
type StateDetails struct {
	FlowRunID        *uuid.UUID `json:"flow_run_id,omitempty"`
	TaskRunID        *uuid.UUID `json:"task_run_id,omitempty"`
	ChildFlowRunID   *uuid.UUID `json:"child_flow_run_id,omitempty"`
	ScheduledTime    *time.Time `json:"scheduled_time,omitempty"`
	CacheKey         string     `json:"cache_key,omitempty"`
	CacheExpiration  *time.Time `json:"cache_expiration,omitempty"`
	PauseTimeout     *time.Time `json:"pause_timeout,omitempty"`
	PauseReschedule  bool       `json:"pause_reschedule,omitempty"`
	UntrackedResult  bool       `json:"untracked_result,omitempty"`
}
