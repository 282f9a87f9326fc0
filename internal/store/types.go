package store

import (
	"encoding/json"
	"time"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// Flow is the persisted representation of a registered flow.
type Flow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deployment is the persisted representation of a deployment. Schedules are
// stored in the normalized multi-schedule form only.
type Deployment struct {
	ID                     string                 `json:"id"`
	Name                   string                 `json:"name"`
	FlowID                 string                 `json:"flow_id"`
	Paused                 bool                   `json:"paused"`
	Schedules              []schema.ScheduleEntry `json:"schedules,omitempty"`
	Parameters             map[string]any         `json:"parameters,omitempty"`
	ParameterOpenAPISchema map[string]any         `json:"parameter_openapi_schema,omitempty"`
	EnforceParameterSchema bool                   `json:"enforce_parameter_schema"`
	JobVariables           map[string]any         `json:"job_variables,omitempty"`
	WorkQueueName          string                 `json:"work_queue_name,omitempty"`
	WorkPoolName           string                 `json:"work_pool_name,omitempty"`
	Tags                   []string               `json:"tags,omitempty"`
	Description            string                 `json:"description,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// FlowRun is the persisted representation of a single flow execution. The
// columns mirror the run's latest state; full history lives in the state log.
type FlowRun struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	FlowID       string           `json:"flow_id"`
	DeploymentID string           `json:"deployment_id,omitempty"`
	StateType    schema.StateType `json:"state_type,omitempty"`
	StateName    string           `json:"state_name,omitempty"`
	Parameters   map[string]any   `json:"parameters,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TaskRun is the persisted representation of a task execution within a flow run.
type TaskRun struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	FlowRunID  string           `json:"flow_run_id"`
	TaskKey    string           `json:"task_key"`
	DynamicKey string           `json:"dynamic_key"`
	CacheKey   string           `json:"cache_key,omitempty"`
	StateType  schema.StateType `json:"state_type,omitempty"`
	StateName  string           `json:"state_name,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// WorkPool is the persisted representation of a work pool and its base job template.
type WorkPool struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Type             string                 `json:"type"`
	Description      string                 `json:"description,omitempty"`
	BaseJobTemplate  schema.BaseJobTemplate `json:"base_job_template,omitempty"`
	IsPaused         bool                   `json:"is_paused"`
	ConcurrencyLimit *int                   `json:"concurrency_limit,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// WorkQueue is the persisted representation of a queue within a work pool.
type WorkQueue struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	WorkPoolID       string    `json:"work_pool_id,omitempty"`
	Description      string    `json:"description,omitempty"`
	Priority         int       `json:"priority"`
	IsPaused         bool      `json:"is_paused"`
	ConcurrencyLimit *int      `json:"concurrency_limit,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Variable is a named string value scoped to the workspace.
type Variable struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlockDocument is a persisted configuration document. Anonymous documents
// carry no name and are owned by the resource that created them.
type BlockDocument struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	BlockType   string          `json:"block_type,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	IsAnonymous bool            `json:"is_anonymous"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Artifact is a persisted run output reference.
type Artifact struct {
	ID        string          `json:"id"`
	Key       string          `json:"key,omitempty"`
	Type      string          `json:"type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	FlowRunID string          `json:"flow_run_id,omitempty"`
	TaskRunID string          `json:"task_run_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// StateTransition is an immutable entry in a run's append-only state log.
type StateTransition struct {
	ID        int64            `json:"id"`
	FlowRunID string           `json:"flow_run_id"`
	Type      schema.StateType `json:"type"`
	Name      string           `json:"name"`
	Details   json.RawMessage  `json:"details,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Sequence  int64            `json:"sequence"`
}

// --- Filter and update types ---

// DeploymentFilter specifies criteria for listing deployments.
type DeploymentFilter struct {
	FlowID       string `json:"flow_id,omitempty"`
	WorkPoolName string `json:"work_pool_name,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// DeploymentFields specifies mutable fields of a deployment. Nil fields are
// left untouched.
type DeploymentFields struct {
	Paused       *bool                   `json:"paused,omitempty"`
	Schedules    *[]schema.ScheduleEntry `json:"schedules,omitempty"`
	Parameters   *map[string]any         `json:"parameters,omitempty"`
	JobVariables *map[string]any         `json:"job_variables,omitempty"`
	Description  *string                 `json:"description,omitempty"`
	Tags         *[]string               `json:"tags,omitempty"`
}

// FlowRunFilter specifies criteria for listing flow runs.
type FlowRunFilter struct {
	FlowID       string            `json:"flow_id,omitempty"`
	DeploymentID string            `json:"deployment_id,omitempty"`
	StateType    *schema.StateType `json:"state_type,omitempty"`
	Since        *time.Time        `json:"since,omitempty"`
	Limit        int               `json:"limit,omitempty"`
	Offset       int               `json:"offset,omitempty"`
}

// RunStateUpdate specifies the latest-state columns of a run.
type RunStateUpdate struct {
	Type schema.StateType `json:"type"`
	Name string           `json:"name"`
}

// WorkPoolFields specifies mutable fields of a work pool.
type WorkPoolFields struct {
	Description      *string                 `json:"description,omitempty"`
	BaseJobTemplate  *schema.BaseJobTemplate `json:"base_job_template,omitempty"`
	IsPaused         *bool                   `json:"is_paused,omitempty"`
	ConcurrencyLimit *int                    `json:"concurrency_limit,omitempty"`
}

// ArtifactFilter specifies criteria for listing artifacts.
type ArtifactFilter struct {
	Key       string `json:"key,omitempty"`
	FlowRunID string `json:"flow_run_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}
