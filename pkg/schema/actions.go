package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action payloads are the untrusted bodies of external create/update
// requests, one type per entity kind and operation. They are flat
// declarations; all branching logic lives in the admission pipeline.

// VariableSchema is a JSON-Schema-shaped document declaring the names,
// types, and defaults a job configuration template may reference. It must
// carry "properties" (object) and may carry "required" (array of strings).
type VariableSchema = map[string]any

// BaseJobTemplate pairs a job configuration document with its variable
// schema: {"job_configuration": {...}, "variables": {...}}.
type BaseJobTemplate = map[string]any

// FlowCreate is the payload to create a flow.
type FlowCreate struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

// FlowUpdate is the payload to update a flow.
type FlowUpdate struct {
	Tags []string `json:"tags,omitempty"`
}

// DeploymentScheduleCreate is the payload to attach a schedule to a deployment.
type DeploymentScheduleCreate struct {
	Active   *bool        `json:"active,omitempty"` // default true
	Schedule ScheduleSpec `json:"schedule"`
}

// DeploymentScheduleUpdate is the payload to update an attached schedule.
type DeploymentScheduleUpdate struct {
	Active   *bool         `json:"active,omitempty"`
	Schedule *ScheduleSpec `json:"schedule,omitempty"`
}

// DeploymentCreate is the payload to create a deployment.
type DeploymentCreate struct {
	Name                     string           `json:"name"`
	FlowID                   uuid.UUID        `json:"flow_id"`
	Paused                   bool             `json:"paused,omitempty"`
	Schedules                []ScheduleEntry  `json:"schedules,omitempty"`
	EnforceParameterSchema   bool             `json:"enforce_parameter_schema,omitempty"`
	ParameterOpenAPISchema   map[string]any   `json:"parameter_openapi_schema,omitempty"`
	Parameters               map[string]any   `json:"parameters,omitempty"`
	Tags                     []string         `json:"tags,omitempty"`
	PullSteps                []map[string]any `json:"pull_steps,omitempty"`
	WorkQueueName            string           `json:"work_queue_name,omitempty"`
	WorkPoolName             string           `json:"work_pool_name,omitempty"`
	StorageDocumentID        *uuid.UUID       `json:"storage_document_id,omitempty"`
	InfrastructureDocumentID *uuid.UUID       `json:"infrastructure_document_id,omitempty"`
	Description              string           `json:"description,omitempty"`
	Path                     string           `json:"path,omitempty"`
	Version                  string           `json:"version,omitempty"`
	Entrypoint               string           `json:"entrypoint,omitempty"`
	JobVariables             map[string]any   `json:"job_variables,omitempty"`

	// Deprecated single-schedule fields; migration input only. The schedule
	// normalizer folds them into Schedules and clears them.
	Schedule         *ScheduleSpec `json:"schedule,omitempty"`
	IsScheduleActive *bool         `json:"is_schedule_active,omitempty"`
}

// DeploymentUpdate is the payload to update a deployment.
type DeploymentUpdate struct {
	Version                string          `json:"version,omitempty"`
	Description            string          `json:"description,omitempty"`
	Paused                 *bool           `json:"paused,omitempty"`
	Schedules              []ScheduleEntry `json:"schedules,omitempty"`
	Parameters             map[string]any  `json:"parameters,omitempty"`
	Tags                   []string        `json:"tags,omitempty"`
	WorkQueueName          string          `json:"work_queue_name,omitempty"`
	WorkPoolName           string          `json:"work_pool_name,omitempty"`
	Path                   string          `json:"path,omitempty"`
	Entrypoint             string          `json:"entrypoint,omitempty"`
	JobVariables           map[string]any  `json:"job_variables,omitempty"`
	EnforceParameterSchema *bool           `json:"enforce_parameter_schema,omitempty"`

	// Deprecated single-schedule fields; see DeploymentCreate.
	Schedule         *ScheduleSpec `json:"schedule,omitempty"`
	IsScheduleActive *bool         `json:"is_schedule_active,omitempty"`
}

// StateCreate is the payload to create a run state.
type StateCreate struct {
	Type         StateType    `json:"type"`
	Name         string       `json:"name,omitempty"`
	Message      string       `json:"message,omitempty"`
	Data         any          `json:"data,omitempty"`
	StateDetails StateDetails `json:"state_details,omitempty"`

	// Deprecated; accepted on input, never emitted. See MarshalJSON.
	Timestamp *time.Time `json:"timestamp,omitempty"`
	ID        *uuid.UUID `json:"id,omitempty"`
}

// MarshalJSON drops the deprecated internal-only fields from output while
// they remain accepted on input.
func (s StateCreate) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type         StateType    `json:"type"`
		Name         string       `json:"name,omitempty"`
		Message      string       `json:"message,omitempty"`
		Data         any          `json:"data,omitempty"`
		StateDetails StateDetails `json:"state_details,omitempty"`
	}
	return json.Marshal(wire{
		Type:         s.Type,
		Name:         s.Name,
		Message:      s.Message,
		Data:         s.Data,
		StateDetails: s.StateDetails,
	})
}

// FlowRunCreate is the payload to create a flow run.
type FlowRunCreate struct {
	State          *StateCreate   `json:"state,omitempty"`
	Name           string         `json:"name,omitempty"` // defaults to a random slug
	FlowID         uuid.UUID      `json:"flow_id"`
	FlowVersion    string         `json:"flow_version,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	ParentTaskRunID *uuid.UUID    `json:"parent_task_run_id,omitempty"`
	InfrastructureDocumentID *uuid.UUID `json:"infrastructure_document_id,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// FlowRunUpdate is the payload to update a flow run.
type FlowRunUpdate struct {
	Name              string         `json:"name,omitempty"`
	FlowVersion       string         `json:"flow_version,omitempty"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	InfrastructurePID string         `json:"infrastructure_pid,omitempty"`
	JobVariables      map[string]any `json:"job_variables,omitempty"`
}

// DeploymentFlowRunCreate is the payload to create a flow run from a deployment.
type DeploymentFlowRunCreate struct {
	State           *StateCreate   `json:"state,omitempty"`
	Name            string         `json:"name,omitempty"` // defaults to a random slug
	Parameters      map[string]any `json:"parameters,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	IdempotencyKey  string         `json:"idempotency_key,omitempty"`
	ParentTaskRunID *uuid.UUID     `json:"parent_task_run_id,omitempty"`
	WorkQueueName   string         `json:"work_queue_name,omitempty"`
	JobVariables    map[string]any `json:"job_variables,omitempty"`
}

// TaskRunCreate is the payload to create a task run.
type TaskRunCreate struct {
	State           *StateCreate `json:"state,omitempty"`
	Name            string       `json:"name,omitempty"` // defaults to a random slug
	FlowRunID       *uuid.UUID   `json:"flow_run_id,omitempty"`
	TaskKey         string       `json:"task_key"`
	DynamicKey      string       `json:"dynamic_key"`
	CacheKey        string       `json:"cache_key,omitempty"`
	CacheExpiration *time.Time   `json:"cache_expiration,omitempty"`
	TaskVersion     string       `json:"task_version,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
}

// TaskRunUpdate is the payload to update a task run.
type TaskRunUpdate struct {
	Name string `json:"name,omitempty"`
}

// WorkPoolCreate is the payload to create a work pool.
type WorkPoolCreate struct {
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Type             string          `json:"type,omitempty"`
	BaseJobTemplate  BaseJobTemplate `json:"base_job_template,omitempty"`
	IsPaused         bool            `json:"is_paused,omitempty"`
	ConcurrencyLimit *int            `json:"concurrency_limit,omitempty"`
}

// WorkPoolUpdate is the payload to update a work pool.
type WorkPoolUpdate struct {
	Description      string          `json:"description,omitempty"`
	IsPaused         *bool           `json:"is_paused,omitempty"`
	BaseJobTemplate  BaseJobTemplate `json:"base_job_template,omitempty"`
	ConcurrencyLimit *int            `json:"concurrency_limit,omitempty"`
}

// WorkQueueCreate is the payload to create a work queue.
type WorkQueueCreate struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	IsPaused         bool   `json:"is_paused,omitempty"`
	ConcurrencyLimit *int   `json:"concurrency_limit,omitempty"`
	Priority         *int   `json:"priority,omitempty"` // lower is higher priority; 1 is highest
}

// WorkQueueUpdate is the payload to update a work queue.
type WorkQueueUpdate struct {
	Name             string     `json:"name,omitempty"`
	Description      string     `json:"description,omitempty"`
	IsPaused         *bool      `json:"is_paused,omitempty"`
	ConcurrencyLimit *int       `json:"concurrency_limit,omitempty"`
	Priority         *int       `json:"priority,omitempty"`
	LastPolled       *time.Time `json:"last_polled,omitempty"`
}

// VariableCreate is the payload to create a variable.
type VariableCreate struct {
	Name  string   `json:"name"`
	Value string   `json:"value"`
	Tags  []string `json:"tags,omitempty"`
}

// VariableUpdate is the payload to update a variable.
type VariableUpdate struct {
	Name  string   `json:"name,omitempty"`
	Value string   `json:"value,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// BlockDocumentCreate is the payload to create a block document. Anonymous
// documents may omit the name; named documents must carry one.
type BlockDocumentCreate struct {
	Name          string         `json:"name,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	BlockSchemaID uuid.UUID      `json:"block_schema_id"`
	BlockTypeID   uuid.UUID      `json:"block_type_id"`
	IsAnonymous   bool           `json:"is_anonymous,omitempty"`
}

// BlockDocumentUpdate is the payload to update a block document.
type BlockDocumentUpdate struct {
	BlockSchemaID     *uuid.UUID     `json:"block_schema_id,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	MergeExistingData *bool          `json:"merge_existing_data,omitempty"` // default true
}

// ArtifactCreate is the payload to create an artifact.
type ArtifactCreate struct {
	Key         string            `json:"key,omitempty"`
	Type        string            `json:"type,omitempty"`
	Description string            `json:"description,omitempty"`
	Data        any               `json:"data,omitempty"`
	Metadata    map[string]string `json:"metadata_,omitempty"`
	FlowRunID   *uuid.UUID        `json:"flow_run_id,omitempty"`
	TaskRunID   *uuid.UUID        `json:"task_run_id,omitempty"`
}

// ArtifactUpdate is the payload to update an artifact.
type ArtifactUpdate struct {
	Data        any               `json:"data,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata_,omitempty"`
}
