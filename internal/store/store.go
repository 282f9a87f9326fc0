package store

import "context"

// Store defines the persistence layer contract behind the admission pipeline.
// All implementations must be safe for concurrent use. Payloads reach the
// store only after admission accepted them.
type Store interface {
	// Flows
	CreateFlow(ctx context.Context, f *Flow) error
	GetFlow(ctx context.Context, id string) (*Flow, error)
	GetFlowByName(ctx context.Context, name string) (*Flow, error)
	ListFlows(ctx context.Context, limit int) ([]*Flow, error)

	// Deployments
	CreateDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	UpdateDeployment(ctx context.Context, id string, fields DeploymentFields) error
	ListDeployments(ctx context.Context, filter DeploymentFilter) ([]*Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error

	// Flow runs
	CreateFlowRun(ctx context.Context, r *FlowRun) error
	GetFlowRun(ctx context.Context, id string) (*FlowRun, error)
	UpdateFlowRunState(ctx context.Context, id string, update RunStateUpdate) error
	ListFlowRuns(ctx context.Context, filter FlowRunFilter) ([]*FlowRun, error)

	// Task runs
	CreateTaskRun(ctx context.Context, r *TaskRun) error
	GetTaskRun(ctx context.Context, id string) (*TaskRun, error)
	UpdateTaskRunState(ctx context.Context, id string, update RunStateUpdate) error
	ListTaskRuns(ctx context.Context, flowRunID string) ([]*TaskRun, error)

	// Work pools and queues
	CreateWorkPool(ctx context.Context, p *WorkPool) error
	GetWorkPoolByName(ctx context.Context, name string) (*WorkPool, error)
	UpdateWorkPool(ctx context.Context, name string, fields WorkPoolFields) error
	ListWorkPools(ctx context.Context, limit int) ([]*WorkPool, error)
	CreateWorkQueue(ctx context.Context, q *WorkQueue) error
	ListWorkQueues(ctx context.Context, workPoolID string) ([]*WorkQueue, error)

	// Variables
	CreateVariable(ctx context.Context, v *Variable) error
	GetVariableByName(ctx context.Context, name string) (*Variable, error)
	UpdateVariable(ctx context.Context, name string, value string, tags []string) error
	ListVariables(ctx context.Context, limit int) ([]*Variable, error)
	DeleteVariable(ctx context.Context, name string) error

	// Block documents
	CreateBlockDocument(ctx context.Context, b *BlockDocument) error
	GetBlockDocument(ctx context.Context, id string) (*BlockDocument, error)
	GetBlockDocumentByName(ctx context.Context, name string) (*BlockDocument, error)

	// Artifacts
	CreateArtifact(ctx context.Context, a *Artifact) error
	ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error)

	// State log (append-only)
	AppendTransition(ctx context.Context, t *StateTransition) error
	GetTransitions(ctx context.Context, flowRunID string, since int64) ([]*StateTransition, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
