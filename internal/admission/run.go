package admission

import (
	"context"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// AdmitStateCreate fills the state's display name and scheduled timestamp
// and checks the state type. Defaulting never overwrites explicit values.
func (a *Admitter) AdmitStateCreate(ctx context.Context, s *schema.StateCreate) error {
	return a.runSteps(ctx, "state.create", []step{
		{"check-type", func() error {
			if !s.Type.Valid() {
				return schema.NewErrorf(schema.ErrCodeValidation, "unknown state type %q", s.Type)
			}
			return nil
		}},
		{"default-name", func() error {
			s.Name = a.defaults.StateName(s.Type, s.Name)
			return nil
		}},
		{"default-scheduled-time", func() error {
			s.StateDetails = a.defaults.ScheduledTime(s.Type, s.StateDetails)
			return nil
		}},
	})
}

// AdmitFlowRunCreate normalizes and validates a flow-run-create payload.
func (a *Admitter) AdmitFlowRunCreate(ctx context.Context, r *schema.FlowRunCreate) error {
	return a.runSteps(ctx, "flow_run.create", []step{
		{"default-name", func() error {
			r.Name = a.defaults.RunName(r.Name)
			return nil
		}},
		{"admit-state", func() error {
			if r.State == nil {
				return nil
			}
			return a.AdmitStateCreate(ctx, r.State)
		}},
	})
}

// AdmitFlowRunUpdate normalizes a flow-run-update payload.
func (a *Admitter) AdmitFlowRunUpdate(ctx context.Context, r *schema.FlowRunUpdate) error {
	return a.runSteps(ctx, "flow_run.update", []step{
		{"default-name", func() error {
			r.Name = a.defaults.RunName(r.Name)
			return nil
		}},
	})
}

// AdmitDeploymentFlowRunCreate normalizes and validates a run created from a
// deployment. parameterSchema and enforce come from the owning deployment;
// the parameter check only runs when the deployment opted in.
func (a *Admitter) AdmitDeploymentFlowRunCreate(ctx context.Context, r *schema.DeploymentFlowRunCreate, parameterSchema map[string]any, enforce bool) error {
	return a.runSteps(ctx, "deployment_flow_run.create", []step{
		{"default-name", func() error {
			r.Name = a.defaults.RunName(r.Name)
			return nil
		}},
		{"validate-parameters", func() error {
			if !enforce {
				return nil
			}
			return a.validator.ValidateParameters(r.Parameters, parameterSchema)
		}},
		{"admit-state", func() error {
			if r.State == nil {
				return nil
			}
			return a.AdmitStateCreate(ctx, r.State)
		}},
	})
}

// AdmitTaskRunCreate normalizes and validates a task-run-create payload.
func (a *Admitter) AdmitTaskRunCreate(ctx context.Context, r *schema.TaskRunCreate) error {
	return a.runSteps(ctx, "task_run.create", []step{
		{"check-keys", func() error {
			if r.TaskKey == "" {
				return schema.NewError(schema.ErrCodeValidation, "task_key must not be empty")
			}
			if r.DynamicKey == "" {
				return schema.NewError(schema.ErrCodeValidation, "dynamic_key must not be empty")
			}
			return nil
		}},
		{"check-cache-key", func() error {
			if len(r.CacheKey) > schema.MaxCacheKeyLength {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"cache_key exceeds maximum length of %d characters", schema.MaxCacheKeyLength)
			}
			return nil
		}},
		{"default-name", func() error {
			r.Name = a.defaults.RunName(r.Name)
			return nil
		}},
		{"admit-state", func() error {
			if r.State == nil {
				return nil
			}
			return a.AdmitStateCreate(ctx, r.State)
		}},
	})
}

// AdmitTaskRunUpdate normalizes a task-run-update payload.
func (a *Admitter) AdmitTaskRunUpdate(ctx context.Context, r *schema.TaskRunUpdate) error {
	return a.runSteps(ctx, "task_run.update", []step{
		{"default-name", func() error {
			r.Name = a.defaults.RunName(r.Name)
			return nil
		}},
	})
}
