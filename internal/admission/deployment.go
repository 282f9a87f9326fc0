package admission

import (
	"context"

	"github.com/rsundqvist/prefect/internal/normalize"
	"github.com/rsundqvist/prefect/pkg/schema"
)

// AdmitDeploymentCreate normalizes and validates a deployment-create payload.
// baseJobTemplate is the declaring work pool's template; pass nil when the
// deployment targets no work pool.
func (a *Admitter) AdmitDeploymentCreate(ctx context.Context, d *schema.DeploymentCreate, baseJobTemplate schema.BaseJobTemplate) error {
	return a.runSteps(ctx, "deployment.create", []step{
		{"check-name", func() error {
			return a.requireName(d.Name, "deployment name")
		}},
		{"normalize-schedules", func() error {
			normalize.MigrateDeploymentCreate(d)
			return validateScheduleEntries(d.Schedules)
		}},
		{"validate-parameters", func() error {
			return a.validator.ValidateParameters(d.Parameters, d.ParameterOpenAPISchema)
		}},
		{"check-job-variables", func() error {
			return a.checkValidConfiguration(d.JobVariables, baseJobTemplate)
		}},
	})
}

// AdmitDeploymentUpdate normalizes and validates a deployment-update payload.
func (a *Admitter) AdmitDeploymentUpdate(ctx context.Context, d *schema.DeploymentUpdate, baseJobTemplate schema.BaseJobTemplate) error {
	return a.runSteps(ctx, "deployment.update", []step{
		{"normalize-schedules", func() error {
			normalize.MigrateDeploymentUpdate(d)
			return validateScheduleEntries(d.Schedules)
		}},
		{"check-job-variables", func() error {
			return a.checkValidConfiguration(d.JobVariables, baseJobTemplate)
		}},
	})
}

// AdmitDeploymentScheduleCreate validates a standalone schedule attachment.
func (a *Admitter) AdmitDeploymentScheduleCreate(ctx context.Context, s *schema.DeploymentScheduleCreate) error {
	return a.runSteps(ctx, "deployment_schedule.create", []step{
		{"validate-schedule", s.Schedule.Validate},
	})
}

// AdmitDeploymentScheduleUpdate validates a schedule update.
func (a *Admitter) AdmitDeploymentScheduleUpdate(ctx context.Context, s *schema.DeploymentScheduleUpdate) error {
	return a.runSteps(ctx, "deployment_schedule.update", []step{
		{"validate-schedule", func() error {
			if s.Schedule == nil {
				return nil
			}
			return s.Schedule.Validate()
		}},
	})
}

// checkValidConfiguration checks that the deployment's job variable overrides
// conform to the work pool's variable schema. Required properties carrying
// defaults are not required for overrides; the relaxation never touches the
// pool's own schema document, which other requests may be reading.
func (a *Admitter) checkValidConfiguration(overrides map[string]any, baseJobTemplate schema.BaseJobTemplate) error {
	if len(baseJobTemplate) == 0 {
		return nil
	}
	variables, _ := baseJobTemplate["variables"].(map[string]any)
	if variables == nil {
		return nil
	}
	return a.validator.ValidateOverrides(overrides, variables)
}

func validateScheduleEntries(entries []schema.ScheduleEntry) error {
	for i := range entries {
		if err := entries[i].Schedule.Validate(); err != nil {
			return err
		}
	}
	return nil
}
