package admission

import (
	"context"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// AdmitFlowCreate validates a flow-create payload.
func (a *Admitter) AdmitFlowCreate(ctx context.Context, f *schema.FlowCreate) error {
	return a.runSteps(ctx, "flow.create", []step{
		{"check-name", func() error {
			return a.requireName(f.Name, "flow name")
		}},
	})
}

// AdmitWorkPoolCreate validates a work-pool-create payload, including the
// template-variable consistency of its base job template.
func (a *Admitter) AdmitWorkPoolCreate(ctx context.Context, p *schema.WorkPoolCreate) error {
	return a.runSteps(ctx, "work_pool.create", []step{
		{"check-name", func() error {
			return a.requireName(p.Name, "work pool name")
		}},
		{"default-type", func() error {
			if p.Type == "" {
				p.Type = "prefect-agent"
			}
			return nil
		}},
		{"check-base-job-template", func() error {
			return a.templates.ValidateBaseJobTemplate(p.BaseJobTemplate)
		}},
	})
}

// AdmitWorkPoolUpdate validates a work-pool-update payload.
func (a *Admitter) AdmitWorkPoolUpdate(ctx context.Context, p *schema.WorkPoolUpdate) error {
	return a.runSteps(ctx, "work_pool.update", []step{
		{"check-base-job-template", func() error {
			return a.templates.ValidateBaseJobTemplate(p.BaseJobTemplate)
		}},
	})
}

// AdmitWorkQueueCreate validates a work-queue-create payload.
func (a *Admitter) AdmitWorkQueueCreate(ctx context.Context, q *schema.WorkQueueCreate) error {
	return a.runSteps(ctx, "work_queue.create", []step{
		{"check-name", func() error {
			return a.requireName(q.Name, "work queue name")
		}},
		{"check-priority", func() error {
			return validateQueuePriority(q.Priority)
		}},
	})
}

// AdmitWorkQueueUpdate validates a work-queue-update payload.
func (a *Admitter) AdmitWorkQueueUpdate(ctx context.Context, q *schema.WorkQueueUpdate) error {
	return a.runSteps(ctx, "work_queue.update", []step{
		{"check-name", func() error {
			if q.Name == "" {
				return nil
			}
			return a.checkName(q.Name, "work queue name")
		}},
		{"check-priority", func() error {
			return validateQueuePriority(q.Priority)
		}},
	})
}

// AdmitVariableCreate validates a variable-create payload.
func (a *Admitter) AdmitVariableCreate(ctx context.Context, v *schema.VariableCreate) error {
	return a.runSteps(ctx, "variable.create", []step{
		{"check-name", func() error {
			if v.Name == "" {
				return schema.NewError(schema.ErrCodeValidation, "variable name must not be empty")
			}
			return schema.RaiseOnNameAlphanumericUnderscoresOnly(v.Name, "variable name")
		}},
		{"check-lengths", func() error {
			return validateVariableLengths(v.Name, v.Value)
		}},
	})
}

// AdmitVariableUpdate validates a variable-update payload.
func (a *Admitter) AdmitVariableUpdate(ctx context.Context, v *schema.VariableUpdate) error {
	return a.runSteps(ctx, "variable.update", []step{
		{"check-name", func() error {
			if v.Name == "" {
				return nil
			}
			return schema.RaiseOnNameAlphanumericUnderscoresOnly(v.Name, "variable name")
		}},
		{"check-lengths", func() error {
			return validateVariableLengths(v.Name, v.Value)
		}},
	})
}

// AdmitBlockDocumentCreate validates a block-document-create payload.
// Anonymous documents may omit the name; named documents must carry one.
func (a *Admitter) AdmitBlockDocumentCreate(ctx context.Context, b *schema.BlockDocumentCreate) error {
	return a.runSteps(ctx, "block_document.create", []step{
		{"check-name-presence", func() error {
			if !b.IsAnonymous && b.Name == "" {
				return schema.NewError(schema.ErrCodeValidation,
					"names must be provided for block documents that are not anonymous")
			}
			return nil
		}},
		{"check-name-format", func() error {
			if b.Name == "" {
				return nil
			}
			return schema.RaiseOnNameAlphanumericDashesOnly(b.Name, "block document name")
		}},
	})
}

// AdmitArtifactCreate validates an artifact-create payload.
func (a *Admitter) AdmitArtifactCreate(ctx context.Context, art *schema.ArtifactCreate) error {
	return a.runSteps(ctx, "artifact.create", []step{
		{"check-key", func() error {
			if art.Key == "" {
				return nil
			}
			return schema.RaiseOnNameAlphanumericDashesOnly(art.Key, "artifact key")
		}},
	})
}

func validateQueuePriority(priority *int) error {
	if priority != nil && *priority < 1 {
		return schema.NewError(schema.ErrCodeValidation, "work queue priority must be 1 or greater")
	}
	return nil
}

func validateVariableLengths(name, value string) error {
	if len(name) > schema.MaxVariableNameLength {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"variable name exceeds maximum length of %d characters", schema.MaxVariableNameLength)
	}
	if len(value) > schema.MaxVariableValueLength {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"variable value exceeds maximum length of %d characters", schema.MaxVariableValueLength)
	}
	return nil
}
