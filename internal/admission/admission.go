// Package admission normalizes and validates inbound action payloads before
// they are handed to persistence. Each payload kind runs an ordered pipeline
// of named steps; the first typed failure stops the pipeline and is returned
// to the caller as the rejection message.
package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/rsundqvist/prefect/internal/normalize"
	"github.com/rsundqvist/prefect/internal/templating"
	"github.com/rsundqvist/prefect/internal/validation"
	"github.com/rsundqvist/prefect/pkg/schema"
)

// Config carries the injectable collaborators of the admission layer.
// Zero values select the stock implementations.
type Config struct {
	Extract   templating.ExtractFunc // placeholder grammar
	Now       func() time.Time       // clock for scheduled-time defaulting
	Slug      func() string          // random run-name generator
	CheckName schema.NamePredicate   // display-name legality
}

// Admitter runs the per-payload validation pipelines. It holds no mutable
// state besides the schema compilation cache and is safe for concurrent use.
type Admitter struct {
	validator validation.Validator
	templates *validation.TemplateChecker
	defaults  *normalize.Defaulter
	checkName schema.NamePredicate
	logger    *slog.Logger
}

// NewAdmitter creates an Admitter.
func NewAdmitter(cfg Config, logger *slog.Logger) *Admitter {
	if cfg.CheckName == nil {
		cfg.CheckName = schema.RaiseOnNameWithBannedCharacters
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Admitter{
		validator: validation.NewJSONSchemaValidator(),
		templates: validation.NewTemplateChecker(cfg.Extract),
		defaults:  normalize.NewDefaulter(cfg.Now, cfg.Slug),
		checkName: cfg.CheckName,
		logger:    logger,
	}
}

// ReviewWorkPoolTemplate reports every base-job-template problem and warning
// at once instead of stopping at the first failure. Dry-run surfaces use this
// alongside the admit methods.
func (a *Admitter) ReviewWorkPoolTemplate(tpl schema.BaseJobTemplate) *schema.ValidationResult {
	return a.templates.ReviewBaseJobTemplate(tpl)
}

// step is one named stage of a payload pipeline.
type step struct {
	name string
	run  func() error
}

// runSteps executes steps in order, stopping at the first failure.
func (a *Admitter) runSteps(ctx context.Context, kind string, steps []step) error {
	for _, s := range steps {
		if err := s.run(); err != nil {
			a.logger.DebugContext(ctx, "payload rejected",
				slog.String("kind", kind),
				slog.String("step", s.name),
				slog.String("error", err.Error()),
			)
			return err
		}
	}
	return nil
}

// requireName rejects an empty name and applies the display-name predicate.
func (a *Admitter) requireName(name, fieldName string) error {
	if name == "" {
		return schema.NewErrorf(schema.ErrCodeValidation, "%s must not be empty", fieldName)
	}
	return a.checkName(name, fieldName)
}
