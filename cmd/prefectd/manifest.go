package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/rsundqvist/prefect/internal/admission"
	"github.com/rsundqvist/prefect/internal/logging"
	"github.com/rsundqvist/prefect/internal/secrets"
	"github.com/rsundqvist/prefect/internal/store"
	"github.com/rsundqvist/prefect/pkg/schema"
)

// Manifest is the declarative resource bundle accepted by apply and validate.
// YAML and JSON are both accepted.
type Manifest struct {
	WorkPools   []WorkPoolManifest   `yaml:"work_pools"`
	Blocks      []BlockManifest      `yaml:"blocks"`
	Flows       []FlowManifest       `yaml:"flows"`
	Deployments []DeploymentManifest `yaml:"deployments"`
	Variables   []VariableManifest   `yaml:"variables"`
}

type WorkPoolManifest struct {
	Name             string                 `yaml:"name"`
	Type             string                 `yaml:"type"`
	Description      string                 `yaml:"description"`
	BaseJobTemplate  schema.BaseJobTemplate `yaml:"base_job_template"`
	ConcurrencyLimit *int                   `yaml:"concurrency_limit"`
}

type FlowManifest struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

type DeploymentManifest struct {
	Name                   string                 `yaml:"name"`
	Flow                   string                 `yaml:"flow"`
	WorkPool               string                 `yaml:"work_pool"`
	WorkQueue              string                 `yaml:"work_queue"`
	Schedule               *schema.ScheduleSpec   `yaml:"schedule"`
	IsScheduleActive       *bool                  `yaml:"is_schedule_active"`
	Schedules              []schema.ScheduleEntry `yaml:"schedules"`
	Parameters             map[string]any         `yaml:"parameters"`
	ParameterOpenAPISchema map[string]any         `yaml:"parameter_openapi_schema"`
	EnforceParameterSchema bool                   `yaml:"enforce_parameter_schema"`
	JobVariables           map[string]any         `yaml:"job_variables"`
	Tags                   []string               `yaml:"tags"`
	Description            string                 `yaml:"description"`
}

type BlockManifest struct {
	Name        string         `yaml:"name"`
	BlockType   string         `yaml:"block_type"`
	Data        map[string]any `yaml:"data"`
	IsAnonymous bool           `yaml:"is_anonymous"`
}

type VariableManifest struct {
	Name  string   `yaml:"name"`
	Value string   `yaml:"value"`
	Tags  []string `yaml:"tags"`
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Applier admits manifest resources and optionally persists them.
// A nil store means validate-only. When docs is set, block document data is
// sealed before it reaches the store.
type Applier struct {
	admitter *admission.Admitter
	store    store.Store
	docs     *secrets.SealedDocuments
	cfg      Config
	logger   *slog.Logger
}

// Apply processes the manifest in dependency order. Work pools come first so
// deployment job variables can be checked against their templates.
func (ap *Applier) Apply(ctx context.Context, m *Manifest) error {
	ctx = logging.WithRequestID(ctx, uuid.New().String())

	templates := make(map[string]schema.BaseJobTemplate, len(m.WorkPools))

	for i := range m.WorkPools {
		wp := &m.WorkPools[i]
		if err := ap.applyWorkPool(ctx, wp); err != nil {
			return fmt.Errorf("work pool %q: %w", wp.Name, err)
		}
		templates[wp.Name] = wp.BaseJobTemplate
	}
	for i := range m.Blocks {
		if err := ap.applyBlock(ctx, &m.Blocks[i]); err != nil {
			return fmt.Errorf("block document %q: %w", m.Blocks[i].Name, err)
		}
	}
	for i := range m.Flows {
		if err := ap.applyFlow(ctx, &m.Flows[i]); err != nil {
			return fmt.Errorf("flow %q: %w", m.Flows[i].Name, err)
		}
	}
	for i := range m.Deployments {
		d := &m.Deployments[i]
		if err := ap.applyDeployment(ctx, d, templates); err != nil {
			return fmt.Errorf("deployment %q: %w", d.Name, err)
		}
	}
	for i := range m.Variables {
		if err := ap.applyVariable(ctx, &m.Variables[i]); err != nil {
			return fmt.Errorf("variable %q: %w", m.Variables[i].Name, err)
		}
	}
	return nil
}

func (ap *Applier) applyWorkPool(ctx context.Context, wp *WorkPoolManifest) error {
	ctx = logging.WithEntity(ctx, "work_pool", wp.Name)

	payload := &schema.WorkPoolCreate{
		Name:             wp.Name,
		Type:             wp.Type,
		Description:      wp.Description,
		BaseJobTemplate:  wp.BaseJobTemplate,
		ConcurrencyLimit: wp.ConcurrencyLimit,
	}
	if payload.Type == "" {
		payload.Type = ap.cfg.DefaultPoolType
	}
	if err := ap.admitter.AdmitWorkPoolCreate(ctx, payload); err != nil {
		return err
	}
	for _, w := range ap.admitter.ReviewWorkPoolTemplate(payload.BaseJobTemplate).Warnings {
		ap.logger.WarnContext(ctx, w.Message, slog.String("path", w.Path))
	}
	wp.Type = payload.Type
	if ap.store == nil {
		ap.logger.InfoContext(ctx, "work pool validated")
		return nil
	}
	err := ap.store.CreateWorkPool(ctx, &store.WorkPool{
		ID:               uuid.New().String(),
		Name:             payload.Name,
		Type:             payload.Type,
		Description:      payload.Description,
		BaseJobTemplate:  payload.BaseJobTemplate,
		ConcurrencyLimit: payload.ConcurrencyLimit,
	})
	if isConflict(err) {
		err = ap.store.UpdateWorkPool(ctx, payload.Name, store.WorkPoolFields{
			Description:     &payload.Description,
			BaseJobTemplate: &payload.BaseJobTemplate,
		})
	}
	if err != nil {
		return err
	}
	ap.logger.InfoContext(ctx, "work pool applied")
	return nil
}

func (ap *Applier) applyBlock(ctx context.Context, b *BlockManifest) error {
	ctx = logging.WithEntity(ctx, "block_document", b.Name)

	payload := &schema.BlockDocumentCreate{
		Name:        b.Name,
		Data:        b.Data,
		IsAnonymous: b.IsAnonymous,
	}
	if err := ap.admitter.AdmitBlockDocumentCreate(ctx, payload); err != nil {
		return err
	}
	if ap.store == nil {
		ap.logger.InfoContext(ctx, "block document validated")
		return nil
	}

	doc := &store.BlockDocument{
		ID:          uuid.New().String(),
		Name:        b.Name,
		BlockType:   b.BlockType,
		IsAnonymous: b.IsAnonymous,
	}
	if len(b.Data) > 0 {
		data, err := json.Marshal(b.Data)
		if err != nil {
			return fmt.Errorf("encode block data: %w", err)
		}
		doc.Data = data
	}
	var err error
	if ap.docs != nil {
		err = ap.docs.Create(ctx, doc)
	} else {
		err = ap.store.CreateBlockDocument(ctx, doc)
	}
	if err != nil && !isConflict(err) {
		return err
	}
	ap.logger.InfoContext(ctx, "block document applied",
		slog.Bool("sealed", ap.docs != nil))
	return nil
}

func (ap *Applier) applyFlow(ctx context.Context, f *FlowManifest) error {
	ctx = logging.WithEntity(ctx, "flow", f.Name)

	payload := &schema.FlowCreate{Name: f.Name, Tags: f.Tags}
	if err := ap.admitter.AdmitFlowCreate(ctx, payload); err != nil {
		return err
	}
	if ap.store == nil {
		ap.logger.InfoContext(ctx, "flow validated")
		return nil
	}
	err := ap.store.CreateFlow(ctx, &store.Flow{
		ID:   uuid.New().String(),
		Name: payload.Name,
		Tags: payload.Tags,
	})
	if err != nil && !isConflict(err) {
		return err
	}
	ap.logger.InfoContext(ctx, "flow applied")
	return nil
}

func (ap *Applier) applyDeployment(ctx context.Context, d *DeploymentManifest, templates map[string]schema.BaseJobTemplate) error {
	ctx = logging.WithEntity(ctx, "deployment", d.Name)

	template, err := ap.resolveTemplate(ctx, d.WorkPool, templates)
	if err != nil {
		return err
	}

	payload := &schema.DeploymentCreate{
		Name:                   d.Name,
		Schedule:               d.Schedule,
		IsScheduleActive:       d.IsScheduleActive,
		Schedules:              d.Schedules,
		Parameters:             d.Parameters,
		ParameterOpenAPISchema: d.ParameterOpenAPISchema,
		EnforceParameterSchema: d.EnforceParameterSchema || ap.cfg.EnforceParameters,
		JobVariables:           d.JobVariables,
		WorkQueueName:          d.WorkQueue,
		WorkPoolName:           d.WorkPool,
		Tags:                   d.Tags,
		Description:            d.Description,
	}
	if err := ap.admitter.AdmitDeploymentCreate(ctx, payload, template); err != nil {
		return err
	}
	if ap.store == nil {
		ap.logger.InfoContext(ctx, "deployment validated")
		return nil
	}

	flow, err := ap.store.GetFlowByName(ctx, d.Flow)
	if err != nil {
		return fmt.Errorf("resolve flow %q: %w", d.Flow, err)
	}
	err = ap.store.CreateDeployment(ctx, &store.Deployment{
		ID:                     uuid.New().String(),
		Name:                   payload.Name,
		FlowID:                 flow.ID,
		Schedules:              payload.Schedules,
		Parameters:             payload.Parameters,
		ParameterOpenAPISchema: payload.ParameterOpenAPISchema,
		EnforceParameterSchema: payload.EnforceParameterSchema,
		JobVariables:           payload.JobVariables,
		WorkQueueName:          payload.WorkQueueName,
		WorkPoolName:           payload.WorkPoolName,
		Tags:                   payload.Tags,
		Description:            payload.Description,
	})
	if err != nil && !isConflict(err) {
		return err
	}
	ap.logger.InfoContext(ctx, "deployment applied",
		slog.Int("schedules", len(payload.Schedules)))
	return nil
}

func (ap *Applier) applyVariable(ctx context.Context, v *VariableManifest) error {
	ctx = logging.WithEntity(ctx, "variable", v.Name)

	payload := &schema.VariableCreate{Name: v.Name, Value: v.Value, Tags: v.Tags}
	if err := ap.admitter.AdmitVariableCreate(ctx, payload); err != nil {
		return err
	}
	if ap.store == nil {
		ap.logger.InfoContext(ctx, "variable validated")
		return nil
	}
	err := ap.store.CreateVariable(ctx, &store.Variable{
		ID:    uuid.New().String(),
		Name:  payload.Name,
		Value: payload.Value,
		Tags:  payload.Tags,
	})
	if isConflict(err) {
		err = ap.store.UpdateVariable(ctx, payload.Name, payload.Value, payload.Tags)
	}
	if err != nil {
		return err
	}
	ap.logger.InfoContext(ctx, "variable applied")
	return nil
}

// resolveTemplate prefers a pool declared in the same manifest, then falls
// back to the store. Deployments without a pool get no template check.
func (ap *Applier) resolveTemplate(ctx context.Context, poolName string, templates map[string]schema.BaseJobTemplate) (schema.BaseJobTemplate, error) {
	if poolName == "" {
		return nil, nil
	}
	if tmpl, ok := templates[poolName]; ok {
		return tmpl, nil
	}
	if ap.store == nil {
		return nil, nil
	}
	pool, err := ap.store.GetWorkPoolByName(ctx, poolName)
	if err != nil {
		return nil, fmt.Errorf("resolve work pool %q: %w", poolName, err)
	}
	return pool.BaseJobTemplate, nil
}

func isConflict(err error) bool {
	apiErr, ok := err.(*schema.APIError)
	return ok && apiErr.Code == schema.ErrCodeConflict
}
