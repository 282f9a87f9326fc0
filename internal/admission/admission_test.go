package admission

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsundqvist/prefect/pkg/schema"
)

func newTestAdmitter() *Admitter {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewAdmitter(Config{
		Now:  func() time.Time { return fixed },
		Slug: func() string { return "test-slug" },
	}, nil)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

// --- deployments ---

func TestAdmitDeploymentCreate_LegacyScheduleMigrated(t *testing.T) {
	a := newTestAdmitter()
	d := &schema.DeploymentCreate{
		Name:             "etl",
		Schedule:         &schema.ScheduleSpec{Cron: "0 * * * *"},
		IsScheduleActive: boolPtr(false),
	}

	require.NoError(t, a.AdmitDeploymentCreate(context.Background(), d, nil))
	require.Len(t, d.Schedules, 1)
	assert.False(t, d.Schedules[0].Active)
	assert.Equal(t, "0 * * * *", d.Schedules[0].Schedule.Cron)
	assert.Nil(t, d.Schedule)
	assert.Nil(t, d.IsScheduleActive)
}

func TestAdmitDeploymentCreate_InvalidCronRejected(t *testing.T) {
	a := newTestAdmitter()
	d := &schema.DeploymentCreate{
		Name:     "etl",
		Schedule: &schema.ScheduleSpec{Cron: "not a cron"},
	}

	err := a.AdmitDeploymentCreate(context.Background(), d, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron")
}

func TestAdmitDeploymentCreate_EmptyNameRejected(t *testing.T) {
	a := newTestAdmitter()
	err := a.AdmitDeploymentCreate(context.Background(), &schema.DeploymentCreate{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestAdmitDeploymentCreate_BannedNameCharacters(t *testing.T) {
	a := newTestAdmitter()
	d := &schema.DeploymentCreate{Name: "etl/nightly"}
	assert.Error(t, a.AdmitDeploymentCreate(context.Background(), d, nil))
}

func TestAdmitDeploymentCreate_OverridesCheckedAgainstPool(t *testing.T) {
	a := newTestAdmitter()
	pool := schema.BaseJobTemplate{
		"job_configuration": map[string]any{"command": "{{ image }} run"},
		"variables": map[string]any{
			"properties": map[string]any{"image": map[string]any{"type": "string"}},
			"required":   []any{"image"},
		},
	}

	good := &schema.DeploymentCreate{Name: "etl", JobVariables: map[string]any{"image": "busybox"}}
	assert.NoError(t, a.AdmitDeploymentCreate(context.Background(), good, pool))

	bad := &schema.DeploymentCreate{Name: "etl", JobVariables: map[string]any{"image": 7}}
	err := a.AdmitDeploymentCreate(context.Background(), bad, pool)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeSchemaViolation, err.(*schema.APIError).Code)
}

func TestAdmitDeploymentCreate_ParametersFailOpenWithoutSchema(t *testing.T) {
	a := newTestAdmitter()
	d := &schema.DeploymentCreate{
		Name:       "etl",
		Parameters: map[string]any{"anything": map[string]any{"nested": true}},
	}
	assert.NoError(t, a.AdmitDeploymentCreate(context.Background(), d, nil))
}

func TestAdmitDeploymentCreate_ParametersValidatedWhenSchemaPresent(t *testing.T) {
	a := newTestAdmitter()
	d := &schema.DeploymentCreate{
		Name:       "etl",
		Parameters: map[string]any{"retries": "three"},
		ParameterOpenAPISchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"retries": map[string]any{"type": "integer"}},
		},
	}

	err := a.AdmitDeploymentCreate(context.Background(), d, nil)
	require.Error(t, err)
	assert.Equal(t, "/retries", err.(*schema.APIError).Path)
}

func TestAdmitDeploymentUpdate_SchedulesNormalized(t *testing.T) {
	a := newTestAdmitter()
	d := &schema.DeploymentUpdate{Schedule: &schema.ScheduleSpec{Interval: 60}}

	require.NoError(t, a.AdmitDeploymentUpdate(context.Background(), d, nil))
	require.Len(t, d.Schedules, 1)
	assert.True(t, d.Schedules[0].Active)
}

func TestAdmitDeploymentScheduleCreate(t *testing.T) {
	a := newTestAdmitter()
	ok := &schema.DeploymentScheduleCreate{Schedule: schema.ScheduleSpec{Cron: "30 6 * * 1"}}
	assert.NoError(t, a.AdmitDeploymentScheduleCreate(context.Background(), ok))

	empty := &schema.DeploymentScheduleCreate{}
	assert.Error(t, a.AdmitDeploymentScheduleCreate(context.Background(), empty))
}

// --- runs and states ---

func TestAdmitStateCreate_Defaults(t *testing.T) {
	a := newTestAdmitter()
	s := &schema.StateCreate{Type: schema.StateTypeCompleted}

	require.NoError(t, a.AdmitStateCreate(context.Background(), s))
	assert.Equal(t, "Completed", s.Name)
	assert.Nil(t, s.StateDetails.ScheduledTime)
}

func TestAdmitStateCreate_CustomNameKept(t *testing.T) {
	a := newTestAdmitter()
	s := &schema.StateCreate{Type: schema.StateTypeCompleted, Name: "custom"}

	require.NoError(t, a.AdmitStateCreate(context.Background(), s))
	assert.Equal(t, "custom", s.Name)
}

func TestAdmitStateCreate_ScheduledTimeDefaulted(t *testing.T) {
	a := newTestAdmitter()
	s := &schema.StateCreate{Type: schema.StateTypeScheduled}

	require.NoError(t, a.AdmitStateCreate(context.Background(), s))
	require.NotNil(t, s.StateDetails.ScheduledTime)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), *s.StateDetails.ScheduledTime)
}

func TestAdmitStateCreate_UnknownTypeRejected(t *testing.T) {
	a := newTestAdmitter()
	s := &schema.StateCreate{Type: "BOGUS"}
	assert.Error(t, a.AdmitStateCreate(context.Background(), s))
}

func TestAdmitFlowRunCreate_NameDefaulted(t *testing.T) {
	a := newTestAdmitter()
	r := &schema.FlowRunCreate{}

	require.NoError(t, a.AdmitFlowRunCreate(context.Background(), r))
	assert.Equal(t, "test-slug", r.Name)
}

func TestAdmitFlowRunCreate_ExplicitNameKept(t *testing.T) {
	a := newTestAdmitter()
	r := &schema.FlowRunCreate{Name: "my-run"}

	require.NoError(t, a.AdmitFlowRunCreate(context.Background(), r))
	assert.Equal(t, "my-run", r.Name)
}

func TestAdmitFlowRunCreate_StateAdmitted(t *testing.T) {
	a := newTestAdmitter()
	r := &schema.FlowRunCreate{State: &schema.StateCreate{Type: schema.StateTypeScheduled}}

	require.NoError(t, a.AdmitFlowRunCreate(context.Background(), r))
	assert.Equal(t, "Scheduled", r.State.Name)
	assert.NotNil(t, r.State.StateDetails.ScheduledTime)
}

func TestAdmitDeploymentFlowRunCreate_EnforcedParameters(t *testing.T) {
	a := newTestAdmitter()
	ps := map[string]any{
		"type":       "object",
		"properties": map[string]any{"n": map[string]any{"type": "integer"}},
	}

	r := &schema.DeploymentFlowRunCreate{Parameters: map[string]any{"n": "nope"}}
	assert.NoError(t, a.AdmitDeploymentFlowRunCreate(context.Background(), r, ps, false))
	assert.Error(t, a.AdmitDeploymentFlowRunCreate(context.Background(), r, ps, true))
}

func TestAdmitTaskRunCreate(t *testing.T) {
	a := newTestAdmitter()
	r := &schema.TaskRunCreate{TaskKey: "extract", DynamicKey: "0"}

	require.NoError(t, a.AdmitTaskRunCreate(context.Background(), r))
	assert.Equal(t, "test-slug", r.Name)
}

func TestAdmitTaskRunCreate_MissingKeys(t *testing.T) {
	a := newTestAdmitter()
	assert.Error(t, a.AdmitTaskRunCreate(context.Background(), &schema.TaskRunCreate{DynamicKey: "0"}))
	assert.Error(t, a.AdmitTaskRunCreate(context.Background(), &schema.TaskRunCreate{TaskKey: "extract"}))
}

func TestAdmitTaskRunCreate_CacheKeyTooLong(t *testing.T) {
	a := newTestAdmitter()
	r := &schema.TaskRunCreate{
		TaskKey:    "extract",
		DynamicKey: "0",
		CacheKey:   strings.Repeat("k", schema.MaxCacheKeyLength+1),
	}
	assert.Error(t, a.AdmitTaskRunCreate(context.Background(), r))
}

// --- infra entities ---

func TestAdmitWorkPoolCreate_TemplateChecked(t *testing.T) {
	a := newTestAdmitter()
	p := &schema.WorkPoolCreate{
		Name: "k8s-pool",
		BaseJobTemplate: schema.BaseJobTemplate{
			"job_configuration": map[string]any{"command": "{{ image }} run"},
			"variables": map[string]any{
				"properties": map[string]any{"image": map[string]any{"type": "string"}},
			},
		},
	}

	require.NoError(t, a.AdmitWorkPoolCreate(context.Background(), p))
	assert.Equal(t, "prefect-agent", p.Type)
}

func TestAdmitWorkPoolCreate_UndeclaredPlaceholder(t *testing.T) {
	a := newTestAdmitter()
	p := &schema.WorkPoolCreate{
		Name: "k8s-pool",
		BaseJobTemplate: schema.BaseJobTemplate{
			"job_configuration": map[string]any{"command": "{{ image }} {{ cpu }}"},
			"variables": map[string]any{
				"properties": map[string]any{"image": map[string]any{"type": "string"}},
			},
		},
	}

	err := a.AdmitWorkPoolCreate(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMissingDeclaration, err.(*schema.APIError).Code)
}

func TestAdmitWorkPoolCreate_HalfTemplate(t *testing.T) {
	a := newTestAdmitter()
	p := &schema.WorkPoolCreate{
		Name: "k8s-pool",
		BaseJobTemplate: schema.BaseJobTemplate{
			"job_configuration": map[string]any{"command": "run"},
		},
	}

	err := a.AdmitWorkPoolCreate(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfigurationShape, err.(*schema.APIError).Code)
}

func TestAdmitWorkQueueCreate_Priority(t *testing.T) {
	a := newTestAdmitter()
	assert.NoError(t, a.AdmitWorkQueueCreate(context.Background(),
		&schema.WorkQueueCreate{Name: "default", Priority: intPtr(1)}))
	assert.Error(t, a.AdmitWorkQueueCreate(context.Background(),
		&schema.WorkQueueCreate{Name: "default", Priority: intPtr(0)}))
}

func TestAdmitVariableCreate_NameRules(t *testing.T) {
	a := newTestAdmitter()
	assert.NoError(t, a.AdmitVariableCreate(context.Background(),
		&schema.VariableCreate{Name: "my_var", Value: "x"}))
	assert.Error(t, a.AdmitVariableCreate(context.Background(),
		&schema.VariableCreate{Name: "my-var", Value: "x"}))
	assert.Error(t, a.AdmitVariableCreate(context.Background(),
		&schema.VariableCreate{Name: "", Value: "x"}))
}

func TestAdmitVariableCreate_ValueTooLong(t *testing.T) {
	a := newTestAdmitter()
	v := &schema.VariableCreate{Name: "big", Value: strings.Repeat("v", schema.MaxVariableValueLength+1)}
	assert.Error(t, a.AdmitVariableCreate(context.Background(), v))
}

func TestAdmitBlockDocumentCreate_AnonymousRules(t *testing.T) {
	a := newTestAdmitter()
	assert.NoError(t, a.AdmitBlockDocumentCreate(context.Background(),
		&schema.BlockDocumentCreate{IsAnonymous: true}))
	assert.Error(t, a.AdmitBlockDocumentCreate(context.Background(),
		&schema.BlockDocumentCreate{IsAnonymous: false}))
	assert.NoError(t, a.AdmitBlockDocumentCreate(context.Background(),
		&schema.BlockDocumentCreate{Name: "my-creds"}))
	assert.Error(t, a.AdmitBlockDocumentCreate(context.Background(),
		&schema.BlockDocumentCreate{Name: "My Creds"}))
}

// --- end to end ---

// Work pool declares {{ image }} as required with no default; the template
// check passes while empty overrides are rejected for the missing value.
func TestAdmission_EndToEnd_TemplateOkOverridesMissing(t *testing.T) {
	a := newTestAdmitter()
	pool := schema.BaseJobTemplate{
		"job_configuration": map[string]any{"cmd": "{{ image }} run"},
		"variables": map[string]any{
			"properties": map[string]any{"image": map[string]any{"type": "string"}},
			"required":   []any{"image"},
		},
	}

	wp := &schema.WorkPoolCreate{Name: "docker-pool", BaseJobTemplate: pool}
	require.NoError(t, a.AdmitWorkPoolCreate(context.Background(), wp))

	d := &schema.DeploymentCreate{Name: "etl", JobVariables: map[string]any{}}
	err := a.AdmitDeploymentCreate(context.Background(), d, pool)
	require.Error(t, err)

	apiErr := err.(*schema.APIError)
	assert.Equal(t, schema.ErrCodeSchemaViolation, apiErr.Code)
	assert.Contains(t, apiErr.Message, "image")
}
