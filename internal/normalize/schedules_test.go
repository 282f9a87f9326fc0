package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsundqvist/prefect/pkg/schema"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeSchedules_LegacyMigration(t *testing.T) {
	legacy := &schema.ScheduleSpec{Cron: "0 * * * *"}

	got := NormalizeSchedules(legacy, boolPtr(false), nil)
	require.Len(t, got, 1)
	assert.False(t, got[0].Active)
	assert.Equal(t, "0 * * * *", got[0].Schedule.Cron)
}

func TestNormalizeSchedules_LegacyActiveDefaultsTrue(t *testing.T) {
	legacy := &schema.ScheduleSpec{Interval: 3600}

	got := NormalizeSchedules(legacy, nil, nil)
	require.Len(t, got, 1)
	assert.True(t, got[0].Active)
}

func TestNormalizeSchedules_ListAuthoritative(t *testing.T) {
	legacy := &schema.ScheduleSpec{Cron: "0 0 * * *"}
	existing := []schema.ScheduleEntry{
		{Active: true, Schedule: schema.ScheduleSpec{Interval: 60}},
		{Active: false, Schedule: schema.ScheduleSpec{Cron: "30 6 * * 1"}},
	}

	got := NormalizeSchedules(legacy, boolPtr(false), existing)
	assert.Equal(t, existing, got)
}

func TestNormalizeSchedules_BothAbsent(t *testing.T) {
	assert.Empty(t, NormalizeSchedules(nil, nil, nil))
	assert.Empty(t, NormalizeSchedules(&schema.ScheduleSpec{}, nil, nil))
}

func TestMigrateDeploymentCreate_Idempotent(t *testing.T) {
	d := &schema.DeploymentCreate{
		Name:             "etl",
		Schedule:         &schema.ScheduleSpec{Cron: "0 * * * *"},
		IsScheduleActive: boolPtr(false),
	}

	MigrateDeploymentCreate(d)
	first := append([]schema.ScheduleEntry(nil), d.Schedules...)
	assert.Nil(t, d.Schedule)
	assert.Nil(t, d.IsScheduleActive)

	MigrateDeploymentCreate(d)
	assert.Equal(t, first, d.Schedules)
}

func TestMigrateDeploymentCreate_EmptyStaysEmpty(t *testing.T) {
	d := &schema.DeploymentCreate{Name: "manual-only"}
	MigrateDeploymentCreate(d)
	assert.Empty(t, d.Schedules)
	MigrateDeploymentCreate(d)
	assert.Empty(t, d.Schedules)
}

func TestMigrateDeploymentUpdate(t *testing.T) {
	d := &schema.DeploymentUpdate{
		Schedule: &schema.ScheduleSpec{Interval: 300},
	}

	MigrateDeploymentUpdate(d)
	require.Len(t, d.Schedules, 1)
	assert.True(t, d.Schedules[0].Active)
	assert.Equal(t, float64(300), d.Schedules[0].Schedule.Interval)
	assert.Nil(t, d.Schedule)
}
