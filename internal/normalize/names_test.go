package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsundqvist/prefect/pkg/schema"
)

func TestGenerateSlug_TwoWords(t *testing.T) {
	for i := 0; i < 20; i++ {
		slug := GenerateSlug(2)
		parts := strings.Split(slug, "-")
		require.Len(t, parts, 2, slug)
		assert.NotEmpty(t, parts[0])
		assert.NotEmpty(t, parts[1])
	}
}

func TestGenerateSlug_MinimumOneWord(t *testing.T) {
	assert.NotContains(t, GenerateSlug(0), "-")
}

func TestRunName_PassThrough(t *testing.T) {
	d := NewDefaulter(nil, nil)
	assert.Equal(t, "my-run", d.RunName("my-run"))
}

func TestRunName_GeneratesSlugWhenEmpty(t *testing.T) {
	d := NewDefaulter(nil, nil)
	name := d.RunName("")
	require.NotEmpty(t, name)
	assert.Len(t, strings.Split(name, "-"), 2)
}

func TestRunName_InjectableGenerator(t *testing.T) {
	d := NewDefaulter(nil, func() string { return "fixed-name" })
	assert.Equal(t, "fixed-name", d.RunName(""))
}

func TestStateName_FromType(t *testing.T) {
	d := NewDefaulter(nil, nil)

	tests := []struct {
		stateType schema.StateType
		want      string
	}{
		{schema.StateTypeCompleted, "Completed"},
		{schema.StateTypeScheduled, "Scheduled"},
		{schema.StateTypeRunning, "Running"},
		{schema.StateTypeCancelling, "Cancelling"},
		{schema.StateType("SOMETHING_NEW"), "Something_new"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.StateName(tt.stateType, ""))
	}
}

func TestStateName_PassThrough(t *testing.T) {
	d := NewDefaulter(nil, nil)
	assert.Equal(t, "custom", d.StateName(schema.StateTypeCompleted, "custom"))
}

func TestScheduledTime_SetForScheduled(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDefaulter(func() time.Time { return fixed }, nil)

	got := d.ScheduledTime(schema.StateTypeScheduled, schema.StateDetails{})
	require.NotNil(t, got.ScheduledTime)
	assert.Equal(t, fixed, *got.ScheduledTime)
}

func TestScheduledTime_ExplicitValueKept(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	explicit := fixed.Add(time.Hour)
	d := NewDefaulter(func() time.Time { return fixed }, nil)

	got := d.ScheduledTime(schema.StateTypeScheduled, schema.StateDetails{ScheduledTime: &explicit})
	assert.Equal(t, explicit, *got.ScheduledTime)
}

func TestScheduledTime_NonScheduledUntouched(t *testing.T) {
	d := NewDefaulter(nil, nil)
	got := d.ScheduledTime(schema.StateTypeCompleted, schema.StateDetails{})
	assert.Nil(t, got.ScheduledTime)
}
