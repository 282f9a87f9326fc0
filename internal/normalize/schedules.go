package normalize

import "github.com/rsundqvist/prefect/pkg/schema"

// NormalizeSchedules reconciles the deprecated single-schedule fields with
// the canonical schedule list. The API grew from one schedule per deployment
// to many; old clients still send {schedule, is_schedule_active} and must
// keep working without knowing about the migration.
//
// Rules, in order:
//  1. A non-empty schedules list is authoritative; legacy fields are ignored.
//  2. Otherwise a present legacy schedule becomes the sole entry, carrying
//     is_schedule_active (absent means active).
//  3. Both absent yields an empty list; a deployment may legitimately have
//     zero schedules.
//
// The result never aliases legacy fields, so clearing them afterwards makes
// re-normalization a no-op.
func NormalizeSchedules(legacy *schema.ScheduleSpec, isScheduleActive *bool, schedules []schema.ScheduleEntry) []schema.ScheduleEntry {
	if len(schedules) > 0 {
		return schedules
	}

	if !legacy.IsZero() {
		active := true
		if isScheduleActive != nil {
			active = *isScheduleActive
		}
		return []schema.ScheduleEntry{{Active: active, Schedule: *legacy}}
	}

	return schedules
}

// MigrateDeploymentCreate folds the payload's legacy schedule fields into the
// canonical list and clears them, leaving schedules as the system of record.
// Idempotent.
func MigrateDeploymentCreate(d *schema.DeploymentCreate) {
	d.Schedules = NormalizeSchedules(d.Schedule, d.IsScheduleActive, d.Schedules)
	d.Schedule = nil
	d.IsScheduleActive = nil
}

// MigrateDeploymentUpdate is the update-payload counterpart of
// MigrateDeploymentCreate.
func MigrateDeploymentUpdate(d *schema.DeploymentUpdate) {
	d.Schedules = NormalizeSchedules(d.Schedule, d.IsScheduleActive, d.Schedules)
	d.Schedule = nil
	d.IsScheduleActive = nil
}
