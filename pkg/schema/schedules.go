package schema

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ScheduleSpec is a recurrence rule for a deployment. Exactly one of
// Interval, Cron, or RRule must be set on a non-zero spec.
type ScheduleSpec struct {
	Interval   float64    `json:"interval,omitempty"` // seconds between runs
	AnchorDate *time.Time `json:"anchor_date,omitempty"`
	Cron       string     `json:"cron,omitempty"`
	DayOr      bool       `json:"day_or,omitempty"`
	RRule      string     `json:"rrule,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
}

// IsZero reports whether no recurrence rule is set.
func (s *ScheduleSpec) IsZero() bool {
	return s == nil || (s.Interval == 0 && s.Cron == "" && s.RRule == "")
}

// Validate checks that the spec carries exactly one well-formed recurrence rule.
func (s *ScheduleSpec) Validate() error {
	set := 0
	if s.Interval != 0 {
		set++
	}
	if s.Cron != "" {
		set++
	}
	if s.RRule != "" {
		set++
	}
	if set == 0 {
		return NewError(ErrCodeValidation, "schedule must define one of interval, cron, or rrule")
	}
	if set > 1 {
		return NewError(ErrCodeValidation, "schedule must define only one of interval, cron, or rrule")
	}

	switch {
	case s.Interval != 0:
		if s.Interval < 0 {
			return NewErrorf(ErrCodeValidation, "schedule interval must be positive, got %v", s.Interval)
		}
	case s.Cron != "":
		if _, err := cronParser.Parse(s.Cron); err != nil {
			return NewErrorf(ErrCodeValidation, "invalid cron expression %q", s.Cron).WithCause(err)
		}
	case s.RRule != "":
		if !strings.Contains(strings.ToUpper(s.RRule), "FREQ=") {
			return NewErrorf(ErrCodeValidation, "invalid rrule %q: missing FREQ", s.RRule)
		}
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return NewErrorf(ErrCodeValidation, "invalid timezone %q", s.Timezone).WithCause(err)
		}
	}
	return nil
}

// NextAfter computes the next fire time strictly after t for cron schedules.
// Interval and rrule schedules return the zero time; enumeration of those
// belongs to the scheduling service, not the admission layer.
func (s *ScheduleSpec) NextAfter(t time.Time) time.Time {
	if s.Cron == "" {
		return time.Time{}
	}
	sched, err := cronParser.Parse(s.Cron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t)
}

// ScheduleEntry pairs a recurrence rule with an activation flag. A deployment
// owns an ordered list of these; order affects enumeration, not semantics.
type ScheduleEntry struct {
	Active   bool         `json:"active"`
	Schedule ScheduleSpec `json:"schedule"`
}
