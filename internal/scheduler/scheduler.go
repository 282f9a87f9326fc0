// Package scheduler creates scheduled flow runs for deployments with active
// schedules. Runs are provisioned ahead of time up to a bounded horizon; the
// admission pipeline names them and stamps their scheduled state.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsundqvist/prefect/internal/admission"
	"github.com/rsundqvist/prefect/internal/store"
	"github.com/rsundqvist/prefect/pkg/schema"
)

const (
	tickInterval       = 60 * time.Second
	defaultHorizon     = 24 * time.Hour
	maxRunsPerSchedule = 3
)

// Scheduler polls the store for deployments with active schedules and
// provisions their upcoming runs.
type Scheduler struct {
	store    store.Store
	admitter *admission.Admitter
	logger   *slog.Logger
	horizon  time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // deployment IDs currently being provisioned
}

// NewScheduler creates a Scheduler.
func NewScheduler(s store.Store, admitter *admission.Admitter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    s,
		admitter: admitter,
		logger:   logger,
		horizon:  defaultHorizon,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background provisioning loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick provisions runs for every schedulable deployment.
func (s *Scheduler) Tick(ctx context.Context) {
	deployments, err := s.store.ListDeployments(ctx, store.DeploymentFilter{})
	if err != nil {
		s.logger.Error("failed to list deployments", slog.String("error", err.Error()))
		return
	}

	for _, d := range deployments {
		if d.Paused || !hasActiveSchedule(d.Schedules) {
			continue
		}
		if !s.tryAcquire(d.ID) {
			continue // already being provisioned
		}
		if err := s.provisionDeployment(ctx, d); err != nil {
			s.logger.Error("failed to provision scheduled runs",
				slog.String("deployment_id", d.ID),
				slog.String("error", err.Error()),
			)
		}
		s.release(d.ID)
	}
}

// provisionDeployment tops the deployment's scheduled-run backlog up to
// maxRunsPerSchedule within the horizon.
func (s *Scheduler) provisionDeployment(ctx context.Context, d *store.Deployment) error {
	scheduled := schema.StateTypeScheduled
	existing, err := s.store.ListFlowRuns(ctx, store.FlowRunFilter{
		DeploymentID: d.ID,
		StateType:    &scheduled,
	})
	if err != nil {
		return fmt.Errorf("list scheduled runs: %w", err)
	}

	want := maxRunsPerSchedule - len(existing)
	if want <= 0 {
		return nil
	}

	now := s.now().UTC()
	times := NextRuns(d.Schedules, now, now.Add(s.horizon), want)
	for _, at := range times {
		if err := s.createScheduledRun(ctx, d, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) createScheduledRun(ctx context.Context, d *store.Deployment, at time.Time) error {
	fireAt := at
	payload := &schema.DeploymentFlowRunCreate{
		State: &schema.StateCreate{
			Type:         schema.StateTypeScheduled,
			StateDetails: schema.StateDetails{ScheduledTime: &fireAt},
		},
	}
	if err := s.admitter.AdmitDeploymentFlowRunCreate(ctx, payload,
		d.ParameterOpenAPISchema, d.EnforceParameterSchema); err != nil {
		return err
	}

	run := &store.FlowRun{
		ID:           uuid.New().String(),
		Name:         payload.Name,
		FlowID:       d.FlowID,
		DeploymentID: d.ID,
		StateType:    payload.State.Type,
		StateName:    payload.State.Name,
		Parameters:   d.Parameters,
	}
	if err := s.store.CreateFlowRun(ctx, run); err != nil {
		return fmt.Errorf("create scheduled run: %w", err)
	}
	if err := s.store.AppendTransition(ctx, &store.StateTransition{
		FlowRunID: run.ID,
		Type:      payload.State.Type,
		Name:      payload.State.Name,
		Timestamp: s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("record scheduled transition: %w", err)
	}

	s.logger.Info("scheduled run provisioned",
		slog.String("deployment_id", d.ID),
		slog.String("run_id", run.ID),
		slog.Time("scheduled_time", at),
	)
	return nil
}

func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

func hasActiveSchedule(entries []schema.ScheduleEntry) bool {
	for i := range entries {
		if entries[i].Active {
			return true
		}
	}
	return false
}

// NextRuns enumerates up to n fire times across all active entries, strictly
// after from and no later than until, merged and sorted ascending.
func NextRuns(entries []schema.ScheduleEntry, from, until time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	var times []time.Time
	for i := range entries {
		if !entries[i].Active {
			continue
		}
		times = append(times, enumerate(&entries[i].Schedule, from, until, n)...)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	if len(times) > n {
		times = times[:n]
	}
	return times
}

// enumerate lists up to n fire times for a single spec. RRule schedules are
// not enumerated here; they are accepted by admission and expanded elsewhere.
func enumerate(spec *schema.ScheduleSpec, from, until time.Time, n int) []time.Time {
	var times []time.Time
	switch {
	case spec.Cron != "":
		t := from
		for len(times) < n {
			t = spec.NextAfter(t)
			if t.IsZero() || t.After(until) {
				break
			}
			times = append(times, t)
		}
	case spec.Interval > 0:
		step := time.Duration(spec.Interval * float64(time.Second))
		t := nextIntervalAfter(spec, from, step)
		for len(times) < n && !t.After(until) {
			times = append(times, t)
			t = t.Add(step)
		}
	}
	return times
}

// nextIntervalAfter aligns interval schedules to their anchor date. Without
// an anchor the first fire is one full interval after from.
func nextIntervalAfter(spec *schema.ScheduleSpec, from time.Time, step time.Duration) time.Time {
	if spec.AnchorDate == nil {
		return from.Add(step)
	}
	anchor := *spec.AnchorDate
	if anchor.After(from) {
		return anchor
	}
	elapsed := from.Sub(anchor)
	periods := elapsed / step
	next := anchor.Add((periods + 1) * step)
	return next
}
