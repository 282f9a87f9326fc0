package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. the state log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Flows ---

func (s *LibSQLStore) CreateFlow(ctx context.Context, f *Flow) error {
	tags, err := marshalSliceOrNil(f.Tags)
	if err != nil {
		return fmt.Errorf("marshal flow tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO flows (id, name, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, tags, timeOrNow(f.CreatedAt), timeOrNow(f.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict, "flow %q already exists", f.Name)
	}
	return err
}

func (s *LibSQLStore) GetFlow(ctx context.Context, id string) (*Flow, error) {
	return s.getFlow(ctx, "id", id)
}

func (s *LibSQLStore) GetFlowByName(ctx context.Context, name string) (*Flow, error) {
	return s.getFlow(ctx, "name", name)
}

func (s *LibSQLStore) getFlow(ctx context.Context, column, value string) (*Flow, error) {
	f := &Flow{}
	var tags sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tags, created_at, updated_at FROM flows WHERE `+column+` = ?`, value,
	).Scan(&f.ID, &f.Name, &tags, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("flow", value)
	}
	if err != nil {
		return nil, err
	}
	f.Tags = unmarshalSlice(tags)
	return f, nil
}

func (s *LibSQLStore) ListFlows(ctx context.Context, limit int) ([]*Flow, error) {
	query := `SELECT id, name, tags, created_at, updated_at FROM flows ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flows []*Flow
	for rows.Next() {
		f := &Flow{}
		var tags sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &tags, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Tags = unmarshalSlice(tags)
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// --- Deployments ---

func (s *LibSQLStore) CreateDeployment(ctx context.Context, d *Deployment) error {
	schedules, err := marshalOrNil(d.Schedules)
	if err != nil {
		return fmt.Errorf("marshal schedules: %w", err)
	}
	params, err := marshalOrNil(d.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	paramSchema, err := marshalOrNil(d.ParameterOpenAPISchema)
	if err != nil {
		return fmt.Errorf("marshal parameter schema: %w", err)
	}
	jobVars, err := marshalOrNil(d.JobVariables)
	if err != nil {
		return fmt.Errorf("marshal job variables: %w", err)
	}
	tags, err := marshalSliceOrNil(d.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployments (id, name, flow_id, paused, schedules, parameters, parameter_openapi_schema, enforce_parameter_schema, job_variables, work_queue_name, work_pool_name, tags, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.FlowID, d.Paused, schedules, params, paramSchema,
		d.EnforceParameterSchema, jobVars, nullStr(d.WorkQueueName), nullStr(d.WorkPoolName),
		tags, nullStr(d.Description), timeOrNow(d.CreatedAt), timeOrNow(d.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"deployment %q already exists for flow %s", d.Name, d.FlowID)
	}
	return err
}

func (s *LibSQLStore) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, flow_id, paused, schedules, parameters, parameter_openapi_schema, enforce_parameter_schema, job_variables, work_queue_name, work_pool_name, tags, description, created_at, updated_at
		 FROM deployments WHERE id = ?`, id,
	)
	d, err := scanDeployment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("deployment", id)
	}
	return d, err
}

func (s *LibSQLStore) UpdateDeployment(ctx context.Context, id string, fields DeploymentFields) error {
	var sets []string
	var args []any

	if fields.Paused != nil {
		sets = append(sets, "paused = ?")
		args = append(args, *fields.Paused)
	}
	if fields.Schedules != nil {
		v, err := marshalOrNil(*fields.Schedules)
		if err != nil {
			return fmt.Errorf("marshal schedules: %w", err)
		}
		sets = append(sets, "schedules = ?")
		args = append(args, v)
	}
	if fields.Parameters != nil {
		v, err := marshalOrNil(*fields.Parameters)
		if err != nil {
			return fmt.Errorf("marshal parameters: %w", err)
		}
		sets = append(sets, "parameters = ?")
		args = append(args, v)
	}
	if fields.JobVariables != nil {
		v, err := marshalOrNil(*fields.JobVariables)
		if err != nil {
			return fmt.Errorf("marshal job variables: %w", err)
		}
		sets = append(sets, "job_variables = ?")
		args = append(args, v)
	}
	if fields.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullStr(*fields.Description))
	}
	if fields.Tags != nil {
		v, err := marshalSliceOrNil(*fields.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE deployments SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "deployment", id)
}

func (s *LibSQLStore) ListDeployments(ctx context.Context, filter DeploymentFilter) ([]*Deployment, error) {
	var where []string
	var args []any

	if filter.FlowID != "" {
		where = append(where, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.WorkPoolName != "" {
		where = append(where, "work_pool_name = ?")
		args = append(args, filter.WorkPoolName)
	}

	query := `SELECT id, name, flow_id, paused, schedules, parameters, parameter_openapi_schema, enforce_parameter_schema, job_variables, work_queue_name, work_pool_name, tags, description, created_at, updated_at FROM deployments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []*Deployment
	for rows.Next() {
		d, err := scanDeployment(rows.Scan)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

func (s *LibSQLStore) DeleteDeployment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "deployment", id)
}

func scanDeployment(scan func(...any) error) (*Deployment, error) {
	d := &Deployment{}
	var schedules, params, paramSchema, jobVars, tags sql.NullString
	var queueName, poolName, desc sql.NullString
	if err := scan(&d.ID, &d.Name, &d.FlowID, &d.Paused, &schedules, &params, &paramSchema,
		&d.EnforceParameterSchema, &jobVars, &queueName, &poolName, &tags, &desc,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if schedules.Valid && schedules.String != "" {
		if err := json.Unmarshal([]byte(schedules.String), &d.Schedules); err != nil {
			return nil, fmt.Errorf("unmarshal schedules: %w", err)
		}
	}
	if params.Valid && params.String != "" {
		_ = json.Unmarshal([]byte(params.String), &d.Parameters)
	}
	if paramSchema.Valid && paramSchema.String != "" {
		_ = json.Unmarshal([]byte(paramSchema.String), &d.ParameterOpenAPISchema)
	}
	if jobVars.Valid && jobVars.String != "" {
		_ = json.Unmarshal([]byte(jobVars.String), &d.JobVariables)
	}
	d.Tags = unmarshalSlice(tags)
	d.WorkQueueName = queueName.String
	d.WorkPoolName = poolName.String
	d.Description = desc.String
	return d, nil
}

// --- Flow runs ---

func (s *LibSQLStore) CreateFlowRun(ctx context.Context, r *FlowRun) error {
	params, err := marshalOrNil(r.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	tags, err := marshalSliceOrNil(r.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO flow_runs (id, name, flow_id, deployment_id, state_type, state_name, parameters, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.FlowID, nullStr(r.DeploymentID),
		nullStr(string(r.StateType)), nullStr(r.StateName), params, tags,
		timeOrNow(r.CreatedAt), timeOrNow(r.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetFlowRun(ctx context.Context, id string) (*FlowRun, error) {
	r := &FlowRun{}
	var deploymentID, stateType, stateName, params, tags sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, flow_id, deployment_id, state_type, state_name, parameters, tags, created_at, updated_at
		 FROM flow_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.FlowID, &deploymentID, &stateType, &stateName, &params, &tags,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("flow_run", id)
	}
	if err != nil {
		return nil, err
	}
	r.DeploymentID = deploymentID.String
	r.StateType = schema.StateType(stateType.String)
	r.StateName = stateName.String
	if params.Valid && params.String != "" {
		_ = json.Unmarshal([]byte(params.String), &r.Parameters)
	}
	r.Tags = unmarshalSlice(tags)
	return r, nil
}

func (s *LibSQLStore) UpdateFlowRunState(ctx context.Context, id string, update RunStateUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flow_runs SET state_type = ?, state_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(update.Type), update.Name, id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "flow_run", id)
}

func (s *LibSQLStore) ListFlowRuns(ctx context.Context, filter FlowRunFilter) ([]*FlowRun, error) {
	var where []string
	var args []any

	if filter.FlowID != "" {
		where = append(where, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.DeploymentID != "" {
		where = append(where, "deployment_id = ?")
		args = append(args, filter.DeploymentID)
	}
	if filter.StateType != nil {
		where = append(where, "state_type = ?")
		args = append(args, string(*filter.StateType))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, name, flow_id, deployment_id, state_type, state_name, parameters, tags, created_at, updated_at FROM flow_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*FlowRun
	for rows.Next() {
		r := &FlowRun{}
		var deploymentID, stateType, stateName, params, tags sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.FlowID, &deploymentID, &stateType, &stateName,
			&params, &tags, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.DeploymentID = deploymentID.String
		r.StateType = schema.StateType(stateType.String)
		r.StateName = stateName.String
		if params.Valid && params.String != "" {
			_ = json.Unmarshal([]byte(params.String), &r.Parameters)
		}
		r.Tags = unmarshalSlice(tags)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Task runs ---

func (s *LibSQLStore) CreateTaskRun(ctx context.Context, r *TaskRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_runs (id, name, flow_run_id, task_key, dynamic_key, cache_key, state_type, state_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.FlowRunID, r.TaskKey, r.DynamicKey, nullStr(r.CacheKey),
		nullStr(string(r.StateType)), nullStr(r.StateName),
		timeOrNow(r.CreatedAt), timeOrNow(r.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"task run %s/%s already exists in flow run %s", r.TaskKey, r.DynamicKey, r.FlowRunID)
	}
	return err
}

func (s *LibSQLStore) GetTaskRun(ctx context.Context, id string) (*TaskRun, error) {
	r := &TaskRun{}
	var cacheKey, stateType, stateName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, flow_run_id, task_key, dynamic_key, cache_key, state_type, state_name, created_at, updated_at
		 FROM task_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.FlowRunID, &r.TaskKey, &r.DynamicKey, &cacheKey,
		&stateType, &stateName, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("task_run", id)
	}
	if err != nil {
		return nil, err
	}
	r.CacheKey = cacheKey.String
	r.StateType = schema.StateType(stateType.String)
	r.StateName = stateName.String
	return r, nil
}

func (s *LibSQLStore) UpdateTaskRunState(ctx context.Context, id string, update RunStateUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_runs SET state_type = ?, state_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(update.Type), update.Name, id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "task_run", id)
}

func (s *LibSQLStore) ListTaskRuns(ctx context.Context, flowRunID string) ([]*TaskRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, flow_run_id, task_key, dynamic_key, cache_key, state_type, state_name, created_at, updated_at
		 FROM task_runs WHERE flow_run_id = ? ORDER BY created_at`, flowRunID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*TaskRun
	for rows.Next() {
		r := &TaskRun{}
		var cacheKey, stateType, stateName sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.FlowRunID, &r.TaskKey, &r.DynamicKey, &cacheKey,
			&stateType, &stateName, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.CacheKey = cacheKey.String
		r.StateType = schema.StateType(stateType.String)
		r.StateName = stateName.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Work pools and queues ---

func (s *LibSQLStore) CreateWorkPool(ctx context.Context, p *WorkPool) error {
	tmpl, err := marshalOrNil(p.BaseJobTemplate)
	if err != nil {
		return fmt.Errorf("marshal base job template: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO work_pools (id, name, type, description, base_job_template, is_paused, concurrency_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Type, nullStr(p.Description), tmpl, p.IsPaused,
		nullInt(p.ConcurrencyLimit), timeOrNow(p.CreatedAt), timeOrNow(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict, "work pool %q already exists", p.Name)
	}
	return err
}

func (s *LibSQLStore) GetWorkPoolByName(ctx context.Context, name string) (*WorkPool, error) {
	p := &WorkPool{}
	var desc, tmpl sql.NullString
	var limit sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, description, base_job_template, is_paused, concurrency_limit, created_at, updated_at
		 FROM work_pools WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.Type, &desc, &tmpl, &p.IsPaused, &limit, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("work_pool", name)
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	if tmpl.Valid && tmpl.String != "" {
		if err := json.Unmarshal([]byte(tmpl.String), &p.BaseJobTemplate); err != nil {
			return nil, fmt.Errorf("unmarshal base job template: %w", err)
		}
	}
	if limit.Valid {
		n := int(limit.Int64)
		p.ConcurrencyLimit = &n
	}
	return p, nil
}

func (s *LibSQLStore) UpdateWorkPool(ctx context.Context, name string, fields WorkPoolFields) error {
	var sets []string
	var args []any

	if fields.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullStr(*fields.Description))
	}
	if fields.BaseJobTemplate != nil {
		v, err := marshalOrNil(*fields.BaseJobTemplate)
		if err != nil {
			return fmt.Errorf("marshal base job template: %w", err)
		}
		sets = append(sets, "base_job_template = ?")
		args = append(args, v)
	}
	if fields.IsPaused != nil {
		sets = append(sets, "is_paused = ?")
		args = append(args, *fields.IsPaused)
	}
	if fields.ConcurrencyLimit != nil {
		sets = append(sets, "concurrency_limit = ?")
		args = append(args, *fields.ConcurrencyLimit)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, name)

	query := fmt.Sprintf("UPDATE work_pools SET %s WHERE name = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "work_pool", name)
}

func (s *LibSQLStore) ListWorkPools(ctx context.Context, limit int) ([]*WorkPool, error) {
	query := `SELECT id, name, type, description, base_job_template, is_paused, concurrency_limit, created_at, updated_at FROM work_pools ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []*WorkPool
	for rows.Next() {
		p := &WorkPool{}
		var desc, tmpl sql.NullString
		var climit sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &desc, &tmpl, &p.IsPaused, &climit,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		if tmpl.Valid && tmpl.String != "" {
			if err := json.Unmarshal([]byte(tmpl.String), &p.BaseJobTemplate); err != nil {
				return nil, fmt.Errorf("unmarshal base job template: %w", err)
			}
		}
		if climit.Valid {
			n := int(climit.Int64)
			p.ConcurrencyLimit = &n
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (s *LibSQLStore) CreateWorkQueue(ctx context.Context, q *WorkQueue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_queues (id, name, work_pool_id, description, priority, is_paused, concurrency_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Name, nullStr(q.WorkPoolID), nullStr(q.Description), q.Priority,
		q.IsPaused, nullInt(q.ConcurrencyLimit), timeOrNow(q.CreatedAt), timeOrNow(q.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"work queue %q already exists in pool %s", q.Name, q.WorkPoolID)
	}
	return err
}

func (s *LibSQLStore) ListWorkQueues(ctx context.Context, workPoolID string) ([]*WorkQueue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, work_pool_id, description, priority, is_paused, concurrency_limit, created_at, updated_at
		 FROM work_queues WHERE work_pool_id = ? ORDER BY priority, name`, workPoolID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queues []*WorkQueue
	for rows.Next() {
		q := &WorkQueue{}
		var poolID, desc sql.NullString
		var climit sql.NullInt64
		if err := rows.Scan(&q.ID, &q.Name, &poolID, &desc, &q.Priority, &q.IsPaused, &climit,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		q.WorkPoolID = poolID.String
		q.Description = desc.String
		if climit.Valid {
			n := int(climit.Int64)
			q.ConcurrencyLimit = &n
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

// --- Variables ---

func (s *LibSQLStore) CreateVariable(ctx context.Context, v *Variable) error {
	tags, err := marshalSliceOrNil(v.Tags)
	if err != nil {
		return fmt.Errorf("marshal variable tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO variables (id, name, value, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Value, tags, timeOrNow(v.CreatedAt), timeOrNow(v.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict, "variable %q already exists", v.Name)
	}
	return err
}

func (s *LibSQLStore) GetVariableByName(ctx context.Context, name string) (*Variable, error) {
	v := &Variable{}
	var tags sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, value, tags, created_at, updated_at FROM variables WHERE name = ?`, name,
	).Scan(&v.ID, &v.Name, &v.Value, &tags, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("variable", name)
	}
	if err != nil {
		return nil, err
	}
	v.Tags = unmarshalSlice(tags)
	return v, nil
}

func (s *LibSQLStore) UpdateVariable(ctx context.Context, name string, value string, tags []string) error {
	tagsJSON, err := marshalSliceOrNil(tags)
	if err != nil {
		return fmt.Errorf("marshal variable tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE variables SET value = ?, tags = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?`,
		value, tagsJSON, name,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "variable", name)
}

func (s *LibSQLStore) ListVariables(ctx context.Context, limit int) ([]*Variable, error) {
	query := `SELECT id, name, value, tags, created_at, updated_at FROM variables ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vars []*Variable
	for rows.Next() {
		v := &Variable{}
		var tags sql.NullString
		if err := rows.Scan(&v.ID, &v.Name, &v.Value, &tags, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.Tags = unmarshalSlice(tags)
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

func (s *LibSQLStore) DeleteVariable(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM variables WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "variable", name)
}

// --- Block documents ---

func (s *LibSQLStore) CreateBlockDocument(ctx context.Context, b *BlockDocument) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO block_documents (id, name, block_type, data, is_anonymous, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, nullStr(b.Name), nullStr(b.BlockType), nullRaw(b.Data), b.IsAnonymous,
		timeOrNow(b.CreatedAt), timeOrNow(b.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return schema.NewErrorf(schema.ErrCodeConflict, "block document %q already exists", b.Name)
	}
	return err
}

func (s *LibSQLStore) GetBlockDocument(ctx context.Context, id string) (*BlockDocument, error) {
	b := &BlockDocument{}
	var name, blockType, data sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, block_type, data, is_anonymous, created_at, updated_at
		 FROM block_documents WHERE id = ?`, id,
	).Scan(&b.ID, &name, &blockType, &data, &b.IsAnonymous, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("block_document", id)
	}
	if err != nil {
		return nil, err
	}
	b.Name = name.String
	b.BlockType = blockType.String
	b.Data = rawOrNil(data)
	return b, nil
}

func (s *LibSQLStore) GetBlockDocumentByName(ctx context.Context, docName string) (*BlockDocument, error) {
	b := &BlockDocument{}
	var name, blockType, data sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, block_type, data, is_anonymous, created_at, updated_at
		 FROM block_documents WHERE name = ?`, docName,
	).Scan(&b.ID, &name, &blockType, &data, &b.IsAnonymous, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("block_document", docName)
	}
	if err != nil {
		return nil, err
	}
	b.Name = name.String
	b.BlockType = blockType.String
	b.Data = rawOrNil(data)
	return b, nil
}

// --- Artifacts ---

func (s *LibSQLStore) CreateArtifact(ctx context.Context, a *Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, key, type, data, flow_run_id, task_run_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, nullStr(a.Key), nullStr(a.Type), nullRaw(a.Data),
		nullStr(a.FlowRunID), nullStr(a.TaskRunID), timeOrNow(a.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error) {
	var where []string
	var args []any

	if filter.Key != "" {
		where = append(where, "key = ?")
		args = append(args, filter.Key)
	}
	if filter.FlowRunID != "" {
		where = append(where, "flow_run_id = ?")
		args = append(args, filter.FlowRunID)
	}

	query := `SELECT id, key, type, data, flow_run_id, task_run_id, created_at FROM artifacts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a := &Artifact{}
		var key, typ, data, flowRunID, taskRunID sql.NullString
		if err := rows.Scan(&a.ID, &key, &typ, &data, &flowRunID, &taskRunID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Key = key.String
		a.Type = typ.String
		a.Data = rawOrNil(data)
		a.FlowRunID = flowRunID.String
		a.TaskRunID = taskRunID.String
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// --- State log ---

func (s *LibSQLStore) AppendTransition(ctx context.Context, t *StateTransition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Next sequence number scoped to this run.
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM state_transitions WHERE flow_run_id = ?`, t.FlowRunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	t.Sequence = seq

	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_transitions (flow_run_id, state_type, state_name, details, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.FlowRunID, string(t.Type), t.Name, nullRaw(t.Details), timeOrNow(t.Timestamp), seq,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetTransitions(ctx context.Context, flowRunID string, since int64) ([]*StateTransition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, flow_run_id, state_type, state_name, details, timestamp, sequence
		 FROM state_transitions WHERE flow_run_id = ? AND sequence > ? ORDER BY sequence ASC`,
		flowRunID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transitions []*StateTransition
	for rows.Next() {
		t := &StateTransition{}
		var stateType string
		var details sql.NullString
		if err := rows.Scan(&t.ID, &t.FlowRunID, &stateType, &t.Name, &details, &t.Timestamp, &t.Sequence); err != nil {
			return nil, err
		}
		t.Type = schema.StateType(stateType)
		t.Details = rawOrNil(details)
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.APIError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func marshalOrNil(v any) (any, error) {
	switch x := v.(type) {
	case []schema.ScheduleEntry:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalSliceOrNil(s []string) (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalSlice(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(ns.String), &out)
	return out
}
