package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// StateLog provides append-only state history operations on top of a LibSQLStore.
type StateLog struct {
	store *LibSQLStore
}

// NewStateLog wraps a LibSQLStore to provide state history operations.
func NewStateLog(s *LibSQLStore) *StateLog {
	return &StateLog{store: s}
}

// Append records a state transition with a monotonically increasing
// per-run sequence. A write-intent statement is issued up front so the
// sequence read and the insert cannot interleave with another writer.
func (sl *StateLog) Append(ctx context.Context, t *StateTransition) error {
	db := sl.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode, BeginTx alone may start a deferred transaction.
	// Force lock acquisition with an immediate write.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM state_transitions WHERE flow_run_id = ?`, t.FlowRunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	t.Sequence = seq

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_transitions (flow_run_id, state_type, state_name, details, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.FlowRunID, string(t.Type), t.Name, nullRaw(t.Details), t.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// History returns transitions for a run with sequence > since, ordered by sequence ASC.
func (sl *StateLog) History(ctx context.Context, flowRunID string, since int64) ([]*StateTransition, error) {
	return sl.store.GetTransitions(ctx, flowRunID, since)
}

// Current replays the run's full history and returns the latest transition.
// Returns an error if sequence gaps are detected, and nil when the run has
// no recorded history.
func (sl *StateLog) Current(ctx context.Context, flowRunID string) (*StateTransition, error) {
	transitions, err := sl.store.GetTransitions(ctx, flowRunID, 0)
	if err != nil {
		return nil, fmt.Errorf("get transitions for replay: %w", err)
	}
	if len(transitions) == 0 {
		return nil, nil
	}

	for i, t := range transitions {
		expected := int64(i + 1)
		if t.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in run %s: expected %d, got %d", flowRunID, expected, t.Sequence)
		}
	}
	return transitions[len(transitions)-1], nil
}

// Terminal reports whether the run's latest recorded state is terminal.
func (sl *StateLog) Terminal(ctx context.Context, flowRunID string) (bool, error) {
	latest, err := sl.Current(ctx, flowRunID)
	if err != nil || latest == nil {
		return false, err
	}
	switch latest.Type {
	case schema.StateTypeCompleted, schema.StateTypeFailed,
		schema.StateTypeCancelled, schema.StateTypeCrashed:
		return true, nil
	}
	return false, nil
}
