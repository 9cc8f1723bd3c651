package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
)

// JobRunStatus represents the state of a maintenance job run.
type JobRunStatus string

const (
	JobRunStatusRunning   JobRunStatus = "running"
	JobRunStatusSucceeded JobRunStatus = "succeeded"
	JobRunStatusFailed    JobRunStatus = "failed"
)

// JobRun is one recorded run of a maintenance job (recalc, reseed). The
// run key is derived from the job's target and parameters, so an identical
// rerun is detected and its stored summary replayed instead of repeating
// the work.
type JobRun struct {
	Key        string       `db:"run_key"`
	Operation  string       `db:"operation"`
	HotelID    *id.ID       `db:"hotel_id"`
	ParamsHash string       `db:"params_hash"`
	Status     JobRunStatus `db:"status"`
	Summary    []byte       `db:"summary"`
	LastError  *string      `db:"last_error"`
	StartedAt  time.Time    `db:"started_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
	ExpiresAt  time.Time    `db:"expires_at"`
}

// JobRunStore manages the sys_recalc_run ledger.
type JobRunStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewJobRunStore creates a new job run store.
func NewJobRunStore(txManager *TxManager, ttl time.Duration) *JobRunStore {
	return &JobRunStore{
		txManager: txManager,
		ttl:       ttl,
	}
}

// staleRunThreshold marks a running entry as reclaimable: a run that has
// not touched its row for this long is assumed to have crashed.
const staleRunThreshold = 10 * time.Minute

// Begin attempts to claim a run key.
// Returns:
//   - (nil, nil) if the key was claimed and the job should run
//   - (previous summary, nil) if an identical run already finished
//   - (nil, error) if an identical run is currently in progress
func (s *JobRunStore) Begin(ctx context.Context, key, operation string, hotelID *id.ID, paramsHash string) ([]byte, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	var run JobRun
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_recalc_run (run_key, operation, hotel_id, params_hash, status, started_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (run_key) DO UPDATE SET
			expires_at = GREATEST(sys_recalc_run.expires_at, $7)
		RETURNING run_key, operation, hotel_id, params_hash, status, summary, last_error, started_at, updated_at, expires_at
	`, key, operation, hotelID, paramsHash, JobRunStatusRunning, now, expiresAt).Scan(
		&run.Key, &run.Operation, &run.HotelID, &run.ParamsHash, &run.Status,
		&run.Summary, &run.LastError, &run.StartedAt, &run.UpdatedAt, &run.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("claim run key: %w", err)
	}

	// The row was just created by us
	if run.StartedAt.Equal(now) || run.StartedAt.After(now.Add(-time.Second)) {
		return nil, nil
	}

	// Same key reused with different parameters means the key derivation
	// upstream is broken; refuse rather than replay the wrong result.
	if run.Operation != operation || run.ParamsHash != paramsHash {
		return nil, apperror.NewConflict("run key reused for a different job").
			WithDetail("run_key", key).
			WithDetail("stored_operation", run.Operation).
			WithDetail("requested_operation", operation)
	}

	switch run.Status {
	case JobRunStatusSucceeded:
		return run.Summary, nil

	case JobRunStatusRunning:
		if time.Since(run.UpdatedAt) > staleRunThreshold {
			// Reclaim a crashed run
			_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
				UPDATE sys_recalc_run
				SET started_at = $1, updated_at = $1
				WHERE run_key = $2 AND status = $3
			`, now, key, JobRunStatusRunning)
			if err != nil {
				return nil, fmt.Errorf("reclaim stale run: %w", err)
			}
			return nil, nil
		}
		return nil, apperror.NewConflict("an identical run is already in progress").
			WithDetail("run_key", key)

	case JobRunStatusFailed:
		// Failed runs may be retried: reset to running
		_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_recalc_run
			SET status = $1, last_error = NULL, started_at = $2, updated_at = $2
			WHERE run_key = $3
		`, JobRunStatusRunning, now, key)
		if err != nil {
			return nil, fmt.Errorf("reset failed run: %w", err)
		}
		return nil, nil
	}

	return nil, nil
}

// Complete marks a run as succeeded and stores its summary.
func (s *JobRunStore) Complete(ctx context.Context, key string, summary any) error {
	var summaryBytes []byte
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		summaryBytes = b
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_recalc_run
		SET status = $1,
		    summary = $2,
		    updated_at = $3
		WHERE run_key = $4
	`, JobRunStatusSucceeded, summaryBytes, time.Now().UTC(), key)

	return err
}

// Fail marks a run as failed with its error message.
func (s *JobRunStore) Fail(ctx context.Context, key string, runErr error) error {
	var msg *string
	if runErr != nil {
		m := runErr.Error()
		msg = &m
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_recalc_run
		SET status = $1,
		    last_error = $2,
		    updated_at = $3
		WHERE run_key = $4
	`, JobRunStatusFailed, msg, time.Now().UTC(), key)

	return err
}

// CleanupExpired removes expired run records.
func (s *JobRunStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_recalc_run WHERE expires_at < $1
	`, time.Now().UTC())

	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
