package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"condosync/models"
)

// ErrRunActive is returned by Begin when a run for the same scope and
// property type is already in flight.
var ErrRunActive = errors.New("sync run already in progress for this scope")

// RunRecorder opens and seals the audit row for each pipeline execution.
// Overlapping runs for the same scope are rejected unless the open row is
// older than staleAfter, in which case it is presumed crashed, sealed as
// failed, and the new run proceeds.
type RunRecorder struct {
	store      Store
	staleAfter time.Duration
}

func NewRunRecorder(store Store, staleAfter time.Duration) *RunRecorder {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}
	return &RunRecorder{store: store, staleAfter: staleAfter}
}

// Begin creates the running audit row for a new execution. Returns
// ErrRunActive when a live run holds the scope.
func (r *RunRecorder) Begin(ctx context.Context, scope, propertyType string, mode models.SyncMode, triggeredBy string) (*models.SyncRun, error) {
	open, err := r.store.GetRunningRun(ctx, scope, propertyType)
	if err != nil {
		return nil, fmt.Errorf("check running run: %w", err)
	}
	if open != nil {
		if time.Since(open.StartedAt) < r.staleAfter {
			return nil, ErrRunActive
		}
		// A run this old did not survive its process; seal it so the scope
		// is not locked forever.
		log.Printf("Warning: sealing stale run %d (scope=%s, started %s)", open.ID, open.Scope, open.StartedAt.Format(time.RFC3339))
		now := time.Now()
		open.Status = models.RunStatusFailed
		open.FinishedAt = &now
		open.Errors = models.MarshalRunErrors([]models.RunError{{
			Scope:   open.Scope,
			Stage:   "run",
			Message: "run abandoned; sealed by a later run",
		}})
		if err := r.store.SealSyncRun(ctx, open); err != nil {
			return nil, fmt.Errorf("seal stale run %d: %w", open.ID, err)
		}
	}

	run := &models.SyncRun{
		Scope:        scope,
		PropertyType: propertyType,
		Mode:         mode,
		TriggeredBy:  triggeredBy,
		Status:       models.RunStatusRunning,
		StartedAt:    time.Now(),
	}
	if err := r.store.CreateSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create sync run: %w", err)
	}
	return run, nil
}

// Seal writes the terminal status and counts onto the audit row. Sealing is
// idempotent per run object: a second call is a logged no-op.
func (r *RunRecorder) Seal(ctx context.Context, run *models.SyncRun, res *ReconcileResult, runErr error) error {
	if run.FinishedAt != nil {
		log.Printf("Warning: run %d already sealed as %s", run.ID, run.Status)
		return nil
	}

	errs := []models.RunError{}
	if res != nil {
		run.Found = res.Found
		run.Added = res.Added
		run.Updated = res.Updated
		run.Removed = res.Removed
		run.Unchanged = res.Unchanged
		run.Skipped = res.Skipped
		errs = append(errs, res.Errors...)
	}
	if runErr != nil {
		errs = append(errs, models.RunError{
			Scope:   run.Scope,
			Stage:   "run",
			Message: runErr.Error(),
		})
	}

	switch {
	case runErr != nil:
		run.Status = models.RunStatusFailed
	case len(errs) > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusCompleted
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Errors = models.MarshalRunErrors(errs)

	if err := r.store.SealSyncRun(ctx, run); err != nil {
		return fmt.Errorf("seal sync run %d: %w", run.ID, err)
	}
	return nil
}

// IncrementalSince returns the modification-timestamp lower bound for an
// incremental run: the start of the last successful run minus an overlap
// window, so edits landing while that run was in flight are not missed.
// Nil means no successful run exists and the caller should run full.
func (r *RunRecorder) IncrementalSince(ctx context.Context, scope, propertyType string, overlap time.Duration) (*time.Time, error) {
	last, err := r.store.LastSuccessfulRunStart(ctx, scope, propertyType)
	if err != nil {
		return nil, fmt.Errorf("last successful run: %w", err)
	}
	if last == nil {
		return nil, nil
	}
	since := last.Add(-overlap)
	return &since, nil
}
