package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/jetpos/jetpos-backoffice/internal/catalog"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
)

const (
	progressTTL      = time.Hour
	cancelPollPeriod = 500 * time.Millisecond
)

// BulkRunner enqueues and executes bulk product mutations. Progress
// snapshots and the cancel flag live in Redis so the API process and the
// worker process see the same state.
type BulkRunner struct {
	client  *Client
	cache   *redis.Client
	service *catalog.Service
	logger  *slog.Logger
}

// NewBulkRunner constructs a BulkRunner. The catalog service may be nil
// on the API side, where the runner only enqueues and reads progress.
func NewBulkRunner(client *Client, cache *redis.Client, service *catalog.Service, logger *slog.Logger) *BulkRunner {
	return &BulkRunner{client: client, cache: cache, service: service, logger: logger}
}

// EnqueueBulk registers a job, writes its initial snapshot and hands it
// to the queue.
func (r *BulkRunner) EnqueueBulk(ctx context.Context, tenant shared.Tenant, ids []uuid.UUID, op catalog.BulkOp) (string, error) {
	jobID := uuid.New()
	payload := BulkUpdatePayload{
		JobID:      jobID,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		ProductIDs: ids,
		Op:         op,
	}
	task, err := NewBulkUpdateTask(payload)
	if err != nil {
		return "", err
	}
	if err := r.writeProgress(ctx, catalog.BulkProgress{
		JobID: jobID.String(),
		Total: len(ids),
		State: catalog.BulkStateRunning,
	}); err != nil {
		return "", err
	}
	if _, err := r.client.Enqueue(ctx, task); err != nil {
		return "", err
	}
	return jobID.String(), nil
}

// Progress reads the latest snapshot of a job.
func (r *BulkRunner) Progress(ctx context.Context, jobID string) (catalog.BulkProgress, error) {
	raw, err := r.cache.Get(ctx, progressKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return catalog.BulkProgress{}, catalog.ErrJobNotFound
	}
	if err != nil {
		return catalog.BulkProgress{}, err
	}
	var progress catalog.BulkProgress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return catalog.BulkProgress{}, err
	}
	return progress, nil
}

// Cancel raises the job's cancel flag. The worker notices it at the next
// unit boundary; the unit in flight completes.
func (r *BulkRunner) Cancel(ctx context.Context, jobID string) error {
	if _, err := r.Progress(ctx, jobID); err != nil {
		return err
	}
	return r.cache.Set(ctx, cancelKey(jobID), "1", progressTTL).Err()
}

// Handle processes one TaskBulkUpdate task on the worker.
func (r *BulkRunner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BulkUpdatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bulk update payload: %w: %w", err, asynq.SkipRetry)
	}
	jobID := payload.JobID.String()
	tenant := shared.Tenant{ID: payload.TenantID, Name: payload.TenantName}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.watchCancel(runCtx, jobID, cancel)

	total := len(payload.ProductIDs)
	var lastDone int
	err := r.service.ApplyBulk(runCtx, tenant, payload.ProductIDs, payload.Op, func(done, t int) {
		lastDone = done
		r.snapshot(jobID, done, total, catalog.BulkStateRunning, "")
	})

	switch {
	case err == nil:
		r.snapshot(jobID, total, total, catalog.BulkStateDone, "")
	case errors.Is(err, context.Canceled):
		r.snapshot(jobID, lastDone, total, catalog.BulkStateCancelled, "")
		r.logger.Info("bulk job cancelled", slog.String("job_id", jobID), slog.Int("done", lastDone))
		return nil
	default:
		var bErr *catalog.BulkOperationError
		if errors.As(err, &bErr) {
			lastDone = bErr.Done
		}
		r.snapshot(jobID, lastDone, total, catalog.BulkStateFailed, err.Error())
		r.logger.Error("bulk job failed", slog.String("job_id", jobID), slog.Any("error", err))
		return fmt.Errorf("bulk update: %w: %w", err, asynq.SkipRetry)
	}
	return nil
}

// watchCancel polls the cancel flag and maps it onto context cancellation.
func (r *BulkRunner) watchCancel(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(cancelPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.cache.Exists(ctx, cancelKey(jobID)).Result()
			if err == nil && n > 0 {
				cancel()
				return
			}
		}
	}
}

// snapshot writes a progress snapshot with a fresh context so it still
// lands after the run context is cancelled.
func (r *BulkRunner) snapshot(jobID string, done, total int, state, errMsg string) {
	ctx, cancelWrite := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelWrite()
	if err := r.writeProgress(ctx, catalog.BulkProgress{
		JobID: jobID,
		Done:  done,
		Total: total,
		State: state,
		Error: errMsg,
	}); err != nil {
		r.logger.Warn("bulk progress write failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (r *BulkRunner) writeProgress(ctx context.Context, progress catalog.BulkProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, progressKey(progress.JobID), raw, progressTTL).Err()
}

func progressKey(jobID string) string { return "bulk:progress:" + jobID }
func cancelKey(jobID string) string   { return "bulk:cancel:" + jobID }
