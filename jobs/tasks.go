package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/jetpos/jetpos-backoffice/internal/catalog"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBulkUpdate is the task type for bulk product mutations.
	TaskBulkUpdate = "catalog:bulk_update"
)

// BulkUpdatePayload carries one bulk product mutation through the queue.
type BulkUpdatePayload struct {
	JobID      uuid.UUID      `json:"job_id"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	TenantName string         `json:"tenant_name"`
	ProductIDs []uuid.UUID    `json:"product_ids"`
	Op         catalog.BulkOp `json:"op"`
}

// NewBulkUpdateTask constructs an Asynq task. Bulk runs are not retried:
// a second attempt would repeat already-committed batches.
func NewBulkUpdateTask(payload BulkUpdatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBulkUpdate, data, asynq.MaxRetry(0)), nil
}
