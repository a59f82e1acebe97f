package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/opticore-pos/opticore/internal/jobs"
)

const (
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"

	// idempotencyRetention is how long a processed key keeps blocking replays.
	idempotencyRetention = 24 * time.Hour
)

// IdempotencyCleanupPayload carries the retention window for the purge.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the scheduled purge task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: idempotencyRetention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// KeyPurger removes idempotency keys older than the retention window.
// *shared.IdempotencyStore satisfies it.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupHandler runs the key purge against the store.
type IdempotencyCleanupHandler struct {
	purger  KeyPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupHandler constructs the handler.
func NewIdempotencyCleanupHandler(purger KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupHandler {
	return &IdempotencyCleanupHandler{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (h *IdempotencyCleanupHandler) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := h.metrics.Track("idempotency_cleanup")
	defer func() { err = tracker.End(err) }()

	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = idempotencyRetention
	}

	if err := h.purger.Cleanup(ctx, retention); err != nil {
		h.logger.Error("purge idempotency keys", slog.Any("error", err))
		return err
	}
	return nil
}
