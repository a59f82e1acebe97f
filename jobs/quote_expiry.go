package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/opticore-pos/opticore/internal/jobs"
	"github.com/opticore-pos/opticore/internal/quotes"
	"github.com/opticore-pos/opticore/internal/reports"
)

const (
	// TaskQuoteExpiry sweeps stale drafts into EXPIRED.
	TaskQuoteExpiry = "quotes:expire_stale"

	// expiryBatchSize caps how many drafts one sweep run will touch.
	expiryBatchSize = 200
)

// QuoteExpiryPayload carries scheduling metadata for the sweep.
type QuoteExpiryPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Limit        int       `json:"limit,omitempty"`
}

// NewQuoteExpiryTask constructs the scheduled sweep task.
func NewQuoteExpiryTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(QuoteExpiryPayload{ScheduledFor: at, Limit: expiryBatchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpiry, body, asynq.Queue(QueueDefault)), nil
}

// QuoteExpiryHandler runs the stale-draft sweep against the quote service.
type QuoteExpiryHandler struct {
	service *quotes.Service
	cache   *reports.Cache
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewQuoteExpiryHandler constructs the handler.
func NewQuoteExpiryHandler(service *quotes.Service, cache *reports.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteExpiryHandler {
	return &QuoteExpiryHandler{service: service, cache: cache, logger: logger, metrics: metrics}
}

// Handle processes TaskQuoteExpiry tasks.
func (h *QuoteExpiryHandler) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := h.metrics.Track("quote_expiry")
	defer func() { err = tracker.End(err) }()

	var payload QuoteExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = expiryBatchSize
	}

	expired, err := h.service.ExpireStaleDrafts(ctx, limit)
	if err != nil {
		h.logger.Error("expire stale drafts", slog.Any("error", err))
		return err
	}
	if expired > 0 {
		h.logger.Info("expired stale drafts", slog.Int("count", expired))
		h.metrics.AddExpired(expired)
		if err := h.cache.Bump(ctx); err != nil {
			h.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}
	return nil
}
