package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskTypeQuotePresented fires when a quote reaches PRESENTED, so the patient
// can receive their copy.
const TaskTypeQuotePresented = "quotes:presented"

// QuotePresentedPayload identifies the quote and patient involved.
type QuotePresentedPayload struct {
	QuoteID    int64 `json:"quote_id"`
	CustomerID int64 `json:"customer_id"`
}

// Notifier enqueues quote lifecycle tasks. It satisfies the quote service's
// notifier interface.
type Notifier struct {
	client *Client
}

// NewNotifier constructs a Notifier.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// QuotePresented enqueues the presented notification.
func (n *Notifier) QuotePresented(ctx context.Context, quoteID, customerID int64) error {
	if n == nil || n.client == nil {
		return nil
	}
	body, err := json.Marshal(QuotePresentedPayload{QuoteID: quoteID, CustomerID: customerID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeQuotePresented, body, asynq.Queue(QueueDefault))
	_, err = n.client.client.EnqueueContext(ctx, task)
	return err
}

// QuotePresentedHandler emails the patient their copy of the quote.
type QuotePresentedHandler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewQuotePresentedHandler constructs the handler.
func NewQuotePresentedHandler(pool *pgxpool.Pool, logger *slog.Logger) *QuotePresentedHandler {
	return &QuotePresentedHandler{pool: pool, logger: logger}
}

// Handle processes TaskTypeQuotePresented tasks.
func (h *QuotePresentedHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload QuotePresentedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var email, name, number string
	err := h.pool.QueryRow(ctx, `
		SELECT COALESCE(c.email, ''), c.full_name, q.quote_number
		FROM quotes q JOIN customers c ON c.id = q.customer_id
		WHERE q.id = $1`, payload.QuoteID).Scan(&email, &name, &number)
	if err != nil {
		h.logger.Warn("load quote for notification", slog.Any("error", err))
		return err
	}
	if email == "" {
		h.logger.Info("skip quote notification, customer has no email", slog.Int64("quote_id", payload.QuoteID))
		return nil
	}

	task, err := NewSendEmailTask(SendEmailPayload{
		To:      email,
		Subject: fmt.Sprintf("Your eyewear quote %s", number),
		Body:    fmt.Sprintf("Hi %s, your quote %s is ready for review.", name, number),
	})
	if err != nil {
		return err
	}
	return HandleSendEmailTask(ctx, task)
}
