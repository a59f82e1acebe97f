package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the quote does not exist.
	ErrNotFound = errors.New("quotes: not found")
	// ErrStatusConflict indicates the quote's status changed underneath a
	// conditional update; the caller should reload and retry.
	ErrStatusConflict = errors.New("quotes: status changed concurrently")
)

// Repository provides quote persistence. Status updates are conditional on
// the expected prior status so concurrent transitions cannot interleave.
type Repository interface {
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	Create(ctx context.Context, q Quote) (int64, error)
	UpdateBasket(ctx context.Context, q *Quote) error
	UpdateStatus(ctx context.Context, q *Quote, expected Status) error
	UpdateFinancials(ctx context.Context, q *Quote) error
	SetSignature(ctx context.Context, id int64, kind string, at time.Time) error
	SetPaymentReceived(ctx context.Context, id int64) error
	SetPatientFrame(ctx context.Context, id int64, frame *PatientFrame) error
	MarkSecondPair(ctx context.Context, id, originalID int64) error
	ListCompletedOriginals(ctx context.Context, customerID int64, locationID *int64, limit int) ([]Quote, error)
	ListStaleDrafts(ctx context.Context, cutoff time.Time, limit int) ([]Quote, error)
	GenerateNumber(ctx context.Context) (string, error)
	Touch(ctx context.Context, id int64, at time.Time) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// NewTxRepository binds the repository to an open transaction so quote writes
// commit or roll back together with another module's writes.
func NewTxRepository(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

const quoteColumns = `id, quote_number, customer_id, created_by, location_id,
	status, previous_status, status_changed_at, status_changed_by, status_reason,
	building_completed, presentation_completed, signatures_completed, fulfillment_completed,
	basket, COALESCE(insurance_carrier, ''),
	subtotal, insurance_discount, discount, tax, total, patient_responsibility,
	is_second_pair, original_quote_id, patient_frame,
	exam_signed_at, materials_signed_at, payment_received,
	draft_created_at, presented_at, signed_at, completed_at, cancelled_at, expired_at,
	last_activity_at, created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var basketJSON []byte
	var frameJSON []byte
	err := row.Scan(&q.ID, &q.QuoteNumber, &q.CustomerID, &q.CreatedBy, &q.LocationID,
		&q.Status, &q.PreviousStatus, &q.StatusChangedAt, &q.StatusChangedBy, &q.StatusReason,
		&q.Flags.Building, &q.Flags.Presentation, &q.Flags.Signatures, &q.Flags.Fulfillment,
		&basketJSON, &q.InsuranceCarrier,
		&q.Subtotal, &q.InsuranceDiscount, &q.Discount, &q.Tax, &q.Total, &q.PatientResponsibility,
		&q.IsSecondPair, &q.OriginalQuoteID, &frameJSON,
		&q.ExamSignedAt, &q.MaterialsSignedAt, &q.PaymentReceived,
		&q.DraftCreatedAt, &q.PresentedAt, &q.SignedAt, &q.CompletedAt, &q.CancelledAt, &q.ExpiredAt,
		&q.LastActivityAt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(basketJSON) > 0 {
		if err := json.Unmarshal(basketJSON, &q.Basket); err != nil {
			return nil, fmt.Errorf("quotes: decode basket: %w", err)
		}
	}
	if len(frameJSON) > 0 {
		if err := json.Unmarshal(frameJSON, &q.PatientFrame); err != nil {
			return nil, fmt.Errorf("quotes: decode patient frame: %w", err)
		}
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	return scanQuote(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM quotes WHERE id = $1`, quoteColumns), id))
}

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	basketJSON, err := json.Marshal(q.Basket)
	if err != nil {
		return 0, fmt.Errorf("quotes: encode basket: %w", err)
	}
	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO quotes
(quote_number, customer_id, created_by, location_id, status,
 building_completed, presentation_completed, signatures_completed, fulfillment_completed,
 basket, insurance_carrier,
 subtotal, insurance_discount, discount, tax, total, patient_responsibility,
 is_second_pair, payment_received, last_activity_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, false, false, false, false, $6, NULLIF($7, ''),
        $8, $9, $10, $11, $12, $13, $14, false, NOW(), NOW(), NOW())
RETURNING id`,
		q.QuoteNumber, q.CustomerID, q.CreatedBy, q.LocationID, string(q.Status),
		basketJSON, string(q.InsuranceCarrier),
		q.Subtotal, q.InsuranceDiscount, q.Discount, q.Tax, q.Total, q.PatientResponsibility,
		q.IsSecondPair).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateBasket(ctx context.Context, q *Quote) error {
	basketJSON, err := json.Marshal(q.Basket)
	if err != nil {
		return fmt.Errorf("quotes: encode basket: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET
basket = $2, insurance_carrier = NULLIF($3, ''),
subtotal = $4, insurance_discount = $5, discount = $6, tax = $7, total = $8, patient_responsibility = $9,
last_activity_at = NOW(), updated_at = NOW()
WHERE id = $1`,
		q.ID, basketJSON, string(q.InsuranceCarrier),
		q.Subtotal, q.InsuranceDiscount, q.Discount, q.Tax, q.Total, q.PatientResponsibility)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus persists a transition atomically: the write is conditioned on
// the expected prior status, so the status and all derived flags change
// together or not at all.
func (r *repository) UpdateStatus(ctx context.Context, q *Quote, expected Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET
status = $2, previous_status = $3, status_changed_at = $4, status_changed_by = $5, status_reason = $6,
building_completed = $7, presentation_completed = $8, signatures_completed = $9, fulfillment_completed = $10,
draft_created_at = $11, presented_at = $12, signed_at = $13, completed_at = $14, cancelled_at = $15, expired_at = $16,
last_activity_at = $17, updated_at = NOW()
WHERE id = $1 AND status = $18`,
		q.ID, string(q.Status), q.PreviousStatus, q.StatusChangedAt, q.StatusChangedBy, q.StatusReason,
		q.Flags.Building, q.Flags.Presentation, q.Flags.Signatures, q.Flags.Fulfillment,
		q.DraftCreatedAt, q.PresentedAt, q.SignedAt, q.CompletedAt, q.CancelledAt, q.ExpiredAt,
		q.LastActivityAt, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *repository) UpdateFinancials(ctx context.Context, q *Quote) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET
subtotal = $2, insurance_discount = $3, discount = $4, tax = $5, total = $6, patient_responsibility = $7,
last_activity_at = NOW(), updated_at = NOW()
WHERE id = $1`,
		q.ID, q.Subtotal, q.InsuranceDiscount, q.Discount, q.Tax, q.Total, q.PatientResponsibility)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetSignature(ctx context.Context, id int64, kind string, at time.Time) error {
	column := "exam_signed_at"
	if kind == "materials" {
		column = "materials_signed_at"
	}
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`UPDATE quotes SET %s = $2, last_activity_at = $2, updated_at = NOW() WHERE id = $1`, column), id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetPaymentReceived(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET payment_received = true, last_activity_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetPatientFrame(ctx context.Context, id int64, frame *PatientFrame) error {
	frameJSON, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("quotes: encode patient frame: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET patient_frame = $2, last_activity_at = NOW(), updated_at = NOW() WHERE id = $1`, id, frameJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) MarkSecondPair(ctx context.Context, id, originalID int64) error {
	// Manager overrides may not reference an original purchase; zero maps to NULL.
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET is_second_pair = true, original_quote_id = NULLIF($2, 0), last_activity_at = NOW(), updated_at = NOW() WHERE id = $1`, id, originalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCompletedOriginals returns the customer's most recent completed quotes
// that are not themselves second pairs, newest first.
func (r *repository) ListCompletedOriginals(ctx context.Context, customerID int64, locationID *int64, limit int) ([]Quote, error) {
	query := fmt.Sprintf(`SELECT %s FROM quotes
WHERE customer_id = $1 AND status = 'COMPLETED' AND NOT is_second_pair`, quoteColumns)
	args := []interface{}{customerID}
	if locationID != nil {
		query += " AND location_id = $2"
		args = append(args, *locationID)
	}
	query += fmt.Sprintf(" ORDER BY completed_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

func (r *repository) ListStaleDrafts(ctx context.Context, cutoff time.Time, limit int) ([]Quote, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM quotes
WHERE status = 'DRAFT' AND last_activity_at < $1
ORDER BY last_activity_at ASC LIMIT $2`, quoteColumns), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.LocationID != nil {
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", argPos))
		args = append(args, *req.LocationID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM quotes %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM quotes %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectQuotes(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) GenerateNumber(ctx context.Context) (string, error) {
	var next int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('quote_number_seq')`).Scan(&next); err != nil {
		return "", err
	}
	return fmt.Sprintf("Q-%06d", next), nil
}

func (r *repository) Touch(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE quotes SET last_activity_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

func collectQuotes(rows pgx.Rows) ([]Quote, error) {
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}
