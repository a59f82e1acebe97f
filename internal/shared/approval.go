package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalStatus enumerates the lifecycle of an approval request.
type ApprovalStatus string

const (
	// ApprovalPending marks a request awaiting a manager decision.
	ApprovalPending ApprovalStatus = "PENDING"
	// ApprovalGranted marks an approved request.
	ApprovalGranted ApprovalStatus = "GRANTED"
	// ApprovalDenied marks a rejected request.
	ApprovalDenied ApprovalStatus = "DENIED"
)

// ErrApprovalNotFound indicates the approval request does not exist.
var ErrApprovalNotFound = errors.New("approval request not found")

// ErrApprovalDecided indicates the request already carries a decision.
var ErrApprovalDecided = errors.New("approval request already decided")

// ApprovalRequest represents a manager-gated action waiting for authorization.
type ApprovalRequest struct {
	ID          uuid.UUID
	Module      string
	RefID       int64
	Action      string
	Reason      string
	RequestedBy int64
	Status      ApprovalStatus
	DecidedBy   *int64
	DecidedAt   *time.Time
	CreatedAt   time.Time
}

// ApprovalQueue persists approval requests for role-gated operations.
type ApprovalQueue struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalQueue constructs an ApprovalQueue.
func NewApprovalQueue(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalQueue {
	return &ApprovalQueue{pool: pool, logger: logger}
}

// Request records a pending approval. When a pending request already exists
// for the same module/ref/action it is returned unchanged so repeated
// attempts do not pile up duplicates.
func (q *ApprovalQueue) Request(ctx context.Context, module string, refID int64, action, reason string, requestedBy int64) (*ApprovalRequest, error) {
	if q == nil {
		return nil, errors.New("approval queue not initialised")
	}
	if module == "" {
		return nil, errors.New("approval module required")
	}
	if action == "" {
		return nil, errors.New("approval action required")
	}
	if requestedBy == 0 {
		return nil, errors.New("approval requester required")
	}

	if existing, err := q.pending(ctx, module, refID, action); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrApprovalNotFound) {
		return nil, err
	}

	req := &ApprovalRequest{
		ID:          uuid.New(),
		Module:      module,
		RefID:       refID,
		Action:      action,
		Reason:      reason,
		RequestedBy: requestedBy,
		Status:      ApprovalPending,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := q.pool.Exec(ctx, `INSERT INTO approval_requests (id, module, ref_id, action, reason, requested_by, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.Module, req.RefID, req.Action, req.Reason, req.RequestedBy, string(req.Status), req.CreatedAt)
	if err != nil {
		q.logger.Error("record approval request", slog.Any("error", err))
		return nil, err
	}
	return req, nil
}

// Decide grants or denies a pending request.
func (q *ApprovalQueue) Decide(ctx context.Context, id uuid.UUID, status ApprovalStatus, decidedBy int64) error {
	if q == nil {
		return errors.New("approval queue not initialised")
	}
	if status != ApprovalGranted && status != ApprovalDenied {
		return errors.New("approval decision must be GRANTED or DENIED")
	}
	tag, err := q.pool.Exec(ctx, `UPDATE approval_requests
SET status = $2, decided_by = $3, decided_at = NOW()
WHERE id = $1 AND status = 'PENDING'`, id, string(status), decidedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var existing string
		err := q.pool.QueryRow(ctx, `SELECT status FROM approval_requests WHERE id = $1`, id).Scan(&existing)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrApprovalNotFound
		}
		if err != nil {
			return err
		}
		return ErrApprovalDecided
	}
	return nil
}

// Granted reports whether a granted, unconsumed approval exists for the
// module/ref/action triple.
func (q *ApprovalQueue) Granted(ctx context.Context, module string, refID int64, action string) (bool, error) {
	if q == nil {
		return false, errors.New("approval queue not initialised")
	}
	var exists bool
	err := q.pool.QueryRow(ctx, `SELECT true FROM approval_requests
WHERE module = $1 AND ref_id = $2 AND action = $3 AND status = 'GRANTED'
LIMIT 1`, module, refID, action).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns approval requests for a module/ref ordered oldest first.
func (q *ApprovalQueue) List(ctx context.Context, module string, refID int64) ([]ApprovalRequest, error) {
	if q == nil {
		return nil, errors.New("approval queue not initialised")
	}
	rows, err := q.pool.Query(ctx, `SELECT id, module, ref_id, action, reason, requested_by, status, decided_by, decided_at, created_at
FROM approval_requests WHERE module = $1 AND ref_id = $2 ORDER BY created_at ASC`, module, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reqs []ApprovalRequest
	for rows.Next() {
		var r ApprovalRequest
		var status string
		if err := rows.Scan(&r.ID, &r.Module, &r.RefID, &r.Action, &r.Reason, &r.RequestedBy, &status, &r.DecidedBy, &r.DecidedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = ApprovalStatus(status)
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (q *ApprovalQueue) pending(ctx context.Context, module string, refID int64, action string) (*ApprovalRequest, error) {
	var r ApprovalRequest
	var status string
	err := q.pool.QueryRow(ctx, `SELECT id, module, ref_id, action, reason, requested_by, status, decided_by, decided_at, created_at
FROM approval_requests WHERE module = $1 AND ref_id = $2 AND action = $3 AND status = 'PENDING'
LIMIT 1`, module, refID, action).Scan(&r.ID, &r.Module, &r.RefID, &r.Action, &r.Reason, &r.RequestedBy, &status, &r.DecidedBy, &r.DecidedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = ApprovalStatus(status)
	return &r, nil
}
