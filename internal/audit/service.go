package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository reads audit entries.
type Repository interface {
	Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Timeline(ctx context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, int, error) {
	const where = `
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text = '' OR entity = $4)
  AND ($5::text = '' OR entity_id = $5)
  AND ($6::text = '' OR action = $6)`

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where,
		f.From, f.To, f.ActorID, f.Entity, f.EntityID, f.Action).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs`+where+`
ORDER BY occurred_at DESC, id DESC
LIMIT $7 OFFSET $8`,
		f.From, f.To, f.ActorID, f.Entity, f.EntityID, f.Action, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.ID, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta, &row.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches a page of the audit trail, newest first.
func (s *Service) Timeline(ctx context.Context, f TimelineFilters) ([]TimelineRow, int, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return s.repo.Timeline(ctx, f, pageSize, (page-1)*pageSize)
}
