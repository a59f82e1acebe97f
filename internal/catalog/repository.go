package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("catalog: item not found")
	ErrDuplicate = errors.New("catalog: item code already exists")
)

// Repository provides catalog persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Item, error)
	GetByCode(ctx context.Context, code string) (*Item, error)
	List(ctx context.Context, req ListItemsRequest) ([]Item, int, error)
	Create(ctx context.Context, item Item) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
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

const itemColumns = `id, code, name, kind, brand, base_price, cost,
	COALESCE(tier_vsp, ''), COALESCE(tier_eyemed, ''), COALESCE(tier_spectera, ''),
	location_id, is_active, created_by, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Code, &it.Name, &it.Kind, &it.Brand, &it.BasePrice, &it.Cost,
		&it.Tiers.VSP, &it.Tiers.EyeMed, &it.Tiers.Spectera,
		&it.LocationID, &it.IsActive, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Item, error) {
	return scanItem(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM catalog_items WHERE id = $1`, itemColumns), id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Item, error) {
	return scanItem(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM catalog_items WHERE code = $1`, itemColumns), code))
}

func (r *repository) Create(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO catalog_items
(code, name, kind, brand, base_price, cost, tier_vsp, tier_eyemed, tier_spectera, location_id, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, NOW(), NOW())
RETURNING id`,
		item.Code, item.Name, string(item.Kind), item.Brand, item.BasePrice, item.Cost,
		item.Tiers.VSP, item.Tiers.EyeMed, item.Tiers.Spectera,
		item.LocationID, item.IsActive, item.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClause := ""
	args := make([]interface{}, 0, len(updates)+1)
	argPos := 1
	for col, val := range updates {
		if setClause != "" {
			setClause += ", "
		}
		setClause += fmt.Sprintf("%s = $%d", col, argPos)
		args = append(args, val)
		argPos++
	}
	setClause += ", updated_at = NOW()"
	args = append(args, id)

	tag, err := r.db.Exec(ctx, fmt.Sprintf("UPDATE catalog_items SET %s WHERE id = $%d", setClause, argPos), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, req ListItemsRequest) ([]Item, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, string(*req.Kind))
		argPos++
	}
	if req.LocationID != nil {
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", argPos))
		args = append(args, *req.LocationID)
		argPos++
	}
	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM catalog_items %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM catalog_items %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		itemColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.Kind, &it.Brand, &it.BasePrice, &it.Cost,
			&it.Tiers.VSP, &it.Tiers.EyeMed, &it.Tiers.Spectera,
			&it.LocationID, &it.IsActive, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}
