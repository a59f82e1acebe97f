package secondpair

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticore-pos/opticore/internal/platform/db"
	"github.com/opticore-pos/opticore/internal/quotes"
)

// ErrNotFound indicates no discount record exists for the quote.
var ErrNotFound = errors.New("secondpair: record not found")

// Repository persists the discount ledger.
type Repository interface {
	Insert(ctx context.Context, rec Record) (int64, error)
	GetByQuote(ctx context.Context, quoteID int64) (*Record, error)
	RedeemedOriginals(ctx context.Context, originalIDs []int64) (map[int64]bool, error)
}

// TxRunner executes a function against transaction-bound repositories. The
// ledger insert and the quote reprice must land atomically: a partial write
// would strand the quote with a discount record but its undiscounted total,
// and the existing record would block every retry.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(ledger Repository, quoteRepo quotes.Repository) error) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

type txRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner returns a TxRunner backed by database transactions.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &txRunner{pool: pool}
}

func (t *txRunner) RunTx(ctx context.Context, fn func(Repository, quotes.Repository) error) error {
	return db.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(&repository{db: tx}, quotes.NewTxRepository(tx))
	})
}

const recordColumns = `id, quote_id, COALESCE(original_quote_id, 0), discount_type, percent, amount, COALESCE(reason, ''), authorized_by, applied_by, applied_at`

func (r *repository) Insert(ctx context.Context, rec Record) (int64, error) {
	at := rec.AppliedAt
	if at.IsZero() {
		at = time.Now()
	}
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO second_pair_discounts
			(quote_id, original_quote_id, discount_type, percent, amount, reason, authorized_by, applied_by, applied_at)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		rec.QuoteID, rec.OriginalQuoteID, rec.Type, rec.Percent, rec.Amount, rec.Reason, rec.AuthorizedBy, rec.AppliedBy, at,
	).Scan(&id)
	return id, err
}

func (r *repository) GetByQuote(ctx context.Context, quoteID int64) (*Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM second_pair_discounts WHERE quote_id = $1`, quoteID)
	var rec Record
	err := row.Scan(&rec.ID, &rec.QuoteID, &rec.OriginalQuoteID, &rec.Type, &rec.Percent, &rec.Amount, &rec.Reason, &rec.AuthorizedBy, &rec.AppliedBy, &rec.AppliedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// RedeemedOriginals reports which of the given original quotes already back a
// second-pair discount. Each completed purchase funds at most one discount.
func (r *repository) RedeemedOriginals(ctx context.Context, originalIDs []int64) (map[int64]bool, error) {
	redeemed := make(map[int64]bool, len(originalIDs))
	if len(originalIDs) == 0 {
		return redeemed, nil
	}
	rows, err := r.db.Query(ctx, `SELECT DISTINCT original_quote_id FROM second_pair_discounts WHERE original_quote_id = ANY($1)`, originalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		redeemed[id] = true
	}
	return redeemed, rows.Err()
}
