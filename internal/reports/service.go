package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/quotes"
)

// StatusCount is the number of quotes sitting in one lifecycle state.
type StatusCount struct {
	Status quotes.Status `json:"status"`
	Count  int64         `json:"count"`
}

// Summary aggregates completed-sale financials over a reporting window.
type Summary struct {
	From       time.Time     `json:"from"`
	To         time.Time     `json:"to"`
	LocationID *int64        `json:"location_id,omitempty"`
	ByStatus   []StatusCount `json:"by_status"`

	CompletedCount        int64   `json:"completed_count"`
	Revenue               float64 `json:"revenue"`
	InsuranceApplied      float64 `json:"insurance_applied"`
	DiscountsGiven        float64 `json:"discounts_given"`
	TaxCollected          float64 `json:"tax_collected"`
	PatientResponsibility float64 `json:"patient_responsibility"`
	AverageSale           float64 `json:"average_sale"`

	SecondPairCount int64   `json:"second_pair_count"`
	ConversionRate  float64 `json:"conversion_rate"`
}

// RevenuePoint is one day of completed revenue.
type RevenuePoint struct {
	Day     time.Time `json:"day"`
	Count   int64     `json:"count"`
	Revenue float64   `json:"revenue"`
}

// Service answers reporting queries directly against the quotes table.
// Reports read committed data only; the cache in front absorbs repeat hits.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Summary computes the sales summary for the window.
func (s *Service) Summary(ctx context.Context, from, to time.Time, locationID *int64) (*Summary, error) {
	out := &Summary{From: from, To: to, LocationID: locationID}

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM quotes
		WHERE created_at >= $1 AND created_at < $2 AND ($3::bigint IS NULL OR location_id = $3)
		GROUP BY status
		ORDER BY status`, from, to, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var presented int64
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out.ByStatus = append(out.ByStatus, sc)
		switch sc.Status {
		case quotes.StatusPresented, quotes.StatusSigned, quotes.StatusCompleted:
			presented += sc.Count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total), 0),
			COALESCE(SUM(insurance_discount), 0),
			COALESCE(SUM(discount), 0),
			COALESCE(SUM(tax), 0),
			COALESCE(SUM(patient_responsibility), 0),
			COUNT(*) FILTER (WHERE is_second_pair)
		FROM quotes
		WHERE status = 'COMPLETED' AND completed_at >= $1 AND completed_at < $2
			AND ($3::bigint IS NULL OR location_id = $3)`,
		from, to, locationID,
	).Scan(&out.CompletedCount, &out.Revenue, &out.InsuranceApplied, &out.DiscountsGiven, &out.TaxCollected, &out.PatientResponsibility, &out.SecondPairCount)
	if err != nil {
		return nil, err
	}

	if out.CompletedCount > 0 {
		out.AverageSale = pricing.Round2(out.Revenue / float64(out.CompletedCount))
	}
	if presented > 0 {
		out.ConversionRate = pricing.Round2(float64(out.CompletedCount) / float64(presented) * 100)
	}
	return out, nil
}

// RevenueTrend returns per-day completed revenue over the window.
func (s *Service) RevenueTrend(ctx context.Context, from, to time.Time, locationID *int64) ([]RevenuePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('day', completed_at) AS day, COUNT(*), COALESCE(SUM(total), 0)
		FROM quotes
		WHERE status = 'COMPLETED' AND completed_at >= $1 AND completed_at < $2
			AND ($3::bigint IS NULL OR location_id = $3)
		GROUP BY day
		ORDER BY day`, from, to, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []RevenuePoint
	for rows.Next() {
		var p RevenuePoint
		if err := rows.Scan(&p.Day, &p.Count, &p.Revenue); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
