package secondpair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/quotes"
	"github.com/opticore-pos/opticore/internal/shared"
)

// lookbackLimit caps how many completed purchases are examined per check.
const lookbackLimit = 5

// eligibilityWindowDays is the last day a completed purchase still qualifies.
const eligibilityWindowDays = 30

// minOverrideReasonLen is the shortest acceptable override justification.
const minOverrideReasonLen = 10

var (
	// ErrAlreadyApplied indicates the quote already carries a discount record.
	ErrAlreadyApplied = errors.New("secondpair: discount already applied to this quote")
	// ErrQuoteState indicates the quote is too far along to discount.
	ErrQuoteState = errors.New("secondpair: discounts can only be applied before the quote is signed")
	// ErrInvalidPercent flags an override percentage outside 0-100.
	ErrInvalidPercent = errors.New("secondpair: override percent must be between 0 and 100")
	// ErrReasonTooShort flags an override justification under ten characters.
	ErrReasonTooShort = errors.New("secondpair: override reason must be at least 10 characters")
	// ErrNotDiscountable indicates a pre-gate failed for a manager override.
	ErrNotDiscountable = errors.New("secondpair: quote does not qualify for second-pair pricing")
)

// OverrideRequest is a manager-authorized discount outside the automatic
// windows.
type OverrideRequest struct {
	Percent         float64 `json:"percent" validate:"gte=0,lte=100"`
	Reason          string  `json:"reason" validate:"required,min=10"`
	OriginalQuoteID int64   `json:"original_quote_id,omitempty"`
}

// Service evaluates and applies second-pair discounts.
type Service struct {
	repo   Repository
	quotes quotes.Repository
	tx     TxRunner
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, quoteRepo quotes.Repository, tx TxRunner, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		quotes: quoteRepo,
		tx:     tx,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// CheckEligibility evaluates whether the quote qualifies for an automatic
// second-pair discount. Eligibility is computed on demand against the wall
// clock, never cached: a quote that qualified this morning may not qualify
// this afternoon.
func (s *Service) CheckEligibility(ctx context.Context, quoteID int64) (*Eligibility, error) {
	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, q)
}

func (s *Service) evaluate(ctx context.Context, q *quotes.Quote) (*Eligibility, error) {
	elig := &Eligibility{}

	if q.IsSecondPair {
		elig.Reasons = append(elig.Reasons, "quote already carries a second-pair discount")
	}
	if !q.Basket.HasFrame() {
		elig.Reasons = append(elig.Reasons, "quote has no frame selection; second-pair pricing covers complete eyewear only")
	}
	if q.InsuranceCarrier != pricing.CarrierNone {
		elig.Reasons = append(elig.Reasons, "second-pair discounts do not combine with insurance benefits")
	}
	if len(elig.Reasons) > 0 {
		return elig, nil
	}

	originals, err := s.quotes.ListCompletedOriginals(ctx, q.CustomerID, q.LocationID, lookbackLimit)
	if err != nil {
		return nil, fmt.Errorf("list completed purchases: %w", err)
	}
	if len(originals) == 0 {
		elig.Reasons = append(elig.Reasons, "customer has no completed purchases to anchor a second-pair discount")
		return elig, nil
	}

	ids := make([]int64, 0, len(originals))
	for i := range originals {
		ids = append(ids, originals[i].ID)
	}
	redeemed, err := s.repo.RedeemedOriginals(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check redeemed originals: %w", err)
	}

	now := s.now()
	for i := range originals {
		orig := originals[i]
		cand := Candidate{
			QuoteID:     orig.ID,
			QuoteNumber: orig.QuoteNumber,
			CompletedAt: orig.CompletedAt,
			Redeemed:    redeemed[orig.ID],
		}
		if orig.CompletedAt == nil {
			elig.Candidates = append(elig.Candidates, cand)
			continue
		}
		cand.DaysSince = daysBetween(*orig.CompletedAt, now)
		switch {
		case cand.Redeemed:
			// Each purchase funds at most one discount.
		case cand.DaysSince == 0:
			cand.Qualifies = true
		case cand.DaysSince <= eligibilityWindowDays:
			cand.Qualifies = true
		}
		elig.Candidates = append(elig.Candidates, cand)

		if cand.Qualifies && !elig.Eligible {
			elig.Eligible = true
			elig.OriginalQuoteID = orig.ID
			elig.DaysSince = cand.DaysSince
			if cand.DaysSince == 0 {
				elig.Type = DiscountSameDay
			} else {
				elig.Type = DiscountThirtyDay
			}
			elig.Percent = elig.Type.Percent()
		}
	}

	if !elig.Eligible {
		elig.Reasons = append(elig.Reasons, fmt.Sprintf("no unredeemed completed purchase within the last %d days", eligibilityWindowDays))
	}
	return elig, nil
}

// Apply evaluates eligibility and, when it holds, records the discount and
// reprices the quote. An ineligible quote comes back with the populated
// eligibility and a nil record, not an error.
func (s *Service) Apply(ctx context.Context, quoteID int64, appliedBy int64) (*Record, *Eligibility, error) {
	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.discountableState(ctx, q); err != nil {
		return nil, nil, err
	}

	elig, err := s.evaluate(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	if !elig.Eligible {
		return nil, elig, nil
	}

	rec, err := s.write(ctx, q, Record{
		QuoteID:         q.ID,
		OriginalQuoteID: elig.OriginalQuoteID,
		Type:            elig.Type,
		Percent:         elig.Percent,
		AppliedBy:       appliedBy,
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, elig, nil
}

// Override applies a manager-authorized discount percentage. The percentage
// may be anything from 0 to 100 but the authorization must carry a real
// justification.
func (s *Service) Override(ctx context.Context, quoteID int64, req OverrideRequest, authorizedBy, appliedBy int64) (*Record, error) {
	if req.Percent < 0 || req.Percent > 100 {
		return nil, fmt.Errorf("%w: got %.2f", ErrInvalidPercent, req.Percent)
	}
	if len(strings.TrimSpace(req.Reason)) < minOverrideReasonLen {
		return nil, ErrReasonTooShort
	}

	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if err := s.discountableState(ctx, q); err != nil {
		return nil, err
	}
	if !q.Basket.HasFrame() {
		return nil, fmt.Errorf("%w: no frame selection", ErrNotDiscountable)
	}
	if q.InsuranceCarrier != pricing.CarrierNone {
		return nil, fmt.Errorf("%w: insurance benefits already applied", ErrNotDiscountable)
	}

	return s.write(ctx, q, Record{
		QuoteID:         q.ID,
		OriginalQuoteID: req.OriginalQuoteID,
		Type:            DiscountManagerOverride,
		Percent:         req.Percent,
		Reason:          strings.TrimSpace(req.Reason),
		AuthorizedBy:    &authorizedBy,
		AppliedBy:       appliedBy,
	})
}

// Get returns the ledger record for a quote.
func (s *Service) Get(ctx context.Context, quoteID int64) (*Record, error) {
	return s.repo.GetByQuote(ctx, quoteID)
}

func (s *Service) discountableState(ctx context.Context, q *quotes.Quote) error {
	switch q.Status {
	case quotes.StatusBuilding, quotes.StatusDraft, quotes.StatusPresented:
	default:
		return fmt.Errorf("%w: quote is %s", ErrQuoteState, q.Status)
	}
	if _, err := s.repo.GetByQuote(ctx, q.ID); err == nil {
		return ErrAlreadyApplied
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) write(ctx context.Context, q *quotes.Quote, rec Record) (*Record, error) {
	rec.Amount = pricing.Round2(q.Total * rec.Percent / 100)
	finalTotal := pricing.Round2(q.Total - rec.Amount)
	if finalTotal < 0 {
		finalTotal = 0
	}
	rec.AppliedAt = s.now()

	q.Discount = rec.Amount
	q.Total = finalTotal
	q.PatientResponsibility = finalTotal

	// The ledger record and the repriced quote must commit together. A
	// ledger row without the reprice would block every retry through
	// discountableState while the patient still owes the full total.
	err := s.tx.RunTx(ctx, func(ledger Repository, quoteRepo quotes.Repository) error {
		id, err := ledger.Insert(ctx, rec)
		if err != nil {
			return fmt.Errorf("insert discount record: %w", err)
		}
		rec.ID = id
		if err := quoteRepo.UpdateFinancials(ctx, q); err != nil {
			return fmt.Errorf("update quote financials: %w", err)
		}
		if err := quoteRepo.MarkSecondPair(ctx, q.ID, rec.OriginalQuoteID); err != nil {
			return fmt.Errorf("mark second pair: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  rec.AppliedBy,
			Action:   "quotes.secondpair.apply",
			Entity:   "quote",
			EntityID: q.QuoteNumber,
			Meta: map[string]any{
				"type":    string(rec.Type),
				"percent": rec.Percent,
				"amount":  rec.Amount,
			},
		})
	}
	return &rec, nil
}

// daysBetween counts whole 24-hour periods from completion to now. A purchase
// completed at 11pm still counts as same-day at 9am the next morning only if
// fewer than 24 hours have passed.
func daysBetween(completedAt, now time.Time) int {
	if now.Before(completedAt) {
		return 0
	}
	return int(now.Sub(completedAt).Hours() / 24)
}
