package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/shared"
)

type nowFunc func() time.Time

// approvalModule is the module tag used for approval queue entries.
const approvalModule = "quotes"

// approvalActionCancelSigned gates cancellation of signed quotes.
const approvalActionCancelSigned = "CANCEL_SIGNED"

// DefaultExpiryWindow is how long a draft may sit idle before the expiry
// sweep retires it.
const DefaultExpiryWindow = 23 * 24 * time.Hour

var (
	// ErrInvalidCarrier flags an unrecognised insurance carrier.
	ErrInvalidCarrier = errors.New("quotes: unknown insurance carrier")
	// ErrBasketLocked indicates the basket may only change while building.
	ErrBasketLocked = errors.New("quotes: basket can only be edited while the quote is in BUILDING")
	// ErrSignatureState indicates signatures may only be captured while presented.
	ErrSignatureState = errors.New("quotes: signatures can only be captured while the quote is PRESENTED")
)

// Notifier publishes quote lifecycle events to interested parties. The jobs
// package provides the asynq-backed implementation.
type Notifier interface {
	QuotePresented(ctx context.Context, quoteID, customerID int64) error
}

// ApprovalGate is the slice of the approval queue the quote workflow needs.
type ApprovalGate interface {
	Granted(ctx context.Context, module string, refID int64, action string) (bool, error)
	Request(ctx context.Context, module string, refID int64, action, reason string, requestedBy int64) (*shared.ApprovalRequest, error)
}

// ServiceConfig tunes the quote workflow.
type ServiceConfig struct {
	TaxRate      float64
	ExpiryWindow time.Duration
}

// Service orchestrates quote lifecycle and pricing.
type Service struct {
	repo         Repository
	pricer       *pricing.Engine
	approvals    ApprovalGate
	audit        *shared.AuditLogger
	notifier     Notifier
	logger       *slog.Logger
	expiryWindow time.Duration
	now          nowFunc
}

// NewService constructs a Service.
func NewService(repo Repository, approvals ApprovalGate, audit *shared.AuditLogger, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	window := cfg.ExpiryWindow
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	return &Service{
		repo:         repo,
		pricer:       pricing.NewEngine(cfg.TaxRate),
		approvals:    approvals,
		audit:        audit,
		notifier:     notifier,
		logger:       logger,
		expiryWindow: window,
		now:          time.Now,
	}
}

// Pricer exposes the configured pricing engine.
func (s *Service) Pricer() *pricing.Engine {
	return s.pricer
}

// Create opens a new quote in BUILDING and prices any initial basket.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, createdBy int64) (*Quote, error) {
	carrier, ok := pricing.ParseCarrier(req.InsuranceCarrier)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCarrier, req.InsuranceCarrier)
	}

	number, err := s.repo.GenerateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	q := Quote{
		QuoteNumber:      number,
		CustomerID:       req.CustomerID,
		CreatedBy:        createdBy,
		LocationID:       req.LocationID,
		Status:           StatusBuilding,
		InsuranceCarrier: carrier,
	}
	if req.Basket != nil {
		q.Basket = *req.Basket
	}

	if !q.Basket.Empty() {
		result, err := s.pricer.ComputeQuotePricing(q.Basket.PricingItems(), carrier)
		if err != nil {
			return nil, err
		}
		applyPricing(&q, result)
	}

	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// UpdateBasket replaces the basket and reprices the quote. Baskets are only
// editable while the quote is in BUILDING; callers must regress a DRAFT or
// PRESENTED quote first.
func (s *Service) UpdateBasket(ctx context.Context, id int64, req UpdateBasketRequest) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusBuilding {
		return nil, ErrBasketLocked
	}

	carrier := q.InsuranceCarrier
	if req.InsuranceCarrier != nil {
		parsed, ok := pricing.ParseCarrier(*req.InsuranceCarrier)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCarrier, *req.InsuranceCarrier)
		}
		carrier = parsed
	}

	result, err := s.pricer.ComputeQuotePricing(req.Basket.PricingItems(), carrier)
	if err != nil {
		return nil, err
	}

	q.Basket = req.Basket
	q.InsuranceCarrier = carrier
	// Any previously applied manual discount is invalidated by repricing.
	q.Discount = 0
	applyPricing(q, result)

	if err := s.repo.UpdateBasket(ctx, q); err != nil {
		return nil, fmt.Errorf("update basket: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// RecordSignature captures the exam or materials signature while presented.
func (s *Service) RecordSignature(ctx context.Context, id int64, kind string, actorID int64) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusPresented {
		return nil, ErrSignatureState
	}
	if kind != "exam" && kind != "materials" {
		return nil, fmt.Errorf("quotes: unknown signature kind %q", kind)
	}
	if err := s.repo.SetSignature(ctx, id, kind, s.now()); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "quotes.signature." + kind,
			Entity:   "quote",
			EntityID: q.QuoteNumber,
		})
	}
	return s.repo.Get(ctx, id)
}

// RecordPayment marks the external payment precondition satisfied.
func (s *Service) RecordPayment(ctx context.Context, id int64, actorID int64) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusSigned {
		return nil, fmt.Errorf("quotes: payment can only be recorded for SIGNED quotes, not %s", q.Status)
	}
	if err := s.repo.SetPaymentReceived(ctx, id); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "quotes.payment.received",
			Entity:   "quote",
			EntityID: q.QuoteNumber,
		})
	}
	return s.repo.Get(ctx, id)
}

// Transition validates and executes a lifecycle transition. Business-rule
// rejections come back inside the result's Decision, not as an error; errors
// are reserved for storage failures and concurrent status conflicts.
func (s *Service) Transition(ctx context.Context, id int64, req TransitionRequest, actorID int64, role Role) (*TransitionResult, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	decision := ValidateTransition(q, req.Status, role, req.Reason)
	if !decision.Valid {
		return &TransitionResult{Quote: q, Decision: decision}, nil
	}

	if decision.NoOp {
		if err := s.repo.Touch(ctx, id, s.now()); err != nil {
			return nil, err
		}
		return &TransitionResult{Quote: q, Decision: decision}, nil
	}

	if decision.RequiresApproval {
		granted, err := s.approvals.Granted(ctx, approvalModule, id, approvalActionCancelSigned)
		if err != nil {
			return nil, err
		}
		if !granted {
			request, err := s.approvals.Request(ctx, approvalModule, id, approvalActionCancelSigned, req.Reason, actorID)
			if err != nil {
				return nil, err
			}
			reqID := request.ID.String()
			return &TransitionResult{Quote: q, Decision: decision, ApprovalRequest: &reqID}, nil
		}
		decision.RequiresApproval = false
	}

	expected := q.Status
	applyTransition(q, req.Status, actorID, req.Reason, s.now)
	if err := s.repo.UpdateStatus(ctx, q, expected); err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "quotes.transition",
			Entity:   "quote",
			EntityID: q.QuoteNumber,
			Meta:     map[string]any{"from": string(expected), "to": string(q.Status), "reason": req.Reason},
		})
	}

	if q.Status == StatusPresented && s.notifier != nil {
		if err := s.notifier.QuotePresented(ctx, q.ID, q.CustomerID); err != nil && s.logger != nil {
			s.logger.Warn("notify quote presented", slog.Int64("quote_id", q.ID), slog.Any("error", err))
		}
	}

	return &TransitionResult{Quote: q, Decision: decision}, nil
}

// NextStates computes the valid forward states for UI affordances.
func (s *Service) NextStates(ctx context.Context, id int64) ([]Status, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return NextValidStates(q), nil
}

// ExpireStaleDrafts retires drafts idle beyond the expiry window. Invoked by
// the scheduled sweep, never by users. Returns the number of quotes expired.
func (s *Service) ExpireStaleDrafts(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.expiryWindow)
	stale, err := s.repo.ListStaleDrafts(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		q := stale[i]
		decision := ValidateTransition(&q, StatusExpired, RoleSystem, "")
		if !decision.Valid {
			continue
		}
		expected := q.Status
		applyTransition(&q, StatusExpired, 0, "draft inactive beyond expiry window", s.now)
		if err := s.repo.UpdateStatus(ctx, &q, expected); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				// Someone moved the quote while we swept; skip it.
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// Get fetches a quote by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	return s.repo.Get(ctx, id)
}

// List returns quotes matching the filter.
func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func applyPricing(q *Quote, result *pricing.Result) {
	q.Subtotal = result.Subtotal
	q.InsuranceDiscount = result.InsuranceApplied
	q.Tax = result.Tax
	q.Total = result.Total
	q.PatientResponsibility = result.PatientResponsibility
}
