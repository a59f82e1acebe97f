package pof

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

var (
	// ErrFrameRejected indicates the frame failed the condition assessment.
	ErrFrameRejected = errors.New("pof: frame cannot be serviced")
	// ErrWaiverRequired indicates the liability waiver has not been captured.
	ErrWaiverRequired = errors.New("pof: signed liability waiver with a staff witness is required")
	// ErrQuoteState indicates the frame can only be attached while building.
	ErrQuoteState = errors.New("pof: patient-owned frames can only be attached while the quote is in BUILDING")
)

// AttachRequest records a patient-owned frame on a quote.
type AttachRequest struct {
	Frame         FrameIntake `json:"frame" validate:"required"`
	WaiverSigned  bool        `json:"waiver_signed"`
	WaiverWitness int64       `json:"waiver_witness,omitempty"`
}

// Config tunes the patient-owned frame workflow.
type Config struct {
	ServiceFee    float64
	MinFrameValue float64
}

// Service attaches patient-owned frames to quotes.
type Service struct {
	quotes quotes.Repository
	pricer *pricing.Engine
	audit  *shared.AuditLogger
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(quoteRepo quotes.Repository, pricer *pricing.Engine, audit *shared.AuditLogger, logger *slog.Logger, cfg Config) *Service {
	if cfg.ServiceFee <= 0 {
		cfg.ServiceFee = DefaultServiceFee
	}
	if cfg.MinFrameValue <= 0 {
		cfg.MinFrameValue = DefaultMinFrameValue
	}
	return &Service{
		quotes: quoteRepo,
		pricer: pricer,
		audit:  audit,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Assess runs the condition assessment without touching the quote.
func (s *Service) Assess(intake FrameIntake) Assessment {
	return ValidateFrame(intake, s.cfg.MinFrameValue)
}

// Attach validates the frame, requires the signed waiver, replaces the
// basket's frame selection with the service-fee line and reprices the quote.
func (s *Service) Attach(ctx context.Context, quoteID int64, req AttachRequest, actorID int64) (*quotes.Quote, Assessment, error) {
	assessment := ValidateFrame(req.Frame, s.cfg.MinFrameValue)
	if !assessment.Acceptable {
		return nil, assessment, fmt.Errorf("%w: %s", ErrFrameRejected, strings.Join(assessment.Errors, "; "))
	}
	if !req.WaiverSigned || req.WaiverWitness == 0 {
		return nil, assessment, ErrWaiverRequired
	}

	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, assessment, err
	}
	if q.Status != quotes.StatusBuilding {
		return nil, assessment, ErrQuoteState
	}

	if q.Basket.Eyeglasses == nil {
		q.Basket.Eyeglasses = &quotes.EyeglassSelection{}
	}
	q.Basket.Eyeglasses.Frame = &quotes.FrameSelection{
		Name:         "Patient-owned frame: " + strings.TrimSpace(req.Frame.Description),
		PatientOwned: true,
		ServiceFee:   s.cfg.ServiceFee,
	}

	result, err := s.pricer.ComputeQuotePricing(q.Basket.PricingItems(), q.InsuranceCarrier)
	if err != nil {
		return nil, assessment, err
	}
	q.Subtotal = result.Subtotal
	q.InsuranceDiscount = result.InsuranceApplied
	q.Tax = result.Tax
	q.Total = result.Total
	q.PatientResponsibility = result.PatientResponsibility

	if err := s.quotes.UpdateBasket(ctx, q); err != nil {
		return nil, assessment, fmt.Errorf("update basket: %w", err)
	}

	now := s.now()
	witness := req.WaiverWitness
	frame := &quotes.PatientFrame{
		Condition:      req.Frame.Condition,
		Description:    strings.TrimSpace(req.Frame.Description),
		EstimatedValue: req.Frame.EstimatedValue,
		WaiverSigned:   true,
		WaiverWitness:  &witness,
		RecordedAt:     &now,
	}
	if err := s.quotes.SetPatientFrame(ctx, quoteID, frame); err != nil {
		return nil, assessment, fmt.Errorf("record patient frame: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "quotes.pof.attach",
			Entity:   "quote",
			EntityID: q.QuoteNumber,
			Meta: map[string]any{
				"condition":       req.Frame.Condition,
				"estimated_value": req.Frame.EstimatedValue,
				"service_fee":     s.cfg.ServiceFee,
			},
		})
	}

	updated, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, assessment, err
	}
	return updated, assessment, nil
}
