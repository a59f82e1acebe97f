package pof

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/quotes"
)

func TestValidateFrameConditions(t *testing.T) {
	good := FrameIntake{Condition: ConditionGood, Description: "Ray-Ban Wayfarer, black", EstimatedValue: 120}

	a := ValidateFrame(good, 0)
	require.True(t, a.Acceptable)
	require.Empty(t, a.Errors)
	require.Empty(t, a.Warnings)

	fair := good
	fair.Condition = ConditionFair
	a = ValidateFrame(fair, 0)
	require.True(t, a.Acceptable)
	require.NotEmpty(t, a.Warnings)

	poor := good
	poor.Condition = ConditionPoor
	a = ValidateFrame(poor, 0)
	require.False(t, a.Acceptable)
	require.Contains(t, a.Errors[0], "POOR")

	unknown := good
	unknown.Condition = "RUSTY"
	a = ValidateFrame(unknown, 0)
	require.False(t, a.Acceptable)
}

func TestValidateFrameRequiresDescriptionAndValue(t *testing.T) {
	a := ValidateFrame(FrameIntake{Condition: ConditionExcellent, Description: "   ", EstimatedValue: 100}, 0)
	require.False(t, a.Acceptable)

	a = ValidateFrame(FrameIntake{Condition: ConditionExcellent, Description: "Titanium rimless", EstimatedValue: 19.99}, 0)
	require.False(t, a.Acceptable)

	// The minimum is inclusive.
	a = ValidateFrame(FrameIntake{Condition: ConditionExcellent, Description: "Titanium rimless", EstimatedValue: 20}, 0)
	require.True(t, a.Acceptable)
}

type memoryQuotes struct {
	quotes map[int64]*quotes.Quote
}

func newMemoryQuotes() *memoryQuotes {
	return &memoryQuotes{quotes: map[int64]*quotes.Quote{}}
}

func (r *memoryQuotes) Get(ctx context.Context, id int64) (*quotes.Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *memoryQuotes) List(ctx context.Context, req quotes.ListQuotesRequest) ([]quotes.Quote, int, error) {
	return nil, 0, nil
}

func (r *memoryQuotes) Create(ctx context.Context, q quotes.Quote) (int64, error) { return 0, nil }

func (r *memoryQuotes) UpdateBasket(ctx context.Context, q *quotes.Quote) error {
	stored, ok := r.quotes[q.ID]
	if !ok {
		return quotes.ErrNotFound
	}
	stored.Basket = q.Basket
	stored.Subtotal = q.Subtotal
	stored.InsuranceDiscount = q.InsuranceDiscount
	stored.Tax = q.Tax
	stored.Total = q.Total
	stored.PatientResponsibility = q.PatientResponsibility
	return nil
}

func (r *memoryQuotes) UpdateStatus(ctx context.Context, q *quotes.Quote, expected quotes.Status) error {
	return nil
}

func (r *memoryQuotes) UpdateFinancials(ctx context.Context, q *quotes.Quote) error { return nil }

func (r *memoryQuotes) SetSignature(ctx context.Context, id int64, kind string, at time.Time) error {
	return nil
}

func (r *memoryQuotes) SetPaymentReceived(ctx context.Context, id int64) error { return nil }

func (r *memoryQuotes) SetPatientFrame(ctx context.Context, id int64, frame *quotes.PatientFrame) error {
	stored, ok := r.quotes[id]
	if !ok {
		return quotes.ErrNotFound
	}
	stored.PatientFrame = frame
	return nil
}

func (r *memoryQuotes) MarkSecondPair(ctx context.Context, id, originalID int64) error { return nil }

func (r *memoryQuotes) ListCompletedOriginals(ctx context.Context, customerID int64, locationID *int64, limit int) ([]quotes.Quote, error) {
	return nil, nil
}

func (r *memoryQuotes) ListStaleDrafts(ctx context.Context, cutoff time.Time, limit int) ([]quotes.Quote, error) {
	return nil, nil
}

func (r *memoryQuotes) GenerateNumber(ctx context.Context) (string, error) { return "Q-000000", nil }

func (r *memoryQuotes) Touch(ctx context.Context, id int64, at time.Time) error { return nil }

func newPOFService(t *testing.T) (*Service, *memoryQuotes) {
	t.Helper()
	repo := newMemoryQuotes()
	pricer := pricing.NewEngine(0.0875)
	svc := NewService(repo, pricer, nil, nil, Config{})
	return svc, repo
}

func buildingQuote(id int64) *quotes.Quote {
	return &quotes.Quote{
		ID:          id,
		QuoteNumber: "Q-000010",
		CustomerID:  7,
		Status:      quotes.StatusBuilding,
		Basket: quotes.Basket{
			Eyeglasses: &quotes.EyeglassSelection{
				Frame: &quotes.FrameSelection{ItemID: 1, Name: "Catalog frame", Price: 180},
				Lens:  &quotes.LensSelection{ItemID: 2, Name: "Single vision", Price: 100},
			},
		},
	}
}

func goodIntake() AttachRequest {
	return AttachRequest{
		Frame: FrameIntake{
			Condition:      ConditionGood,
			Description:    "Oliver Peoples acetate, tortoise",
			EstimatedValue: 250,
		},
		WaiverSigned:  true,
		WaiverWitness: 42,
	}
}

func TestAttachReplacesFrameWithServiceFee(t *testing.T) {
	svc, repo := newPOFService(t)
	repo.quotes[10] = buildingQuote(10)

	q, assessment, err := svc.Attach(context.Background(), 10, goodIntake(), 99)
	require.NoError(t, err)
	require.True(t, assessment.Acceptable)

	frame := q.Basket.Eyeglasses.Frame
	require.True(t, frame.PatientOwned)
	require.InDelta(t, 45.0, frame.ServiceFee, 0.001)
	require.Contains(t, frame.Name, "Oliver Peoples")

	// Service fee 45 + lens 100, taxed at 8.75%.
	require.InDelta(t, 145.0, q.Subtotal, 0.001)
	require.InDelta(t, 12.69, q.Tax, 0.001)
	require.InDelta(t, 157.69, q.Total, 0.001)

	require.NotNil(t, q.PatientFrame)
	require.True(t, q.PatientFrame.WaiverSigned)
	require.Equal(t, int64(42), *q.PatientFrame.WaiverWitness)
	require.NotNil(t, q.PatientFrame.RecordedAt)
}

func TestAttachRejectsPoorFrame(t *testing.T) {
	svc, repo := newPOFService(t)
	repo.quotes[10] = buildingQuote(10)

	req := goodIntake()
	req.Frame.Condition = ConditionPoor
	_, assessment, err := svc.Attach(context.Background(), 10, req, 99)
	require.ErrorIs(t, err, ErrFrameRejected)
	require.False(t, assessment.Acceptable)
	// The quote is untouched.
	require.False(t, repo.quotes[10].Basket.Eyeglasses.Frame.PatientOwned)
}

func TestAttachRequiresWaiverAndWitness(t *testing.T) {
	svc, repo := newPOFService(t)
	repo.quotes[10] = buildingQuote(10)
	ctx := context.Background()

	unsigned := goodIntake()
	unsigned.WaiverSigned = false
	_, _, err := svc.Attach(ctx, 10, unsigned, 99)
	require.ErrorIs(t, err, ErrWaiverRequired)

	unwitnessed := goodIntake()
	unwitnessed.WaiverWitness = 0
	_, _, err = svc.Attach(ctx, 10, unwitnessed, 99)
	require.ErrorIs(t, err, ErrWaiverRequired)
}

func TestAttachOnlyWhileBuilding(t *testing.T) {
	svc, repo := newPOFService(t)
	q := buildingQuote(10)
	q.Status = quotes.StatusPresented
	repo.quotes[10] = q

	_, _, err := svc.Attach(context.Background(), 10, goodIntake(), 99)
	require.ErrorIs(t, err, ErrQuoteState)
}
