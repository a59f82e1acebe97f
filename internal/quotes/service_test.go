package quotes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/shared"
)

type memoryRepo struct {
	quotes  map[int64]*Quote
	nextID  int64
	nextSeq int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotes: map[int64]*Quote{}}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	var out []Quote
	for _, q := range r.quotes {
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, q Quote) (int64, error) {
	r.nextID++
	q.ID = r.nextID
	q.CreatedAt = time.Now()
	r.quotes[q.ID] = &q
	return q.ID, nil
}

func (r *memoryRepo) UpdateBasket(ctx context.Context, q *Quote) error {
	stored, ok := r.quotes[q.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Basket = q.Basket
	stored.InsuranceCarrier = q.InsuranceCarrier
	stored.Subtotal = q.Subtotal
	stored.InsuranceDiscount = q.InsuranceDiscount
	stored.Discount = q.Discount
	stored.Tax = q.Tax
	stored.Total = q.Total
	stored.PatientResponsibility = q.PatientResponsibility
	return nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, q *Quote, expected Status) error {
	stored, ok := r.quotes[q.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expected {
		return ErrStatusConflict
	}
	copied := *q
	r.quotes[q.ID] = &copied
	return nil
}

func (r *memoryRepo) UpdateFinancials(ctx context.Context, q *Quote) error {
	stored, ok := r.quotes[q.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Subtotal = q.Subtotal
	stored.InsuranceDiscount = q.InsuranceDiscount
	stored.Discount = q.Discount
	stored.Tax = q.Tax
	stored.Total = q.Total
	stored.PatientResponsibility = q.PatientResponsibility
	return nil
}

func (r *memoryRepo) SetSignature(ctx context.Context, id int64, kind string, at time.Time) error {
	stored, ok := r.quotes[id]
	if !ok {
		return ErrNotFound
	}
	if kind == "materials" {
		stored.MaterialsSignedAt = &at
	} else {
		stored.ExamSignedAt = &at
	}
	return nil
}

func (r *memoryRepo) SetPaymentReceived(ctx context.Context, id int64) error {
	stored, ok := r.quotes[id]
	if !ok {
		return ErrNotFound
	}
	stored.PaymentReceived = true
	return nil
}

func (r *memoryRepo) SetPatientFrame(ctx context.Context, id int64, frame *PatientFrame) error {
	stored, ok := r.quotes[id]
	if !ok {
		return ErrNotFound
	}
	stored.PatientFrame = frame
	return nil
}

func (r *memoryRepo) MarkSecondPair(ctx context.Context, id, originalID int64) error {
	stored, ok := r.quotes[id]
	if !ok {
		return ErrNotFound
	}
	stored.IsSecondPair = true
	if originalID != 0 {
		stored.OriginalQuoteID = &originalID
	}
	return nil
}

func (r *memoryRepo) ListCompletedOriginals(ctx context.Context, customerID int64, locationID *int64, limit int) ([]Quote, error) {
	var out []Quote
	for _, q := range r.quotes {
		if q.CustomerID == customerID && q.Status == StatusCompleted && !q.IsSecondPair {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListStaleDrafts(ctx context.Context, cutoff time.Time, limit int) ([]Quote, error) {
	var out []Quote
	for _, q := range r.quotes {
		if q.Status == StatusDraft && q.LastActivityAt.Before(cutoff) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *memoryRepo) GenerateNumber(ctx context.Context) (string, error) {
	r.nextSeq++
	return fmt.Sprintf("Q-%06d", r.nextSeq), nil
}

func (r *memoryRepo) Touch(ctx context.Context, id int64, at time.Time) error {
	stored, ok := r.quotes[id]
	if !ok {
		return ErrNotFound
	}
	stored.LastActivityAt = at
	return nil
}

type stubApprovals struct {
	granted   bool
	requested []string
}

func (s *stubApprovals) Granted(ctx context.Context, module string, refID int64, action string) (bool, error) {
	return s.granted, nil
}

func (s *stubApprovals) Request(ctx context.Context, module string, refID int64, action, reason string, requestedBy int64) (*shared.ApprovalRequest, error) {
	s.requested = append(s.requested, action)
	return &shared.ApprovalRequest{ID: uuid.New(), Module: module, RefID: refID, Action: action, Reason: reason, Status: shared.ApprovalPending}, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *stubApprovals) {
	t.Helper()
	repo := newMemoryRepo()
	approvals := &stubApprovals{}
	svc := NewService(repo, approvals, nil, nil, nil, ServiceConfig{TaxRate: 0.0875})
	svc.now = fixedNow
	return svc, repo, approvals
}

func eyeglassBasket() *Basket {
	return &Basket{
		Eyeglasses: &EyeglassSelection{
			Frame: &FrameSelection{ItemID: 1, Name: "Frame", Price: 200, Tiers: pricing.ItemTiers{VSP: "K"}},
			Lens:  &LensSelection{ItemID: 2, Name: "Single vision", Price: 100, Tiers: pricing.ItemTiers{VSP: "J"}},
		},
	}
}

func TestCreatePricesInitialBasket(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{
		CustomerID:       7,
		InsuranceCarrier: "VSP",
		Basket:           eyeglassBasket(),
	}, 99)
	require.NoError(t, err)

	require.Equal(t, StatusBuilding, q.Status)
	require.Equal(t, "Q-000001", q.QuoteNumber)
	require.InDelta(t, 300.0, q.Subtotal, 0.001)
	// Frame K discounts 40% of 200 = 80; lens J discounts 30% of 100 = 30.
	require.InDelta(t, 110.0, q.InsuranceDiscount, 0.001)
	require.InDelta(t, 206.63, q.Total, 0.01)
}

func TestCreateRejectsUnknownCarrier(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateQuoteRequest{
		CustomerID:       7,
		InsuranceCarrier: "ACME",
	}, 99)
	require.ErrorIs(t, err, ErrInvalidCarrier)
}

func TestUpdateBasketOnlyWhileBuilding(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7, Basket: eyeglassBasket()}, 99)
	require.NoError(t, err)

	repo.quotes[q.ID].Status = StatusDraft
	_, err = svc.UpdateBasket(ctx, q.ID, UpdateBasketRequest{Basket: *eyeglassBasket()})
	require.ErrorIs(t, err, ErrBasketLocked)
}

func TestUpdateBasketRepricesAndClearsManualDiscount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7, Basket: eyeglassBasket()}, 99)
	require.NoError(t, err)
	repo.quotes[q.ID].Discount = 25

	carrier := "VSP"
	updated, err := svc.UpdateBasket(ctx, q.ID, UpdateBasketRequest{
		Basket:           *eyeglassBasket(),
		InsuranceCarrier: &carrier,
	})
	require.NoError(t, err)
	require.Zero(t, updated.Discount)
	require.InDelta(t, 110.0, updated.InsuranceDiscount, 0.001)
}

func TestTransitionFullLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7, Basket: eyeglassBasket()}, 99)
	require.NoError(t, err)

	res, err := svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusDraft}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)
	require.Equal(t, StatusDraft, res.Quote.Status)

	res, err = svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusPresented}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)

	_, err = svc.RecordSignature(ctx, q.ID, "exam", 99)
	require.NoError(t, err)
	_, err = svc.RecordSignature(ctx, q.ID, "materials", 99)
	require.NoError(t, err)

	res, err = svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusSigned}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)

	_, err = svc.RecordPayment(ctx, q.ID, 99)
	require.NoError(t, err)

	res, err = svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusCompleted}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)
	require.Equal(t, StatusCompleted, res.Quote.Status)
	require.True(t, res.Quote.Flags.Fulfillment)
	require.NotNil(t, res.Quote.CompletedAt)
}

func TestTransitionBusinessRejectionIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7}, 99)
	require.NoError(t, err)

	// Empty basket cannot be presented.
	res, err := svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusDraft}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)

	res, err = svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusPresented}, 99, RoleOptician)
	require.NoError(t, err)
	require.False(t, res.Decision.Valid)
	require.NotEmpty(t, res.Decision.Reason)
}

func TestTransitionIdempotentSelfRequest(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7}, 99)
	require.NoError(t, err)

	res, err := svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusBuilding}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)
	require.True(t, res.Decision.NoOp)
	require.Equal(t, StatusBuilding, res.Quote.Status)
}

func TestTransitionSignedCancelQueuesApproval(t *testing.T) {
	svc, repo, approvals := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7, Basket: eyeglassBasket()}, 99)
	require.NoError(t, err)
	now := fixedNow()
	repo.quotes[q.ID].Status = StatusSigned
	repo.quotes[q.ID].ExamSignedAt = &now
	repo.quotes[q.ID].MaterialsSignedAt = &now

	res, err := svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusCancelled, Reason: "patient dispute"}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.RequiresApproval)
	require.NotNil(t, res.ApprovalRequest)
	require.Equal(t, []string{"CANCEL_SIGNED"}, approvals.requested)
	// The quote has not moved.
	require.Equal(t, StatusSigned, repo.quotes[q.ID].Status)

	// Once granted, the same request goes through.
	approvals.granted = true
	res, err = svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusCancelled, Reason: "patient dispute"}, 99, RoleOptician)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)
	require.False(t, res.Decision.RequiresApproval)
	require.Equal(t, StatusCancelled, repo.quotes[q.ID].Status)
}

func TestTransitionManagerCancelsSignedDirectly(t *testing.T) {
	svc, repo, approvals := newTestService(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, CreateQuoteRequest{CustomerID: 7, Basket: eyeglassBasket()}, 99)
	require.NoError(t, err)
	repo.quotes[q.ID].Status = StatusSigned

	res, err := svc.Transition(ctx, q.ID, TransitionRequest{Status: StatusCancelled, Reason: "order error"}, 1, RoleManager)
	require.NoError(t, err)
	require.True(t, res.Decision.Valid)
	require.Empty(t, approvals.requested)
	require.Equal(t, StatusCancelled, repo.quotes[q.ID].Status)
}

func TestExpireStaleDrafts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	stale := &Quote{ID: 101, CustomerID: 1, Status: StatusDraft, LastActivityAt: fixedNow().Add(-24 * 24 * time.Hour)}
	fresh := &Quote{ID: 102, CustomerID: 1, Status: StatusDraft, LastActivityAt: fixedNow().Add(-time.Hour)}
	repo.quotes[101] = stale
	repo.quotes[102] = fresh

	expired, err := svc.ExpireStaleDrafts(ctx, 50)
	require.NoError(t, err)
	require.Equal(t, 1, expired)
	require.Equal(t, StatusExpired, repo.quotes[101].Status)
	require.Equal(t, StatusDraft, repo.quotes[102].Status)
	require.NotNil(t, repo.quotes[101].ExpiredAt)
}
