package customers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opticore-pos/opticore/internal/pricing"
)

type memoryRepo struct {
	customers map[int64]Customer
	nextID    int64
	nextCode  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: make(map[int64]Customer), nextID: 1, nextCode: 1}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *memoryRepo) List(_ context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var out []Customer
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, c Customer) (int64, error) {
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.customers[c.ID] = c
	m.nextID++
	return c.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	for col, v := range updates {
		switch col {
		case "first_name":
			c.FirstName = v.(string)
		case "last_name":
			c.LastName = v.(string)
		case "insurance_carrier":
			c.InsuranceCarrier = pricing.Carrier(v.(string))
		case "insurance_member_id":
			c.InsuranceMember = ptr(v.(string))
		case "is_active":
			c.IsActive = v.(bool)
		}
	}
	m.customers[id] = c
	return nil
}

func (m *memoryRepo) GenerateCode(_ context.Context) (string, error) {
	code := fmt.Sprintf("CUST-%05d", m.nextCode)
	m.nextCode++
	return code, nil
}

func ptr(s string) *string { return &s }

func TestCreateAssignsCodeAndCarrier(t *testing.T) {
	svc := NewService(newMemoryRepo())

	c, err := svc.Create(context.Background(), CreateCustomerRequest{
		FirstName:        " Maria ",
		LastName:         " Lopez ",
		InsuranceCarrier: "vsp",
	}, 3)
	require.NoError(t, err)
	require.Equal(t, "CUST-00001", c.Code)
	require.Equal(t, "Maria", c.FirstName)
	require.Equal(t, "Maria Lopez", c.FullName())
	require.Equal(t, pricing.CarrierVSP, c.InsuranceCarrier)
	require.True(t, c.IsActive)
}

func TestCreateCashCustomer(t *testing.T) {
	svc := NewService(newMemoryRepo())

	c, err := svc.Create(context.Background(), CreateCustomerRequest{
		FirstName: "Sam", LastName: "Ng",
	}, 3)
	require.NoError(t, err)
	require.Equal(t, pricing.CarrierNone, c.InsuranceCarrier)
}

func TestCreateRejectsUnknownCarrier(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), CreateCustomerRequest{
		FirstName: "Sam", LastName: "Ng", InsuranceCarrier: "DAVIS_VISION",
	}, 3)
	require.ErrorIs(t, err, ErrInvalidCarrier)
}

func TestUpdateCarrierChange(t *testing.T) {
	svc := NewService(newMemoryRepo())

	c, err := svc.Create(context.Background(), CreateCustomerRequest{
		FirstName: "Ana", LastName: "Reyes", InsuranceCarrier: "EYEMED",
	}, 1)
	require.NoError(t, err)

	bad := "HUMANA"
	_, err = svc.Update(context.Background(), c.ID, UpdateCustomerRequest{InsuranceCarrier: &bad})
	require.ErrorIs(t, err, ErrInvalidCarrier)

	good := "spectera"
	member := "SP-889123"
	updated, err := svc.Update(context.Background(), c.ID, UpdateCustomerRequest{
		InsuranceCarrier: &good,
		InsuranceMember:  &member,
	})
	require.NoError(t, err)
	require.Equal(t, pricing.CarrierSpectera, updated.InsuranceCarrier)
	require.Equal(t, "SP-889123", *updated.InsuranceMember)
	require.Equal(t, "Ana", updated.FirstName)
}

func TestUpdateMissingCustomer(t *testing.T) {
	svc := NewService(newMemoryRepo())

	name := "Nobody"
	_, err := svc.Update(context.Background(), 999, UpdateCustomerRequest{FirstName: &name})
	require.ErrorIs(t, err, ErrNotFound)
}
