package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items  map[int64]Item
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item), nextID: 1}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := item
	return &out, nil
}

func (m *memoryRepo) GetByCode(_ context.Context, code string) (*Item, error) {
	for _, item := range m.items {
		if item.Code == code {
			out := item
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, req ListItemsRequest) ([]Item, int, error) {
	var out []Item
	for _, item := range m.items {
		if req.Kind != nil && item.Kind != *req.Kind {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, item Item) (int64, error) {
	for _, existing := range m.items {
		if existing.Code == item.Code {
			return 0, ErrDuplicate
		}
	}
	item.ID = m.nextID
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	m.nextID++
	return item.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	for col, v := range updates {
		switch col {
		case "name":
			item.Name = v.(string)
		case "brand":
			item.Brand = v.(*string)
		case "base_price":
			item.BasePrice = v.(float64)
		case "cost":
			item.Cost = v.(float64)
		case "is_active":
			item.IsActive = v.(bool)
		case "tier_vsp":
			item.Tiers.VSP = v.(string)
		case "tier_eyemed":
			item.Tiers.EyeMed = v.(string)
		case "tier_spectera":
			item.Tiers.Spectera = v.(string)
		}
	}
	m.items[id] = item
	return nil
}

func TestCreateNormalizesInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	item, err := svc.Create(context.Background(), CreateItemRequest{
		Code:      "  FR-RAYBAN-2140  ",
		Name:      " Ray-Ban Wayfarer ",
		Kind:      "frame",
		BasePrice: 189,
		Cost:      62,
		TierVSP:   "K",
	}, 7)
	require.NoError(t, err)
	require.Equal(t, "FR-RAYBAN-2140", item.Code)
	require.Equal(t, "Ray-Ban Wayfarer", item.Name)
	require.Equal(t, KindFrame, item.Kind)
	require.True(t, item.IsActive)
	require.Equal(t, int64(7), item.CreatedBy)
	require.Equal(t, "K", item.Tiers.VSP)
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), CreateItemRequest{
		Code: "X1", Name: "Widget", Kind: "ACCESSORY",
	}, 1)
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestCreateRejectsInvalidTierCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), CreateItemRequest{
		Code: "LN-1", Name: "SV Poly", Kind: "LENS", TierVSP: "Z",
	}, 1)
	require.ErrorIs(t, err, ErrInvalidTier)

	_, err = svc.Create(context.Background(), CreateItemRequest{
		Code: "LN-2", Name: "SV Poly", Kind: "LENS", TierEyeMed: "tier_9",
	}, 1)
	require.ErrorIs(t, err, ErrInvalidTier)
}

func TestUpdateRevalidatesTiers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	item, err := svc.Create(context.Background(), CreateItemRequest{
		Code: "LN-AR", Name: "AR Coating", Kind: "ENHANCEMENT", TierSpect: "III",
	}, 1)
	require.NoError(t, err)

	bad := "VIII"
	_, err = svc.Update(context.Background(), item.ID, UpdateItemRequest{TierSpect: &bad}, 1)
	require.ErrorIs(t, err, ErrInvalidTier)

	good := "V"
	price := 79.0
	updated, err := svc.Update(context.Background(), item.ID, UpdateItemRequest{TierSpect: &good, BasePrice: &price}, 1)
	require.NoError(t, err)
	require.Equal(t, "V", updated.Tiers.Spectera)
	require.Equal(t, 79.0, updated.BasePrice)
	require.Equal(t, "AR Coating", updated.Name)
}

func TestCreateDuplicateCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateItemRequest{Code: "FR-1", Name: "A", Kind: "FRAME"}, 1)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateItemRequest{Code: "FR-1", Name: "B", Kind: "FRAME"}, 1)
	require.ErrorIs(t, err, ErrDuplicate)
}
