package catalog

// CreateItemRequest creates a catalog item.
type CreateItemRequest struct {
	Code       string  `json:"code" validate:"required,max=40"`
	Name       string  `json:"name" validate:"required,max=200"`
	Kind       string  `json:"kind" validate:"required"`
	Brand      *string `json:"brand,omitempty"`
	BasePrice  float64 `json:"base_price" validate:"gte=0"`
	Cost       float64 `json:"cost" validate:"gte=0"`
	TierVSP    string  `json:"tier_vsp,omitempty"`
	TierEyeMed string  `json:"tier_eyemed,omitempty"`
	TierSpect  string  `json:"tier_spectera,omitempty"`
	LocationID *int64  `json:"location_id,omitempty"`
}

// UpdateItemRequest mutates an existing catalog item. Nil fields are left
// untouched.
type UpdateItemRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Brand      *string  `json:"brand,omitempty"`
	BasePrice  *float64 `json:"base_price,omitempty" validate:"omitempty,gte=0"`
	Cost       *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`
	TierVSP    *string  `json:"tier_vsp,omitempty"`
	TierEyeMed *string  `json:"tier_eyemed,omitempty"`
	TierSpect  *string  `json:"tier_spectera,omitempty"`
	IsActive   *bool    `json:"is_active,omitempty"`
}

// ListItemsRequest filters catalog listings.
type ListItemsRequest struct {
	Kind       *ItemKind `json:"kind,omitempty"`
	LocationID *int64    `json:"location_id,omitempty"`
	IsActive   *bool     `json:"is_active,omitempty"`
	Search     string    `json:"search,omitempty"`
	Limit      int       `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int       `json:"offset" validate:"gte=0"`
}
