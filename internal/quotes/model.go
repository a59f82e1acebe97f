package quotes

import (
	"fmt"
	"time"

	"github.com/opticore-pos/opticore/internal/pricing"
)

// Status enumerates the quote lifecycle states.
type Status string

const (
	StatusBuilding  Status = "BUILDING"
	StatusDraft     Status = "DRAFT"
	StatusPresented Status = "PRESENTED"
	StatusSigned    Status = "SIGNED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// ValidStatus reports whether s is part of the lifecycle vocabulary.
func ValidStatus(s Status) bool {
	switch s {
	case StatusBuilding, StatusDraft, StatusPresented, StatusSigned, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Role identifies the actor requesting a transition.
type Role string

const (
	RoleFrontDesk Role = "front_desk"
	RoleOptician  Role = "optician"
	RoleManager   Role = "manager"
	// RoleSystem is reserved for scheduler-driven transitions such as
	// draft expiry; it is never assigned to a human actor.
	RoleSystem Role = "system"
)

// CompletionFlags are one-way booleans set by their corresponding
// transitions; only a regression to BUILDING resets building/presentation.
type CompletionFlags struct {
	Building     bool `json:"building_completed"`
	Presentation bool `json:"presentation_completed"`
	Signatures   bool `json:"signatures_completed"`
	Fulfillment  bool `json:"fulfillment_completed"`
}

// ExamServiceLine is a selected exam service.
type ExamServiceLine struct {
	ServiceID int64             `json:"service_id"`
	Name      string            `json:"name"`
	Price     float64           `json:"price"`
	Quantity  int               `json:"quantity"`
	Tiers     pricing.ItemTiers `json:"tiers,omitempty"`
}

// FrameSelection captures the frame component of an eyeglass order. When
// PatientOwned is true the catalog price is replaced by the flat service fee
// recorded in ServiceFee.
type FrameSelection struct {
	ItemID       int64             `json:"item_id,omitempty"`
	Name         string            `json:"name"`
	Price        float64           `json:"price"`
	Tiers        pricing.ItemTiers `json:"tiers,omitempty"`
	PatientOwned bool              `json:"patient_owned"`
	ServiceFee   float64           `json:"service_fee,omitempty"`
}

// LensSelection captures the lens component.
type LensSelection struct {
	ItemID int64             `json:"item_id"`
	Name   string            `json:"name"`
	Price  float64           `json:"price"`
	Tiers  pricing.ItemTiers `json:"tiers,omitempty"`
}

// EnhancementSelection is an optional lens add-on (coating, tint, etc).
type EnhancementSelection struct {
	ItemID int64             `json:"item_id"`
	Name   string            `json:"name"`
	Price  float64           `json:"price"`
	Tiers  pricing.ItemTiers `json:"tiers,omitempty"`
}

// EyeglassSelection groups the frame, lenses and enhancements of one pair.
type EyeglassSelection struct {
	Frame        *FrameSelection        `json:"frame,omitempty"`
	Lens         *LensSelection         `json:"lens,omitempty"`
	Enhancements []EnhancementSelection `json:"enhancements,omitempty"`
}

// ContactLensLine is a selected contact lens supply.
type ContactLensLine struct {
	ItemID     int64             `json:"item_id"`
	Brand      string            `json:"brand"`
	LensType   string            `json:"lens_type"`
	Parameters string            `json:"parameters,omitempty"`
	Price      float64           `json:"price"`
	Quantity   int               `json:"quantity"`
	Tiers      pricing.ItemTiers `json:"tiers,omitempty"`
}

// Basket groups the three line-item categories of a quote.
type Basket struct {
	ExamServices []ExamServiceLine `json:"exam_services,omitempty"`
	Eyeglasses   *EyeglassSelection `json:"eyeglasses,omitempty"`
	Contacts     []ContactLensLine `json:"contacts,omitempty"`
}

// Empty reports whether nothing has been selected yet.
func (b Basket) Empty() bool {
	return len(b.ExamServices) == 0 && len(b.Contacts) == 0 &&
		(b.Eyeglasses == nil || (b.Eyeglasses.Frame == nil && b.Eyeglasses.Lens == nil && len(b.Eyeglasses.Enhancements) == 0))
}

// HasFrame reports whether the basket contains an eyeglass frame, a
// precondition for second-pair discounts.
func (b Basket) HasFrame() bool {
	return b.Eyeglasses != nil && b.Eyeglasses.Frame != nil
}

// PricingItems flattens the basket into pricing engine line items.
func (b Basket) PricingItems() []pricing.LineItem {
	var items []pricing.LineItem
	for _, svc := range b.ExamServices {
		items = append(items, pricing.LineItem{
			Category:    pricing.CategoryExam,
			Description: svc.Name,
			BasePrice:   svc.Price,
			Quantity:    svc.Quantity,
			Tiers:       svc.Tiers,
		})
	}
	if eg := b.Eyeglasses; eg != nil {
		if eg.Frame != nil {
			price := eg.Frame.Price
			tiers := eg.Frame.Tiers
			if eg.Frame.PatientOwned {
				// Patient-owned frames bill the flat service fee and never
				// participate in tier discounting.
				price = eg.Frame.ServiceFee
				tiers = pricing.ItemTiers{}
			}
			items = append(items, pricing.LineItem{
				Category:    pricing.CategoryEyeglasses,
				Description: eg.Frame.Name,
				BasePrice:   price,
				Quantity:    1,
				Tiers:       tiers,
			})
		}
		if eg.Lens != nil {
			items = append(items, pricing.LineItem{
				Category:    pricing.CategoryEyeglasses,
				Description: eg.Lens.Name,
				BasePrice:   eg.Lens.Price,
				Quantity:    1,
				Tiers:       eg.Lens.Tiers,
			})
		}
		for _, enh := range eg.Enhancements {
			items = append(items, pricing.LineItem{
				Category:    pricing.CategoryEyeglasses,
				Description: enh.Name,
				BasePrice:   enh.Price,
				Quantity:    1,
				Tiers:       enh.Tiers,
			})
		}
	}
	for _, cl := range b.Contacts {
		items = append(items, pricing.LineItem{
			Category:    pricing.CategoryContacts,
			Description: fmt.Sprintf("%s %s", cl.Brand, cl.LensType),
			BasePrice:   cl.Price,
			Quantity:    cl.Quantity,
			Tiers:       cl.Tiers,
		})
	}
	return items
}

// PatientFrame records the condition assessment and liability waiver for a
// patient-owned frame.
type PatientFrame struct {
	Condition      string     `json:"condition"`
	Description    string     `json:"description"`
	EstimatedValue float64    `json:"estimated_value"`
	WaiverSigned   bool       `json:"waiver_signed"`
	WaiverWitness  *int64     `json:"waiver_witness,omitempty"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
}

// Quote is the central entity of the point of sale.
type Quote struct {
	ID          int64  `json:"id" db:"id"`
	QuoteNumber string `json:"quote_number" db:"quote_number"`

	CustomerID int64  `json:"customer_id" db:"customer_id"`
	CreatedBy  int64  `json:"created_by" db:"created_by"`
	LocationID *int64 `json:"location_id,omitempty" db:"location_id"`

	Status          Status  `json:"status" db:"status"`
	PreviousStatus  *Status `json:"previous_status,omitempty" db:"previous_status"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty" db:"status_changed_at"`
	StatusChangedBy *int64     `json:"status_changed_by,omitempty" db:"status_changed_by"`
	StatusReason    *string    `json:"status_reason,omitempty" db:"status_reason"`

	Flags CompletionFlags `json:"flags"`

	Basket           Basket          `json:"basket"`
	InsuranceCarrier pricing.Carrier `json:"insurance_carrier,omitempty" db:"insurance_carrier"`

	Subtotal              float64 `json:"subtotal" db:"subtotal"`
	InsuranceDiscount     float64 `json:"insurance_discount" db:"insurance_discount"`
	Discount              float64 `json:"discount" db:"discount"`
	Tax                   float64 `json:"tax" db:"tax"`
	Total                 float64 `json:"total" db:"total"`
	PatientResponsibility float64 `json:"patient_responsibility" db:"patient_responsibility"`

	IsSecondPair    bool   `json:"is_second_pair" db:"is_second_pair"`
	OriginalQuoteID *int64 `json:"original_quote_id,omitempty" db:"original_quote_id"`

	PatientFrame *PatientFrame `json:"patient_frame,omitempty"`

	ExamSignedAt      *time.Time `json:"exam_signed_at,omitempty" db:"exam_signed_at"`
	MaterialsSignedAt *time.Time `json:"materials_signed_at,omitempty" db:"materials_signed_at"`
	PaymentReceived   bool       `json:"payment_received" db:"payment_received"`

	DraftCreatedAt *time.Time `json:"draft_created_at,omitempty" db:"draft_created_at"`
	PresentedAt    *time.Time `json:"presented_at,omitempty" db:"presented_at"`
	SignedAt       *time.Time `json:"signed_at,omitempty" db:"signed_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	ExpiredAt      *time.Time `json:"expired_at,omitempty" db:"expired_at"`

	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// SignaturesOnFile reports whether both required signatures are captured.
func (q *Quote) SignaturesOnFile() bool {
	return q.ExamSignedAt != nil && q.MaterialsSignedAt != nil
}
