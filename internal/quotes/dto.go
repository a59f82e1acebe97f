package quotes

import "time"

// CreateQuoteRequest opens a new quote in BUILDING for a customer.
type CreateQuoteRequest struct {
	CustomerID       int64   `json:"customer_id" validate:"required,gt=0"`
	LocationID       *int64  `json:"location_id,omitempty"`
	InsuranceCarrier string  `json:"insurance_carrier,omitempty"`
	Basket           *Basket `json:"basket,omitempty"`
}

// UpdateBasketRequest replaces the quote's basket while it is being built.
type UpdateBasketRequest struct {
	Basket           Basket  `json:"basket"`
	InsuranceCarrier *string `json:"insurance_carrier,omitempty"`
}

// TransitionRequest asks the state machine to move the quote.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

// TransitionResult reports the outcome of a transition request.
type TransitionResult struct {
	Quote           *Quote   `json:"quote,omitempty"`
	Decision        Decision `json:"decision"`
	ApprovalRequest *string  `json:"approval_request_id,omitempty"`
}

// SignatureRequest records one of the two required signatures.
type SignatureRequest struct {
	Kind string `json:"kind" validate:"required,oneof=exam materials"`
}

// ListQuotesRequest filters quote listings.
type ListQuotesRequest struct {
	CustomerID *int64     `json:"customer_id,omitempty"`
	LocationID *int64     `json:"location_id,omitempty"`
	Status     *Status    `json:"status,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	Limit      int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int        `json:"offset" validate:"gte=0"`
}
