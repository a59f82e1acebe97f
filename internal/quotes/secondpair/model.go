package secondpair

import "time"

// DiscountType identifies how the discount percentage was determined.
type DiscountType string

const (
	// DiscountSameDay applies when the new pair is quoted the same day the
	// original was completed.
	DiscountSameDay DiscountType = "SAME_DAY_50"
	// DiscountThirtyDay applies when the original completed within the last
	// thirty days.
	DiscountThirtyDay DiscountType = "THIRTY_DAY_30"
	// DiscountManagerOverride records a manager-authorized percentage outside
	// the automatic windows.
	DiscountManagerOverride DiscountType = "MANAGER_OVERRIDE"
)

// Percent returns the automatic percentage for the type. Manager overrides
// carry their own percentage and return 0 here.
func (t DiscountType) Percent() float64 {
	switch t {
	case DiscountSameDay:
		return 50
	case DiscountThirtyDay:
		return 30
	default:
		return 0
	}
}

// Record is one row of the immutable discount ledger. Records are only ever
// inserted; corrections happen by voiding the quote, never by editing the
// ledger.
type Record struct {
	ID              int64        `json:"id"`
	QuoteID         int64        `json:"quote_id"`
	OriginalQuoteID int64        `json:"original_quote_id"`
	Type            DiscountType `json:"type"`
	Percent         float64      `json:"percent"`
	Amount          float64      `json:"amount"`
	Reason          string       `json:"reason,omitempty"`
	AuthorizedBy    *int64       `json:"authorized_by,omitempty"`
	AppliedBy       int64        `json:"applied_by"`
	AppliedAt       time.Time    `json:"applied_at"`
}

// Candidate is one prior purchase considered during eligibility evaluation.
type Candidate struct {
	QuoteID     int64      `json:"quote_id"`
	QuoteNumber string     `json:"quote_number"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DaysSince   int        `json:"days_since"`
	Redeemed    bool       `json:"redeemed"`
	Qualifies   bool       `json:"qualifies"`
}

// Eligibility is the outcome of an eligibility check.
type Eligibility struct {
	Eligible        bool         `json:"eligible"`
	Type            DiscountType `json:"type,omitempty"`
	Percent         float64      `json:"percent"`
	OriginalQuoteID int64        `json:"original_quote_id,omitempty"`
	DaysSince       int          `json:"days_since"`
	Reasons         []string     `json:"reasons,omitempty"`
	Candidates      []Candidate  `json:"candidates,omitempty"`
}
