package quotes

import (
	"fmt"
)

// Decision is the outcome of validating a requested transition.
type Decision struct {
	Valid            bool   `json:"valid"`
	Reason           string `json:"reason,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
	NoOp             bool   `json:"no_op,omitempty"`
}

// transitions is the allowed edge set of the lifecycle graph. Terminal
// states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusBuilding:  {StatusDraft},
	StatusDraft:     {StatusPresented, StatusBuilding, StatusCancelled, StatusExpired},
	StatusPresented: {StatusSigned, StatusBuilding, StatusCancelled},
	StatusSigned:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

func edgeAllowed(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks whether the quote may move from its current
// status to the requested one, given the actor's role and a cancel reason.
// A request for the current status is an idempotent no-op that succeeds.
func ValidateTransition(q *Quote, requested Status, role Role, reason string) Decision {
	if !ValidStatus(requested) {
		return Decision{Valid: false, Reason: fmt.Sprintf("unknown status %q", requested)}
	}

	current := q.Status
	if requested == current {
		return Decision{Valid: true, NoOp: true}
	}

	if !edgeAllowed(current, requested) {
		return Decision{Valid: false, Reason: fmt.Sprintf("transition %s -> %s is not allowed", current, requested)}
	}

	switch requested {
	case StatusPresented:
		if q.Basket.Empty() {
			return Decision{Valid: false, Reason: "quote cannot be presented with an empty basket"}
		}
	case StatusSigned:
		if !q.SignaturesOnFile() {
			return Decision{Valid: false, Reason: "both exam and materials signatures must be on file before signing"}
		}
	case StatusCompleted:
		if !q.PaymentReceived {
			return Decision{Valid: false, Reason: "payment must be received before completing the quote"}
		}
	case StatusCancelled:
		if reason == "" {
			return Decision{Valid: false, Reason: "a cancellation reason is required"}
		}
		// Cancelling after signatures needs a manager; without one the
		// caller must park the request in the approval queue.
		if current == StatusSigned && role != RoleManager {
			return Decision{Valid: true, RequiresApproval: true, Reason: "cancelling a signed quote requires manager approval"}
		}
	case StatusExpired:
		if role != RoleSystem {
			return Decision{Valid: false, Reason: "quotes expire automatically; expiry cannot be requested directly"}
		}
	}

	return Decision{Valid: true}
}

// NextValidStates returns the states reachable in one step from the quote's
// current status, accounting for its data gates but not actor role. Used for
// UI affordances; it never mutates the quote. The current status itself is
// always a trivially valid request and is not included.
func NextValidStates(q *Quote) []Status {
	var out []Status
	for _, next := range transitions[q.Status] {
		switch next {
		case StatusPresented:
			if q.Basket.Empty() {
				continue
			}
		case StatusSigned:
			if !q.SignaturesOnFile() {
				continue
			}
		case StatusCompleted:
			if !q.PaymentReceived {
				continue
			}
		}
		out = append(out, next)
	}
	return out
}

// applyTransition mutates the quote's status fields, audit metadata and
// completion flags for a validated transition. The caller persists the
// result atomically, conditioned on the expected prior status.
func applyTransition(q *Quote, requested Status, actorID int64, reason string, now nowFunc) {
	prev := q.Status
	ts := now()

	q.PreviousStatus = &prev
	q.Status = requested
	q.StatusChangedAt = &ts
	if actorID != 0 {
		q.StatusChangedBy = &actorID
	} else {
		q.StatusChangedBy = nil
	}
	if reason != "" {
		q.StatusReason = &reason
	} else {
		q.StatusReason = nil
	}
	q.LastActivityAt = ts

	switch requested {
	case StatusDraft:
		q.Flags.Building = true
		if q.DraftCreatedAt == nil {
			q.DraftCreatedAt = &ts
		}
	case StatusPresented:
		q.Flags.Presentation = true
		q.PresentedAt = &ts
	case StatusSigned:
		q.Flags.Signatures = true
		q.SignedAt = &ts
	case StatusCompleted:
		q.Flags.Fulfillment = true
		q.CompletedAt = &ts
	case StatusBuilding:
		// Explicit regression back to editing: the building and
		// presentation phases must be redone.
		q.Flags.Building = false
		q.Flags.Presentation = false
	case StatusCancelled:
		q.CancelledAt = &ts
	case StatusExpired:
		q.ExpiredAt = &ts
	}
}
