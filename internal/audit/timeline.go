// Package audit exposes the read side of the audit trail that
// shared.AuditLogger writes.
package audit

import "time"

// TimelineRow is one audit entry as returned to API clients.
type TimelineRow struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// TimelineFilters narrows the audit timeline. Zero values mean "no filter".
type TimelineFilters struct {
	From     *time.Time
	To       *time.Time
	ActorID  *int64
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}
