package rbac

import "time"

// Well-known role names referenced by the quote workflow.
const (
	RoleManager   = "manager"
	RoleOptician  = "optician"
	RoleFrontDesk = "front_desk"
)

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}
