package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/opticore-pos/opticore/internal/shared"
)

// RoleDirectory is the slice of the RBAC service user administration needs.
type RoleDirectory interface {
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	UserRoles(ctx context.Context, userID int64) ([]string, error)
}

// CreateUserRequest opens a new staff account.
type CreateUserRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	Password string  `json:"password" validate:"required,min=12"`
	RoleIDs  []int64 `json:"role_ids,omitempty"`
}

// Service handles staff account administration.
type Service struct {
	repo  Repository
	roles RoleDirectory
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, roles RoleDirectory, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, roles: roles, audit: audit}
}

// List returns all staff accounts with their role names attached.
func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		roles, err := s.roles.UserRoles(ctx, users[i].ID)
		if err != nil {
			return nil, fmt.Errorf("load roles for user %d: %w", users[i].ID, err)
		}
		users[i].Roles = roles
	}
	return users, nil
}

// Create opens an account and grants the requested roles.
func (s *Service) Create(ctx context.Context, req CreateUserRequest, actorID int64) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.Create(ctx, req.Email, req.FullName, string(hash))
	if err != nil {
		return nil, err
	}
	for _, roleID := range req.RoleIDs {
		if err := s.roles.AssignRole(ctx, id, roleID); err != nil {
			return nil, fmt.Errorf("assign role %d: %w", roleID, err)
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "users.create",
			Entity:   "user",
			EntityID: req.Email,
		})
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Roles, err = s.roles.UserRoles(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetActive enables or disables sign-in for an account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool, actorID int64) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if s.audit != nil {
		action := "users.deactivate"
		if active {
			action = "users.activate"
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "user",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// AssignRole grants a role to an account.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	return s.roles.AssignRole(ctx, userID, roleID)
}

// RemoveRole revokes a role from an account.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.roles.RemoveRole(ctx, userID, roleID)
}
