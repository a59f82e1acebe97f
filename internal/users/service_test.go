package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	users  map[int64]*User
	hashes map[int64]string
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]*User{}, hashes: map[int64]string{}}
}

func (r *memoryRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) Create(ctx context.Context, email, fullName, passwordHash string) (int64, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return 0, ErrEmailTaken
		}
	}
	r.nextID++
	r.users[r.nextID] = &User{
		ID:        r.nextID,
		Email:     strings.ToLower(email),
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.hashes[r.nextID] = passwordHash
	return r.nextID, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	return nil
}

type fakeRoles struct {
	assigned map[int64][]int64
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{assigned: map[int64][]int64{}}
}

func (f *fakeRoles) AssignRole(ctx context.Context, userID, roleID int64) error {
	f.assigned[userID] = append(f.assigned[userID], roleID)
	return nil
}

func (f *fakeRoles) RemoveRole(ctx context.Context, userID, roleID int64) error {
	kept := f.assigned[userID][:0]
	for _, id := range f.assigned[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.assigned[userID] = kept
	return nil
}

func (f *fakeRoles) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	names := map[int64]string{1: "manager", 2: "optician", 3: "front_desk"}
	var out []string
	for _, id := range f.assigned[userID] {
		out = append(out, names[id])
	}
	return out, nil
}

func TestCreateHashesPasswordAndGrantsRoles(t *testing.T) {
	repo := newMemoryRepo()
	roles := newFakeRoles()
	svc := NewService(repo, roles, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "New.Optician@Example.com",
		FullName: "New Optician",
		Password: "correct horse battery",
		RoleIDs:  []int64{2},
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "new.optician@example.com", user.Email)
	require.Equal(t, []string{"optician"}, user.Roles)
	require.True(t, user.IsActive)

	// The stored hash verifies against the password and is not the password.
	hash := repo.hashes[user.ID]
	require.NotEqual(t, "correct horse battery", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, newFakeRoles(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserRequest{Email: "a@example.com", FullName: "A", Password: "a long password"}, 1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateUserRequest{Email: "A@example.com", FullName: "A again", Password: "a long password"}, 1)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSetActiveTogglesAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, newFakeRoles(), nil)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserRequest{Email: "a@example.com", FullName: "A", Password: "a long password"}, 1)
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, user.ID, false, 1))
	require.False(t, repo.users[user.ID].IsActive)

	require.NoError(t, svc.SetActive(ctx, user.ID, true, 1))
	require.True(t, repo.users[user.ID].IsActive)

	require.ErrorIs(t, svc.SetActive(ctx, 404, false, 1), ErrNotFound)
}

func TestAssignRoleRequiresExistingUser(t *testing.T) {
	repo := newMemoryRepo()
	roles := newFakeRoles()
	svc := NewService(repo, roles, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.AssignRole(ctx, 404, 1), ErrNotFound)

	user, err := svc.Create(ctx, CreateUserRequest{Email: "a@example.com", FullName: "A", Password: "a long password"}, 1)
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, user.ID, 1))
	require.Equal(t, []int64{1}, roles.assigned[user.ID])

	require.NoError(t, svc.RemoveRole(ctx, user.ID, 1))
	require.Empty(t, roles.assigned[user.ID])
}
