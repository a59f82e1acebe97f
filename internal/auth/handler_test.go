package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opticore-pos/opticore/internal/auth"
	"github.com/opticore-pos/opticore/internal/shared"
)

type stubRepo struct {
	user     *auth.User
	sessions []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions = append(s.sessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	for i, sid := range s.sessions {
		if sid == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
		}
	}
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager)
	return handler, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           7,
		Email:        "optician@example.com",
		FullName:     "Pat Optician",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func newSession(t *testing.T, sessionManager *shared.SessionManager) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestLoginSuccessBindsSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "hunter2hunter2")}
	handler, sessionManager := newAuthHandler(t, repo)

	sess := newSession(t, sessionManager)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"optician@example.com","password":"hunter2hunter2"}`))
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7", sess.User())
	require.Equal(t, []string{sess.ID}, repo.sessions)
	require.NotContains(t, rec.Body.String(), "password_hash")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "hunter2hunter2")}
	handler, sessionManager := newAuthHandler(t, repo)

	sess := newSession(t, sessionManager)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"optician@example.com","password":"wrongwrongwrong"}`))
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := activeUser(t, "hunter2hunter2")
	user.IsActive = false
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user})

	sess := newSession(t, sessionManager)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"optician@example.com","password":"hunter2hunter2"}`))
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	sess := newSession(t, sessionManager)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"not-an-email","password":"short"}`))
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Login(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRemovesSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "hunter2hunter2")}
	handler, sessionManager := newAuthHandler(t, repo)

	sess := newSession(t, sessionManager)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"optician@example.com","password":"hunter2hunter2"}`))
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, repo.sessions)
}

func TestMeRequiresSignIn(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	sess := newSession(t, sessionManager)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.Me(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	sess.SetUser("42")
	rec = httptest.NewRecorder()
	handler.Me(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "42")
}
