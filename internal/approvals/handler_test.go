package approvals_test

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
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/opticore-pos/opticore/internal/approvals"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/shared"
)

type stubQueue struct {
	requests []shared.ApprovalRequest

	decidedID uuid.UUID
	decidedAs shared.ApprovalStatus
	decidedBy int64
	decideErr error
}

func (s *stubQueue) List(ctx context.Context, module string, refID int64) ([]shared.ApprovalRequest, error) {
	var out []shared.ApprovalRequest
	for _, r := range s.requests {
		if r.Module == module && r.RefID == refID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubQueue) Decide(ctx context.Context, id uuid.UUID, status shared.ApprovalStatus, decidedBy int64) error {
	if s.decideErr != nil {
		return s.decideErr
	}
	s.decidedID = id
	s.decidedAs = status
	s.decidedBy = decidedBy
	return nil
}

func newApprovalsHandler(t *testing.T, queue *stubQueue) (*approvals.Handler, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	sess, err := sessionManager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("9")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return approvals.NewHandler(logger, queue, rbac.Middleware{}), sess
}

func TestListFiltersByModuleAndRef(t *testing.T) {
	queue := &stubQueue{requests: []shared.ApprovalRequest{
		{ID: uuid.New(), Module: "quotes", RefID: 42, Action: "CANCEL_SIGNED", Status: shared.ApprovalPending},
		{ID: uuid.New(), Module: "quotes", RefID: 99, Action: "CANCEL_SIGNED", Status: shared.ApprovalPending},
	}}
	handler, sess := newApprovalsHandler(t, queue)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/approvals?ref_id=42", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "CANCEL_SIGNED")
	require.Contains(t, rec.Body.String(), queue.requests[0].ID.String())
	require.NotContains(t, rec.Body.String(), queue.requests[1].ID.String())
}

func TestListRequiresRefID(t *testing.T) {
	handler, sess := newApprovalsHandler(t, &stubQueue{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.List(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func decideRequest(t *testing.T, sess *shared.Session, id, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/approvals/"+id+"/decision", strings.NewReader(body))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	return req.WithContext(shared.ContextWithSession(ctx, sess))
}

func TestDecideGrantsRequest(t *testing.T) {
	queue := &stubQueue{}
	handler, sess := newApprovalsHandler(t, queue)
	id := uuid.New()

	rec := httptest.NewRecorder()
	handler.Decide(rec, decideRequest(t, sess, id.String(), `{"decision":"granted"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, id, queue.decidedID)
	require.Equal(t, shared.ApprovalGranted, queue.decidedAs)
	require.Equal(t, int64(9), queue.decidedBy)
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	handler, sess := newApprovalsHandler(t, &stubQueue{})

	rec := httptest.NewRecorder()
	handler.Decide(rec, decideRequest(t, sess, uuid.New().String(), `{"decision":"MAYBE"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideConflictsWhenAlreadyDecided(t *testing.T) {
	queue := &stubQueue{decideErr: shared.ErrApprovalDecided}
	handler, sess := newApprovalsHandler(t, queue)

	rec := httptest.NewRecorder()
	handler.Decide(rec, decideRequest(t, sess, uuid.New().String(), `{"decision":"DENIED"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecideNotFound(t *testing.T) {
	queue := &stubQueue{decideErr: shared.ErrApprovalNotFound}
	handler, sess := newApprovalsHandler(t, queue)

	rec := httptest.NewRecorder()
	handler.Decide(rec, decideRequest(t, sess, uuid.New().String(), `{"decision":"GRANTED"}`))

	require.Equal(t, http.StatusNotFound, rec.Code)
}
