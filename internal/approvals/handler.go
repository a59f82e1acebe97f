// Package approvals exposes the manager decision surface for queued approval
// requests. Requests are created by the workflows that need them (for example
// cancelling a signed quote); managers list and decide them here, after which
// the requester retries the original action.
package approvals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opticore-pos/opticore/internal/platform/httpx"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/shared"
)

// Queue is the slice of the approval store the handler needs.
// *shared.ApprovalQueue satisfies it.
type Queue interface {
	List(ctx context.Context, module string, refID int64) ([]shared.ApprovalRequest, error)
	Decide(ctx context.Context, id uuid.UUID, status shared.ApprovalStatus, decidedBy int64) error
}

// Handler exposes approval queue endpoints.
type Handler struct {
	logger *slog.Logger
	queue  Queue
	rbac   rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, queue Queue, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, queue: queue, rbac: rbacMW}
}

// MountRoutes registers approval endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermApprovalsDecide))
		r.Get("/", h.List)
		r.Post("/{id}/decision", h.Decide)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if module == "" {
		module = "quotes"
	}
	refID, err := strconv.ParseInt(r.URL.Query().Get("ref_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ref_id query parameter is required")
		return
	}

	reqs, err := h.queue.List(r.Context(), module, refID)
	if err != nil {
		h.logger.Error("list approval requests", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": reqs})
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid approval request id")
		return
	}

	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	status := shared.ApprovalStatus(strings.ToUpper(strings.TrimSpace(req.Decision)))
	if status != shared.ApprovalGranted && status != shared.ApprovalDenied {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "decision must be GRANTED or DENIED")
		return
	}

	if err := h.queue.Decide(r.Context(), id, status, currentUserID(r)); err != nil {
		switch {
		case errors.Is(err, shared.ErrApprovalNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "approval request not found")
		case errors.Is(err, shared.ErrApprovalDecided):
			httpx.Problem(w, http.StatusConflict, "Conflict", "approval request already decided")
		default:
			h.logger.Error("decide approval request", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func currentUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
