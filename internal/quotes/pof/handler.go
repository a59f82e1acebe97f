package pof

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opticore-pos/opticore/internal/platform/httpx"
	"github.com/opticore-pos/opticore/internal/quotes"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/shared"
)

// Handler exposes patient-owned frame endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers endpoints under a quote-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotesManage))
		r.Post("/assess", h.Assess)
		r.Post("/", h.Attach)
	})
}

// Assess runs the condition check without modifying the quote, so the
// optician can see the verdict before the waiver conversation.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	var intake FrameIntake
	if err := httpx.DecodeJSON(r, &intake); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(intake); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Assess(intake))
}

func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quote id")
		return
	}
	var req AttachRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	q, assessment, err := h.service.Attach(r.Context(), id, req, currentUserID(r))
	if err != nil {
		switch {
		case errors.Is(err, quotes.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		case errors.Is(err, ErrFrameRejected), errors.Is(err, ErrWaiverRequired):
			httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      err.Error(),
				"assessment": assessment,
			})
		case errors.Is(err, ErrQuoteState):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("attach patient-owned frame", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quote":      q,
		"assessment": assessment,
	})
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
