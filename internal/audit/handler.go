package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opticore-pos/opticore/internal/platform/httpx"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/shared"
)

// Handler exposes the audit timeline endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers audit endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAuditView))
		r.Get("/", h.Timeline)
	})
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	f := parseFilters(r)

	rows, total, err := h.service.Timeline(r.Context(), f)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	page := f.Page
	if page <= 0 {
		page = 1
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    rows,
		"pagination": shared.NewPagination(page, f.PageSize, total),
	})
}

func parseFilters(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	var f TimelineFilters
	if from, err := time.Parse("2006-01-02", q.Get("date_from")); err == nil {
		f.From = &from
	}
	if to, err := time.Parse("2006-01-02", q.Get("date_to")); err == nil {
		// Inclusive end of day.
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}
	if actor, err := strconv.ParseInt(q.Get("actor_id"), 10, 64); err == nil {
		f.ActorID = &actor
	}
	f.Entity = q.Get("entity")
	f.EntityID = q.Get("entity_id")
	f.Action = q.Get("action")
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = page
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil {
		f.PageSize = size
	}
	return f
}
