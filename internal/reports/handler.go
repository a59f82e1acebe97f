package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opticore-pos/opticore/internal/platform/httpx"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/shared"
)

// Handler exposes reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cache   *Cache
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		cache:   cache,
		rbac:    rbacMW,
	}
}

// MountRoutes registers reporting endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsView))
		r.Get("/summary", h.Summary)
		r.Get("/revenue-trend", h.RevenueTrend)
	})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, locationID, ok := reportWindow(w, r)
	if !ok {
		return
	}

	key, err := h.cache.BuildKey(r.Context(), keySummary(locationID, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		h.logger.Error("build report cache key", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	var summary Summary
	result, err, _ := singleflightBuild(r.Context(), key, func(ctx context.Context) (interface{}, error) {
		var s Summary
		err := h.cache.FetchJSON(ctx, key, &s, func(ctx context.Context) (interface{}, error) {
			return h.service.Summary(ctx, from, to, locationID)
		})
		return s, err
	})
	if err != nil {
		h.logger.Error("build sales summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	summary = result.(Summary)
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) RevenueTrend(w http.ResponseWriter, r *http.Request) {
	from, to, locationID, ok := reportWindow(w, r)
	if !ok {
		return
	}

	key, err := h.cache.BuildKey(r.Context(), keyRevenueTrend(locationID, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		h.logger.Error("build report cache key", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	result, err, _ := singleflightBuild(r.Context(), key, func(ctx context.Context) (interface{}, error) {
		var points []RevenuePoint
		err := h.cache.FetchJSON(ctx, key, &points, func(ctx context.Context) (interface{}, error) {
			return h.service.RevenueTrend(ctx, from, to, locationID)
		})
		return points, err
	})
	if err != nil {
		h.logger.Error("build revenue trend", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"points": result})
}

// reportWindow parses from/to/location query parameters, defaulting to the
// trailing thirty days.
func reportWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, *int64, bool) {
	q := r.URL.Query()
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, nil, false
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, nil, false
		}
		// Inclusive end date.
		to = t.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must precede to")
		return time.Time{}, time.Time{}, nil, false
	}

	var locationID *int64
	if raw := q.Get("location_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid location_id")
			return time.Time{}, time.Time{}, nil, false
		}
		locationID = &id
	}
	return from, to, locationID, true
}
