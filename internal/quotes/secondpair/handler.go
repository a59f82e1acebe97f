package secondpair

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

// Handler exposes second-pair discount endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     quotes.IdempotencyGuard
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, idem quotes.IdempotencyGuard, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		idem:     idem,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers endpoints under a quote-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotesView))
		r.Get("/", h.Get)
		r.Get("/eligibility", h.Eligibility)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotesManage))
		r.Post("/", h.Apply)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotesDiscountOverride))
		r.Post("/override", h.Override)
	})
}

func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	elig, err := h.service.CheckEligibility(r.Context(), id)
	if err != nil {
		h.respondError(w, "check second-pair eligibility", err)
		return
	}
	httpx.JSON(w, http.StatusOK, elig)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no second-pair discount on this quote")
			return
		}
		h.respondError(w, "get second-pair record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	key, ok := h.claimIdempotencyKey(w, r)
	if !ok {
		return
	}
	rec, elig, err := h.service.Apply(r.Context(), id, currentUserID(r))
	if err != nil {
		h.releaseIdempotencyKey(r, key)
		switch {
		case errors.Is(err, quotes.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		case errors.Is(err, ErrAlreadyApplied), errors.Is(err, ErrQuoteState):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("apply second-pair discount", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	if rec == nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"eligibility": elig})
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"record": rec, "eligibility": elig})
}

func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	var req OverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	key, ok := h.claimIdempotencyKey(w, r)
	if !ok {
		return
	}
	actor := currentUserID(r)
	rec, err := h.service.Override(r.Context(), id, req, actor, actor)
	if err != nil {
		h.releaseIdempotencyKey(r, key)
		switch {
		case errors.Is(err, quotes.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		case errors.Is(err, ErrInvalidPercent), errors.Is(err, ErrReasonTooShort):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		case errors.Is(err, ErrAlreadyApplied), errors.Is(err, ErrQuoteState), errors.Is(err, ErrNotDiscountable):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("apply second-pair override", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

// claimIdempotencyKey consumes the Idempotency-Key header when present. A
// replayed key short-circuits the request with 409.
func (h *Handler) claimIdempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get(shared.IdempotencyKeyHeader)
	if key == "" || h.idem == nil {
		return "", true
	}
	if err := h.idem.CheckAndInsert(r.Context(), key, "quotes.secondpair"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "this request was already processed")
			return "", false
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return "", false
	}
	return key, true
}

// releaseIdempotencyKey frees a consumed key after a failed write so the
// client can retry with it.
func (h *Handler) releaseIdempotencyKey(r *http.Request, key string) {
	if key == "" || h.idem == nil {
		return
	}
	if err := h.idem.Delete(r.Context(), key); err != nil {
		h.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, quotes.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func quoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quote id")
		return 0, false
	}
	return id, true
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
