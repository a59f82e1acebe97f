package quotes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opticore-pos/opticore/internal/observability"
	"github.com/opticore-pos/opticore/internal/platform/httpx"
	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/shared"
)

// IdempotencyGuard de-duplicates retried writes by client-supplied key.
// *shared.IdempotencyStore satisfies it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes quote lifecycle endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	roles    *rbac.Service
	idem     IdempotencyGuard
	metrics  *observability.Metrics
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, roles *rbac.Service, idem IdempotencyGuard, metrics *observability.Metrics, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		roles:    roles,
		idem:     idem,
		metrics:  metrics,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListQuotesRequest{Limit: 50}
	q := r.URL.Query()
	if cust := q.Get("customer_id"); cust != "" {
		if id, err := strconv.ParseInt(cust, 10, 64); err == nil {
			req.CustomerID = &id
		}
	}
	if loc := q.Get("location_id"); loc != "" {
		if id, err := strconv.ParseInt(loc, 10, 64); err == nil {
			req.LocationID = &id
		}
	}
	if status := q.Get("status"); status != "" {
		st := Status(status)
		if !ValidStatus(st) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown quote status "+status)
			return
		}
		req.Status = &st
	}
	if from := q.Get("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			req.DateFrom = &t
		}
	}
	if to := q.Get("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			req.DateTo = &t
		}
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		req.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 {
		req.Offset = offset
	}

	quotes, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list quotes", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"quotes":     quotes,
		"pagination": shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	q, err := h.service.Create(r.Context(), req, currentUserID(r))
	if err != nil {
		if errors.Is(err, ErrInvalidCarrier) || errors.Is(err, pricing.ErrInvalidItem) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("create quote", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) UpdateBasket(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	var req UpdateBasketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}

	q, err := h.service.UpdateBasket(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		case errors.Is(err, ErrBasketLocked):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		case errors.Is(err, ErrInvalidCarrier), errors.Is(err, pricing.ErrInvalidItem):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("update quote basket", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if !ValidStatus(req.Status) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown quote status "+string(req.Status))
		return
	}
	if req.Status == StatusExpired {
		// Expiry belongs to the scheduled sweep, not to users.
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "quotes expire automatically and cannot be expired manually")
		return
	}
	key, ok := h.claimIdempotencyKey(w, r, "quotes.transition")
	if !ok {
		return
	}

	result, err := h.service.Transition(r.Context(), id, req, currentUserID(r), h.callerRole(r))
	if err != nil {
		h.releaseIdempotencyKey(r, key)
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		case errors.Is(err, ErrStatusConflict):
			httpx.Problem(w, http.StatusConflict, "Conflict", "quote status changed concurrently, reload and retry")
		default:
			h.logger.Error("transition quote", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	switch {
	case !result.Decision.Valid:
		httpx.JSON(w, http.StatusUnprocessableEntity, result)
	case result.ApprovalRequest != nil:
		httpx.JSON(w, http.StatusAccepted, result)
	default:
		if !result.Decision.NoOp && result.Quote.PreviousStatus != nil {
			h.metrics.RecordTransition(string(*result.Quote.PreviousStatus), string(result.Quote.Status))
		}
		httpx.JSON(w, http.StatusOK, result)
	}
}

// claimIdempotencyKey consumes the Idempotency-Key header when present. A
// replayed key short-circuits the request with 409.
func (h *Handler) claimIdempotencyKey(w http.ResponseWriter, r *http.Request, module string) (string, bool) {
	key := r.Header.Get(shared.IdempotencyKeyHeader)
	if key == "" || h.idem == nil {
		return "", true
	}
	if err := h.idem.CheckAndInsert(r.Context(), key, module); err != nil {
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

func (h *Handler) NextStates(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	states, err := h.service.NextStates(r.Context(), id)
	if err != nil {
		h.respondError(w, "next quote states", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"next_states": states})
}

func (h *Handler) Signature(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	var req SignatureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	q, err := h.service.RecordSignature(r.Context(), id, req.Kind, currentUserID(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		case errors.Is(err, ErrSignatureState):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("record quote signature", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	q, err := h.service.RecordPayment(r.Context(), id, currentUserID(r))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
			return
		}
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// callerRole maps the session user onto the state machine's actor roles.
func (h *Handler) callerRole(r *http.Request) Role {
	userID := currentUserID(r)
	if userID == 0 {
		return RoleFrontDesk
	}
	isManager, err := h.roles.HasRole(r.Context(), userID, rbac.RoleManager)
	if err != nil {
		h.logger.Warn("resolve caller role", slog.Any("error", err))
		return RoleFrontDesk
	}
	if isManager {
		return RoleManager
	}
	isOptician, err := h.roles.HasRole(r.Context(), userID, rbac.RoleOptician)
	if err == nil && isOptician {
		return RoleOptician
	}
	return RoleFrontDesk
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
