package quotes

import (
	"github.com/go-chi/chi/v5"

	"github.com/opticore-pos/opticore/internal/shared"
)

// MountRoutes registers quote endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotesView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/next-states", h.NextStates)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotesManage))
		r.Post("/", h.Create)
		r.Post("/{id}/basket", h.UpdateBasket)
		r.Post("/{id}/transition", h.Transition)
		r.Post("/{id}/signature", h.Signature)
		r.Post("/{id}/payment", h.Payment)
	})
}
