package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/opticore-pos/opticore/internal/shared"
)

// MountRoutes registers customer endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermCustomersView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCustomersManage))
		r.Post("/", h.Create)
		r.Post("/{id}", h.Update)
	})
}
