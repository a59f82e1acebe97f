package catalog

import (
	"github.com/go-chi/chi/v5"

	"github.com/opticore-pos/opticore/internal/shared"
)

// MountRoutes registers catalog endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermCatalogItemView))
		r.Get("/items", h.List)
		r.Get("/items/{id}", h.Get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCatalogItemManage))
		r.Post("/items", h.Create)
		r.Post("/items/{id}", h.Update)
	})
}
