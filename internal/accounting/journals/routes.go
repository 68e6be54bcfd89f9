package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/reverse", h.Reverse)
	r.Post("/{id}/archive", h.Archive)
	r.Post("/drafts", h.SaveDraft)
	r.Put("/drafts/{id}", h.UpdateDraft)
	r.Post("/drafts/{id}/post", h.PostDraft)
	r.Delete("/drafts/{id}", h.DiscardDraft)
}
