package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers session routes behind the given middleware
func RegisterRoutes(r chi.Router, h *Handler, middlewares ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(middlewares...)

		r.Post("/upload", h.Upload)
		r.Post("/chat", h.Chat)
		r.Get("/session", h.GetSession)
		r.Delete("/session", h.EndSession)
		r.Get("/session/transcript", h.GetTranscript)
	})
}
