package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"translation-orchestrator/internal/storage"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/translations", h.StartTranslation)
		r.Get("/translations", h.ListTranslations)
		r.Route("/translations/{requestId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetTranslation(w, r, chi.URLParam(r, "requestId"))
			})
			r.Get("/live", func(w http.ResponseWriter, r *http.Request) {
				h.LiveStatus(w, r, chi.URLParam(r, "requestId"))
			})
			r.Post("/{command}", func(w http.ResponseWriter, r *http.Request) {
				h.Control(w, r, chi.URLParam(r, "requestId"), chi.URLParam(r, "command"))
			})
		})

		r.Put("/settings/global", func(w http.ResponseWriter, r *http.Request) {
			h.PutSettings(w, r, storage.ScopeGlobal)
		})
		r.Put("/settings/sites/{site}", func(w http.ResponseWriter, r *http.Request) {
			h.PutSettings(w, r, storage.SiteScope(chi.URLParam(r, "site")))
		})
	})

	return r
}
