package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/stampcard/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/stamp/claim", h.ClaimStamp)
		r.Post("/spin", h.Spin)
		r.Post("/redeem/by-qr", h.RedeemByQR)
		r.Get("/wallet", h.GetWallet)
		r.Get("/business-config", h.GetBusinessConfig)

		r.Group(func(r chi.Router) {
			r.Use(h.pinLimit)

			r.Post("/stamp/add", h.AddStamp)
			r.Post("/redeem", h.Redeem)

			r.Post("/admin/config", h.GetAdminConfig)
			r.Put("/admin/config", h.UpdateConfig)
			r.Post("/admin/stamp-qr", h.IssueStampQR)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
