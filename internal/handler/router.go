package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	custommiddleware "github.com/davidbanez/park-angel-v1-sub008/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бронирования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Content-Encoding"},
	}).Handler)
	if h.opts.RateLimiter != nil {
		r.Use(h.opts.RateLimiter.Limit)
	}
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments/webhook", h.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", h.CreateBooking)
				r.Get("/", h.ListBookings)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetBooking)
					r.Post("/confirm", h.ConfirmBooking)
					r.Post("/start", h.StartBooking)
					r.Post("/complete", h.CompleteBooking)
					r.Post("/cancel", h.CancelBooking)
					r.Post("/extend", h.ExtendBooking)
					r.Post("/discounts", h.AddDiscount)
					r.Delete("/discounts/{type}", h.RemoveDiscount)
				})
			})

			r.Route("/spots/{id}", func(r chi.Router) {
				r.Get("/availability", h.CheckAvailability)
				r.Get("/pricing", h.SpotPricing)
				r.Get("/access", h.SpotAccess)
			})

			r.Post("/quotes", h.Quote)
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
