package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.Checkout)
		r.Get("/", handler.ListOrders)
		r.Post("/verify", handler.VerifyPayment)
		r.Get("/payment-status", handler.PaymentStatus)
		r.Post("/pending/{id}/cancel", handler.CancelPending)
		r.Get("/{id}", handler.GetOrder)
		r.Post("/{id}/cancel", handler.CancelOrder)
		r.Patch("/{id}/status", handler.UpdateOrderStatus)
	})

	r.Post("/webhooks/payment", handler.Webhook)

	return &Server{Router: r}
}
