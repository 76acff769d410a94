// Package handler is the HTTP transport adapter: it validates inbound
// payloads, constructs domain values, delegates to the intake service and
// maps domain outcomes to responses.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mrobles/orders-intake/internal/domain/order"
)

// maxBodyBytes caps inbound request bodies at 1 MiB.
const maxBodyBytes = 1 << 20

// Handler exposes the order intake service over HTTP.
type Handler struct {
	service *order.Service
}

// New constructs a Handler around the intake service.
func New(service *order.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/report", h.customerReport)
	return r
}
