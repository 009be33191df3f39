package httpx

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mgHariom/orderly/internal/catalog"
	"github.com/mgHariom/orderly/internal/orders"
	"github.com/mgHariom/orderly/pkg/logger"
)

// Idempotency remembers which batch a client key produced.
type Idempotency interface {
	Lookup(ctx context.Context, key string) (string, error)
	Remember(ctx context.Context, key, batchID string) error
}

type Handler struct {
	Catalog *catalog.Service
	Engine  *orders.Engine
	Pending *orders.PendingOrderStore
	History *orders.OrderHistoryStore
	Stager  *orders.Stager
	Monitor *orders.Monitor
	Idem    Idempotency // optional
	Log     logger.Logger
}

func (h *Handler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = logger.Nop()
	}
	// long-lived, outside the request timeout
	r.Get("/pending/stream", h.streamPending)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}", h.getProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)

		r.Get("/staging", h.listStagingGroups)
		r.Get("/staging/{group}", h.getStaging)
		r.Delete("/staging/{group}", h.clearStaging)
		r.Post("/staging/{group}/items", h.addStagedItem)
		r.Put("/staging/{group}/items/{productID}", h.setStagedQuantity)
		r.Delete("/staging/{group}/items/{productID}", h.removeStagedItem)
		r.Post("/staging/{group}/submit", h.submitStaging)
		r.Post("/staging/{group}/submit-by-category", h.submitStagingByCategory)

		r.Get("/pending", h.listPending)
		r.Post("/pending", h.createPending)
		r.Get("/pending/{id}", h.getPending)
		r.Delete("/pending/{id}", h.deletePending)
		r.Post("/pending/{id}/adjust", h.adjustPending)
		r.Post("/pending/{id}/deliver", h.deliverPending)

		r.Get("/orders", h.listOrders)
		r.Post("/orders", h.saveOrder)
		r.Get("/orders/export", h.exportOrders)
		r.Get("/orders/{id}", h.getOrder)

		r.Get("/alerts", h.listAlerts)
	})
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
