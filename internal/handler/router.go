package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/pkg/httpmiddleware"
)

// Router returns the chi router serving /api/v1. Middlewares that need the
// matched route run inside it.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(), httpmiddleware.Labeler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog reads.
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.With(h.identify).Get("/sellers/{sellerID}/products", h.ListSellerProducts)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Post("/orders", h.PlaceOrder)
				r.Get("/orders", h.ListBuyerOrders)

				r.Get("/cart", h.GetCart)
				r.Post("/cart", h.AddToCart)
				r.Put("/cart", h.UpdateCart)
				r.Delete("/cart/{productID}", h.RemoveFromCart)

				r.Get("/wishlist", h.GetWishlist)
				r.Post("/wishlist", h.AddToWishlist)
				r.Delete("/wishlist/{productID}", h.RemoveFromWishlist)
			})

			r.Route("/sellers/{sellerID}", func(r chi.Router) {
				r.Get("/orders", h.ListSellerOrders)
				r.Post("/products", h.CreateProduct)
				r.Put("/products/{productID}", h.UpdateProduct)
				r.Delete("/products/{productID}", h.DeleteProduct)
			})

			r.With(h.requireScope(auth.ScopeSeller)).Put("/orders/{orderID}/status", h.UpdateOrderStatus)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/orders", h.ListOrdersByDate)
				r.Get("/sellers", h.ListSellers)
				r.Put("/sellers/{sellerID}/approval", h.SetSellerApproval)
			})
		})
	})
	return r
}
