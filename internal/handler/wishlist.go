package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/auth"
)

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	products, err := h.wishlist.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"wishlist", h.productsResponse(products)})
}

func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	var req cartRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	products, err := h.wishlist.Add(r.Context(), userID, req.ProductID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"wishlist", h.productsResponse(products)})
}

func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	products, err := h.wishlist.Remove(r.Context(), userID, chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"wishlist", h.productsResponse(products)})
}
