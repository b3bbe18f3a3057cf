package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/auth"
)

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	lines, err := h.cart.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"cart", h.cartResponse(lines)})
}

// AddToCart adds one unit of a product to the cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	var req cartRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	lines, err := h.cart.Add(r.Context(), userID, req.ProductID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"cart", h.cartResponse(lines)})
}

// UpdateCart increases or decreases the quantity of a cart line.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	var req cartRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	lines, err := h.cart.Update(r.Context(), userID, req.ProductID, req.Action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"cart", h.cartResponse(lines)})
}

func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	lines, err := h.cart.Remove(r.Context(), userID, chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"cart", h.cartResponse(lines)})
}
