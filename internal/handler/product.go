package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/product"
)

// ListProducts returns the public catalog, optionally filtered by category.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context(), product.Category(r.URL.Query().Get("category")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"products", h.productsResponse(products)})
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"product", h.productResponse(*p)})
}

// ListSellerProducts returns a seller's listings. The seller itself also sees
// listings hidden while it awaits approval.
func (h *Handler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	k, ok := auth.FromContext(r.Context())
	owner := ok && k.CanActAs(auth.ScopeSeller, sellerID)

	products, err := h.catalog.ListBySeller(r.Context(), sellerID, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"products", h.productsResponse(products)})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !h.actingAs(w, r, auth.ScopeSeller, sellerID) {
		return
	}
	var req productRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), sellerID, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, field{"product", h.productResponse(*p)})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !h.actingAs(w, r, auth.ScopeSeller, sellerID) {
		return
	}
	var req productRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), sellerID, chi.URLParam(r, "productID"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"product", h.productResponse(*p)})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !h.actingAs(w, r, auth.ScopeSeller, sellerID) {
		return
	}
	if err := h.catalog.Delete(r.Context(), sellerID, chi.URLParam(r, "productID")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK)
}
