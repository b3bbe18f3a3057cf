package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.sellers.ListSellers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]sellerResponse, len(sellers))
	for i := range sellers {
		out[i] = sellerResponseOf(&sellers[i])
	}
	h.writeOK(w, r, http.StatusOK, field{"sellers", out})
}

// SetSellerApproval approves or revokes a seller.
func (h *Handler) SetSellerApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Approved == nil {
		h.fail(w, r, badRequest("approved is required"))
		return
	}
	s, err := h.sellers.SetSellerApproval(r.Context(), chi.URLParam(r, "sellerID"), *req.Approved)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"seller", sellerResponseOf(s)})
}
