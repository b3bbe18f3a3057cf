package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/order"
)

// IdempotencyKeyHeader optionally marks a checkout as a retry of an earlier
// request.
const IdempotencyKeyHeader = "Idempotency-Key"

// PlaceOrder checks out the buyer's items, one order per seller.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}

	var req placeOrderRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	lines := make([]order.Line, len(req.Items))
	for i, it := range req.Items {
		lines[i] = order.Line{
			SellerID:  it.SellerID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		}
	}

	orders, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		BuyerID:         userID,
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = orderResponseOf(o)
	}
	h.writeOK(w, r, http.StatusCreated, field{"orders", out})
}

// ListBuyerOrders returns every order the buyer placed.
func (h *Handler) ListBuyerOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.actingAs(w, r, auth.ScopeCustomer, userID) {
		return
	}
	views, err := h.orders.ListByBuyer(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"orders", h.viewsResponse(views)})
}

// ListSellerOrders returns one page of orders addressed to the seller.
func (h *Handler) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !h.actingAs(w, r, auth.ScopeSeller, sellerID) {
		return
	}

	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.orders.ListBySeller(r.Context(), sellerID, order.ListQuery{
		Page:   page,
		Limit:  limit,
		Status: q.Get("status"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK,
		field{"orders", h.viewsResponse(res.Orders)},
		field{"totalOrders", res.TotalOrders},
		field{"currentPage", res.CurrentPage},
		field{"totalPages", res.TotalPages},
	)
}

// UpdateOrderStatus sets the status of an order owned by the calling seller.
// The route admits only seller and admin keys, so a buyer learns nothing about
// which orders exist.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.actingAs(w, r, auth.ScopeSeller, o.SellerID) {
		return
	}

	o, err = h.orders.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"order", orderResponseOf(o)})
}

// ListOrdersByDate returns every order created within [from, to].
func (h *Handler) ListOrdersByDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := timeParam(q.Get("from"), "from", false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := timeParam(q.Get("to"), "to", true)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	views, err := h.orders.ListByDateRange(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, field{"orders", h.viewsResponse(views)})
}

// intParam parses an optional integer query parameter. Empty yields 0.
func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return n, nil
}

const dateLayout = "2006-01-02"

// timeParam parses an RFC 3339 timestamp or a calendar date. A date used as
// the upper bound covers the whole day.
func timeParam(v, name string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, badRequest(name + " is required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, badRequest(name + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
