package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
)

// Money is rendered as a JSON number with the exact decimal digits.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type productResponse struct {
	ID             string      `json:"id"`
	SellerID       string      `json:"sellerId"`
	Title          string      `json:"title"`
	Subtitle       string      `json:"subtitle"`
	Description    string      `json:"description"`
	ScientificName string      `json:"scientificName"`
	Origin         string      `json:"origin"`
	Thumbnail      string      `json:"thumbnail"`
	Price          json.Number `json:"price"`
	Stock          int         `json:"stock"`
	Category       string      `json:"category"`
}

type productRequest struct {
	Title          string          `json:"title"`
	Subtitle       string          `json:"subtitle"`
	Description    string          `json:"description"`
	ScientificName string          `json:"scientificName"`
	Origin         string          `json:"origin"`
	Thumbnail      string          `json:"thumbnail"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
	Category       string          `json:"category"`
}

func (p productRequest) input() product.Input {
	return product.Input{
		Title:          p.Title,
		Subtitle:       p.Subtitle,
		Description:    p.Description,
		ScientificName: p.ScientificName,
		Origin:         p.Origin,
		Thumbnail:      p.Thumbnail,
		Price:          p.Price,
		Stock:          p.Stock,
		Category:       product.Category(p.Category),
	}
}

type orderItemResponse struct {
	ProductID    string       `json:"productId"`
	Quantity     int          `json:"quantity"`
	Price        json.Number  `json:"price"`
	Title        string       `json:"title,omitempty"`
	Thumbnail    string       `json:"thumbnail,omitempty"`
	CurrentPrice *json.Number `json:"currentPrice,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	SellerID        string              `json:"sellerId"`
	Items           []orderItemResponse `json:"items"`
	TotalAmount     json.Number         `json:"totalAmount"`
	TotalItems      int                 `json:"totalItems"`
	Status          string              `json:"status"`
	ShippingAddress json.RawMessage     `json:"shippingAddress"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type placeOrderRequest struct {
	Items []struct {
		SellerID  string `json:"sellerId"`
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type cartLineResponse struct {
	ProductID string      `json:"productId"`
	SellerID  string      `json:"sellerId"`
	Quantity  int         `json:"quantity"`
	Title     string      `json:"title"`
	Subtitle  string      `json:"subtitle"`
	Thumbnail string      `json:"thumbnail"`
	Price     json.Number `json:"price"`
}

type cartRequest struct {
	ProductID string `json:"productId"`
	Action    string `json:"action"`
}

type sellerResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
}

type approvalRequest struct {
	Approved *bool `json:"approved"`
}

// thumbnail prefixes relative image paths with the configured base URL.
func (h *Handler) thumbnail(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) productResponse(p product.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		SellerID:       p.SellerID,
		Title:          p.Title,
		Subtitle:       p.Subtitle,
		Description:    p.Description,
		ScientificName: p.ScientificName,
		Origin:         p.Origin,
		Thumbnail:      h.thumbnail(p.Thumbnail),
		Price:          money(p.Price),
		Stock:          p.Stock,
		Category:       string(p.Category),
	}
}

func (h *Handler) productsResponse(ps []product.Product) []productResponse {
	out := make([]productResponse, len(ps))
	for i, p := range ps {
		out[i] = h.productResponse(p)
	}
	return out
}

func orderResponseOf(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     money(it.Price),
		}
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		SellerID:        o.SellerID,
		Items:           items,
		TotalAmount:     money(o.TotalAmount),
		TotalItems:      o.TotalItems,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (h *Handler) viewResponse(v order.View) orderResponse {
	resp := orderResponseOf(&v.Order)
	resp.Items = make([]orderItemResponse, len(v.Display))
	for i, d := range v.Display {
		item := orderItemResponse{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			Price:     money(d.Price),
			Title:     d.Title,
			Thumbnail: h.thumbnail(d.Thumbnail),
		}
		if d.CurrentPrice != nil {
			cur := money(*d.CurrentPrice)
			item.CurrentPrice = &cur
		}
		resp.Items[i] = item
	}
	return resp
}

func (h *Handler) viewsResponse(vs []order.View) []orderResponse {
	out := make([]orderResponse, len(vs))
	for i, v := range vs {
		out[i] = h.viewResponse(v)
	}
	return out
}

func (h *Handler) cartResponse(lines []cart.Line) []cartLineResponse {
	out := make([]cartLineResponse, len(lines))
	for i, l := range lines {
		out[i] = cartLineResponse{
			ProductID: l.ProductID,
			SellerID:  l.SellerID,
			Quantity:  l.Quantity,
			Title:     l.Title,
			Subtitle:  l.Subtitle,
			Thumbnail: h.thumbnail(l.Thumbnail),
			Price:     money(l.Price),
		}
	}
	return out
}

func sellerResponseOf(s *seller.Seller) sellerResponse {
	return sellerResponse{
		ID:         s.ID,
		Email:      s.Email,
		Username:   s.Username,
		IsApproved: s.IsApproved,
		CreatedAt:  s.CreatedAt,
	}
}
