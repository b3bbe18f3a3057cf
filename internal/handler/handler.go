// Package handler implements the HTTP API on top of the domain services.
package handler

import (
	"context"
	"time"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
)

// OrderService places, updates and lists orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) ([]*order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*order.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]order.View, error)
	ListBySeller(ctx context.Context, sellerID string, q order.ListQuery) (*order.SellerPage, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]order.View, error)
}

// CartService manages a customer's cart.
type CartService interface {
	Get(ctx context.Context, userID string) ([]cart.Line, error)
	Add(ctx context.Context, userID, productID string) ([]cart.Line, error)
	Update(ctx context.Context, userID, productID, action string) ([]cart.Line, error)
	Remove(ctx context.Context, userID, productID string) ([]cart.Line, error)
}

// WishlistService manages a customer's wishlist.
type WishlistService interface {
	Get(ctx context.Context, userID string) ([]product.Product, error)
	Add(ctx context.Context, userID, productID string) ([]product.Product, error)
	Remove(ctx context.Context, userID, productID string) ([]product.Product, error)
}

// CatalogService reads and edits the product catalog.
type CatalogService interface {
	List(ctx context.Context, category product.Category) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	ListBySeller(ctx context.Context, sellerID string, includeHidden bool) ([]product.Product, error)
	Create(ctx context.Context, sellerID string, in product.Input) (*product.Product, error)
	Update(ctx context.Context, sellerID, productID string, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, sellerID, productID string) error
}

// SellerAdmin lists sellers and toggles their approval.
type SellerAdmin interface {
	ListSellers(ctx context.Context) ([]seller.Seller, error)
	SetSellerApproval(ctx context.Context, sellerID string, approved bool) (*seller.Seller, error)
}

// Authenticator resolves an API key to its identity.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative thumbnail paths in responses.
	// When empty, thumbnails are returned as stored.
	ImageBaseURL string
}

// Services bundles the domain services the API delegates to.
type Services struct {
	Orders   OrderService
	Cart     CartService
	Wishlist WishlistService
	Catalog  CatalogService
	Sellers  SellerAdmin
	Auth     Authenticator
}

// Handler serves the REST API.
type Handler struct {
	orders   OrderService
	cart     CartService
	wishlist WishlistService
	catalog  CatalogService
	sellers  SellerAdmin
	auth     Authenticator

	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(cfg Config, s Services) *Handler {
	return &Handler{
		orders:       s.Orders,
		cart:         s.Cart,
		wishlist:     s.Wishlist,
		catalog:      s.Catalog,
		sellers:      s.Sellers,
		auth:         s.Auth,
		imageBaseURL: cfg.ImageBaseURL,
	}
}
