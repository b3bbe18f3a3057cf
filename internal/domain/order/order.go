package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates s against the known statuses. Any known status may
// follow any other; there is no transition table.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", &InvalidStatusError{Status: s}
	}
}

// MaxQuantity caps the quantity of a single line so totals stay within
// the integer range of the orders table.
const MaxQuantity = 10_000

// Order is a single-seller order created by checkout. Item prices are
// captured at creation and never recomputed from the catalog.
type Order struct {
	ID              string
	UserID          string
	SellerID        string
	Items           []Item
	TotalAmount     decimal.Decimal
	TotalItems      int
	Status          Status
	ShippingAddress json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is an order line with the unit price at purchase time.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Sort selects the ordering of seller order listings.
type Sort string

const (
	SortNewest  Sort = "newest"
	SortOldest  Sort = "oldest"
	SortUpdated Sort = "updated"
)

// SellerFilter selects a page of a seller's orders.
type SellerFilter struct {
	SellerID string
	// Status is optional; empty matches every status.
	Status Status
	Sort   Sort
	Offset int
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus overwrites the status of order id and returns the stored
	// order. It returns ErrNotFound when no such order exists.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListBySeller(ctx context.Context, f SellerFilter) ([]Order, error)
	CountBySeller(ctx context.Context, f SellerFilter) (int, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Order, error)
}

// CheckoutCommitter is implemented by stores that can persist every order of
// a checkout together with the buyer's cart clear as one atomic unit. The
// cart is cleared only if its version still equals cartVersion; otherwise
// nothing is written and user.ErrCartChanged is returned.
type CheckoutCommitter interface {
	CommitCheckout(ctx context.Context, buyerID string, cartVersion int64, orders []*Order) error
}
