package user

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrCartChanged is returned when a conditional cart write observes a
	// cart version other than the one the caller read.
	ErrCartChanged = errors.New("cart was modified concurrently")
)

// User is a customer account. It owns a cart and a wishlist.
type User struct {
	ID        string
	Email     string
	Username  string
	Addresses []json.RawMessage
	Cart      []CartLine
	Wishlist  []string

	// CartVersion is bumped on every cart write and guards conditional
	// updates of the cart field.
	CartVersion int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is a single product entry in a user's cart.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Repository defines persistence operations for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)

	// SaveCart stores u.Cart if the stored cart version still equals
	// u.CartVersion, and advances u.CartVersion on success. It returns
	// ErrCartChanged on a version mismatch.
	SaveCart(ctx context.Context, u *User) error

	// ClearCart empties the cart of user id if its version equals version.
	ClearCart(ctx context.Context, id string, version int64) error

	// AddToWishlist appends productID to the wishlist of user id unless it
	// is already listed, in one atomic write. It returns the stored wishlist
	// and whether it changed.
	AddToWishlist(ctx context.Context, id, productID string) ([]string, bool, error)

	// RemoveFromWishlist drops productID from the wishlist of user id in one
	// atomic write. It returns the stored wishlist and whether it changed.
	RemoveFromWishlist(ctx context.Context, id, productID string) ([]string, bool, error)
}
