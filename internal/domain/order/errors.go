package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for order validation and checkout coordination.
var (
	ErrNotFound               = errors.New("order not found")
	ErrEmptyItems             = errors.New("items required")
	ErrMissingShippingAddress = errors.New("shipping address required")
	ErrInvalidDateRange       = errors.New("start date must not be after end date")
	ErrCheckoutInProgress     = errors.New("another checkout is in progress for this user")
	ErrDuplicateCheckout      = errors.New("checkout with this idempotency key was already submitted")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item quantity outside
// [1, MaxQuantity].
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for product %s", MaxQuantity, e.ProductID)
}

// SellerMismatchError indicates a line names a seller that does not own the
// product.
type SellerMismatchError struct {
	ProductID string
	SellerID  string
}

func (e *SellerMismatchError) Error() string {
	return fmt.Sprintf("product %s is not sold by seller %s", e.ProductID, e.SellerID)
}

// InvalidStatusError indicates an unknown order status.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Status)
}

// InvalidSortError indicates an unknown listing sort.
type InvalidSortError struct {
	Sort string
}

func (e *InvalidSortError) Error() string {
	return fmt.Sprintf("invalid sort %q", e.Sort)
}

// PartialPersistenceError is returned when a checkout failed after some of
// its orders were already written. Those orders are not rolled back.
type PartialPersistenceError struct {
	Created []string
	Err     error
}

func (e *PartialPersistenceError) Error() string {
	return fmt.Sprintf("checkout failed after creating %d order(s) [%s], some orders may have been created: %v",
		len(e.Created), strings.Join(e.Created, ", "), e.Err)
}

func (e *PartialPersistenceError) Unwrap() error {
	return e.Err
}
