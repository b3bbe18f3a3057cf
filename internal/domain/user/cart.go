package user

import "slices"

// CartAction is a quantity adjustment applied to an existing cart line.
type CartAction string

const (
	CartIncrease CartAction = "increase"
	CartDecrease CartAction = "decrease"
)

// Valid reports whether a is a known action.
func (a CartAction) Valid() bool {
	return a == CartIncrease || a == CartDecrease
}

// AddToCart increments the line for productID, appending a new line with
// quantity 1 when the product is not in the cart yet.
func (u *User) AddToCart(productID string) {
	if i := u.cartIndex(productID); i >= 0 {
		u.Cart[i].Quantity++
		return
	}
	u.Cart = append(u.Cart, CartLine{ProductID: productID, Quantity: 1})
}

// AdjustCart applies action to the line for productID. A line that drops to
// zero is removed. It reports false when productID is not in the cart.
func (u *User) AdjustCart(productID string, action CartAction) bool {
	i := u.cartIndex(productID)
	if i < 0 {
		return false
	}
	switch action {
	case CartIncrease:
		u.Cart[i].Quantity++
	case CartDecrease:
		u.Cart[i].Quantity--
		if u.Cart[i].Quantity <= 0 {
			u.Cart = slices.Delete(u.Cart, i, i+1)
		}
	}
	return true
}

// RemoveFromCart drops the line for productID if present.
func (u *User) RemoveFromCart(productID string) {
	if i := u.cartIndex(productID); i >= 0 {
		u.Cart = slices.Delete(u.Cart, i, i+1)
	}
}

func (u *User) cartIndex(productID string) int {
	return slices.IndexFunc(u.Cart, func(l CartLine) bool {
		return l.ProductID == productID
	})
}

// InWishlist reports whether productID is wishlisted.
func (u *User) InWishlist(productID string) bool {
	return slices.Contains(u.Wishlist, productID)
}

// AddToWishlist adds productID and reports whether it was absent.
func (u *User) AddToWishlist(productID string) bool {
	if u.InWishlist(productID) {
		return false
	}
	u.Wishlist = append(u.Wishlist, productID)
	return true
}

// RemoveFromWishlist removes productID and reports whether it was present.
func (u *User) RemoveFromWishlist(productID string) bool {
	i := slices.Index(u.Wishlist, productID)
	if i < 0 {
		return false
	}
	u.Wishlist = slices.Delete(u.Wishlist, i, i+1)
	return true
}
