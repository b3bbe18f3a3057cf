// Package cart implements the customer shopping cart.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
)

// ErrNotInCart is returned when adjusting a product that is not in the cart.
var ErrNotInCart = errors.New("product not in cart")

// InvalidActionError indicates an unknown quantity adjustment.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q: expected increase or decrease", e.Action)
}

// Line is a cart line decorated with its product. SellerID lets clients
// pass the line straight to checkout.
type Line struct {
	ProductID string
	Quantity  int
	SellerID  string
	Title     string
	Subtitle  string
	Thumbnail string
	Price     decimal.Decimal
}

// Service manages user carts.
type Service struct {
	users    user.Repository
	products product.Repository
	sellers  seller.Repository
}

// NewService creates a cart Service.
func NewService(users user.Repository, products product.Repository, sellers seller.Repository) *Service {
	return &Service{
		users:    users,
		products: products,
		sellers:  sellers,
	}
}

// Add puts one unit of productID into the cart.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]Line, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ident.Check("product", productID); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	u.AddToCart(productID)
	return s.save(ctx, u)
}

// Update increases or decreases the quantity of a cart line. A line that
// reaches zero is removed.
func (s *Service) Update(ctx context.Context, userID, productID, action string) ([]Line, error) {
	a := user.CartAction(action)
	if !a.Valid() {
		return nil, &InvalidActionError{Action: action}
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.AdjustCart(productID, a) {
		return nil, ErrNotInCart
	}
	return s.save(ctx, u)
}

// Remove drops productID from the cart. Removing an absent product is a no-op.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]Line, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.RemoveFromCart(productID)
	return s.save(ctx, u)
}

// Get returns the visible cart lines. Lines of deleted products and of
// sellers that are not approved are omitted.
func (s *Service) Get(ctx context.Context, userID string) ([]Line, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, u.Cart)
}

func (s *Service) load(ctx context.Context, userID string) (*user.User, error) {
	if err := ident.Check("user", userID); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

func (s *Service) save(ctx context.Context, u *user.User) ([]Line, error) {
	if err := s.users.SaveCart(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return s.decorate(ctx, u.Cart)
}

func (s *Service) decorate(ctx context.Context, cart []user.CartLine) ([]Line, error) {
	ids := make([]string, len(cart))
	for i, l := range cart {
		ids[i] = l.ProductID
	}
	byID, err := product.Index(ctx, s.products, ids)
	if err != nil {
		return nil, err
	}
	sellerIDs := make([]string, 0, len(byID))
	for _, p := range byID {
		sellerIDs = append(sellerIDs, p.SellerID)
	}
	approved, err := seller.ApprovedSet(ctx, s.sellers, sellerIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(cart))
	for _, l := range cart {
		p, ok := byID[l.ProductID]
		if !ok || !approved[p.SellerID] {
			continue
		}
		lines = append(lines, Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			SellerID:  p.SellerID,
			Title:     p.Title,
			Subtitle:  p.Subtitle,
			Thumbnail: p.Thumbnail,
			Price:     p.Price,
		})
	}
	return lines, nil
}
