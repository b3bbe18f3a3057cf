// Package wishlist implements the customer wishlist.
package wishlist

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
)

var (
	// ErrAlreadyListed is returned when adding a product twice.
	ErrAlreadyListed = errors.New("product already in wishlist")
	// ErrNotListed is returned when removing a product that is not wishlisted.
	ErrNotListed = errors.New("product not in wishlist")
)

// Service manages user wishlists.
type Service struct {
	users    user.Repository
	products product.Repository
	sellers  seller.Repository
}

// NewService creates a wishlist Service.
func NewService(users user.Repository, products product.Repository, sellers seller.Repository) *Service {
	return &Service{
		users:    users,
		products: products,
		sellers:  sellers,
	}
}

// Add wishlists productID.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]product.Product, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	if err := ident.Check("product", productID); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	ids, added, err := s.users.AddToWishlist(ctx, userID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "add to wishlist")
	}
	if !added {
		return nil, ErrAlreadyListed
	}
	return s.visible(ctx, ids)
}

// Remove drops productID from the wishlist.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]product.Product, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	ids, removed, err := s.users.RemoveFromWishlist(ctx, userID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "remove from wishlist")
	}
	if !removed {
		return nil, ErrNotListed
	}
	return s.visible(ctx, ids)
}

// Get returns the wishlisted products of approved sellers.
func (s *Service) Get(ctx context.Context, userID string) ([]product.Product, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, u.Wishlist)
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

func (s *Service) visible(ctx context.Context, ids []string) ([]product.Product, error) {
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
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && approved[p.SellerID] {
			out = append(out, p)
		}
	}
	return out, nil
}
