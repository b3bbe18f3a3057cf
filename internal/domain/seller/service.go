package seller

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/plantshop/internal/domain/ident"
)

// Admin exposes the seller management operations available to admins.
type Admin struct {
	sellers Repository
}

// NewAdmin creates an Admin service.
func NewAdmin(sellers Repository) *Admin {
	return &Admin{sellers: sellers}
}

// ListSellers returns every seller account.
func (a *Admin) ListSellers(ctx context.Context) ([]Seller, error) {
	list, err := a.sellers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list sellers")
	}
	return list, nil
}

// SetSellerApproval approves or revokes a seller. Revoking hides the seller's
// products from customers without deleting them.
func (a *Admin) SetSellerApproval(ctx context.Context, sellerID string, approved bool) (*Seller, error) {
	if err := ident.Check("seller", sellerID); err != nil {
		return nil, err
	}
	s, err := a.sellers.SetApproval(ctx, sellerID, approved)
	if err != nil {
		return nil, errors.Wrap(err, "set approval")
	}
	return s, nil
}
