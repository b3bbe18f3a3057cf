package product

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Category is one of the fixed catalog sections.
type Category string

// Categories lists every valid catalog category.
var Categories = []Category{
	"Top Pick",
	"Indoor",
	"Outdoor",
	"Fertilizer",
	"Plants",
	"Flowers",
	"Herbs",
	"Seeds",
	"Fruits",
	"Vegetables",
}

// DefaultCategory is used when a product is created without a category.
const DefaultCategory Category = "Plants"

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Product represents a plant (or supply) listed by a seller.
type Product struct {
	ID             string
	SellerID       string
	Title          string
	Subtitle       string
	Description    string
	ScientificName string
	Origin         string
	Thumbnail      string
	Price          decimal.Decimal
	Stock          int
	Category       Category
}

// ListFilter narrows catalog listings. Empty fields do not filter.
type ListFilter struct {
	Category Category
	SellerID string
	// ApprovedOnly hides products of sellers that are not approved.
	ApprovedOnly bool
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// Index fetches products by id and returns them keyed by id. Missing ids
// are simply absent from the result.
func Index(ctx context.Context, repo Repository, ids []string) (map[string]Product, error) {
	byID := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	fetched, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	for _, p := range fetched {
		byID[p.ID] = p
	}
	return byID, nil
}
