package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/seller"
)

var (
	// ErrSellerNotApproved is returned when an unapproved seller edits the catalog.
	ErrSellerNotApproved = errors.New("seller is not approved")
	// ErrNotOwner is returned when a seller touches another seller's product.
	ErrNotOwner = errors.New("product belongs to another seller")
	// ErrNegativePrice is returned for a price below zero.
	ErrNegativePrice = errors.New("price must not be negative")
	// ErrNegativeStock is returned for a stock below zero.
	ErrNegativeStock = errors.New("stock must not be negative")
)

// InvalidCategoryError indicates a category outside the fixed set.
type InvalidCategoryError struct {
	Category Category
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q", e.Category)
}

// MissingFieldError indicates a required text field was left empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Input carries the editable fields of a product.
type Input struct {
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

func (in *Input) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"title", in.Title},
		{"description", in.Description},
		{"thumbnail", in.Thumbnail},
		{"scientific name", in.ScientificName},
		{"origin", in.Origin},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &MissingFieldError{Field: f.name}
		}
	}
	if in.Price.IsNegative() {
		return ErrNegativePrice
	}
	if in.Stock < 0 {
		return ErrNegativeStock
	}
	if in.Category == "" {
		in.Category = DefaultCategory
	}
	if !in.Category.Valid() {
		return &InvalidCategoryError{Category: in.Category}
	}
	if in.Subtitle == "" {
		in.Subtitle = "General Plant"
	}
	return nil
}

// Catalog serves customer-facing catalog reads and seller-side edits.
type Catalog struct {
	products Repository
	sellers  seller.Repository
}

// NewCatalog creates a Catalog.
func NewCatalog(products Repository, sellers seller.Repository) *Catalog {
	return &Catalog{products: products, sellers: sellers}
}

// List returns products of approved sellers, optionally narrowed to a category.
func (c *Catalog) List(ctx context.Context, category Category) ([]Product, error) {
	if category != "" && !category.Valid() {
		return nil, &InvalidCategoryError{Category: category}
	}
	products, err := c.products.List(ctx, ListFilter{Category: category, ApprovedOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product. Products of sellers that are not approved
// are reported as missing.
func (c *Catalog) Get(ctx context.Context, id string) (*Product, error) {
	if err := ident.Check("product", id); err != nil {
		return nil, err
	}
	p, err := c.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := c.sellers.GetByID(ctx, p.SellerID)
	switch {
	case errors.Is(err, seller.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "get product seller")
	case !s.IsApproved:
		return nil, ErrNotFound
	}
	return p, nil
}

// ListBySeller returns the products owned by sellerID. Unless includeHidden
// is set, an unapproved seller's listings are left out.
func (c *Catalog) ListBySeller(ctx context.Context, sellerID string, includeHidden bool) ([]Product, error) {
	if err := ident.Check("seller", sellerID); err != nil {
		return nil, err
	}
	if _, err := c.sellers.GetByID(ctx, sellerID); err != nil {
		return nil, err
	}
	products, err := c.products.List(ctx, ListFilter{SellerID: sellerID, ApprovedOnly: !includeHidden})
	if err != nil {
		return nil, errors.Wrap(err, "list seller products")
	}
	return products, nil
}

// Create lists a new product for an approved seller.
func (c *Catalog) Create(ctx context.Context, sellerID string, in Input) (*Product, error) {
	if err := c.checkSeller(ctx, sellerID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &Product{ID: ident.New(), SellerID: sellerID}
	apply(p, in)
	if err := c.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update replaces the editable fields of a product owned by sellerID.
// The owning seller never changes.
func (c *Catalog) Update(ctx context.Context, sellerID, productID string, in Input) (*Product, error) {
	p, err := c.owned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	apply(p, in)
	if err := c.products.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes a product owned by sellerID.
func (c *Catalog) Delete(ctx context.Context, sellerID, productID string) error {
	if _, err := c.owned(ctx, sellerID, productID); err != nil {
		return err
	}
	if err := c.products.Delete(ctx, productID); err != nil {
		return errors.Wrap(err, "delete product")
	}
	return nil
}

func (c *Catalog) owned(ctx context.Context, sellerID, productID string) (*Product, error) {
	if err := c.checkSeller(ctx, sellerID); err != nil {
		return nil, err
	}
	if err := ident.Check("product", productID); err != nil {
		return nil, err
	}
	p, err := c.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID != sellerID {
		return nil, ErrNotOwner
	}
	return p, nil
}

func (c *Catalog) checkSeller(ctx context.Context, sellerID string) error {
	if err := ident.Check("seller", sellerID); err != nil {
		return err
	}
	s, err := c.sellers.GetByID(ctx, sellerID)
	if err != nil {
		return err
	}
	if !s.IsApproved {
		return ErrSellerNotApproved
	}
	return nil
}

func apply(p *Product, in Input) {
	p.Title = in.Title
	p.Subtitle = in.Subtitle
	p.Description = in.Description
	p.ScientificName = in.ScientificName
	p.Origin = in.Origin
	p.Thumbnail = in.Thumbnail
	p.Price = in.Price
	p.Stock = in.Stock
	p.Category = in.Category
}
