package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/product"
)

const (
	productColumns = `p.id, p.seller_id, p.title, p.subtitle, p.description, p.scientific_name,
		p.origin, p.thumbnail, p.price, p.stock, p.category`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products p JOIN sellers s ON s.id = p.seller_id
		WHERE ($1 = '' OR p.category = $1)
		  AND ($2 = '' OR p.seller_id = $2)
		  AND (NOT $3 OR s.is_approved)
		ORDER BY p.created_at DESC, p.id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1)`

	createProductSQL = `INSERT INTO products
		(id, seller_id, title, subtitle, description, scientific_name, origin, thumbnail, price, stock, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateProductSQL = `UPDATE products SET
		title = $2, subtitle = $3, description = $4, scientific_name = $5, origin = $6,
		thumbnail = $7, price = $8, stock = $9, category = $10, updated_at = now()
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	listTitlesBySellerSQL = `SELECT title FROM products WHERE seller_id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the products matching f, newest first.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, string(f.Category), f.SellerID, f.ApprovedOnly)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.SellerID, p.Title, p.Subtitle, p.Description, p.ScientificName,
		p.Origin, p.Thumbnail, p.Price, p.Stock, string(p.Category),
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites the editable fields of a product. The owning seller is
// never changed.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Title, p.Subtitle, p.Description, p.ScientificName,
		p.Origin, p.Thumbnail, p.Price, p.Stock, string(p.Category),
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product. Orders referencing it keep their snapshot.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Import bulk-loads products with COPY and returns the number of rows written.
func (r *ProductRepository) Import(ctx context.Context, products []product.Product) (int64, error) {
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{
			"id", "seller_id", "title", "subtitle", "description", "scientific_name",
			"origin", "thumbnail", "price", "stock", "category",
		},
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			return []any{
				p.ID, p.SellerID, p.Title, p.Subtitle, p.Description, p.ScientificName,
				p.Origin, p.Thumbnail, p.Price, p.Stock, string(p.Category),
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying products: %w", err)
	}
	return n, nil
}

// TitlesBySeller returns the titles of every product listed by sellerID.
func (r *ProductRepository) TitlesBySeller(ctx context.Context, sellerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, listTitlesBySellerSQL, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing titles of seller %q: %w", sellerID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p        product.Product
		category string
	)
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Title, &p.Subtitle, &p.Description, &p.ScientificName,
		&p.Origin, &p.Thumbnail, &p.Price, &p.Stock, &category,
	)
	p.Category = product.Category(category)
	return p, err
}
