package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/seller"
)

const (
	sellerColumns = `id, email, username, addresses, is_approved, created_at, updated_at`

	getSellerByIDSQL   = `SELECT ` + sellerColumns + ` FROM sellers WHERE id = $1`
	getSellersByIDsSQL = `SELECT ` + sellerColumns + ` FROM sellers WHERE id = ANY($1)`
	listSellersSQL     = `SELECT ` + sellerColumns + ` FROM sellers ORDER BY created_at, id`

	setSellerApprovalSQL = `UPDATE sellers SET is_approved = $2, updated_at = now()
		WHERE id = $1 RETURNING ` + sellerColumns

	createSellerSQL = `INSERT INTO sellers (id, email, username, addresses, is_approved)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING`
)

var _ seller.Repository = (*SellerRepository)(nil)

// SellerRepository implements seller.Repository backed by PostgreSQL.
type SellerRepository struct {
	pool *pgxpool.Pool
}

// NewSellerRepository returns a SellerRepository that uses the given pool.
func NewSellerRepository(pool *pgxpool.Pool) *SellerRepository {
	return &SellerRepository{pool: pool}
}

// GetByID returns a seller by id.
func (r *SellerRepository) GetByID(ctx context.Context, id string) (*seller.Seller, error) {
	return r.one(ctx, getSellerByIDSQL, id)
}

// GetByIDs returns the sellers matching any of ids.
func (r *SellerRepository) GetByIDs(ctx context.Context, ids []string) ([]seller.Seller, error) {
	rows, err := r.pool.Query(ctx, getSellersByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting sellers by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanSeller)
}

// List returns every seller, oldest first.
func (r *SellerRepository) List(ctx context.Context) ([]seller.Seller, error) {
	rows, err := r.pool.Query(ctx, listSellersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sellers: %w", err)
	}
	return pgx.CollectRows(rows, scanSeller)
}

// SetApproval updates the approval flag and returns the stored seller.
func (r *SellerRepository) SetApproval(ctx context.Context, id string, approved bool) (*seller.Seller, error) {
	return r.one(ctx, setSellerApprovalSQL, id, approved)
}

// Create inserts a seller unless one with the same email exists.
func (r *SellerRepository) Create(ctx context.Context, s *seller.Seller) error {
	addresses, err := json.Marshal(nonNil(s.Addresses))
	if err != nil {
		return fmt.Errorf("marshaling addresses: %w", err)
	}
	if _, err := r.pool.Exec(ctx, createSellerSQL, s.ID, s.Email, s.Username, addresses, s.IsApproved); err != nil {
		return fmt.Errorf("creating seller %q: %w", s.Email, err)
	}
	return nil
}

func (r *SellerRepository) one(ctx context.Context, query string, args ...any) (*seller.Seller, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying seller: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSeller)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, seller.ErrNotFound
		}
		return nil, fmt.Errorf("querying seller: %w", err)
	}
	return &s, nil
}

func scanSeller(row pgx.CollectableRow) (seller.Seller, error) {
	var (
		s         seller.Seller
		addresses []byte
	)
	if err := row.Scan(&s.ID, &s.Email, &s.Username, &addresses, &s.IsApproved, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	if err := json.Unmarshal(addresses, &s.Addresses); err != nil {
		return s, fmt.Errorf("decoding addresses: %w", err)
	}
	return s, nil
}

// nonNil keeps nil slices from being stored as JSON null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
