package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/user"
)

const (
	getUserByIDSQL = `SELECT id, email, username, addresses, cart, wishlist, cart_version, created_at, updated_at
		FROM users WHERE id = $1`

	saveCartSQL = `UPDATE users SET cart = $2, cart_version = cart_version + 1, updated_at = now()
		WHERE id = $1 AND cart_version = $3
		RETURNING cart_version`

	clearCartSQL = `UPDATE users SET cart = '[]', cart_version = cart_version + 1, updated_at = now()
		WHERE id = $1 AND cart_version = $2`

	// The containment guard makes concurrent adds of distinct products
	// compose instead of overwriting each other.
	addToWishlistSQL = `UPDATE users SET wishlist = wishlist || jsonb_build_array($2::text), updated_at = now()
		WHERE id = $1 AND NOT wishlist ? $2
		RETURNING wishlist`

	removeFromWishlistSQL = `UPDATE users SET wishlist = wishlist - $2::text, updated_at = now()
		WHERE id = $1 AND wishlist ? $2
		RETURNING wishlist`

	getWishlistSQL = `SELECT wishlist FROM users WHERE id = $1`

	createUserSQL = `INSERT INTO users (id, email, username, addresses)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. Cart and
// wishlist are JSONB columns on the users row.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}

// SaveCart stores u.Cart if the cart version is unchanged since u was read.
func (r *UserRepository) SaveCart(ctx context.Context, u *user.User) error {
	cart, err := json.Marshal(nonNil(u.Cart))
	if err != nil {
		return fmt.Errorf("marshaling cart: %w", err)
	}
	var version int64
	err = r.pool.QueryRow(ctx, saveCartSQL, u.ID, cart, u.CartVersion).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrCartChanged
		}
		return fmt.Errorf("saving cart of %q: %w", u.ID, err)
	}
	u.CartVersion = version
	return nil
}

// ClearCart empties the cart if its version equals version.
func (r *UserRepository) ClearCart(ctx context.Context, id string, version int64) error {
	return clearCart(ctx, r.pool, id, version)
}

// AddToWishlist appends productID unless it is already listed.
func (r *UserRepository) AddToWishlist(ctx context.Context, id, productID string) ([]string, bool, error) {
	return r.updateWishlist(ctx, addToWishlistSQL, id, productID)
}

// RemoveFromWishlist drops productID if it is listed.
func (r *UserRepository) RemoveFromWishlist(ctx context.Context, id, productID string) ([]string, bool, error) {
	return r.updateWishlist(ctx, removeFromWishlistSQL, id, productID)
}

// updateWishlist runs a guarded wishlist update. When the guard filters the
// row out, the current wishlist is returned unchanged.
func (r *UserRepository) updateWishlist(ctx context.Context, sql, id, productID string) ([]string, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, sql, id, productID).Scan(&raw)
	changed := true
	if errors.Is(err, pgx.ErrNoRows) {
		changed = false
		err = r.pool.QueryRow(ctx, getWishlistSQL, id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, user.ErrNotFound
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("updating wishlist of %q: %w", id, err)
	}
	var wishlist []string
	if err := json.Unmarshal(raw, &wishlist); err != nil {
		return nil, false, fmt.Errorf("decoding wishlist: %w", err)
	}
	return wishlist, changed, nil
}

// Create inserts a user unless one with the same email exists.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	addresses, err := json.Marshal(nonNil(u.Addresses))
	if err != nil {
		return fmt.Errorf("marshaling addresses: %w", err)
	}
	if _, err := r.pool.Exec(ctx, createUserSQL, u.ID, u.Email, u.Username, addresses); err != nil {
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func clearCart(ctx context.Context, db execer, id string, version int64) error {
	tag, err := db.Exec(ctx, clearCartSQL, id, version)
	if err != nil {
		return fmt.Errorf("clearing cart of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrCartChanged
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u                         user.User
		addresses, cart, wishlist []byte
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &addresses, &cart, &wishlist,
		&u.CartVersion, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(addresses, &u.Addresses); err != nil {
		return u, fmt.Errorf("decoding addresses: %w", err)
	}
	if err := json.Unmarshal(cart, &u.Cart); err != nil {
		return u, fmt.Errorf("decoding cart: %w", err)
	}
	if err := json.Unmarshal(wishlist, &u.Wishlist); err != nil {
		return u, fmt.Errorf("decoding wishlist: %w", err)
	}
	return u, nil
}
