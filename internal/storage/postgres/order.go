package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantshop/internal/domain/order"
)

const (
	orderColumns = `id, user_id, seller_id, items, total_amount, total_items, status,
		shipping_address, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders
		(id, user_id, seller_id, items, total_amount, total_items, status, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1 RETURNING ` + orderColumns

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id`

	listOrdersBySellerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE seller_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY %s LIMIT $3 OFFSET $4`

	countOrdersBySellerSQL = `SELECT count(*) FROM orders
		WHERE seller_id = $1 AND ($2 = '' OR status = $2)`

	listOrdersByDateRangeSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at DESC, id`
)

// sellerOrderBy maps listing sorts to ORDER BY clauses.
var sellerOrderBy = map[order.Sort]string{
	order.SortNewest:  "created_at DESC, id",
	order.SortOldest:  "created_at ASC, id",
	order.SortUpdated: "updated_at DESC, id",
}

var (
	_ order.Repository        = (*OrderRepository)(nil)
	_ order.CheckoutCommitter = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	args, err := createOrderArgs(o)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, createOrderSQL, args...); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// CommitCheckout inserts every order and clears the buyer's cart in one
// transaction. The cart is cleared only at cartVersion; on a mismatch the
// transaction is rolled back and user.ErrCartChanged is returned.
func (r *OrderRepository) CommitCheckout(ctx context.Context, buyerID string, cartVersion int64, orders []*order.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, o := range orders {
			args, err := createOrderArgs(o)
			if err != nil {
				return err
			}
			batch.Queue(createOrderSQL, args...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting orders: %w", err)
		}
		return clearCart(ctx, tx, buyerID, cartVersion)
	})
}

// GetByID returns an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderByIDSQL, id)
}

// UpdateStatus overwrites the order status and returns the stored order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) (*order.Order, error) {
	return r.one(ctx, updateOrderStatusSQL, id, string(status), at)
}

// ListByUser returns a buyer's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.many(ctx, listOrdersByUserSQL, userID)
}

// ListBySeller returns one page of a seller's orders.
func (r *OrderRepository) ListBySeller(ctx context.Context, f order.SellerFilter) ([]order.Order, error) {
	orderBy, ok := sellerOrderBy[f.Sort]
	if !ok {
		orderBy = sellerOrderBy[order.SortNewest]
	}
	query := fmt.Sprintf(listOrdersBySellerSQL, orderBy)
	return r.many(ctx, query, f.SellerID, string(f.Status), f.Limit, f.Offset)
}

// CountBySeller counts a seller's orders matching f, ignoring paging.
func (r *OrderRepository) CountBySeller(ctx context.Context, f order.SellerFilter) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersBySellerSQL, f.SellerID, string(f.Status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders of seller %q: %w", f.SellerID, err)
	}
	return n, nil
}

// ListByDateRange returns orders created in [from, to], newest first.
func (r *OrderRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	return r.many(ctx, listOrdersByDateRangeSQL, from, to)
}

func (r *OrderRepository) one(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) many(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func createOrderArgs(o *order.Order) ([]any, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshaling order items: %w", err)
	}
	return []any{
		o.ID, o.UserID, o.SellerID, items, o.TotalAmount, o.TotalItems,
		string(o.Status), []byte(o.ShippingAddress), o.CreatedAt, o.UpdatedAt,
	}, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		items   []byte
		status  string
		address []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.SellerID, &items, &o.TotalAmount, &o.TotalItems,
		&status, &address, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.ShippingAddress = address
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decoding order items: %w", err)
	}
	return o, nil
}
