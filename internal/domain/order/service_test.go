package order

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
)

// --- Mock implementations ---

type mockProductRepo struct {
	mu   sync.Mutex
	byID map[string]*product.Product
	err  error
}

func (m *mockProductRepo) List(context.Context, product.ListFilter) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(context.Context, *product.Product) error { return nil }
func (m *mockProductRepo) Update(context.Context, *product.Product) error { return nil }
func (m *mockProductRepo) Delete(context.Context, string) error           { return nil }

func (m *mockProductRepo) setPrice(id string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Price = price
}

type mockUserRepo struct {
	mu    sync.Mutex
	byID  map[string]*user.User
	clear error
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	cp.Cart = slices.Clone(u.Cart)
	return &cp, nil
}

func (m *mockUserRepo) SaveCart(context.Context, *user.User) error { return nil }

func (m *mockUserRepo) AddToWishlist(context.Context, string, string) ([]string, bool, error) {
	return nil, false, nil
}

func (m *mockUserRepo) RemoveFromWishlist(context.Context, string, string) ([]string, bool, error) {
	return nil, false, nil
}

func (m *mockUserRepo) ClearCart(_ context.Context, id string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clear != nil {
		return m.clear
	}
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	if u.CartVersion != version {
		return user.ErrCartChanged
	}
	u.Cart = nil
	u.CartVersion++
	return nil
}

func (m *mockUserRepo) cart(id string) []user.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.byID[id].Cart)
}

type mockSellerRepo struct {
	byID map[string]*seller.Seller
}

func (m *mockSellerRepo) GetByID(_ context.Context, id string) (*seller.Seller, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, seller.ErrNotFound
	}
	return s, nil
}

func (m *mockSellerRepo) GetByIDs(context.Context, []string) ([]seller.Seller, error) {
	return nil, nil
}

func (m *mockSellerRepo) List(context.Context) ([]seller.Seller, error) { return nil, nil }

func (m *mockSellerRepo) SetApproval(context.Context, string, bool) (*seller.Seller, error) {
	return nil, nil
}

// mockOrderRepo persists orders one by one. It does not implement
// CheckoutCommitter.
type mockOrderRepo struct {
	mu     sync.Mutex
	stored []Order
	// failAt makes the n-th Create call (1-based) fail.
	failAt     int
	calls      int
	lastFilter SellerFilter
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls == m.failAt {
		return errors.New("connection reset")
	}
	cp := *o
	cp.Items = slices.Clone(o.Items)
	m.stored = append(m.stored, cp)
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stored {
		if m.stored[i].ID == id {
			cp := m.stored[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, st Status, at time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stored {
		if m.stored[i].ID == id {
			m.stored[i].Status = st
			m.stored[i].UpdatedAt = at
			cp := m.stored[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.stored {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) bySeller(f SellerFilter) []Order {
	var out []Order
	for _, o := range m.stored {
		if o.SellerID == f.SellerID && (f.Status == "" || o.Status == f.Status) {
			out = append(out, o)
		}
	}
	return out
}

func (m *mockOrderRepo) ListBySeller(_ context.Context, f SellerFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	all := m.bySeller(f)
	if f.Offset >= len(all) {
		return nil, nil
	}
	return all[f.Offset:min(f.Offset+f.Limit, len(all))], nil
}

func (m *mockOrderRepo) CountBySeller(_ context.Context, f SellerFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySeller(f)), nil
}

func (m *mockOrderRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.stored {
		if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

// txOrderRepo commits a whole checkout atomically.
type txOrderRepo struct {
	*mockOrderRepo
	users     *mockUserRepo
	commitErr error
	commits   int
}

var _ CheckoutCommitter = (*txOrderRepo)(nil)

func (m *txOrderRepo) CommitCheckout(ctx context.Context, buyerID string, version int64, orders []*Order) error {
	m.commits++
	if m.commitErr != nil {
		return m.commitErr
	}
	if err := m.users.ClearCart(ctx, buyerID, version); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range orders {
		m.stored = append(m.stored, *o)
	}
	return nil
}

type heldLocker struct{}

func (heldLocker) Lock(context.Context, string) (func(), error) {
	return nil, ErrCheckoutInProgress
}

type mockIdempotency struct {
	mu      sync.Mutex
	keys    map[string]bool
	forgets int
}

func (m *mockIdempotency) Claim(_ context.Context, buyerID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := buyerID + "/" + key
	if m.keys[k] {
		return false, nil
	}
	m.keys[k] = true
	return true, nil
}

func (m *mockIdempotency) Forget(_ context.Context, buyerID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgets++
	delete(m.keys, buyerID+"/"+key)
	return nil
}

// --- Fixtures ---

const (
	buyerID  = "7a1c6f0e-2b3d-4e5f-8a9b-0c1d2e3f4a5b"
	sellerA  = "0b6f0a52-3c1d-4a8e-9f21-6d5c4b3a2e10"
	sellerB  = "1c7a1b63-4d2e-4b9f-8a32-7e6d5c4b3f21"
	sellerC  = "2d8b2c74-5e3f-4c0a-9b43-8f7e6d5c4a32"
	fernID   = "3e9c3d85-6f40-4d1b-8c54-907f8e6d5b43"
	cactusID = "4fad4e96-7051-4e2c-9d65-a18f9f7e6c54"
	basilID  = "5a0b5fa7-8162-4f3d-8e76-b2a0a08f7d65"
	mintID   = "6b1c60b8-9273-4a4e-9f87-c3b1b1908e76"
	ghostID  = "9e4f93eb-c5a6-4d71-8cba-f6e4e4c3b1a9"
)

var plantville = json.RawMessage(`{"city":"Plantville"}`)

type fixture struct {
	products *mockProductRepo
	users    *mockUserRepo
	sellers  *mockSellerRepo
	orders   *mockOrderRepo
}

func newFixture() *fixture {
	mk := func(id, sellerID, title, price string) *product.Product {
		return &product.Product{
			ID:        id,
			SellerID:  sellerID,
			Title:     title,
			Thumbnail: title + ".jpg",
			Price:     decimal.RequireFromString(price),
			Category:  product.DefaultCategory,
		}
	}
	return &fixture{
		products: &mockProductRepo{byID: map[string]*product.Product{
			fernID:   mk(fernID, sellerA, "Fern", "15"),
			cactusID: mk(cactusID, sellerB, "Cactus", "20"),
			basilID:  mk(basilID, sellerA, "Basil", "4.50"),
			mintID:   mk(mintID, sellerC, "Mint", "3.25"),
		}},
		users: &mockUserRepo{byID: map[string]*user.User{
			buyerID: {
				ID: buyerID,
				Cart: []user.CartLine{
					{ProductID: fernID, Quantity: 2},
					{ProductID: cactusID, Quantity: 1},
				},
				CartVersion: 3,
			},
		}},
		sellers: &mockSellerRepo{byID: map[string]*seller.Seller{
			sellerA: {ID: sellerA, IsApproved: true},
			sellerB: {ID: sellerB, IsApproved: true},
			sellerC: {ID: sellerC},
		}},
		orders: &mockOrderRepo{},
	}
}

func (f *fixture) service(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return f.serviceWith(t, f.orders, opts...)
}

func (f *fixture) serviceWith(t *testing.T, orders Repository, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(f.products, f.users, f.sellers, orders, opts...)
	require.NoError(t, err)
	return svc
}

func sumItems(items []Item) (decimal.Decimal, int) {
	total := decimal.Zero
	n := 0
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		n += it.Quantity
	}
	return total, n
}

// --- Tests ---

func TestPlaceOrder_TwoSellerScenario(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	orders, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID: buyerID,
		Lines: []Line{
			{SellerID: sellerA, ProductID: fernID, Quantity: 2},
			{SellerID: sellerB, ProductID: cactusID, Quantity: 1},
		},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first, second := orders[0], orders[1]
	assert.Equal(t, sellerA, first.SellerID)
	assert.Equal(t, buyerID, first.UserID)
	require.Len(t, first.Items, 1)
	assert.Equal(t, fernID, first.Items[0].ProductID)
	assert.Equal(t, 2, first.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(15).Equal(first.Items[0].Price))
	assert.True(t, decimal.NewFromInt(30).Equal(first.TotalAmount), "got %s", first.TotalAmount)
	assert.Equal(t, 2, first.TotalItems)
	assert.Equal(t, StatusPending, first.Status)

	assert.Equal(t, sellerB, second.SellerID)
	assert.True(t, decimal.NewFromInt(20).Equal(second.TotalAmount), "got %s", second.TotalAmount)
	assert.Equal(t, 1, second.TotalItems)
	assert.Equal(t, StatusPending, second.Status)

	for _, o := range orders {
		assert.JSONEq(t, string(plantville), string(o.ShippingAddress))
		require.NoError(t, ident.Check("order", o.ID))
	}
	assert.Equal(t, 2, f.orders.count())
	assert.Empty(t, f.users.cart(buyerID))
}

func TestPlaceOrder_GroupsBySellerInDiscoveryOrder(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	orders, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID: buyerID,
		Lines: []Line{
			{SellerID: sellerA, ProductID: fernID, Quantity: 1},
			{SellerID: sellerB, ProductID: cactusID, Quantity: 2},
			{SellerID: sellerA, ProductID: basilID, Quantity: 3},
			{SellerID: sellerC, ProductID: mintID, Quantity: 4},
		},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)
	require.Len(t, orders, 3)

	var sellers []string
	for _, o := range orders {
		sellers = append(sellers, o.SellerID)
	}
	assert.Equal(t, []string{sellerA, sellerB, sellerC}, sellers)

	// Lines keep their input order within a seller group.
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, fernID, orders[0].Items[0].ProductID)
	assert.Equal(t, basilID, orders[0].Items[1].ProductID)
	assert.True(t, decimal.RequireFromString("28.5").Equal(orders[0].TotalAmount), "got %s", orders[0].TotalAmount)
	assert.Equal(t, 4, orders[0].TotalItems)
}

// Seller approval gates catalog visibility only; a buyer holding a product id
// of an unapproved seller can still check it out.
func TestPlaceOrder_UnapprovedSellerAccepted(t *testing.T) {
	f := newFixture()
	require.False(t, f.sellers.byID[sellerC].IsApproved)

	orders, err := f.service(t).PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerC, ProductID: mintID, Quantity: 2}},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, sellerC, orders[0].SellerID)
	assert.True(t, decimal.RequireFromString("6.5").Equal(orders[0].TotalAmount), "got %s", orders[0].TotalAmount)
	assert.Equal(t, 1, f.orders.count())
}

func TestPlaceOrder_TotalsMatchItems(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	ids := []string{fernID, cactusID, basilID, mintID}

	for range 50 {
		f := newFixture()
		for _, id := range ids {
			cents := r.IntN(100_000)
			f.products.setPrice(id, decimal.New(int64(cents), -2))
		}
		var lines []Line
		for range 1 + r.IntN(8) {
			id := ids[r.IntN(len(ids))]
			p, err := f.products.GetByID(context.Background(), id)
			require.NoError(t, err)
			lines = append(lines, Line{SellerID: p.SellerID, ProductID: id, Quantity: 1 + r.IntN(20)})
		}

		orders, err := f.service(t).PlaceOrder(context.Background(), PlaceOrderRequest{
			BuyerID:         buyerID,
			Lines:           lines,
			ShippingAddress: plantville,
		})
		require.NoError(t, err)

		wantQty := 0
		for _, l := range lines {
			wantQty += l.Quantity
		}
		gotQty := 0
		for _, o := range orders {
			total, n := sumItems(o.Items)
			assert.True(t, total.Equal(o.TotalAmount), "total %s != %s", o.TotalAmount, total)
			assert.Equal(t, n, o.TotalItems)
			for _, it := range o.Items {
				p, err := f.products.GetByID(context.Background(), it.ProductID)
				require.NoError(t, err)
				assert.Equal(t, o.SellerID, p.SellerID)
			}
			gotQty += o.TotalItems
		}
		assert.Equal(t, wantQty, gotQty)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	valid := []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}}

	tests := []struct {
		name  string
		req   PlaceOrderRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "no lines",
			req:  PlaceOrderRequest{BuyerID: buyerID, ShippingAddress: plantville},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyItems)
			},
		},
		{
			name: "missing address",
			req:  PlaceOrderRequest{BuyerID: buyerID, Lines: valid},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingShippingAddress)
			},
		},
		{
			name: "empty object address",
			req:  PlaceOrderRequest{BuyerID: buyerID, Lines: valid, ShippingAddress: json.RawMessage(`{}`)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingShippingAddress)
			},
		},
		{
			name: "malformed seller id",
			req: PlaceOrderRequest{
				BuyerID:         buyerID,
				Lines:           []Line{{SellerID: "S1", ProductID: fernID, Quantity: 1}},
				ShippingAddress: plantville,
			},
			check: func(t *testing.T, err error) {
				var invalid *ident.InvalidError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "S1", invalid.ID)
				assert.Contains(t, err.Error(), "S1")
			},
		},
		{
			name: "zero quantity",
			req: PlaceOrderRequest{
				BuyerID:         buyerID,
				Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 0}},
				ShippingAddress: plantville,
			},
			check: func(t *testing.T, err error) {
				var qty *InvalidQuantityError
				require.ErrorAs(t, err, &qty)
				assert.Equal(t, fernID, qty.ProductID)
			},
		},
		{
			name: "quantity above cap",
			req: PlaceOrderRequest{
				BuyerID:         buyerID,
				Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: MaxQuantity + 1}},
				ShippingAddress: plantville,
			},
			check: func(t *testing.T, err error) {
				var qty *InvalidQuantityError
				require.ErrorAs(t, err, &qty)
				assert.Equal(t, fernID, qty.ProductID)
			},
		},
		{
			name: "quantity that would overflow the totals",
			req: PlaceOrderRequest{
				BuyerID:         buyerID,
				Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: math.MaxInt32}},
				ShippingAddress: plantville,
			},
			check: func(t *testing.T, err error) {
				var qty *InvalidQuantityError
				assert.ErrorAs(t, err, &qty)
			},
		},
		{
			name: "unknown buyer",
			req:  PlaceOrderRequest{BuyerID: ghostID, Lines: valid, ShippingAddress: plantville},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, user.ErrNotFound)
			},
		},
		{
			name: "product of another seller",
			req: PlaceOrderRequest{
				BuyerID:         buyerID,
				Lines:           []Line{{SellerID: sellerB, ProductID: fernID, Quantity: 1}},
				ShippingAddress: plantville,
			},
			check: func(t *testing.T, err error) {
				var mismatch *SellerMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, fernID, mismatch.ProductID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			before := f.users.cart(buyerID)

			orders, err := f.service(t).PlaceOrder(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, orders)
			tt.check(t, err)

			assert.Zero(t, f.orders.count())
			assert.Equal(t, before, f.users.cart(buyerID))
		})
	}
}

func TestPlaceOrder_NonexistentProduct(t *testing.T) {
	f := newFixture()
	before := f.users.cart(buyerID)

	_, err := f.service(t).PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID: buyerID,
		Lines: []Line{
			{SellerID: sellerA, ProductID: fernID, Quantity: 1},
			{SellerID: sellerB, ProductID: ghostID, Quantity: 1},
		},
		ShippingAddress: plantville,
	})
	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, ghostID, notFound.ProductID)
	assert.Contains(t, err.Error(), ghostID)

	assert.Zero(t, f.orders.count())
	assert.Equal(t, before, f.users.cart(buyerID))
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	f := newFixture()
	svc := f.service(t)
	ctx := context.Background()

	orders, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 2}},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	f.products.setPrice(fernID, decimal.NewFromInt(99))

	stored, err := f.orders.GetByID(ctx, orders[0].ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(stored.Items[0].Price))
	assert.True(t, decimal.NewFromInt(30).Equal(stored.TotalAmount))

	views, err := svc.ListByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].Display, 1)
	item := views[0].Display[0]
	assert.True(t, decimal.NewFromInt(15).Equal(item.Price))
	require.NotNil(t, item.CurrentPrice)
	assert.True(t, decimal.NewFromInt(99).Equal(*item.CurrentPrice))
	assert.Equal(t, "Fern", item.Title)
}

func TestPlaceOrder_PartialPersistence(t *testing.T) {
	f := newFixture()
	f.orders.failAt = 2
	before := f.users.cart(buyerID)

	_, err := f.service(t).PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID: buyerID,
		Lines: []Line{
			{SellerID: sellerA, ProductID: fernID, Quantity: 1},
			{SellerID: sellerB, ProductID: cactusID, Quantity: 1},
		},
		ShippingAddress: plantville,
	})
	var partial *PartialPersistenceError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Created, 1)
	assert.Equal(t, f.orders.stored[0].ID, partial.Created[0])
	assert.Contains(t, err.Error(), "some orders may have been created")

	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, before, f.users.cart(buyerID))
}

func TestPlaceOrder_FirstWriteFails(t *testing.T) {
	f := newFixture()
	f.orders.failAt = 1

	_, err := f.service(t).PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
	})
	require.Error(t, err)
	var partial *PartialPersistenceError
	assert.False(t, errors.As(err, &partial))
	assert.Zero(t, f.orders.count())
}

func TestPlaceOrder_CartClearFailsAfterWrites(t *testing.T) {
	f := newFixture()
	f.users.clear = errors.New("timeout")

	_, err := f.service(t).PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
	})
	var partial *PartialPersistenceError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Created, 1)
}

func TestPlaceOrder_Transactional(t *testing.T) {
	t.Run("commits orders and clears cart", func(t *testing.T) {
		f := newFixture()
		tx := &txOrderRepo{mockOrderRepo: f.orders, users: f.users}

		orders, err := f.serviceWith(t, tx).PlaceOrder(context.Background(), PlaceOrderRequest{
			BuyerID: buyerID,
			Lines: []Line{
				{SellerID: sellerA, ProductID: fernID, Quantity: 1},
				{SellerID: sellerB, ProductID: cactusID, Quantity: 1},
			},
			ShippingAddress: plantville,
		})
		require.NoError(t, err)
		assert.Len(t, orders, 2)
		assert.Equal(t, 1, tx.commits)
		assert.Zero(t, f.orders.calls, "sequential writes must not be used")
		assert.Equal(t, 2, f.orders.count())
		assert.Empty(t, f.users.cart(buyerID))
	})

	t.Run("cart changed rolls back", func(t *testing.T) {
		f := newFixture()
		tx := &txOrderRepo{mockOrderRepo: f.orders, users: f.users}
		before := f.users.cart(buyerID)

		// The buyer is read at a version another writer has since replaced.
		stale := &staleUserRepo{mockUserRepo: f.users, version: 1}
		svc, err := NewService(f.products, stale, f.sellers, tx)
		require.NoError(t, err)

		_, err = svc.PlaceOrder(context.Background(), PlaceOrderRequest{
			BuyerID:         buyerID,
			Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
			ShippingAddress: plantville,
		})
		require.ErrorIs(t, err, user.ErrCartChanged)
		assert.Zero(t, f.orders.count())
		assert.Equal(t, before, f.users.cart(buyerID))
	})

	t.Run("commit failure persists nothing", func(t *testing.T) {
		f := newFixture()
		tx := &txOrderRepo{mockOrderRepo: f.orders, users: f.users, commitErr: errors.New("serialization failure")}

		_, err := f.serviceWith(t, tx).PlaceOrder(context.Background(), PlaceOrderRequest{
			BuyerID:         buyerID,
			Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
			ShippingAddress: plantville,
		})
		require.Error(t, err)
		var partial *PartialPersistenceError
		assert.False(t, errors.As(err, &partial))
		assert.Zero(t, f.orders.count())
	})
}

// staleUserRepo reports a cart version that no longer matches the store.
type staleUserRepo struct {
	*mockUserRepo
	version int64
}

func (m *staleUserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, err := m.mockUserRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.CartVersion = m.version
	return u, nil
}

func TestPlaceOrder_CheckoutInProgress(t *testing.T) {
	f := newFixture()
	svc := f.service(t, WithLocker(heldLocker{}))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
	})
	require.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Zero(t, f.orders.count())
}

func TestPlaceOrder_Idempotency(t *testing.T) {
	f := newFixture()
	keys := &mockIdempotency{keys: map[string]bool{}}
	svc := f.service(t, WithIdempotency(keys))
	req := PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
		IdempotencyKey:  "checkout-1",
	}

	_, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrDuplicateCheckout)
	assert.Equal(t, 1, f.orders.count())
	assert.Zero(t, keys.forgets)
}

func TestPlaceOrder_IdempotencyKeyReleasedOnFailure(t *testing.T) {
	f := newFixture()
	f.orders.failAt = 1
	keys := &mockIdempotency{keys: map[string]bool{}}
	svc := f.service(t, WithIdempotency(keys))
	req := PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
		IdempotencyKey:  "checkout-2",
	}

	_, err := svc.PlaceOrder(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, keys.forgets)

	_, err = svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := f.service(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	orders, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)
	id := orders[0].ID

	t.Run("delivered twice", func(t *testing.T) {
		for range 2 {
			o, err := svc.UpdateStatus(ctx, id, "delivered")
			require.NoError(t, err)
			assert.Equal(t, StatusDelivered, o.Status)
		}
	})

	t.Run("no transition guard", func(t *testing.T) {
		o, err := svc.UpdateStatus(ctx, id, "pending")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, o.Status)
	})

	t.Run("unknown status leaves order unmodified", func(t *testing.T) {
		for _, st := range []string{"", "returned", "Delivered", "PENDING"} {
			_, err := svc.UpdateStatus(ctx, id, st)
			var invalid *InvalidStatusError
			require.ErrorAs(t, err, &invalid, "status %q", st)
		}
		stored, err := f.orders.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, stored.Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, ghostID, "shipped")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed order id", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "42", "shipped")
		var invalid *ident.InvalidError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestListByBuyer_UnknownBuyer(t *testing.T) {
	f := newFixture()
	_, err := f.service(t).ListByBuyer(context.Background(), ghostID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestListByBuyer_MissingProductKeepsSnapshot(t *testing.T) {
	f := newFixture()
	svc := f.service(t)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		BuyerID: buyerID,
		Lines: []Line{
			{SellerID: sellerA, ProductID: fernID, Quantity: 1},
			{SellerID: sellerA, ProductID: basilID, Quantity: 2},
		},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)
	delete(f.products.byID, basilID)

	views, err := svc.ListByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].Display, 2)
	gone := views[0].Display[1]
	assert.Equal(t, basilID, gone.ProductID)
	assert.Nil(t, gone.CurrentPrice)
	assert.Empty(t, gone.Title)
	assert.True(t, decimal.RequireFromString("4.5").Equal(gone.Price))
}

func TestListBySeller(t *testing.T) {
	f := newFixture()
	svc := f.service(t)
	ctx := context.Background()

	for range 3 {
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			BuyerID: buyerID,
			Lines: []Line{
				{SellerID: sellerA, ProductID: fernID, Quantity: 1},
				{SellerID: sellerA, ProductID: basilID, Quantity: 1},
			},
			ShippingAddress: plantville,
		})
		require.NoError(t, err)
	}

	t.Run("defaults", func(t *testing.T) {
		page, err := svc.ListBySeller(ctx, sellerA, ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalOrders)
		assert.Equal(t, 1, page.CurrentPage)
		assert.Equal(t, 1, page.TotalPages)
		assert.Len(t, page.Orders, 3)
		assert.Equal(t, SortNewest, f.orders.lastFilter.Sort)
		assert.Equal(t, DefaultLimit, f.orders.lastFilter.Limit)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := svc.ListBySeller(ctx, sellerA, ListQuery{Page: 2, Limit: 2, Sort: "oldest"})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalOrders)
		assert.Equal(t, 2, page.CurrentPage)
		assert.Equal(t, 2, page.TotalPages)
		assert.Len(t, page.Orders, 1)
		assert.Equal(t, 2, f.orders.lastFilter.Offset)
		assert.Equal(t, SortOldest, f.orders.lastFilter.Sort)
	})

	t.Run("limit clamped", func(t *testing.T) {
		_, err := svc.ListBySeller(ctx, sellerA, ListQuery{Limit: 1000})
		require.NoError(t, err)
		assert.Equal(t, MaxLimit, f.orders.lastFilter.Limit)
	})

	t.Run("status filter", func(t *testing.T) {
		page, err := svc.ListBySeller(ctx, sellerA, ListQuery{Status: "shipped"})
		require.NoError(t, err)
		assert.Zero(t, page.TotalOrders)
		assert.Zero(t, page.TotalPages)
		assert.Empty(t, page.Orders)
	})

	t.Run("missing product dropped, totals kept", func(t *testing.T) {
		delete(f.products.byID, basilID)
		page, err := svc.ListBySeller(ctx, sellerA, ListQuery{Limit: 1})
		require.NoError(t, err)
		require.Len(t, page.Orders, 1)
		o := page.Orders[0]
		require.Len(t, o.Display, 1)
		assert.Equal(t, fernID, o.Display[0].ProductID)
		assert.Len(t, o.Items, 2)
		assert.True(t, decimal.RequireFromString("19.5").Equal(o.TotalAmount), "got %s", o.TotalAmount)
		assert.Equal(t, 2, o.TotalItems)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := svc.ListBySeller(ctx, sellerA, ListQuery{Sort: "cheapest"})
		var sortErr *InvalidSortError
		assert.ErrorAs(t, err, &sortErr)

		_, err = svc.ListBySeller(ctx, sellerA, ListQuery{Status: "lost"})
		var statusErr *InvalidStatusError
		assert.ErrorAs(t, err, &statusErr)
	})

	t.Run("unknown seller", func(t *testing.T) {
		_, err := svc.ListBySeller(ctx, ghostID, ListQuery{})
		assert.ErrorIs(t, err, seller.ErrNotFound)
	})
}

func TestListByDateRange(t *testing.T) {
	f := newFixture()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	svc := f.service(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		BuyerID:         buyerID,
		Lines:           []Line{{SellerID: sellerA, ProductID: fernID, Quantity: 1}},
		ShippingAddress: plantville,
	})
	require.NoError(t, err)

	views, err := svc.ListByDateRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, views, 1)

	views, err = svc.ListByDateRange(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, views)

	_, err = svc.ListByDateRange(ctx, now, now.Add(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
