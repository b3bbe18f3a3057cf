package wishlist

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
)

// mockUserRepo applies wishlist changes under a lock, as the single-statement
// updates of the real store do.
type mockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*user.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	cp.Wishlist = slices.Clone(u.Wishlist)
	return &cp, nil
}

func (m *mockUserRepo) SaveCart(context.Context, *user.User) error       { return nil }
func (m *mockUserRepo) ClearCart(context.Context, string, int64) error { return nil }

func (m *mockUserRepo) AddToWishlist(_ context.Context, id, productID string) ([]string, bool, error) {
	return m.updateWishlist(id, func(u *user.User) bool { return u.AddToWishlist(productID) })
}

func (m *mockUserRepo) RemoveFromWishlist(_ context.Context, id, productID string) ([]string, bool, error) {
	return m.updateWishlist(id, func(u *user.User) bool { return u.RemoveFromWishlist(productID) })
}

func (m *mockUserRepo) updateWishlist(id string, apply func(*user.User) bool) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, false, user.ErrNotFound
	}
	changed := apply(u)
	return slices.Clone(u.Wishlist), changed, nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(context.Context, product.ListFilter) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(context.Context, *product.Product) error { return nil }
func (m *mockProductRepo) Update(context.Context, *product.Product) error { return nil }
func (m *mockProductRepo) Delete(context.Context, string) error           { return nil }

type mockSellerRepo struct {
	approved map[string]bool
}

func (m *mockSellerRepo) GetByID(_ context.Context, id string) (*seller.Seller, error) {
	return &seller.Seller{ID: id, IsApproved: m.approved[id]}, nil
}

func (m *mockSellerRepo) GetByIDs(_ context.Context, ids []string) ([]seller.Seller, error) {
	out := make([]seller.Seller, 0, len(ids))
	for _, id := range ids {
		out = append(out, seller.Seller{ID: id, IsApproved: m.approved[id]})
	}
	return out, nil
}

func (m *mockSellerRepo) List(context.Context) ([]seller.Seller, error) { return nil, nil }

func (m *mockSellerRepo) SetApproval(context.Context, string, bool) (*seller.Seller, error) {
	return nil, nil
}

const (
	userID    = "7a1c6f0e-2b3d-4e5f-8a9b-0c1d2e3f4a5b"
	approved  = "0b6f0a52-3c1d-4a8e-9f21-6d5c4b3a2e10"
	pending   = "1c7a1b63-4d2e-4b9f-8a32-7e6d5c4b3f21"
	fernID    = "3e9c3d85-6f40-4d1b-8c54-907f8e6d5b43"
	orchidID  = "4fad4e96-7051-4e2c-9d65-a18f9f7e6c54"
	missingID = "9e4f93eb-c5a6-4d71-8cba-f6e4e4c3b1a9"
)

func newTestService() (*Service, *mockUserRepo) {
	users := &mockUserRepo{byID: map[string]*user.User{userID: {ID: userID}}}
	products := &mockProductRepo{byID: map[string]product.Product{
		fernID:   {ID: fernID, SellerID: approved, Title: "Fern"},
		orchidID: {ID: orchidID, SellerID: pending, Title: "Orchid"},
	}}
	sellers := &mockSellerRepo{approved: map[string]bool{approved: true}}
	return NewService(users, products, sellers), users
}

func TestWishlist(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	list, err := svc.Add(ctx, userID, fernID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Fern", list[0].Title)

	_, err = svc.Add(ctx, userID, fernID)
	assert.ErrorIs(t, err, ErrAlreadyListed)

	// Products of unapproved sellers are stored but not shown.
	list, err = svc.Add(ctx, userID, orchidID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, users.byID[userID].Wishlist, 2)

	list, err = svc.Remove(ctx, userID, fernID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Remove(ctx, userID, fernID)
	assert.ErrorIs(t, err, ErrNotListed)

	list, err = svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWishlist_NotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Add(ctx, userID, missingID)
	assert.ErrorIs(t, err, product.ErrNotFound)

	_, err = svc.Get(ctx, missingID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestWishlist_ConcurrentAdds(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	ids := []string{fernID, orchidID}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, userID, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, ids, users.byID[userID].Wishlist)
}

func TestWishlist_AddTwiceConcurrently(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Add(ctx, userID, fernID)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyListed)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, []string{fernID}, users.byID[userID].Wishlist)
}
