package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	byHash map[string]*APIKeyInfo
	err    error
}

func (m *mockRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	k, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func (m *mockRepo) Create(_ context.Context, k *APIKeyInfo) error {
	m.byHash[k.KeyHash] = k
	return nil
}

func TestAuthenticate(t *testing.T) {
	pepper := []byte("pepper")
	repo := &mockRepo{byHash: map[string]*APIKeyInfo{}}
	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &APIKeyInfo{
		ID:          "k1",
		KeyHash:     Hash(pepper, key),
		Scopes:      []Scope{ScopeCustomer},
		PrincipalID: "u1",
	}))

	a := NewAuthenticator(repo, pepper)

	info, err := a.Authenticate(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "k1", info.ID)

	_, err = a.Authenticate(context.Background(), "ps_wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewAuthenticator(repo, []byte("other")).Authenticate(context.Background(), key)
	assert.ErrorIs(t, err, ErrUnauthorized)

	repo.err = errors.New("db down")
	_, err = a.Authenticate(context.Background(), key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestCanActAs(t *testing.T) {
	customer := &APIKeyInfo{Scopes: []Scope{ScopeCustomer}, PrincipalID: "u1"}
	admin := &APIKeyInfo{Scopes: []Scope{ScopeAdmin}}

	assert.True(t, customer.CanActAs(ScopeCustomer, "u1"))
	assert.False(t, customer.CanActAs(ScopeCustomer, "u2"))
	assert.False(t, customer.CanActAs(ScopeSeller, "u1"))
	assert.True(t, admin.CanActAs(ScopeSeller, "anyone"))

	ctx := WithKey(context.Background(), customer)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, customer, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
