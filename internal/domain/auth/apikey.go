package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no API key matches a hash.
	ErrNotFound = errors.New("api key not found")
	// ErrUnauthorized is returned for missing or unknown API keys.
	ErrUnauthorized = errors.New("unauthorized")
)

// Scope grants access to one actor's operations.
type Scope string

const (
	ScopeCustomer Scope = "customer"
	ScopeSeller   Scope = "seller"
	ScopeAdmin    Scope = "admin"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []Scope
	// PrincipalID is the user or seller the key acts for. Admin keys may
	// leave it empty.
	PrincipalID string
}

// Has reports whether the key carries scope.
func (k *APIKeyInfo) Has(scope Scope) bool {
	return slices.Contains(k.Scopes, scope)
}

// CanActAs reports whether the key may operate on principalID's resources
// under scope. Admin keys may act for anyone.
func (k *APIKeyInfo) CanActAs(scope Scope, principalID string) bool {
	if k.Has(ScopeAdmin) {
		return true
	}
	return k.Has(scope) && k.PrincipalID == principalID
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	Create(ctx context.Context, k *APIKeyInfo) error
}

// Hash returns the hex HMAC-SHA256 of key under pepper.
func Hash(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateKey returns a new random API key.
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return "ps_" + hex.EncodeToString(b), nil
}

// Authenticator resolves raw API keys to their stored identity.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate hashes key, looks it up and compares the stored hash in
// constant time.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	hexHash := Hash(a.pepper, key)

	info, err := a.keys.FindByHash(ctx, hexHash)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}

	computed, _ := hex.DecodeString(hexHash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, ErrUnauthorized
	}
	return info, nil
}

type ctxKey struct{}

// WithKey attaches an authenticated key to ctx.
func WithKey(ctx context.Context, k *APIKeyInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, k)
}

// FromContext returns the authenticated key, if any.
func FromContext(ctx context.Context) (*APIKeyInfo, bool) {
	k, ok := ctx.Value(ctxKey{}).(*APIKeyInfo)
	return k, ok
}
