package order

import (
	"context"
	"sync"
)

// Locker serializes checkouts of the same buyer. Lock returns
// ErrCheckoutInProgress when the buyer already holds the lock.
type Locker interface {
	Lock(ctx context.Context, buyerID string) (unlock func(), err error)
}

// IdempotencyStore remembers checkout idempotency keys per buyer.
type IdempotencyStore interface {
	// Claim records key for buyerID and reports whether it was unseen.
	Claim(ctx context.Context, buyerID, key string) (bool, error)
	// Forget drops a claim so the key can be retried.
	Forget(ctx context.Context, buyerID, key string) error
}

// LocalLocker is an in-process Locker keyed by buyer id. It only guards a
// single replica.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(_ context.Context, buyerID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[buyerID]; ok {
		return nil, ErrCheckoutInProgress
	}
	l.held[buyerID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, buyerID)
			l.mu.Unlock()
		})
	}, nil
}
