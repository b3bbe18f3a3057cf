// Package redis implements checkout coordination on Redis: a per-buyer lock
// and idempotency keys shared by every API replica.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/order"
)

const (
	lockKeyPrefix        = "plantshop:checkout:lock:"
	idempotencyKeyPrefix = "plantshop:checkout:idem:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock taken over by another checkout is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var (
	_ order.Locker           = (*Checkout)(nil)
	_ order.IdempotencyStore = (*Checkout)(nil)
)

// Checkout provides order.Locker and order.IdempotencyStore on Redis.
type Checkout struct {
	client  redis.UniversalClient
	lockTTL time.Duration
}

// NewCheckout creates a Checkout. lockTTL bounds how long a crashed replica
// can block a buyer.
func NewCheckout(client redis.UniversalClient, lockTTL time.Duration) *Checkout {
	return &Checkout{client: client, lockTTL: lockTTL}
}

// Lock takes the checkout lock of buyerID.
func (c *Checkout) Lock(ctx context.Context, buyerID string) (func(), error) {
	key := lockKeyPrefix + buyerID
	token := ident.New()

	ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
	if err != nil {
		return nil, errors.Wrap(err, "acquire lock")
	}
	if !ok {
		return nil, order.ErrCheckoutInProgress
	}

	return func() {
		rctx := context.WithoutCancel(ctx)
		if err := releaseScript.Run(rctx, c.client, []string{key}, token).Err(); err != nil {
			zctx.From(ctx).Warn("Release checkout lock",
				zap.String("buyer_id", buyerID),
				zap.Error(err),
			)
		}
	}, nil
}

// Claim records key for buyerID. It reports false if the key was seen within
// the last 24 hours.
func (c *Checkout) Claim(ctx context.Context, buyerID, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, idempotencyKeyPrefix+buyerID+":"+key, time.Now().Unix(), idempotencyKeyTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "claim idempotency key")
	}
	return ok, nil
}

// Forget drops a claimed key.
func (c *Checkout) Forget(ctx context.Context, buyerID, key string) error {
	if err := c.client.Del(ctx, idempotencyKeyPrefix+buyerID+":"+key).Err(); err != nil {
		return errors.Wrap(err, "forget idempotency key")
	}
	return nil
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}
