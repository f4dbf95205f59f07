package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackGuard implements ports.CallbackGuard. A marker is written only
// after a callback has been applied, so the database stays the authority and
// a lost marker costs one extra idempotent reconcile.
type CallbackGuard struct {
	client *goredis.Client
	prefix string
}

// NewCallbackGuard creates a Redis-backed replay marker store.
func NewCallbackGuard(client *goredis.Client) *CallbackGuard {
	return &CallbackGuard{
		client: client,
		prefix: keyPrefix + "stkcb:",
	}
}

// Seen reports whether the checkout request was already applied.
func (g *CallbackGuard) Seen(ctx context.Context, checkoutRequestID string) (bool, error) {
	_, err := g.client.Get(ctx, g.prefix+checkoutRequestID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis callback marker get: %w", err)
	}
	return true, nil
}

// Remember marks the checkout request as applied for ttl.
func (g *CallbackGuard) Remember(ctx context.Context, checkoutRequestID string, ttl time.Duration) error {
	err := g.client.SetArgs(ctx, g.prefix+checkoutRequestID, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis callback marker set: %w", err)
	}
	return nil
}
