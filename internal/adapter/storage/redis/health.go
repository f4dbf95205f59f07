package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthKey = "paylor:health"

// HealthCheck reports whether Redis accepts writes. The callback guard and
// the rate limiter both write, so a read-only replica counts as unhealthy.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, healthKey, time.Now().Unix(), time.Minute).Err(); err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "redis" }
