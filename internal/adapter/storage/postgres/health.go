package postgres

import (
	"context"
	"fmt"
)

// HealthCheck probes the wallets table, so a reachable server with a
// missing schema is reported as unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM wallets LIMIT 1"); err != nil {
		return fmt.Errorf("postgres probe: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }
