package postgres

import (
	"context"
	"errors"
)

var errSchemaMissing = errors.New("ledger schema not migrated")

// HealthCheck implements ports.HealthChecker for PostgreSQL. A reachable
// database without the ledger tables counts as unhealthy.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks that the wallet and ledger tables exist.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var ok bool
	err := h.pool.QueryRow(ctx,
		`SELECT to_regclass('wallets') IS NOT NULL AND to_regclass('ledger_transactions') IS NOT NULL`,
	).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return errSchemaMissing
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
