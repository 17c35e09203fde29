package ports

import "context"

// HealthChecker checks a backing dependency.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name is reported in the health response, e.g. "postgresql" or "redis".
	Name() string
}
