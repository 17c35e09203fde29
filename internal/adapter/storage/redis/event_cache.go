package redis

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventCache implements ports.ProcessedEventCache. It only remembers events
// that reached a final outcome; the event log table stays authoritative.
type EventCache struct {
	client *goredis.Client
	prefix string
}

// NewEventCache creates a new Redis-backed processed-event cache.
func NewEventCache(client *goredis.Client) *EventCache {
	return &EventCache{
		client: client,
		prefix: "processor_event:",
	}
}

// IsProcessed reports whether eventID was marked finished and has not expired.
func (c *EventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis event cache exists: %w", err)
	}
	return n == 1, nil
}

// MarkProcessed remembers eventID with its outcome for ttl.
func (c *EventCache) MarkProcessed(ctx context.Context, eventID string, outcome domain.EventOutcome, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+eventID, string(outcome), ttl).Err(); err != nil {
		return fmt.Errorf("redis event cache set: %w", err)
	}
	return nil
}

// Outcome returns the cached outcome, or "" when the event is not cached.
func (c *EventCache) Outcome(ctx context.Context, eventID string) (domain.EventOutcome, error) {
	val, err := c.client.Get(ctx, c.prefix+eventID).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("redis event cache get: %w", err)
	}
	return domain.EventOutcome(val), nil
}
