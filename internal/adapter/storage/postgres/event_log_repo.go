package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EventLogRepo implements ports.EventLogRepository over processor_event_logs.
type EventLogRepo struct {
	pool Pool
}

// NewEventLogRepo creates a new EventLogRepo.
func NewEventLogRepo(pool Pool) *EventLogRepo {
	return &EventLogRepo{pool: pool}
}

// Insert records a new event. The unique event_id makes concurrent
// deliveries of the same event race to a single row.
func (r *EventLogRepo) Insert(ctx context.Context, e *domain.ProcessorEventLog) (bool, error) {
	query := `INSERT INTO processor_event_logs (id, event_id, event_type, payload, outcome, attempts, received_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.EventID, e.EventType, e.Payload, e.Outcome, e.Attempts, e.ReceivedAt, e.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert event log: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get fetches an event log by event id.
func (r *EventLogRepo) Get(ctx context.Context, eventID string) (*domain.ProcessorEventLog, error) {
	query := `SELECT id, event_id, event_type, payload, outcome, error, attempts, received_at, updated_at, processed_at
		FROM processor_event_logs WHERE event_id = $1`

	e := &domain.ProcessorEventLog{}
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&e.ID, &e.EventID, &e.EventType, &e.Payload, &e.Outcome, &e.Error,
		&e.Attempts, &e.ReceivedAt, &e.UpdatedAt, &e.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event log: %w", err)
	}
	return e, nil
}

// Claim moves a failed or stale processing log back to processing. The
// conditional update lets exactly one delivery win.
func (r *EventLogRepo) Claim(ctx context.Context, eventID string, staleBefore time.Time) (bool, error) {
	query := `UPDATE processor_event_logs
		SET outcome = $1, attempts = attempts + 1, updated_at = NOW()
		WHERE event_id = $2 AND (outcome = $3 OR (outcome = $1 AND updated_at < $4))`

	tag, err := r.pool.Exec(ctx, query,
		domain.EventOutcomeProcessing, eventID, domain.EventOutcomeFailed, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("claim event log: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordOutcome stores the result of handling an event.
func (r *EventLogRepo) RecordOutcome(ctx context.Context, eventID string, outcome domain.EventOutcome, errMsg *string) error {
	var processedAt *time.Time
	if outcome.IsFinal() {
		now := time.Now().UTC()
		processedAt = &now
	}

	query := `UPDATE processor_event_logs SET outcome = $1, error = $2, processed_at = $3, updated_at = NOW()
		WHERE event_id = $4`

	tag, err := r.pool.Exec(ctx, query, outcome, errMsg, processedAt, eventID)
	if err != nil {
		return fmt.Errorf("record event outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event log not found: %s", eventID)
	}
	return nil
}
