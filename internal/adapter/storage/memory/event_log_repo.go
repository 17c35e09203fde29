package memory

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
)

// EventLogRepo implements ports.EventLogRepository.
type EventLogRepo struct {
	s *Store
}

// NewEventLogRepo creates a new EventLogRepo.
func NewEventLogRepo(s *Store) *EventLogRepo {
	return &EventLogRepo{s: s}
}

// Insert stores a new log unless the event id is already known.
func (r *EventLogRepo) Insert(_ context.Context, entry *domain.ProcessorEventLog) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[entry.EventID]; ok {
		return false, nil
	}
	e := *entry
	e.Payload = append([]byte(nil), entry.Payload...)
	r.s.events[entry.EventID] = e
	return true, nil
}

// Get fetches a log by event id.
func (r *EventLogRepo) Get(_ context.Context, eventID string) (*domain.ProcessorEventLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Claim takes over a failed or stale event for another attempt.
func (r *EventLogRepo) Claim(_ context.Context, eventID string, staleBefore time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return false, nil
	}
	claimable := e.Outcome == domain.EventOutcomeFailed ||
		(e.Outcome == domain.EventOutcomeProcessing && e.UpdatedAt.Before(staleBefore))
	if !claimable {
		return false, nil
	}
	e.Outcome = domain.EventOutcomeProcessing
	e.Attempts++
	e.UpdatedAt = nowUTC()
	r.s.events[eventID] = e
	return true, nil
}

// RecordOutcome stores the result of handling an event.
func (r *EventLogRepo) RecordOutcome(_ context.Context, eventID string, outcome domain.EventOutcome, errMsg *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return fmt.Errorf("event log not found: %s", eventID)
	}
	now := nowUTC()
	e.Outcome = outcome
	e.Error = errMsg
	e.UpdatedAt = now
	if outcome.IsFinal() {
		e.ProcessedAt = &now
	}
	r.s.events[eventID] = e
	return nil
}
