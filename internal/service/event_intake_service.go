package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventIntakeServiceImpl implements ports.EventIntakeService. The event log's
// unique event id is the idempotency boundary: a delivery only reaches a
// workflow after inserting the log row or claiming a failed or stale one.
type EventIntakeServiceImpl struct {
	parser     ports.EventParser
	events     ports.EventLogRepository
	cache      ports.ProcessedEventCache // optional fast path
	settlement ports.SettlementService
	lease      time.Duration
	cacheTTL   time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewEventIntakeService creates a new EventIntakeServiceImpl. cache may be nil.
func NewEventIntakeService(
	parser ports.EventParser,
	events ports.EventLogRepository,
	cache ports.ProcessedEventCache,
	settlement ports.SettlementService,
	lease, cacheTTL time.Duration,
	log zerolog.Logger,
) *EventIntakeServiceImpl {
	return &EventIntakeServiceImpl{
		parser:     parser,
		events:     events,
		cache:      cache,
		settlement: settlement,
		lease:      lease,
		cacheTTL:   cacheTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Receive verifies, deduplicates and dispatches one delivery. Errors that
// redelivery cannot fix are recorded as irrecoverable and acknowledged;
// transient ones are recorded as failed and returned so the processor
// retries.
func (s *EventIntakeServiceImpl) Receive(ctx context.Context, payload []byte, signature string) (*ports.IntakeResult, error) {
	ev, err := s.parser.Parse(payload, signature)
	if err != nil {
		if errors.Is(err, ports.ErrEventSignature) {
			s.log.Warn().Err(err).Msg("rejected processor event with bad signature")
			return nil, apperror.ErrInvalidSignature()
		}
		s.log.Warn().Err(err).Msg("rejected malformed processor event")
		return nil, apperror.Validation("Malformed event payload")
	}
	meta := ev.Meta()
	result := &ports.IntakeResult{EventID: meta.ID, EventType: meta.Type}

	if s.cache != nil {
		done, err := s.cache.IsProcessed(ctx, meta.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", meta.ID).Msg("redis event check failed, falling through to DB")
		}
		if done {
			result.Duplicate = true
			result.Outcome = domain.EventOutcomeProcessed
			return result, nil
		}
	}

	now := s.now()
	inserted, err := s.events.Insert(ctx, &domain.ProcessorEventLog{
		ID:         uuid.New(),
		EventID:    meta.ID,
		EventType:  meta.Type,
		Payload:    meta.Payload,
		Outcome:    domain.EventOutcomeProcessing,
		Attempts:   1,
		ReceivedAt: now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert event log: %w", err))
	}
	if !inserted {
		claimed, err := s.events.Claim(ctx, meta.ID, now.Add(-s.lease))
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("claim event: %w", err))
		}
		if !claimed {
			return s.duplicate(ctx, result)
		}
		s.log.Info().Str("event_id", meta.ID).Msg("retrying previously failed processor event")
	}

	outcome, dispatchErr := s.dispatch(ctx, ev)
	var errMsg *string
	switch {
	case dispatchErr == nil:
	case apperror.IsClientError(dispatchErr):
		outcome = domain.EventOutcomeIrrecoverable
		errMsg = strRef(dispatchErr.Error())
		s.log.Warn().Err(dispatchErr).Str("event_id", meta.ID).Str("event_type", meta.Type).
			Msg("processor event cannot be applied, dropping")
	default:
		outcome = domain.EventOutcomeFailed
		errMsg = strRef(dispatchErr.Error())
		s.log.Error().Err(dispatchErr).Str("event_id", meta.ID).Str("event_type", meta.Type).
			Msg("processor event failed, awaiting redelivery")
	}

	if err := s.events.RecordOutcome(ctx, meta.ID, outcome, errMsg); err != nil {
		// Left in processing, the event becomes claimable once the lease expires.
		s.log.Error().Err(err).Str("event_id", meta.ID).Msg("failed to record event outcome")
	}
	result.Outcome = outcome

	if outcome == domain.EventOutcomeFailed {
		return nil, apperror.InternalError(dispatchErr)
	}

	if s.cache != nil {
		if err := s.cache.MarkProcessed(ctx, meta.ID, outcome, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("event_id", meta.ID).Msg("failed to cache processed event in redis")
		}
	}
	return result, nil
}

func (s *EventIntakeServiceImpl) duplicate(ctx context.Context, result *ports.IntakeResult) (*ports.IntakeResult, error) {
	result.Duplicate = true
	existing, err := s.events.Get(ctx, result.EventID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get event log: %w", err))
	}
	if existing != nil {
		result.Outcome = existing.Outcome
	}
	s.log.Info().
		Str("event_id", result.EventID).
		Str("outcome", string(result.Outcome)).
		Msg("duplicate processor event acknowledged")
	return result, nil
}

func (s *EventIntakeServiceImpl) dispatch(ctx context.Context, ev domain.ProcessorEvent) (domain.EventOutcome, error) {
	switch e := ev.(type) {
	case domain.CheckoutCompleted:
		_, err := s.settlement.SettleCheckout(ctx, e)
		return domain.EventOutcomeProcessed, err
	case domain.CheckoutExpired:
		_, err := s.settlement.FailPayment(ctx, ports.PaymentFailure{
			SessionID:       e.SessionID,
			PaymentIntentID: e.PaymentIntentID,
			OrderRef:        e.OrderRef,
			Reason:          "checkout session expired",
		})
		return domain.EventOutcomeProcessed, err
	case domain.PaymentFailed:
		_, err := s.settlement.FailPayment(ctx, ports.PaymentFailure{
			PaymentIntentID: e.PaymentIntentID,
			OrderRef:        e.OrderRef,
			Reason:          e.FailureMessage,
		})
		return domain.EventOutcomeProcessed, err
	default:
		meta := ev.Meta()
		s.log.Info().Str("event_id", meta.ID).Str("event_type", meta.Type).Msg("ignoring unhandled processor event")
		return domain.EventOutcomeIgnored, nil
	}
}
