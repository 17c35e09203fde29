package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionPayoutRequest   AuditAction = "PAYOUT_REQUEST"
	AuditActionPayoutProcess   AuditAction = "PAYOUT_PROCESS"
	AuditActionRefundRequest   AuditAction = "REFUND_REQUEST"
	AuditActionRefundRespond   AuditAction = "REFUND_RESPOND"
	AuditActionRefundResolve   AuditAction = "REFUND_RESOLVE"
	AuditActionRelease         AuditAction = "SETTLEMENT_RELEASE"
	AuditActionLinkAccount     AuditAction = "LINK_PAYOUT_ACCOUNT"
	AuditActionProcessorEvent  AuditAction = "PROCESSOR_EVENT"
	AuditActionInitiatePayment AuditAction = "INITIATE_PAYMENT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    string      `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
