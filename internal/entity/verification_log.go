package entity

import (
	"time"

	"github.com/joseph-ayodele/buildhub-payments/constants"
)

// VerificationLogEntry is one append-only audit record of a request transition.
type VerificationLogEntry struct {
	ID        int64          `json:"id"`
	RequestID int64          `json:"request_id"`
	ActorID   int64          `json:"actor_id"`
	ActorRole constants.Role `json:"actor_role"`
	Action    string         `json:"action"`
	Notes     string         `json:"notes,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NotificationEvent is persisted with the transition and then dispatched.
type NotificationEvent struct {
	ID            int64          `json:"id"`
	RecipientID   int64          `json:"recipient_id"`
	RecipientRole constants.Role `json:"recipient_role"`
	RequestID     int64          `json:"request_id"`
	Kind          string         `json:"kind"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Payload       string         `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
