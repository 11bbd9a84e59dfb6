package payments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

func logEntry(actor entity.Actor, action, notes string, at time.Time) *entity.VerificationLogEntry {
	return &entity.VerificationLogEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		Notes:     notes,
		Timestamp: at,
	}
}

type eventPayload struct {
	ProjectID int64                   `json:"project_id"`
	Kind      constants.RequestKind   `json:"request_kind"`
	Title     string                  `json:"request_title"`
	Amount    float64                 `json:"amount"`
	Status    constants.RequestStatus `json:"status"`
}

func notification(req *entity.PaymentRequest, recipientID int64, role constants.Role, kind string, at time.Time) *entity.NotificationEvent {
	payload, _ := json.Marshal(eventPayload{
		ProjectID: req.ProjectID,
		Kind:      req.Kind,
		Title:     req.Title(),
		Amount:    req.EffectiveAmount(),
		Status:    req.Status,
	})
	title, message := describe(req, kind)
	return &entity.NotificationEvent{
		RecipientID:   recipientID,
		RecipientRole: role,
		RequestID:     req.ID,
		Kind:          kind,
		Title:         title,
		Message:       message,
		Payload:       string(payload),
		CreatedAt:     at,
	}
}

func describe(req *entity.PaymentRequest, kind string) (string, string) {
	label := req.Title()
	amount := formatAmount(req.EffectiveAmount())
	switch kind {
	case constants.NotifyRequestSubmitted:
		return "New payment request",
			fmt.Sprintf("Contractor requested %s for %s.", amount, label)
	case constants.NotifyRequestApproved:
		return "Payment request approved",
			fmt.Sprintf("Your request for %s was approved for %s.", label, amount)
	case constants.NotifyRequestRejected:
		return "Payment request rejected",
			fmt.Sprintf("Your request for %s was rejected: %s", label, req.RejectionReason)
	case constants.NotifyReceiptUploaded:
		return "Payment receipt uploaded",
			fmt.Sprintf("A receipt for %s (%s) is ready for verification.", label, amount)
	case constants.NotifyReceiptVerified:
		return "Payment receipt verified",
			fmt.Sprintf("The receipt for %s was verified.", label)
	case constants.NotifyReceiptRejected:
		return "Payment receipt rejected",
			fmt.Sprintf("The receipt for %s was rejected: %s", label, req.VerificationNotes)
	case constants.NotifyPaymentInitiated:
		return "Payment initiated",
			fmt.Sprintf("Payment for %s has been initiated.", label)
	}
	return kind, label
}

func formatAmount(v float64) string {
	return fmt.Sprintf("Rs. %.2f", v)
}
