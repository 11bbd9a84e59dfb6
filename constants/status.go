package constants

import "fmt"

// RequestStatus is the lifecycle status of a payment request.
type RequestStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusPaid     RequestStatus = "paid" // terminal
)

// ActiveStatuses block a second request for the same stage.
var ActiveStatuses = []RequestStatus{StatusPending, StatusApproved}

// ParseRequestStatus validates s against the closed status set.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// IsActive reports whether the status holds a stage open.
func (s RequestStatus) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

// VerificationStatus tracks receipt verification independently of RequestStatus.
type VerificationStatus string

const (
	VerificationNone               VerificationStatus = "none"
	VerificationContractorUploaded VerificationStatus = "contractor_uploaded"
	VerificationVerified           VerificationStatus = "verified"
	VerificationRejected           VerificationStatus = "rejected"
)

// ParseVerificationStatus validates s against the closed verification set.
func ParseVerificationStatus(s string) (VerificationStatus, error) {
	switch vs := VerificationStatus(s); vs {
	case VerificationNone, VerificationContractorUploaded, VerificationVerified, VerificationRejected:
		return vs, nil
	}
	return "", fmt.Errorf("unknown verification status %q", s)
}

// RequestKind discriminates the two payment request variants.
type RequestKind string

const (
	KindStage  RequestKind = "stage"
	KindCustom RequestKind = "custom"
)

func ParseRequestKind(s string) (RequestKind, error) {
	switch k := RequestKind(s); k {
	case KindStage, KindCustom:
		return k, nil
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}

// Urgency of a custom request.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(s); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return u, nil
	case "":
		return UrgencyMedium, nil
	}
	return "", fmt.Errorf("unknown urgency level %q", s)
}

// Action is a homeowner decision on a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Log actions written to payment_verification_logs.
const (
	LogSubmitted        = "submitted"
	LogApproved         = "approved"
	LogRejected         = "rejected"
	LogReceiptUploaded  = "receipt_uploaded"
	LogVerified         = "verified"
	LogVerifyRejected   = "verification_rejected"
	LogPaymentInitiated = "payment_initiated"
)

// Role of the acting user.
type Role string

const (
	RoleHomeowner  Role = "homeowner"
	RoleContractor Role = "contractor"
	RoleAdmin      Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleHomeowner, RoleContractor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// SourceKind names the legacy representation a project was resolved from.
type SourceKind string

const (
	SourceConstructionProject SourceKind = "construction_project"
	SourceAcceptedEstimate    SourceKind = "accepted_estimate"
	SourceSendEstimate        SourceKind = "send_estimate"
	SourceLayoutRequest       SourceKind = "layout_request"
)

// Notification kinds.
const (
	NotifyRequestSubmitted = "request_submitted"
	NotifyRequestApproved  = "request_approved"
	NotifyRequestRejected  = "request_rejected"
	NotifyReceiptUploaded  = "receipt_uploaded"
	NotifyReceiptVerified  = "receipt_verified"
	NotifyReceiptRejected  = "receipt_rejected"
	NotifyPaymentInitiated = "payment_initiated"
)
