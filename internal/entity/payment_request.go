package entity

import (
	"time"

	"github.com/joseph-ayodele/buildhub-payments/constants"
)

// PaymentRequest is the shared envelope of both request kinds. Exactly one of
// Stage or Custom is set, matching Kind.
type PaymentRequest struct {
	ID                 int64                        `json:"id"`
	Kind               constants.RequestKind        `json:"kind"`
	ProjectID          int64                        `json:"project_id"`
	ProjectSource      constants.SourceKind         `json:"project_source"`
	ContractorID       int64                        `json:"contractor_id"`
	HomeownerID        int64                        `json:"homeowner_id"`
	RequestedAmount    float64                      `json:"requested_amount"`
	ApprovedAmount     *float64                     `json:"approved_amount,omitempty"`
	Status             constants.RequestStatus      `json:"status"`
	VerificationStatus constants.VerificationStatus `json:"verification_status"`
	RequestDate        time.Time                    `json:"request_date"`
	ResponseDate       *time.Time                   `json:"response_date,omitempty"`
	HomeownerNotes     string                       `json:"homeowner_notes,omitempty"`
	RejectionReason    string                       `json:"rejection_reason,omitempty"`
	ContractorNotes    string                       `json:"contractor_notes,omitempty"`

	TransactionReference string     `json:"transaction_reference,omitempty"`
	PaymentMethod        string     `json:"payment_method,omitempty"`
	PaymentDate          *time.Time `json:"payment_date,omitempty"`
	VerifiedBy           *int64     `json:"verified_by,omitempty"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	VerificationNotes    string     `json:"verification_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Stage  *StageDetails  `json:"stage,omitempty"`
	Custom *CustomDetails `json:"custom,omitempty"`

	ReceiptFiles []ReceiptFile `json:"receipt_files"`

	// Derived on read.
	DaysSinceRequest int  `json:"days_since_request"`
	IsOverdue        bool `json:"is_overdue"`
}

// StageDetails carries the stage variant fields.
type StageDetails struct {
	StageName            string     `json:"stage_name"`
	CompletionPercentage float64    `json:"completion_percentage"`
	WorkDescription      string     `json:"work_description"`
	MaterialsUsed        string     `json:"materials_used,omitempty"`
	LaborCount           int        `json:"labor_count,omitempty"`
	WorkStartDate        *time.Time `json:"work_start_date,omitempty"`
	WorkEndDate          *time.Time `json:"work_end_date,omitempty"`
	QualityCheck         bool       `json:"quality_check"`
	SafetyCompliance     bool       `json:"safety_compliance"`
	PercentageOfTotal    float64    `json:"percentage_of_total,omitempty"`
}

// CustomDetails carries the custom variant fields.
type CustomDetails struct {
	RequestTitle    string            `json:"request_title"`
	RequestReason   string            `json:"request_reason"`
	Category        string            `json:"category,omitempty"`
	UrgencyLevel    constants.Urgency `json:"urgency_level"`
	WorkDescription string            `json:"work_description,omitempty"`
}

// EffectiveAmount is approved_amount when set, requested_amount otherwise.
func (r *PaymentRequest) EffectiveAmount() float64 {
	if r.ApprovedAmount != nil {
		return *r.ApprovedAmount
	}
	return r.RequestedAmount
}

// StageName returns the stage for stage requests and "" for custom ones.
func (r *PaymentRequest) StageName() string {
	if r.Stage != nil {
		return r.Stage.StageName
	}
	return ""
}

// Title is a display label usable for both kinds.
func (r *PaymentRequest) Title() string {
	if r.Custom != nil {
		return r.Custom.RequestTitle
	}
	if r.Stage != nil {
		return r.Stage.StageName
	}
	return ""
}

// Derive fills DaysSinceRequest and IsOverdue relative to now.
func (r *PaymentRequest) Derive(now time.Time, overdueAfter time.Duration) {
	age := now.Sub(r.RequestDate)
	if age < 0 {
		age = 0
	}
	r.DaysSinceRequest = int(age.Hours() / 24)
	r.IsOverdue = r.Status == constants.StatusPending && overdueAfter > 0 && age > overdueAfter
}
