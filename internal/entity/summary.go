package entity

import "github.com/joseph-ayodele/buildhub-payments/constants"

// RequestSummary aggregates a unified request list.
type RequestSummary struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	Approved       int     `json:"approved"`
	Paid           int     `json:"paid"`
	Rejected       int     `json:"rejected"`
	Overdue        int     `json:"overdue"`
	PendingAmount  float64 `json:"pending_amount"`
	ApprovedAmount float64 `json:"approved_amount"`
	PaidAmount     float64 `json:"paid_amount"`
}

// RequestList is the unified, date-ordered view over both request kinds.
type RequestList struct {
	Requests []*PaymentRequest `json:"requests"`
	Summary  RequestSummary    `json:"summary"`
}

// BudgetSummary reconciles requested, approved and paid totals against the ceiling.
type BudgetSummary struct {
	ProjectID         int64                `json:"project_id"`
	SourceKind        constants.SourceKind `json:"source_kind"`
	ContractorID      *int64               `json:"contractor_id,omitempty"`
	Ceiling           float64              `json:"budget_ceiling"`
	RequestedTotal    float64              `json:"requested_total"`
	ApprovedTotal     float64              `json:"approved_total"`
	PaidTotal         float64              `json:"paid_total"`
	PendingTotal      float64              `json:"pending_total"`
	Remaining         float64              `json:"remaining"`
	OverCeiling       bool                 `json:"over_ceiling"`
	UnavailableStages []string             `json:"unavailable_stages"`
}

// StageInfo describes one catalog stage for a project and contractor.
type StageInfo struct {
	StageName        string            `json:"stage_name"`
	Order            int               `json:"order"`
	TypicalPercent   float64           `json:"typical_percent"`
	SuggestedAmount  float64           `json:"suggested_amount"`
	MaxAmount        float64           `json:"max_amount"`
	CanRequest       bool              `json:"can_request"`
	ExistingRequests []*PaymentRequest `json:"existing_requests"`
}
