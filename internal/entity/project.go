package entity

import "github.com/joseph-ayodele/buildhub-payments/constants"

// Project is the canonical project view produced by the identity resolver.
type Project struct {
	ID            int64                `json:"id"`
	HomeownerID   int64                `json:"homeowner_id"`
	ContractorID  int64                `json:"contractor_id"`
	BudgetCeiling float64              `json:"budget_ceiling"`
	SourceKind    constants.SourceKind `json:"source_kind"`
	Status        string               `json:"status,omitempty"`
	Name          string               `json:"name,omitempty"`
}
