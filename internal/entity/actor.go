package entity

import "github.com/joseph-ayodele/buildhub-payments/constants"

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   int64          `json:"id"`
	Role constants.Role `json:"role"`
}

func (a Actor) IsHomeowner() bool  { return a.Role == constants.RoleHomeowner }
func (a Actor) IsContractor() bool { return a.Role == constants.RoleContractor }
func (a Actor) IsAdmin() bool      { return a.Role == constants.RoleAdmin }
