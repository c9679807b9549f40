// Package accounts resolves identities to names, roles and the suspended
// flag. Accounts are owned elsewhere; the support desk only reads them.
package accounts

import (
	"context"
	"errors"

	"helpdesk/models"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the identity record the support desk cares about.
type Account struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Suspended bool   `json:"suspended"`
}

func (a Account) IsStaff() bool {
	return a.Role == models.RoleAgent || a.Role == models.RoleAdmin
}

// Directory looks up accounts and the current agent pool.
type Directory interface {
	Get(ctx context.Context, id uint) (Account, error)
	// AgentIDs returns every active (not suspended) agent and admin.
	AgentIDs(ctx context.Context) ([]uint, error)
}
