package models

import (
	"time"

	"gorm.io/gorm"
)

// Account roles
const (
	RoleUser  = "USER"
	RoleAgent = "AGENT"
	RoleAdmin = "ADMIN"
)

// User is the storefront account as seen by the support desk. Accounts are
// owned by the identity service; this service only reads them.
type User struct {
	gorm.Model
	Name      string     `gorm:"default:''" json:"name"`
	Email     string     `gorm:"unique;not null" json:"email"`
	Role      string     `gorm:"default:'USER'" json:"role"` // USER, AGENT, ADMIN
	IsBlocked bool       `gorm:"default:false" json:"is_blocked"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	IsDeleted bool       `gorm:"default:false" json:"-"`
}
