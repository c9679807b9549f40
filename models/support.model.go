package models

import (
	"time"

	"gorm.io/datatypes"
)

// TicketStatus enum
const (
	TicketOpen            = "open"
	TicketInProgress      = "in_progress"
	TicketWaitingCustomer = "waiting_customer"
	TicketResolved        = "resolved"
	TicketClosed          = "closed"
)

// TicketCategory enum
const (
	CategoryGeneral   = "general"
	CategoryOrder     = "order"
	CategoryPayment   = "payment"
	CategoryShipping  = "shipping"
	CategoryReturns   = "returns"
	CategoryTechnical = "technical"
)

type SupportTicket struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	CustomerID    *uint             `gorm:"index" json:"customer_id"` // nil for guest tickets
	CustomerName  string            `gorm:"type:varchar(120);not null" json:"customer_name"`
	CustomerEmail string            `gorm:"type:varchar(255);not null" json:"customer_email"`
	AgentID       *uint             `gorm:"index" json:"agent_id"`
	Subject       string            `gorm:"type:varchar(200);not null" json:"subject"`
	Priority      string            `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	Category      string            `gorm:"type:varchar(20);not null;default:'general'" json:"category"`
	Status        string            `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ResolvedAt    *time.Time        `json:"resolved_at"`
	ClosedAt      *time.Time        `json:"closed_at"`
}

func (SupportTicket) TableName() string {
	return "support_tickets"
}

type TicketMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TicketID       uint      `gorm:"not null;index" json:"ticket_id"`
	SenderID       *uint     `json:"sender_id"`
	SenderType     string    `gorm:"type:varchar(10);not null" json:"sender_type"`
	SenderName     string    `gorm:"type:varchar(120);default:''" json:"sender_name"`
	Message        string    `gorm:"type:text;not null" json:"message"`
	IsInternalNote bool      `gorm:"default:false" json:"is_internal_note"`
	IsRead         bool      `gorm:"default:false" json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

func (TicketMessage) TableName() string {
	return "ticket_messages"
}
