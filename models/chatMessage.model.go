package models

import "time"

// SenderType enum, shared by chat and ticket messages
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
	SenderSystem   = "system"
)

type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     uint      `gorm:"not null;index" json:"room_id"`
	SenderID   *uint     `json:"sender_id"` // nil for system messages
	SenderType string    `gorm:"type:varchar(10);not null" json:"sender_type"`
	SenderName string    `gorm:"type:varchar(120);default:''" json:"sender_name"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
