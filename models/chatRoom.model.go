package models

import "time"

// RoomStatus enum
const (
	RoomWaiting   = "waiting"
	RoomActive    = "active"
	RoomConcluded = "concluded"
)

// Priority enum, shared by rooms and tickets
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ChatRoom is a customer's single continuous live-chat thread.
type ChatRoom struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CustomerID   uint       `gorm:"not null;index" json:"customer_id"`
	CustomerName string     `gorm:"type:varchar(120);default:''" json:"customer_name"`
	AgentID      *uint      `gorm:"index" json:"agent_id"`
	AgentName    *string    `gorm:"type:varchar(120)" json:"agent_name"`
	Status       string     `gorm:"type:varchar(20);not null;default:'waiting';index" json:"status"`
	Priority     string     `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	CreatedAt    time.Time  `json:"created_at"`
	ModifiedAt   time.Time  `gorm:"autoUpdateTime" json:"modified_at"`
	ClosedAt     *time.Time `json:"closed_at"`
}

func (ChatRoom) TableName() string {
	return "chat_rooms"
}
