package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected clients
const (
	EventNewChatRoom          = "new_chat_room"
	EventRoomReactivated      = "room_reactivated"
	EventAgentJoined          = "agent_joined"
	EventNewMessage           = "new_message"
	EventRoomRequeued         = "room_requeued"
	EventCustomerDisconnected = "customer_disconnected"

	EventNewSupportTicket     = "new_support_ticket"
	EventTicketAgentAssigned  = "ticket_agent_assigned"
	EventTicketStatusUpdated  = "ticket_status_updated"
	EventSupportTicketMessage = "support_ticket_message"
	EventTicketReopened       = "ticket_reopened"
)

// Event is a single server-push notification. Payload always carries the id
// of the affected room or ticket.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

func NewEvent(eventType string, payload map[string]interface{}) Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
