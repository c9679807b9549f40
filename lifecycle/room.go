// Package lifecycle holds the chat room and support ticket state machines.
//
// Every transition is a pure function from the current state (and the acting
// identity) to a decision: the next state, the system message to append and
// the notices to fan out once the change is committed. Nothing here touches
// the database or the push channel.
package lifecycle

import (
	"fmt"
	"time"

	"helpdesk/models"
	"helpdesk/realtime"
)

// Actor is the authenticated identity performing an action.
type Actor struct {
	ID    uint
	Name  string
	Email string
	Role  string
}

func (a Actor) IsStaff() bool { return a.Role == models.RoleAgent || a.Role == models.RoleAdmin }

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Audience is a recipient class resolved to identities by the fan-out.
type Audience int

const (
	ToCustomer Audience = iota + 1
	ToAssignedAgent
	ToAllAgents
)

// Notice is an event to emit after commit.
type Notice struct {
	Type      string
	Audiences []Audience
}

func notice(eventType string, to ...Audience) Notice {
	return Notice{Type: eventType, Audiences: to}
}

// RoomState is one of Waiting, Active or Concluded.
type RoomState interface {
	Status() string
	roomState()
}

// Waiting rooms are queued with no agent.
type Waiting struct{}

// Active rooms are held by exactly one agent.
type Active struct {
	AgentID   uint
	AgentName string
}

// Concluded rooms were ended by the customer. The last agent is kept for history.
type Concluded struct {
	LastAgentID   *uint
	LastAgentName *string
}

func (Waiting) Status() string   { return models.RoomWaiting }
func (Active) Status() string    { return models.RoomActive }
func (Concluded) Status() string { return models.RoomConcluded }

func (Waiting) roomState()   {}
func (Active) roomState()    {}
func (Concluded) roomState() {}

// Room is the part of a chat room the state machine reasons about.
type Room struct {
	ID         uint
	CustomerID uint
	State      RoomState
}

// RoomOf converts a persisted room into its state-machine view.
func RoomOf(m models.ChatRoom) Room {
	r := Room{ID: m.ID, CustomerID: m.CustomerID}
	switch m.Status {
	case models.RoomActive:
		a := Active{}
		if m.AgentID != nil {
			a.AgentID = *m.AgentID
		}
		if m.AgentName != nil {
			a.AgentName = *m.AgentName
		}
		r.State = a
	case models.RoomConcluded:
		r.State = Concluded{LastAgentID: m.AgentID, LastAgentName: m.AgentName}
	default:
		r.State = Waiting{}
	}
	return r
}

// AssignedAgent returns the agent currently holding the room, if any.
func (r Room) AssignedAgent() (uint, bool) {
	if a, ok := r.State.(Active); ok && a.AgentID != 0 {
		return a.AgentID, true
	}
	return 0, false
}

// RoomDecision is the outcome of an accepted room transition.
type RoomDecision struct {
	Next          RoomState
	SystemMessage string
	Notices       []Notice
	Changed       bool
}

// Columns returns the chat_rooms columns to update for the decision.
func (d RoomDecision) Columns(now time.Time) map[string]interface{} {
	cols := map[string]interface{}{
		"status":      d.Next.Status(),
		"modified_at": now,
	}
	switch s := d.Next.(type) {
	case Waiting:
		cols["agent_id"] = nil
		cols["agent_name"] = nil
		cols["closed_at"] = nil
	case Active:
		cols["agent_id"] = s.AgentID
		cols["agent_name"] = s.AgentName
	case Concluded:
		cols["closed_at"] = now
	}
	return cols
}

// OpenRoom starts a brand-new room for a customer with no prior thread.
func OpenRoom() RoomDecision {
	return RoomDecision{
		Next:          Waiting{},
		SystemMessage: "Thanks for reaching out! An agent will be with you shortly.",
		Notices:       []Notice{notice(realtime.EventNewChatRoom, ToAllAgents)},
		Changed:       true,
	}
}

// ReactivateRoom puts a concluded room back in the queue.
func ReactivateRoom(r Room) (RoomDecision, error) {
	if _, ok := r.State.(Concluded); !ok {
		return RoomDecision{}, reject(ErrInvalidState, "only a concluded chat can be reactivated")
	}
	return RoomDecision{
		Next:          Waiting{},
		SystemMessage: "The customer started a new conversation. Waiting for an available agent.",
		Notices:       []Notice{notice(realtime.EventRoomReactivated, ToCustomer, ToAllAgents)},
		Changed:       true,
	}, nil
}

// ClaimRoom assigns a waiting room to agent. A room that is no longer
// waiting is a conflict; the caller must refresh.
func ClaimRoom(r Room, agent Actor) (RoomDecision, error) {
	if !agent.IsStaff() {
		return RoomDecision{}, reject(ErrForbidden, "only support agents can claim chats")
	}
	if _, ok := r.State.(Waiting); !ok {
		return RoomDecision{}, reject(ErrConflict, "room no longer available")
	}
	return RoomDecision{
		Next:          Active{AgentID: agent.ID, AgentName: agent.Name},
		SystemMessage: fmt.Sprintf("%s joined the chat.", displayName(agent, "An agent")),
		Notices:       []Notice{notice(realtime.EventAgentJoined, ToCustomer)},
		Changed:       true,
	}, nil
}

// AuthorizeRoomMessage checks that sender may post as senderType and returns
// who must be told about the new message.
func AuthorizeRoomMessage(r Room, sender Actor, senderType string) (RoomDecision, error) {
	switch senderType {
	case models.SenderCustomer:
		if sender.ID != r.CustomerID {
			return RoomDecision{}, reject(ErrForbidden, "you are not the customer of this chat")
		}
	case models.SenderAgent:
		agentID, ok := r.AssignedAgent()
		if !sender.IsStaff() || !ok || agentID != sender.ID {
			return RoomDecision{}, reject(ErrForbidden, "you are not the agent assigned to this chat")
		}
	default:
		return RoomDecision{}, reject(ErrForbidden, "sender type not allowed")
	}
	if _, ok := r.State.(Concluded); ok {
		return RoomDecision{}, reject(ErrInvalidState, "this chat has ended")
	}

	d := RoomDecision{Next: r.State}
	if senderType == models.SenderCustomer {
		if _, ok := r.AssignedAgent(); ok {
			d.Notices = []Notice{notice(realtime.EventNewMessage, ToAssignedAgent)}
		}
	} else {
		d.Notices = []Notice{notice(realtime.EventNewMessage, ToCustomer)}
	}
	return d, nil
}

// AgentCloseRoom hands an active room back to the queue for another agent.
func AgentCloseRoom(r Room, agent Actor) (RoomDecision, error) {
	if !agent.IsStaff() {
		return RoomDecision{}, reject(ErrForbidden, "only support agents can conclude chats")
	}
	active, ok := r.State.(Active)
	if !ok {
		return RoomDecision{}, reject(ErrInvalidState, "only an active chat can be concluded")
	}
	if active.AgentID != agent.ID && !agent.IsAdmin() {
		return RoomDecision{}, reject(ErrForbidden, "you are not the agent assigned to this chat")
	}
	return RoomDecision{
		Next: Waiting{},
		SystemMessage: fmt.Sprintf("%s left the chat. You are back in the queue for the next available agent.",
			displayName(Actor{Name: active.AgentName}, "The agent")),
		Notices: []Notice{notice(realtime.EventRoomRequeued, ToCustomer, ToAllAgents)},
		Changed: true,
	}, nil
}

// CustomerEndRoom concludes the room at the customer's request.
func CustomerEndRoom(r Room, customer Actor) (RoomDecision, error) {
	if customer.ID != r.CustomerID {
		return RoomDecision{}, reject(ErrForbidden, "you are not the customer of this chat")
	}
	if _, ok := r.State.(Concluded); ok {
		return RoomDecision{}, reject(ErrInvalidState, "this chat has already ended")
	}
	return conclude(r, "The customer ended the chat."), nil
}

// DisconnectRoom is CustomerEndRoom for a dropped client: it is a no-op when
// the room is already concluded.
func DisconnectRoom(r Room, customer Actor) (RoomDecision, error) {
	if customer.ID != r.CustomerID {
		return RoomDecision{}, reject(ErrForbidden, "you are not the customer of this chat")
	}
	if _, ok := r.State.(Concluded); ok {
		return RoomDecision{Next: r.State}, nil
	}
	return conclude(r, "The customer disconnected."), nil
}

func conclude(r Room, message string) RoomDecision {
	next := Concluded{}
	if a, ok := r.State.(Active); ok {
		id, name := a.AgentID, a.AgentName
		next.LastAgentID, next.LastAgentName = &id, &name
	}
	return RoomDecision{
		Next:          next,
		SystemMessage: message,
		Notices:       []Notice{notice(realtime.EventCustomerDisconnected, ToAssignedAgent, ToAllAgents)},
		Changed:       true,
	}
}

func displayName(a Actor, fallback string) string {
	if a.Name != "" {
		return a.Name
	}
	return fallback
}
