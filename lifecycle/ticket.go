package lifecycle

import (
	"fmt"
	"time"

	"helpdesk/models"
	"helpdesk/realtime"
)

// TicketState is one of Open, InProgress, WaitingCustomer, Resolved or Closed.
type TicketState interface {
	Status() string
	ticketState()
}

type Open struct{}
type InProgress struct{}
type WaitingCustomer struct{}
type Resolved struct{ At time.Time }
type Closed struct{ At time.Time }

func (Open) Status() string            { return models.TicketOpen }
func (InProgress) Status() string      { return models.TicketInProgress }
func (WaitingCustomer) Status() string { return models.TicketWaitingCustomer }
func (Resolved) Status() string        { return models.TicketResolved }
func (Closed) Status() string          { return models.TicketClosed }

func (Open) ticketState()            {}
func (InProgress) ticketState()      {}
func (WaitingCustomer) ticketState() {}
func (Resolved) ticketState()        {}
func (Closed) ticketState()          {}

// Ticket is the part of a support ticket the state machine reasons about.
type Ticket struct {
	ID         uint
	CustomerID *uint
	AgentID    *uint
	State      TicketState
}

// TicketOf converts a persisted ticket into its state-machine view.
func TicketOf(m models.SupportTicket) Ticket {
	t := Ticket{ID: m.ID, CustomerID: m.CustomerID, AgentID: m.AgentID}
	switch m.Status {
	case models.TicketInProgress:
		t.State = InProgress{}
	case models.TicketWaitingCustomer:
		t.State = WaitingCustomer{}
	case models.TicketResolved:
		r := Resolved{}
		if m.ResolvedAt != nil {
			r.At = *m.ResolvedAt
		}
		t.State = r
	case models.TicketClosed:
		c := Closed{}
		if m.ClosedAt != nil {
			c.At = *m.ClosedAt
		}
		t.State = c
	default:
		t.State = Open{}
	}
	return t
}

// OwnedBy reports whether the ticket belongs to the given customer identity.
func (t Ticket) OwnedBy(customerID uint) bool {
	return t.CustomerID != nil && *t.CustomerID == customerID
}

// TicketDecision is the outcome of an accepted ticket transition.
type TicketDecision struct {
	Next          TicketState
	SystemMessage string
	AssignAgent   *uint
	Notices       []Notice
	Changed       bool
}

// Columns returns the support_tickets columns to update for the decision.
func (d TicketDecision) Columns(now time.Time) map[string]interface{} {
	cols := map[string]interface{}{
		"status":     d.Next.Status(),
		"updated_at": now,
	}
	if d.AssignAgent != nil {
		cols["agent_id"] = *d.AssignAgent
	}
	switch d.Next.(type) {
	case Resolved:
		cols["resolved_at"] = now
	case Closed:
		cols["closed_at"] = now
	case InProgress, Open, WaitingCustomer:
		cols["resolved_at"] = nil
	}
	return cols
}

// ticketTransitions lists the targets an agent may set through the generic
// status change. Closed is terminal; resolved tickets return to work only
// through in_progress.
var ticketTransitions = map[string][]string{
	models.TicketOpen:            {models.TicketInProgress, models.TicketWaitingCustomer, models.TicketResolved, models.TicketClosed},
	models.TicketInProgress:      {models.TicketOpen, models.TicketWaitingCustomer, models.TicketResolved, models.TicketClosed},
	models.TicketWaitingCustomer: {models.TicketInProgress, models.TicketResolved, models.TicketClosed},
	models.TicketResolved:        {models.TicketInProgress, models.TicketClosed},
	models.TicketClosed:          {},
}

var statusMessages = map[string]string{
	models.TicketOpen:            "Your ticket is open and waiting for review by our support team.",
	models.TicketInProgress:      "Our support team is working on your ticket.",
	models.TicketWaitingCustomer: "We need more information from you. Please reply to continue.",
	models.TicketResolved:        "Your ticket has been marked as resolved. If the problem persists you can reopen it.",
	models.TicketClosed:          "This ticket has been closed.",
}

// CanTransition reports whether the generic status change allows from -> to.
func CanTransition(from, to string) bool {
	for _, s := range ticketTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func stateFor(status string, now time.Time) (TicketState, bool) {
	switch status {
	case models.TicketOpen:
		return Open{}, true
	case models.TicketInProgress:
		return InProgress{}, true
	case models.TicketWaitingCustomer:
		return WaitingCustomer{}, true
	case models.TicketResolved:
		return Resolved{At: now}, true
	case models.TicketClosed:
		return Closed{At: now}, true
	}
	return nil, false
}

// OpenTicket is the decision for a newly submitted ticket.
func OpenTicket() TicketDecision {
	return TicketDecision{
		Next:          Open{},
		SystemMessage: "Thank you for contacting support. We have received your request and will get back to you soon.",
		Notices:       []Notice{notice(realtime.EventNewSupportTicket, ToAllAgents)},
		Changed:       true,
	}
}

// AuthorizeTicketMessage checks that sender may post as senderType and
// applies the auto-advance rules: a customer reply while waiting_customer and
// a customer-visible agent reply while open both move the ticket to
// in_progress. Every other message only bumps updated_at.
func AuthorizeTicketMessage(t Ticket, sender Actor, senderType string, internal bool) (TicketDecision, error) {
	switch senderType {
	case models.SenderCustomer:
		if !t.OwnedBy(sender.ID) {
			return TicketDecision{}, reject(ErrForbidden, "you are not the owner of this ticket")
		}
		if internal {
			return TicketDecision{}, reject(ErrForbidden, "customers cannot write internal notes")
		}
	case models.SenderAgent:
		if !sender.IsStaff() {
			return TicketDecision{}, reject(ErrForbidden, "only support agents can reply as agent")
		}
	default:
		return TicketDecision{}, reject(ErrForbidden, "sender type not allowed")
	}
	if _, ok := t.State.(Closed); ok {
		return TicketDecision{}, reject(ErrInvalidState, "this ticket is closed")
	}

	d := TicketDecision{Next: t.State}
	switch {
	case senderType == models.SenderCustomer:
		if _, ok := t.State.(WaitingCustomer); ok {
			d.Next = InProgress{}
			d.SystemMessage = "The customer has responded."
			d.Changed = true
		}
		if t.AgentID != nil {
			d.Notices = []Notice{notice(realtime.EventSupportTicketMessage, ToAssignedAgent)}
		} else {
			d.Notices = []Notice{notice(realtime.EventSupportTicketMessage, ToAllAgents)}
		}
	case internal:
		d.Notices = []Notice{notice(realtime.EventSupportTicketMessage, ToAssignedAgent)}
	default:
		if _, ok := t.State.(Open); ok {
			d.Next = InProgress{}
			d.Changed = true
		}
		d.Notices = []Notice{notice(realtime.EventSupportTicketMessage, ToCustomer)}
	}
	return d, nil
}

// ClaimTicket assigns the ticket to agent and forces in_progress.
func ClaimTicket(t Ticket, agent Actor) (TicketDecision, error) {
	if !agent.IsStaff() {
		return TicketDecision{}, reject(ErrForbidden, "only support agents can claim tickets")
	}
	switch t.State.(type) {
	case Closed:
		return TicketDecision{}, reject(ErrInvalidState, "a closed ticket cannot be claimed")
	}
	if t.AgentID != nil && *t.AgentID != agent.ID && !agent.IsAdmin() {
		return TicketDecision{}, reject(ErrConflict, "ticket is already assigned to another agent")
	}
	id := agent.ID
	return TicketDecision{
		Next:          InProgress{},
		AssignAgent:   &id,
		SystemMessage: fmt.Sprintf("%s has been assigned to your ticket.", displayName(agent, "A support agent")),
		Notices:       []Notice{notice(realtime.EventTicketAgentAssigned, ToCustomer)},
		Changed:       true,
	}, nil
}

// ChangeTicketStatus is the agent/admin driven status change.
func ChangeTicketStatus(t Ticket, agent Actor, target string, now time.Time) (TicketDecision, error) {
	if !agent.IsStaff() {
		return TicketDecision{}, reject(ErrForbidden, "only support agents can change ticket status")
	}
	next, ok := stateFor(target, now)
	if !ok {
		return TicketDecision{}, reject(ErrInvalidState, fmt.Sprintf("unknown ticket status %q", target))
	}
	from := t.State.Status()
	if from == target {
		return TicketDecision{}, reject(ErrInvalidState, fmt.Sprintf("ticket is already %s", target))
	}
	if !CanTransition(from, target) {
		return TicketDecision{}, reject(ErrInvalidState, fmt.Sprintf("cannot change ticket status from %s to %s", from, target))
	}
	return TicketDecision{
		Next:          next,
		SystemMessage: statusMessages[target],
		Notices:       []Notice{notice(realtime.EventTicketStatusUpdated, ToCustomer)},
		Changed:       true,
	}, nil
}

// ReopenTicket lets the owning customer send a resolved ticket back to work.
func ReopenTicket(t Ticket, customer Actor) (TicketDecision, error) {
	if !t.OwnedBy(customer.ID) {
		return TicketDecision{}, reject(ErrForbidden, "only the ticket owner can reopen it")
	}
	if _, ok := t.State.(Resolved); !ok {
		return TicketDecision{}, reject(ErrInvalidState, "only a resolved ticket can be reopened")
	}
	return TicketDecision{
		Next:          InProgress{},
		SystemMessage: "The customer reopened this ticket.",
		Notices:       []Notice{notice(realtime.EventTicketReopened, ToAssignedAgent, ToAllAgents)},
		Changed:       true,
	}, nil
}

// AutoCloseTicket closes a resolved ticket nobody has touched for a while.
func AutoCloseTicket(t Ticket, now time.Time) (TicketDecision, error) {
	if _, ok := t.State.(Resolved); !ok {
		return TicketDecision{}, reject(ErrInvalidState, "only a resolved ticket can be auto-closed")
	}
	return TicketDecision{
		Next:          Closed{At: now},
		SystemMessage: "This ticket was closed automatically after being resolved with no further activity.",
		Notices:       []Notice{notice(realtime.EventTicketStatusUpdated, ToCustomer)},
		Changed:       true,
	}, nil
}
