// Package notify turns committed lifecycle decisions into pushes.
//
// Delivery is best effort: a recipient without a live stream gets nothing and
// reads persisted state on its next fetch. The optional Sink sees every event
// and the optional Mailer reaches ticket customers that are not connected.
package notify

import (
	"context"
	"log"

	"helpdesk/accounts"
	"helpdesk/lifecycle"
	"helpdesk/models"
	"helpdesk/realtime"
)

// Sink exports committed events to other processes.
type Sink interface {
	Publish(ctx context.Context, key string, ev realtime.Event) error
}

// Mailer delivers ticket updates by email.
type Mailer interface {
	TicketUpdate(ctx context.Context, ticket models.SupportTicket, eventType, text string) error
}

type Fanout struct {
	registry  realtime.Registry
	directory accounts.Directory
	sink      Sink
	mailer    Mailer
}

type Option func(*Fanout)

func WithSink(s Sink) Option { return func(f *Fanout) { f.sink = s } }

func WithMailer(m Mailer) Option { return func(f *Fanout) { f.mailer = m } }

func NewFanout(registry realtime.Registry, directory accounts.Directory, opts ...Option) *Fanout {
	f := &Fanout{registry: registry, directory: directory}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RoomEvent is a committed room change and the message it produced, if any.
type RoomEvent struct {
	Room    models.ChatRoom
	Message *models.ChatMessage
	Notices []lifecycle.Notice
}

// TicketEvent is a committed ticket change and the message it produced, if any.
type TicketEvent struct {
	Ticket  models.SupportTicket
	Message *models.TicketMessage
	Notices []lifecycle.Notice
}

// Room pushes every notice of a committed room change. It returns the number
// of live deliveries.
func (f *Fanout) Room(ctx context.Context, e RoomEvent) int {
	delivered := 0
	for _, n := range e.Notices {
		payload := map[string]interface{}{
			"room_id": e.Room.ID,
			"status":  e.Room.Status,
			"room":    e.Room,
		}
		if e.Message != nil {
			payload["message"] = e.Message
		}
		ev := realtime.NewEvent(n.Type, payload)

		for _, id := range f.recipients(ctx, n.Audiences, &e.Room.CustomerID, e.Room.AgentID) {
			if f.registry.Push(id, ev) {
				delivered++
			}
		}
		f.export(ctx, "room-", e.Room.ID, ev)
	}
	return delivered
}

// Ticket pushes every notice of a committed ticket change. Internal notes
// never reach the customer, neither as a push nor by mail.
func (f *Fanout) Ticket(ctx context.Context, e TicketEvent) int {
	internal := e.Message != nil && e.Message.IsInternalNote
	delivered := 0
	for _, n := range e.Notices {
		payload := map[string]interface{}{
			"ticket_id": e.Ticket.ID,
			"status":    e.Ticket.Status,
			"ticket":    e.Ticket,
		}
		if e.Message != nil {
			payload["message"] = e.Message
		}
		ev := realtime.NewEvent(n.Type, payload)

		audiences := n.Audiences
		if internal {
			audiences = without(audiences, lifecycle.ToCustomer)
		}
		for _, id := range f.recipients(ctx, audiences, e.Ticket.CustomerID, e.Ticket.AgentID) {
			if f.registry.Push(id, ev) {
				delivered++
			}
		}
		if contains(audiences, lifecycle.ToCustomer) {
			f.mailOffline(ctx, e, n.Type)
		}
		f.export(ctx, "ticket-", e.Ticket.ID, ev)
	}
	return delivered
}

func (f *Fanout) recipients(ctx context.Context, audiences []lifecycle.Audience, customerID, agentID *uint) []uint {
	seen := make(map[uint]bool)
	var out []uint
	add := func(id uint) {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, a := range audiences {
		switch a {
		case lifecycle.ToCustomer:
			if customerID != nil {
				add(*customerID)
			}
		case lifecycle.ToAssignedAgent:
			if agentID != nil {
				add(*agentID)
			}
		case lifecycle.ToAllAgents:
			ids, err := f.directory.AgentIDs(ctx)
			if err != nil {
				log.Printf("[FANOUT] could not resolve agent pool: %v", err)
				continue
			}
			for _, id := range ids {
				add(id)
			}
		}
	}
	return out
}

func (f *Fanout) mailOffline(ctx context.Context, e TicketEvent, eventType string) {
	if f.mailer == nil || e.Ticket.CustomerEmail == "" {
		return
	}
	if e.Ticket.CustomerID != nil && f.registry.Connected(*e.Ticket.CustomerID) {
		return
	}
	text := ""
	if e.Message != nil {
		text = e.Message.Message
	}
	if err := f.mailer.TicketUpdate(ctx, e.Ticket, eventType, text); err != nil {
		log.Printf("[FANOUT] mail for ticket %d failed: %v", e.Ticket.ID, err)
	}
}

func (f *Fanout) export(ctx context.Context, prefix string, id uint, ev realtime.Event) {
	if f.sink == nil {
		return
	}
	if err := f.sink.Publish(ctx, prefix+uintString(id), ev); err != nil {
		log.Printf("[FANOUT] export of %s failed: %v", ev.Type, err)
	}
}

func without(in []lifecycle.Audience, drop lifecycle.Audience) []lifecycle.Audience {
	out := make([]lifecycle.Audience, 0, len(in))
	for _, a := range in {
		if a != drop {
			out = append(out, a)
		}
	}
	return out
}

func contains(in []lifecycle.Audience, a lifecycle.Audience) bool {
	for _, x := range in {
		if x == a {
			return true
		}
	}
	return false
}
