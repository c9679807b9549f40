package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"helpdesk/lifecycle"
	"helpdesk/models"
	"helpdesk/notify"
)

type TicketService struct {
	db     *gorm.DB
	fanout *notify.Fanout
	now    func() time.Time
}

func NewTicketService(db *gorm.DB, fanout *notify.Fanout) *TicketService {
	return &TicketService{
		db:     db,
		fanout: fanout,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewTicket is a support request. Name and Email are taken from the account
// for signed-in customers and from the form for guests.
type NewTicket struct {
	Name     string
	Email    string
	Subject  string
	Message  string
	Priority string
	Category string
	Metadata map[string]interface{}
}

// TicketFilter narrows the agent ticket list. Empty fields match everything.
type TicketFilter struct {
	Status   string
	Priority string
	Category string
	AgentID  *uint
	Page
}

// Create opens a ticket with the customer's first message and a system
// welcome. customer is nil for guest tickets.
func (s *TicketService) Create(ctx context.Context, customer *lifecycle.Actor, in NewTicket) (models.SupportTicket, error) {
	decision := lifecycle.OpenTicket()
	ticket := models.SupportTicket{
		CustomerName:  in.Name,
		CustomerEmail: in.Email,
		Subject:       in.Subject,
		Priority:      orDefault(in.Priority, models.PriorityNormal),
		Category:      orDefault(in.Category, models.CategoryGeneral),
		Status:        decision.Next.Status(),
	}
	if in.Metadata != nil {
		ticket.Metadata = datatypes.JSONMap(in.Metadata)
	}
	var senderID *uint
	if customer != nil {
		id := customer.ID
		senderID = &id
		ticket.CustomerID = &id
		if ticket.CustomerName == "" {
			ticket.CustomerName = customer.Name
		}
		if ticket.CustomerEmail == "" {
			ticket.CustomerEmail = customer.Email
		}
	}

	var first models.TicketMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		ticket.CreatedAt, ticket.UpdatedAt = now, now
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}
		var err error
		first, err = appendTicketMessage(tx, ticket.ID, senderID, models.SenderCustomer, ticket.CustomerName, in.Message, false, now)
		if err != nil {
			return err
		}
		_, err = appendTicketMessage(tx, ticket.ID, nil, models.SenderSystem, "System", decision.SystemMessage, false, now)
		return err
	})
	if err != nil {
		return models.SupportTicket{}, wrapDBError(err, "ticket not found")
	}

	log.Printf("[TICKET] ticket %d opened by %s", ticket.ID, ticket.CustomerEmail)
	s.fanout.Ticket(ctx, notify.TicketEvent{Ticket: ticket, Message: &first, Notices: decision.Notices})
	return ticket, nil
}

// List is the agent view of all tickets, newest first.
func (s *TicketService) List(ctx context.Context, filter TicketFilter) ([]models.SupportTicket, Pagination, error) {
	db := s.db.WithContext(ctx).Model(&models.SupportTicket{})
	if filter.Status != "" {
		db = db.Where("status = ?", strings.ToLower(filter.Status))
	}
	if filter.Priority != "" {
		db = db.Where("priority = ?", strings.ToLower(filter.Priority))
	}
	if filter.Category != "" {
		db = db.Where("category = ?", strings.ToLower(filter.Category))
	}
	if filter.AgentID != nil {
		db = db.Where("agent_id = ?", *filter.AgentID)
	}
	return s.page(db, filter.Page)
}

// Mine lists the tickets a customer opened while signed in.
func (s *TicketService) Mine(ctx context.Context, customer lifecycle.Actor, p Page) ([]models.SupportTicket, Pagination, error) {
	db := s.db.WithContext(ctx).Model(&models.SupportTicket{}).Where("customer_id = ?", customer.ID)
	return s.page(db, p)
}

func (s *TicketService) page(db *gorm.DB, p Page) ([]models.SupportTicket, Pagination, error) {
	page, limit, offset := p.normalize()

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count tickets: %w", err)
	}
	var tickets []models.SupportTicket
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&tickets).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, Pagination{Total: total, Page: page, Limit: limit}, nil
}

// Messages returns the thread in insertion order. Customers never see
// internal notes. The other party's messages are marked read.
func (s *TicketService) Messages(ctx context.Context, viewer lifecycle.Actor, ticketID uint) ([]models.TicketMessage, error) {
	var messages []models.TicketMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket models.SupportTicket
		if err := tx.First(&ticket, ticketID).Error; err != nil {
			return err
		}

		query := tx.Where("ticket_id = ?", ticket.ID)
		var fromOtherParty []string
		switch {
		case lifecycle.TicketOf(ticket).OwnedBy(viewer.ID):
			fromOtherParty = []string{models.SenderAgent, models.SenderSystem}
			query = query.Where("is_internal_note = ?", false)
		case viewer.IsStaff():
			fromOtherParty = []string{models.SenderCustomer}
		default:
			return lifecycle.Forbidden("you are not the owner of this ticket")
		}

		if err := tx.Model(&models.TicketMessage{}).
			Where("ticket_id = ? AND is_read = ? AND is_internal_note = ? AND sender_type IN ?", ticket.ID, false, false, fromOtherParty).
			Update("is_read", true).Error; err != nil {
			return err
		}
		return query.Order("id ASC").Find(&messages).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "ticket not found")
	}
	return messages, nil
}

// PostMessage stores a reply or internal note and applies auto-advance.
func (s *TicketService) PostMessage(ctx context.Context, sender lifecycle.Actor, ticketID uint, senderType, text string, internal bool) (models.TicketMessage, error) {
	var (
		ticket   models.SupportTicket
		decision lifecycle.TicketDecision
		msg      models.TicketMessage
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ticket, ticketID).Error; err != nil {
			return err
		}
		var err error
		decision, err = lifecycle.AuthorizeTicketMessage(lifecycle.TicketOf(ticket), sender, senderType, internal)
		if err != nil {
			return err
		}

		now := s.now()
		senderID := sender.ID
		msg, err = appendTicketMessage(tx, ticket.ID, &senderID, senderType, sender.Name, text, internal, now)
		if err != nil {
			return err
		}
		if decision.Changed {
			if err := tx.Model(&models.SupportTicket{}).Where("id = ?", ticket.ID).Updates(decision.Columns(now)).Error; err != nil {
				return err
			}
			if decision.SystemMessage != "" {
				if _, err := appendTicketMessage(tx, ticket.ID, nil, models.SenderSystem, "System", decision.SystemMessage, false, now); err != nil {
					return err
				}
			}
		} else if err := tx.Model(&models.SupportTicket{}).Where("id = ?", ticket.ID).Update("updated_at", now).Error; err != nil {
			return err
		}
		return reloadTicket(tx, &ticket)
	})
	if err != nil {
		return models.TicketMessage{}, wrapDBError(err, "ticket not found")
	}

	if decision.Changed {
		log.Printf("[TICKET] ticket %d advanced to %s by a %s message", ticket.ID, ticket.Status, senderType)
	}
	s.fanout.Ticket(ctx, notify.TicketEvent{Ticket: ticket, Message: &msg, Notices: decision.Notices})
	return msg, nil
}

// Claim assigns the ticket to agent.
func (s *TicketService) Claim(ctx context.Context, agent lifecycle.Actor, ticketID uint) (models.SupportTicket, error) {
	return s.transition(ctx, ticketID, func(t lifecycle.Ticket, _ time.Time) (lifecycle.TicketDecision, error) {
		return lifecycle.ClaimTicket(t, agent)
	})
}

// ChangeStatus is the agent/admin status change.
func (s *TicketService) ChangeStatus(ctx context.Context, agent lifecycle.Actor, ticketID uint, status string) (models.SupportTicket, error) {
	return s.transition(ctx, ticketID, func(t lifecycle.Ticket, now time.Time) (lifecycle.TicketDecision, error) {
		return lifecycle.ChangeTicketStatus(t, agent, strings.ToLower(status), now)
	})
}

// Reopen sends a resolved ticket back to in_progress at the owner's request.
func (s *TicketService) Reopen(ctx context.Context, customer lifecycle.Actor, ticketID uint) (models.SupportTicket, error) {
	return s.transition(ctx, ticketID, func(t lifecycle.Ticket, _ time.Time) (lifecycle.TicketDecision, error) {
		return lifecycle.ReopenTicket(t, customer)
	})
}

// AutoCloseResolved closes tickets resolved before cutoff. It returns how
// many were closed.
func (s *TicketService) AutoCloseResolved(ctx context.Context, cutoff time.Time) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.SupportTicket{}).
		Where("status = ? AND resolved_at IS NOT NULL AND resolved_at < ?", models.TicketResolved, cutoff).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("find stale tickets: %w", err)
	}

	closed := 0
	for _, id := range ids {
		_, err := s.transition(ctx, id, func(t lifecycle.Ticket, now time.Time) (lifecycle.TicketDecision, error) {
			return lifecycle.AutoCloseTicket(t, now)
		})
		var rej *lifecycle.Rejection
		if errors.As(err, &rej) {
			// reopened or closed since the scan
			continue
		}
		if err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

func (s *TicketService) transition(ctx context.Context, ticketID uint, decide func(lifecycle.Ticket, time.Time) (lifecycle.TicketDecision, error)) (models.SupportTicket, error) {
	var (
		ticket   models.SupportTicket
		decision lifecycle.TicketDecision
		message  *models.TicketMessage
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ticket, ticketID).Error; err != nil {
			return err
		}
		now := s.now()
		var err error
		decision, err = decide(lifecycle.TicketOf(ticket), now)
		if err != nil {
			return err
		}

		res := tx.Model(&models.SupportTicket{}).
			Where("id = ? AND status = ?", ticket.ID, ticket.Status).
			Updates(decision.Columns(now))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return lifecycle.Conflict("ticket changed concurrently, refresh and retry")
		}

		msg, err := appendTicketMessage(tx, ticket.ID, nil, models.SenderSystem, "System", decision.SystemMessage, false, now)
		if err != nil {
			return err
		}
		message = &msg
		return reloadTicket(tx, &ticket)
	})
	if err != nil {
		return models.SupportTicket{}, wrapDBError(err, "ticket not found")
	}

	log.Printf("[TICKET] ticket %d is now %s", ticket.ID, ticket.Status)
	s.fanout.Ticket(ctx, notify.TicketEvent{Ticket: ticket, Message: message, Notices: decision.Notices})
	return ticket, nil
}

func reloadTicket(tx *gorm.DB, ticket *models.SupportTicket) error {
	var fresh models.SupportTicket
	if err := tx.First(&fresh, ticket.ID).Error; err != nil {
		return err
	}
	*ticket = fresh
	return nil
}

func appendTicketMessage(tx *gorm.DB, ticketID uint, senderID *uint, senderType, senderName, text string, internal bool, now time.Time) (models.TicketMessage, error) {
	msg := models.TicketMessage{
		TicketID:       ticketID,
		SenderID:       senderID,
		SenderType:     senderType,
		SenderName:     senderName,
		Message:        text,
		IsInternalNote: internal,
		CreatedAt:      now,
	}
	err := tx.Create(&msg).Error
	return msg, err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.ToLower(v)
}
