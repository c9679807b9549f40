// Package services runs the lifecycle engines against the database: every
// operation loads state inside a transaction, asks the engine for a decision,
// persists it, commits and only then fans out notifications.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"helpdesk/lifecycle"
	"helpdesk/models"
	"helpdesk/notify"
)

// How Initiate resolved the customer's room.
const (
	RoomExisting    = "existing"
	RoomReactivated = "reactivated"
	RoomCreated     = "created"
)

type RoomService struct {
	db     *gorm.DB
	fanout *notify.Fanout
	locks  *keyedMutex
	now    func() time.Time
}

func NewRoomService(db *gorm.DB, fanout *notify.Fanout) *RoomService {
	return &RoomService{
		db:     db,
		fanout: fanout,
		locks:  newKeyedMutex(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RoomFilter narrows the agent room list.
type RoomFilter struct {
	Status string
	Page
}

// Initiate returns the customer's waiting or active room, reactivates their
// latest concluded room, or opens a new one, in that order.
func (s *RoomService) Initiate(ctx context.Context, customer lifecycle.Actor, priority string) (models.ChatRoom, string, error) {
	unlock := s.locks.Lock(customer.ID)
	defer unlock()

	if priority == "" {
		priority = models.PriorityNormal
	}

	var (
		room     models.ChatRoom
		outcome  string
		decision lifecycle.RoomDecision
		message  *models.ChatMessage
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("customer_id = ? AND status IN ?", customer.ID, []string{models.RoomWaiting, models.RoomActive}).
			Order("id DESC").
			First(&room).Error
		if err == nil {
			outcome = RoomExisting
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		err = tx.Where("customer_id = ? AND status = ?", customer.ID, models.RoomConcluded).
			Order("modified_at DESC, id DESC").
			First(&room).Error
		switch {
		case err == nil:
			decision, err = lifecycle.ReactivateRoom(lifecycle.RoomOf(room))
			if err != nil {
				return err
			}
			if err := tx.Model(&room).Updates(decision.Columns(now)).Error; err != nil {
				return err
			}
			outcome = RoomReactivated
		case errors.Is(err, gorm.ErrRecordNotFound):
			decision = lifecycle.OpenRoom()
			room = models.ChatRoom{
				CustomerID:   customer.ID,
				CustomerName: customer.Name,
				Status:       decision.Next.Status(),
				Priority:     priority,
				CreatedAt:    now,
				ModifiedAt:   now,
			}
			if err := tx.Create(&room).Error; err != nil {
				return err
			}
			outcome = RoomCreated
		default:
			return err
		}

		msg, err := appendRoomMessage(tx, room.ID, nil, models.SenderSystem, "System", decision.SystemMessage, now)
		if err != nil {
			return err
		}
		message = &msg
		return reloadRoom(tx, &room)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// another process opened the room first
		log.Printf("[ROOM] concurrent create for customer %d, returning the existing room", customer.ID)
		err = s.db.WithContext(ctx).
			Where("customer_id = ? AND status IN ?", customer.ID, []string{models.RoomWaiting, models.RoomActive}).
			First(&room).Error
		return room, RoomExisting, wrapDBError(err, "room not found")
	}
	if err != nil {
		return models.ChatRoom{}, "", wrapDBError(err, "room not found")
	}

	if outcome != RoomExisting {
		log.Printf("[ROOM] room %d %s for customer %d", room.ID, outcome, customer.ID)
		s.fanout.Room(ctx, notify.RoomEvent{Room: room, Message: message, Notices: decision.Notices})
	}
	return room, outcome, nil
}

// Claim assigns a waiting room to agent under a row lock.
func (s *RoomService) Claim(ctx context.Context, agent lifecycle.Actor, roomID uint) (models.ChatRoom, error) {
	return s.transition(ctx, roomID, func(r lifecycle.Room) (lifecycle.RoomDecision, error) {
		return lifecycle.ClaimRoom(r, agent)
	})
}

// AgentClose hands the room back to the queue.
func (s *RoomService) AgentClose(ctx context.Context, agent lifecycle.Actor, roomID uint) (models.ChatRoom, error) {
	return s.transition(ctx, roomID, func(r lifecycle.Room) (lifecycle.RoomDecision, error) {
		return lifecycle.AgentCloseRoom(r, agent)
	})
}

// CustomerEnd concludes the room at the customer's request.
func (s *RoomService) CustomerEnd(ctx context.Context, customer lifecycle.Actor, roomID uint) (models.ChatRoom, error) {
	return s.transition(ctx, roomID, func(r lifecycle.Room) (lifecycle.RoomDecision, error) {
		return lifecycle.CustomerEndRoom(r, customer)
	})
}

// Disconnect concludes the room unless it already is.
func (s *RoomService) Disconnect(ctx context.Context, customer lifecycle.Actor, roomID uint) (models.ChatRoom, error) {
	return s.transition(ctx, roomID, func(r lifecycle.Room) (lifecycle.RoomDecision, error) {
		return lifecycle.DisconnectRoom(r, customer)
	})
}

func (s *RoomService) transition(ctx context.Context, roomID uint, decide func(lifecycle.Room) (lifecycle.RoomDecision, error)) (models.ChatRoom, error) {
	var (
		room     models.ChatRoom
		decision lifecycle.RoomDecision
		message  *models.ChatMessage
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			return err
		}
		var err error
		decision, err = decide(lifecycle.RoomOf(room))
		if err != nil || !decision.Changed {
			return err
		}

		now := s.now()
		res := tx.Model(&models.ChatRoom{}).
			Where("id = ? AND status = ?", room.ID, room.Status).
			Updates(decision.Columns(now))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return lifecycle.Conflict("room changed concurrently, refresh and retry")
		}

		msg, err := appendRoomMessage(tx, room.ID, nil, models.SenderSystem, "System", decision.SystemMessage, now)
		if err != nil {
			return err
		}
		message = &msg
		return reloadRoom(tx, &room)
	})
	if err != nil {
		return models.ChatRoom{}, wrapDBError(err, "room not found")
	}

	if decision.Changed {
		log.Printf("[ROOM] room %d is now %s", room.ID, room.Status)
		s.fanout.Room(ctx, notify.RoomEvent{Room: room, Message: message, Notices: decision.Notices})
	}
	return room, nil
}

// PostMessage stores a customer or agent message and notifies the other party.
func (s *RoomService) PostMessage(ctx context.Context, sender lifecycle.Actor, roomID uint, senderType, text string) (models.ChatMessage, error) {
	var (
		room     models.ChatRoom
		decision lifecycle.RoomDecision
		msg      models.ChatMessage
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&room, roomID).Error; err != nil {
			return err
		}
		var err error
		decision, err = lifecycle.AuthorizeRoomMessage(lifecycle.RoomOf(room), sender, senderType)
		if err != nil {
			return err
		}

		now := s.now()
		senderID := sender.ID
		msg, err = appendRoomMessage(tx, room.ID, &senderID, senderType, sender.Name, text, now)
		if err != nil {
			return err
		}
		return tx.Model(&room).Update("modified_at", now).Error
	})
	if err != nil {
		return models.ChatMessage{}, wrapDBError(err, "room not found")
	}

	s.fanout.Room(ctx, notify.RoomEvent{Room: room, Message: &msg, Notices: decision.Notices})
	return msg, nil
}

// Messages returns the room history in insertion order and marks the other
// party's messages read.
func (s *RoomService) Messages(ctx context.Context, viewer lifecycle.Actor, roomID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.ChatRoom
		if err := tx.First(&room, roomID).Error; err != nil {
			return err
		}

		var fromOtherParty []string
		switch {
		case room.CustomerID == viewer.ID:
			fromOtherParty = []string{models.SenderAgent, models.SenderSystem}
		case viewer.IsStaff():
			fromOtherParty = []string{models.SenderCustomer}
		default:
			return lifecycle.Forbidden("you are not a participant of this chat")
		}

		if err := tx.Model(&models.ChatMessage{}).
			Where("room_id = ? AND is_read = ? AND sender_type IN ?", room.ID, false, fromOtherParty).
			Update("is_read", true).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", room.ID).Order("id ASC").Find(&messages).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "room not found")
	}
	return messages, nil
}

// CurrentRoom is the customer's open room, or their most recent one.
func (s *RoomService) CurrentRoom(ctx context.Context, customer lifecycle.Actor) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customer.ID).
		Order(statusOrder).
		Order("modified_at DESC").
		First(&room).Error
	if err != nil {
		return models.ChatRoom{}, wrapDBError(err, "no chat found")
	}
	return room, nil
}

// statusOrder sorts the queue first, then live chats, then history.
const statusOrder = "CASE status WHEN 'waiting' THEN 0 WHEN 'active' THEN 1 ELSE 2 END"

// List is the agent view of all rooms.
func (s *RoomService) List(ctx context.Context, filter RoomFilter) ([]models.ChatRoom, Pagination, error) {
	page, limit, offset := filter.normalize()

	db := s.db.WithContext(ctx).Model(&models.ChatRoom{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count rooms: %w", err)
	}

	var rooms []models.ChatRoom
	if err := db.Order(statusOrder).Order("modified_at DESC").Offset(offset).Limit(limit).Find(&rooms).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, Pagination{Total: total, Page: page, Limit: limit}, nil
}

func reloadRoom(tx *gorm.DB, room *models.ChatRoom) error {
	var fresh models.ChatRoom
	if err := tx.First(&fresh, room.ID).Error; err != nil {
		return err
	}
	*room = fresh
	return nil
}

func appendRoomMessage(tx *gorm.DB, roomID uint, senderID *uint, senderType, senderName, text string, now time.Time) (models.ChatMessage, error) {
	msg := models.ChatMessage{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderType: senderType,
		SenderName: senderName,
		Message:    text,
		CreatedAt:  now,
	}
	err := tx.Create(&msg).Error
	return msg, err
}

// wrapDBError maps a missing row to a not-found rejection and leaves
// lifecycle rejections untouched.
func wrapDBError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var rej *lifecycle.Rejection
	if errors.As(err, &rej) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lifecycle.NotFound(notFound)
	}
	return fmt.Errorf("database: %w", err)
}
