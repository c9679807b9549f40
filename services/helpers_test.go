package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"helpdesk/accounts"
	"helpdesk/database"
	"helpdesk/lifecycle"
	"helpdesk/models"
	"helpdesk/notify"
	"helpdesk/realtime"
)

type captureStream struct {
	id     string
	mu     sync.Mutex
	events []realtime.Event
}

func (s *captureStream) ID() string   { return s.id }
func (s *captureStream) Closed() bool { return false }
func (s *captureStream) Close()       {}

func (s *captureStream) Send(ev realtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureStream) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func (s *captureStream) last() realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func (s *captureStream) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

type env struct {
	db       *gorm.DB
	registry *realtime.LocalRegistry
	rooms    *RoomService
	tickets  *TicketService

	customer, other, agent, agent2, admin lifecycle.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	e := &env{db: db, registry: realtime.NewLocalRegistry()}
	e.customer = e.seed(t, "Alice", "alice@example.com", models.RoleUser)
	e.other = e.seed(t, "Mallory", "mallory@example.com", models.RoleUser)
	e.agent = e.seed(t, "Bob", "bob@example.com", models.RoleAgent)
	e.agent2 = e.seed(t, "Carol", "carol@example.com", models.RoleAgent)
	e.admin = e.seed(t, "Dave", "dave@example.com", models.RoleAdmin)

	fanout := notify.NewFanout(e.registry, accounts.NewGormDirectory(db))
	e.rooms = NewRoomService(db, fanout)
	e.tickets = NewTicketService(db, fanout)
	return e
}

func (e *env) seed(t *testing.T, name, email, role string) lifecycle.Actor {
	t.Helper()
	u := models.User{Name: name, Email: email, Role: role}
	require.NoError(t, e.db.Create(&u).Error)
	return lifecycle.Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (e *env) connect(a lifecycle.Actor) *captureStream {
	s := &captureStream{id: uuid.NewString()}
	e.registry.Register(a.ID, s)
	return s
}
