package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/models"
	"helpdesk/realtime"
)

func ticketIn(state TicketState, agentID *uint) Ticket {
	return Ticket{ID: 5, CustomerID: uintPtr(customer.ID), AgentID: agentID, State: state}
}

func TestTicketOf(t *testing.T) {
	resolvedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tk := TicketOf(models.SupportTicket{ID: 2, Status: models.TicketResolved, ResolvedAt: &resolvedAt})
	assert.Equal(t, Resolved{At: resolvedAt}, tk.State)

	assert.Equal(t, WaitingCustomer{}, TicketOf(models.SupportTicket{Status: models.TicketWaitingCustomer}).State)
	assert.IsType(t, Closed{}, TicketOf(models.SupportTicket{Status: models.TicketClosed}).State)
	assert.Equal(t, Open{}, TicketOf(models.SupportTicket{}).State)
}

func TestAnonymousTicketHasNoOwner(t *testing.T) {
	tk := Ticket{ID: 1, State: Resolved{}}
	assert.False(t, tk.OwnedBy(0))

	_, err := ReopenTicket(tk, customer)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOpenTicket(t *testing.T) {
	d := OpenTicket()
	assert.Equal(t, Open{}, d.Next)
	assert.NotEmpty(t, d.SystemMessage)
	assert.Equal(t, realtime.EventNewSupportTicket, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToAllAgents}, d.Notices[0].Audiences)
}

func TestTicketMessageAutoAdvance(t *testing.T) {
	tests := []struct {
		name       string
		state      TicketState
		sender     Actor
		senderType string
		internal   bool
		next       TicketState
		changed    bool
	}{
		{"agent reply while open", Open{}, agentA, models.SenderAgent, false, InProgress{}, true},
		{"internal note while open", Open{}, agentA, models.SenderAgent, true, Open{}, false},
		{"customer reply while waiting", WaitingCustomer{}, customer, models.SenderCustomer, false, InProgress{}, true},
		{"customer reply while open", Open{}, customer, models.SenderCustomer, false, Open{}, false},
		{"agent reply while waiting", WaitingCustomer{}, agentA, models.SenderAgent, false, WaitingCustomer{}, false},
		{"customer reply while resolved", Resolved{}, customer, models.SenderCustomer, false, Resolved{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := AuthorizeTicketMessage(ticketIn(tt.state, uintPtr(agentA.ID)), tt.sender, tt.senderType, tt.internal)
			require.NoError(t, err)
			assert.Equal(t, tt.next, d.Next)
			assert.Equal(t, tt.changed, d.Changed)
		})
	}
}

func TestTicketMessageAudiences(t *testing.T) {
	d, err := AuthorizeTicketMessage(ticketIn(Open{}, nil), customer, models.SenderCustomer, false)
	require.NoError(t, err)
	assert.Equal(t, []Audience{ToAllAgents}, d.Notices[0].Audiences)

	d, err = AuthorizeTicketMessage(ticketIn(Open{}, uintPtr(agentA.ID)), customer, models.SenderCustomer, false)
	require.NoError(t, err)
	assert.Equal(t, []Audience{ToAssignedAgent}, d.Notices[0].Audiences)

	d, err = AuthorizeTicketMessage(ticketIn(InProgress{}, uintPtr(agentA.ID)), agentA, models.SenderAgent, false)
	require.NoError(t, err)
	assert.Equal(t, []Audience{ToCustomer}, d.Notices[0].Audiences)

	d, err = AuthorizeTicketMessage(ticketIn(InProgress{}, uintPtr(agentA.ID)), agentB, models.SenderAgent, true)
	require.NoError(t, err)
	for _, n := range d.Notices {
		assert.NotContains(t, n.Audiences, ToCustomer)
	}
}

func TestTicketMessageRejections(t *testing.T) {
	_, err := AuthorizeTicketMessage(ticketIn(Open{}, nil), stranger, models.SenderCustomer, false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = AuthorizeTicketMessage(ticketIn(Open{}, nil), customer, models.SenderCustomer, true)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = AuthorizeTicketMessage(ticketIn(Open{}, nil), customer, models.SenderAgent, false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = AuthorizeTicketMessage(ticketIn(Closed{}, nil), customer, models.SenderCustomer, false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestClaimTicket(t *testing.T) {
	d, err := ClaimTicket(ticketIn(Open{}, nil), agentA)
	require.NoError(t, err)
	assert.Equal(t, InProgress{}, d.Next)
	require.NotNil(t, d.AssignAgent)
	assert.Equal(t, agentA.ID, *d.AssignAgent)
	assert.Equal(t, realtime.EventTicketAgentAssigned, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToCustomer}, d.Notices[0].Audiences)
	assert.Equal(t, agentA.ID, d.Columns(time.Now())["agent_id"])

	_, err = ClaimTicket(ticketIn(WaitingCustomer{}, uintPtr(agentA.ID)), agentA)
	assert.NoError(t, err)

	_, err = ClaimTicket(ticketIn(InProgress{}, uintPtr(agentA.ID)), agentB)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = ClaimTicket(ticketIn(InProgress{}, uintPtr(agentA.ID)), admin)
	assert.NoError(t, err)

	_, err = ClaimTicket(ticketIn(Closed{}, nil), agentA)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = ClaimTicket(ticketIn(Open{}, nil), customer)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChangeTicketStatus(t *testing.T) {
	now := time.Now()

	d, err := ChangeTicketStatus(ticketIn(InProgress{}, uintPtr(agentA.ID)), admin, models.TicketResolved, now)
	require.NoError(t, err)
	assert.Equal(t, Resolved{At: now}, d.Next)
	assert.Equal(t, statusMessages[models.TicketResolved], d.SystemMessage)
	assert.Equal(t, []Audience{ToCustomer}, d.Notices[0].Audiences)
	cols := d.Columns(now)
	assert.Equal(t, now, cols["resolved_at"])
	assert.NotContains(t, cols, "closed_at")

	d, err = ChangeTicketStatus(ticketIn(Resolved{}, nil), agentA, models.TicketClosed, now)
	require.NoError(t, err)
	assert.Equal(t, now, d.Columns(now)["closed_at"])

	d, err = ChangeTicketStatus(ticketIn(Resolved{}, nil), agentA, models.TicketInProgress, now)
	require.NoError(t, err)
	assert.Contains(t, d.Columns(now), "resolved_at")
	assert.Nil(t, d.Columns(now)["resolved_at"])
}

func TestChangeTicketStatusRejections(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		state  TicketState
		actor  Actor
		target string
		kind   error
	}{
		{"closed is terminal", Closed{}, admin, models.TicketInProgress, ErrInvalidState},
		{"closed to open", Closed{}, admin, models.TicketOpen, ErrInvalidState},
		{"same status", Open{}, admin, models.TicketOpen, ErrInvalidState},
		{"unknown status", Open{}, admin, "escalated", ErrInvalidState},
		{"resolved to waiting", Resolved{}, admin, models.TicketWaitingCustomer, ErrInvalidState},
		{"customer cannot change", Open{}, customer, models.TicketClosed, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChangeTicketStatus(ticketIn(tt.state, nil), tt.actor, tt.target, now)
			assert.Equal(t, tt.kind, kindOf(err))
		})
	}
}

func TestEveryStatusHasCannedMessage(t *testing.T) {
	for from := range ticketTransitions {
		assert.NotEmpty(t, statusMessages[from], from)
	}
}

func TestReopenTicket(t *testing.T) {
	d, err := ReopenTicket(ticketIn(Resolved{}, uintPtr(agentA.ID)), customer)
	require.NoError(t, err)
	assert.Equal(t, InProgress{}, d.Next)
	assert.Equal(t, realtime.EventTicketReopened, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToAssignedAgent, ToAllAgents}, d.Notices[0].Audiences)

	for _, state := range []TicketState{Open{}, InProgress{}, WaitingCustomer{}, Closed{}} {
		_, err := ReopenTicket(ticketIn(state, nil), customer)
		assert.ErrorIs(t, err, ErrInvalidState, state.Status())
	}

	_, err = ReopenTicket(ticketIn(Resolved{}, nil), stranger)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAutoCloseTicket(t *testing.T) {
	now := time.Now()
	d, err := AutoCloseTicket(ticketIn(Resolved{}, nil), now)
	require.NoError(t, err)
	assert.Equal(t, Closed{At: now}, d.Next)

	_, err = AutoCloseTicket(ticketIn(InProgress{}, nil), now)
	assert.ErrorIs(t, err, ErrInvalidState)
}
