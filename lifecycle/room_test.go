package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/models"
	"helpdesk/realtime"
)

var (
	customer = Actor{ID: 10, Name: "Alice", Role: models.RoleUser}
	stranger = Actor{ID: 11, Name: "Mallory", Role: models.RoleUser}
	agentA   = Actor{ID: 20, Name: "Bob", Role: models.RoleAgent}
	agentB   = Actor{ID: 21, Name: "Carol", Role: models.RoleAgent}
	admin    = Actor{ID: 30, Name: "Dave", Role: models.RoleAdmin}
)

func uintPtr(v uint) *uint { return &v }

func strPtr(v string) *string { return &v }

func waitingRoom() Room { return Room{ID: 1, CustomerID: customer.ID, State: Waiting{}} }

func activeRoom(a Actor) Room {
	return Room{ID: 1, CustomerID: customer.ID, State: Active{AgentID: a.ID, AgentName: a.Name}}
}

func concludedRoom() Room { return Room{ID: 1, CustomerID: customer.ID, State: Concluded{}} }

func kindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrForbidden, ErrInvalidState} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func TestRoomOf(t *testing.T) {
	agentID := uint(4)
	r := RoomOf(models.ChatRoom{ID: 3, CustomerID: 9, Status: models.RoomActive, AgentID: &agentID, AgentName: strPtr("Bob")})
	assert.Equal(t, Active{AgentID: 4, AgentName: "Bob"}, r.State)
	id, ok := r.AssignedAgent()
	assert.True(t, ok)
	assert.EqualValues(t, 4, id)

	c := RoomOf(models.ChatRoom{Status: models.RoomConcluded, AgentID: &agentID})
	assert.IsType(t, Concluded{}, c.State)
	_, ok = c.AssignedAgent()
	assert.False(t, ok)

	assert.IsType(t, Waiting{}, RoomOf(models.ChatRoom{Status: "bogus"}).State)
}

func TestOpenRoomNotifiesAllAgents(t *testing.T) {
	d := OpenRoom()

	assert.Equal(t, models.RoomWaiting, d.Next.Status())
	assert.NotEmpty(t, d.SystemMessage)
	require.Len(t, d.Notices, 1)
	assert.Equal(t, realtime.EventNewChatRoom, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToAllAgents}, d.Notices[0].Audiences)
}

func TestReactivateOnlyFromConcluded(t *testing.T) {
	d, err := ReactivateRoom(concludedRoom())
	require.NoError(t, err)
	assert.Equal(t, Waiting{}, d.Next)
	assert.Equal(t, []Audience{ToCustomer, ToAllAgents}, d.Notices[0].Audiences)
	assert.Equal(t, realtime.EventRoomReactivated, d.Notices[0].Type)

	_, err = ReactivateRoom(waitingRoom())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestClaimRoom(t *testing.T) {
	d, err := ClaimRoom(waitingRoom(), agentA)
	require.NoError(t, err)
	assert.Equal(t, Active{AgentID: agentA.ID, AgentName: agentA.Name}, d.Next)
	assert.Contains(t, d.SystemMessage, "Bob")
	assert.Equal(t, realtime.EventAgentJoined, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToCustomer}, d.Notices[0].Audiences)
}

func TestClaimRoomRejections(t *testing.T) {
	tests := []struct {
		name  string
		room  Room
		actor Actor
		kind  error
	}{
		{"already active", activeRoom(agentA), agentB, ErrConflict},
		{"same agent again", activeRoom(agentA), agentA, ErrConflict},
		{"concluded", concludedRoom(), agentA, ErrConflict},
		{"customer cannot claim", waitingRoom(), customer, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClaimRoom(tt.room, tt.actor)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kindOf(err))
		})
	}

	_, err := ClaimRoom(activeRoom(agentA), agentB)
	assert.EqualError(t, err, "room no longer available")
}

func TestAuthorizeRoomMessage(t *testing.T) {
	t.Run("customer on waiting room persists without push", func(t *testing.T) {
		d, err := AuthorizeRoomMessage(waitingRoom(), customer, models.SenderCustomer)
		require.NoError(t, err)
		assert.Empty(t, d.Notices)
		assert.False(t, d.Changed)
	})
	t.Run("customer on active room notifies agent", func(t *testing.T) {
		d, err := AuthorizeRoomMessage(activeRoom(agentA), customer, models.SenderCustomer)
		require.NoError(t, err)
		require.Len(t, d.Notices, 1)
		assert.Equal(t, realtime.EventNewMessage, d.Notices[0].Type)
		assert.Equal(t, []Audience{ToAssignedAgent}, d.Notices[0].Audiences)
	})
	t.Run("agent notifies customer", func(t *testing.T) {
		d, err := AuthorizeRoomMessage(activeRoom(agentA), agentA, models.SenderAgent)
		require.NoError(t, err)
		assert.Equal(t, []Audience{ToCustomer}, d.Notices[0].Audiences)
	})
}

func TestAuthorizeRoomMessageRejections(t *testing.T) {
	tests := []struct {
		name       string
		room       Room
		sender     Actor
		senderType string
		kind       error
	}{
		{"other customer", activeRoom(agentA), stranger, models.SenderCustomer, ErrForbidden},
		{"agent posing as customer", activeRoom(agentA), agentA, models.SenderCustomer, ErrForbidden},
		{"unassigned agent", activeRoom(agentA), agentB, models.SenderAgent, ErrForbidden},
		{"agent on waiting room", waitingRoom(), agentA, models.SenderAgent, ErrForbidden},
		{"customer posing as agent", activeRoom(agentA), customer, models.SenderAgent, ErrForbidden},
		{"system sender", activeRoom(agentA), admin, models.SenderSystem, ErrForbidden},
		{"concluded room", concludedRoom(), customer, models.SenderCustomer, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AuthorizeRoomMessage(tt.room, tt.sender, tt.senderType)
			assert.Equal(t, tt.kind, kindOf(err))
		})
	}
}

func TestAgentCloseRequeues(t *testing.T) {
	d, err := AgentCloseRoom(activeRoom(agentA), agentA)
	require.NoError(t, err)
	assert.Equal(t, Waiting{}, d.Next)
	assert.Equal(t, realtime.EventRoomRequeued, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToCustomer, ToAllAgents}, d.Notices[0].Audiences)

	cols := d.Columns(time.Now())
	assert.Nil(t, cols["agent_id"])
	assert.Contains(t, cols, "agent_id")
	assert.Equal(t, models.RoomWaiting, cols["status"])

	_, err = AgentCloseRoom(activeRoom(agentA), admin)
	assert.NoError(t, err)
	_, err = AgentCloseRoom(activeRoom(agentA), agentB)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = AgentCloseRoom(waitingRoom(), agentA)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = AgentCloseRoom(concludedRoom(), agentA)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCustomerEndRoom(t *testing.T) {
	d, err := CustomerEndRoom(activeRoom(agentA), customer)
	require.NoError(t, err)
	c, ok := d.Next.(Concluded)
	require.True(t, ok)
	require.NotNil(t, c.LastAgentID)
	assert.Equal(t, agentA.ID, *c.LastAgentID)
	assert.Equal(t, realtime.EventCustomerDisconnected, d.Notices[0].Type)
	assert.Equal(t, []Audience{ToAssignedAgent, ToAllAgents}, d.Notices[0].Audiences)

	now := time.Now()
	assert.Equal(t, now, d.Columns(now)["closed_at"])

	_, err = CustomerEndRoom(waitingRoom(), customer)
	assert.NoError(t, err)
	_, err = CustomerEndRoom(activeRoom(agentA), stranger)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = CustomerEndRoom(concludedRoom(), customer)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	d, err := DisconnectRoom(activeRoom(agentA), customer)
	require.NoError(t, err)
	assert.True(t, d.Changed)

	d, err = DisconnectRoom(Room{ID: 1, CustomerID: customer.ID, State: d.Next}, customer)
	require.NoError(t, err)
	assert.False(t, d.Changed)
	assert.Empty(t, d.Notices)

	_, err = DisconnectRoom(activeRoom(agentA), stranger)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRoomColumnsForActive(t *testing.T) {
	d, err := ClaimRoom(waitingRoom(), agentB)
	require.NoError(t, err)

	cols := d.Columns(time.Now())
	assert.Equal(t, agentB.ID, cols["agent_id"])
	assert.Equal(t, agentB.Name, cols["agent_name"])
	assert.Equal(t, models.RoomActive, cols["status"])
	assert.NotContains(t, cols, "closed_at")
}

func TestRejectionCarriesReason(t *testing.T) {
	err := NotFound("room not found")
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "room not found", rej.Reason)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, Forbidden("nope"), ErrForbidden)
}
