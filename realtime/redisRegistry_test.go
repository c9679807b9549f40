package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presenceTTL = 10 * time.Second

func newNodes(t *testing.T) (*miniredis.Miniredis, *RedisRegistry, *RedisRegistry) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return rdb
	}
	return mr, NewRedisRegistry(client(), presenceTTL), NewRedisRegistry(client(), presenceTTL)
}

func (s *fakeStream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRedisPresenceExpiresWhenNodeDies(t *testing.T) {
	mr, nodeA, nodeB := newNodes(t)
	nodeA.Register(42, &fakeStream{id: "a"})

	assert.True(t, nodeB.Connected(42))
	assert.True(t, nodeB.Push(42, NewEvent(EventNewMessage, nil)))
	assert.Equal(t, presenceTTL, mr.TTL(onlineKey(42)))

	// node A goes away without unregistering
	mr.FastForward(presenceTTL + time.Second)

	assert.False(t, nodeB.Connected(42))
	assert.False(t, nodeB.Push(42, NewEvent(EventNewMessage, nil)))
}

func TestRedisPresenceRefreshKeepsLiveStreams(t *testing.T) {
	mr, nodeA, nodeB := newNodes(t)
	nodeA.Register(42, &fakeStream{id: "a"})

	mr.FastForward(presenceTTL - time.Second)
	nodeA.Refresh(context.Background())
	mr.FastForward(presenceTTL - time.Second)

	assert.True(t, nodeB.Connected(42))
}

func TestRedisRefreshDoesNotStealPresence(t *testing.T) {
	mr, nodeA, nodeB := newNodes(t)
	nodeA.Register(7, &fakeStream{id: "a"})
	nodeB.Register(7, &fakeStream{id: "b"})

	nodeA.Refresh(context.Background())

	owner, err := mr.Get(onlineKey(7))
	require.NoError(t, err)
	assert.Equal(t, nodeB.NodeID(), owner)
}

func TestRedisUnregisterKeepsOtherNodesPresence(t *testing.T) {
	mr, nodeA, nodeB := newNodes(t)
	sa := &fakeStream{id: "a"}
	nodeA.Register(7, sa)
	nodeB.Register(7, &fakeStream{id: "b"})

	nodeA.Unregister(7, sa)

	owner, err := mr.Get(onlineKey(7))
	require.NoError(t, err)
	assert.Equal(t, nodeB.NodeID(), owner)
	assert.True(t, nodeA.Connected(7))

	nodeB.Unregister(7, &fakeStream{id: "stale"})
	assert.True(t, mr.Exists(onlineKey(7)))
}

func TestRedisCloseAllDropsPresence(t *testing.T) {
	mr, nodeA, nodeB := newNodes(t)
	s1, s2 := &fakeStream{id: "1"}, &fakeStream{id: "2"}
	nodeA.Register(1, s1)
	nodeA.Register(2, s2)

	nodeA.CloseAll()

	assert.True(t, s1.Closed())
	assert.True(t, s2.Closed())
	assert.False(t, mr.Exists(onlineKey(1)))
	assert.False(t, nodeB.Connected(2))
	assert.False(t, nodeA.Connected(1))
}

func TestRedisPushReachesStreamOnOtherNode(t *testing.T) {
	_, nodeA, nodeB := newNodes(t)
	s := &fakeStream{id: "b"}
	nodeB.Register(9, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go nodeB.Run(ctx)

	// the subscription starts asynchronously, so publish until it lands
	require.Eventually(t, func() bool {
		assert.True(t, nodeA.Push(9, NewEvent(EventNewMessage, map[string]interface{}{"text": "hi"})))
		return s.count() > 0
	}, 2*time.Second, 20*time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, EventNewMessage, s.events[0].Type)
}

func TestLocalCloseAll(t *testing.T) {
	r := NewLocalRegistry()
	s := &fakeStream{id: "a"}
	r.Register(3, s)

	assert.Equal(t, []uint{3}, r.CloseAll())
	assert.True(t, s.Closed())
	assert.False(t, r.Connected(3))
	assert.Empty(t, r.CloseAll())
}
