package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SupportEventsChannel carries pushes for users connected to another process.
	SupportEventsChannel = "support_events"
	// OnlineKeyPrefix + user id holds the node id of the process with the stream.
	OnlineKeyPrefix = "support:online:"
)

const redisOpTimeout = 2 * time.Second

// refreshPresence extends the key while it is missing or still ours.
var refreshPresence = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if (not owner) or owner == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
	return 1
end
return 0
`)

// clearPresence deletes the key only if this node still owns it.
var clearPresence = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type envelope struct {
	Origin string `json:"origin"`
	Node   string `json:"node"`
	UserID uint   `json:"user_id"`
	Event  Event  `json:"event"`
}

// RedisRegistry extends a LocalRegistry across processes. Presence is one
// expiring key per user, refreshed by Run while the stream is open, so a node
// that dies stops counting as a live handle once ttl passes. Pushes for users
// held by another node are published on SupportEventsChannel and delivered
// by that node's Run loop.
type RedisRegistry struct {
	local  *LocalRegistry
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

func NewRedisRegistry(rdb *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl < 2*time.Second {
		ttl = 2 * time.Second
	}
	return &RedisRegistry{
		local:  NewLocalRegistry(),
		rdb:    rdb,
		nodeID: uuid.NewString(),
		ttl:    ttl,
	}
}

func (r *RedisRegistry) NodeID() string { return r.nodeID }

func (r *RedisRegistry) Register(userID uint, s Stream) {
	r.local.Register(userID, s)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.rdb.Set(ctx, onlineKey(userID), r.nodeID, r.ttl).Err(); err != nil {
		log.Printf("[REALTIME] failed to record presence for user %d: %v", userID, err)
	}
}

func (r *RedisRegistry) Unregister(userID uint, s Stream) {
	r.local.Unregister(userID, s)
	if r.local.Connected(userID) {
		return
	}
	r.clear(userID)
}

func (r *RedisRegistry) Push(userID uint, ev Event) bool {
	if r.local.Push(userID, ev) {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	node, err := r.rdb.Get(ctx, onlineKey(userID)).Result()
	if err != nil || node == r.nodeID {
		// redis.Nil: not connected anywhere; own node id: stale presence
		return false
	}

	data, err := json.Marshal(envelope{Origin: r.nodeID, Node: node, UserID: userID, Event: ev})
	if err != nil {
		log.Printf("[REALTIME] failed to encode %s for user %d: %v", ev.Type, userID, err)
		return false
	}
	if err := r.rdb.Publish(ctx, SupportEventsChannel, data).Err(); err != nil {
		log.Printf("[REALTIME] failed to publish %s for user %d: %v", ev.Type, userID, err)
		return false
	}
	return true
}

func (r *RedisRegistry) Connected(userID uint) bool {
	if r.local.Connected(userID) {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	n, err := r.rdb.Exists(ctx, onlineKey(userID)).Result()
	return err == nil && n > 0
}

// Refresh extends presence for every locally connected user.
func (r *RedisRegistry) Refresh(ctx context.Context) {
	ttl := strconv.Itoa(int(r.ttl / time.Second))
	for _, id := range r.local.ConnectedUsers() {
		if err := refreshPresence.Run(ctx, r.rdb, []string{onlineKey(id)}, r.nodeID, ttl).Err(); err != nil {
			log.Printf("[REALTIME] failed to refresh presence for user %d: %v", id, err)
		}
	}
}

// CloseAll closes every local stream and drops this node's presence keys.
func (r *RedisRegistry) CloseAll() {
	for _, id := range r.local.CloseAll() {
		r.clear(id)
	}
}

// Run delivers events published by other nodes and keeps presence alive
// until ctx is cancelled.
func (r *RedisRegistry) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, SupportEventsChannel)
	defer pubsub.Close()
	log.Println("[REALTIME] Subscribed to Redis channel:", SupportEventsChannel)

	refresh := time.NewTicker(r.ttl / 2)
	defer refresh.Stop()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			r.Refresh(ctx)
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver([]byte(msg.Payload))
		}
	}
}

func (r *RedisRegistry) deliver(payload []byte) bool {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("[REALTIME] invalid event payload: %v", err)
		return false
	}
	if env.Origin == r.nodeID || env.Node != r.nodeID {
		return false
	}
	return r.local.Push(env.UserID, env.Event)
}

func (r *RedisRegistry) clear(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	err := clearPresence.Run(ctx, r.rdb, []string{onlineKey(userID)}, r.nodeID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[REALTIME] failed to clear presence for user %d: %v", userID, err)
	}
}

func onlineKey(userID uint) string {
	return OnlineKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}
