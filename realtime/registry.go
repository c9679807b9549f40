// Package realtime keeps the live server-push connections of signed-in users.
//
// The registry is a convenience layer for live updates only: nothing pushed
// through it is persisted or retried, and clients reconcile against the
// stored rooms and tickets when they reconnect.
package realtime

import (
	"log"
	"sync"
)

// Stream is an open, long-lived outbound channel to one client.
type Stream interface {
	ID() string
	Send(ev Event) error
	Closed() bool
	Close()
}

// Registry maps user identities to their live stream.
type Registry interface {
	Register(userID uint, s Stream)
	// Unregister removes s only if it is still the registered stream for userID.
	Unregister(userID uint, s Stream)
	// Push delivers ev if userID is connected and reports whether it did.
	Push(userID uint, ev Event) bool
	Connected(userID uint) bool
}

// LocalRegistry is the in-process Registry.
type LocalRegistry struct {
	mu      sync.RWMutex
	streams map[uint]Stream
}

func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{streams: make(map[uint]Stream)}
}

func (r *LocalRegistry) Register(userID uint, s Stream) {
	r.mu.Lock()
	old := r.streams[userID]
	r.streams[userID] = s
	r.mu.Unlock()

	if old != nil && old.ID() != s.ID() {
		old.Close()
	}
	log.Printf("[REALTIME] user %d connected (stream %s)", userID, s.ID())
}

func (r *LocalRegistry) Unregister(userID uint, s Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.streams[userID]
	if !ok || current.ID() != s.ID() {
		return
	}
	delete(r.streams, userID)
	log.Printf("[REALTIME] user %d disconnected (stream %s)", userID, s.ID())
}

func (r *LocalRegistry) Push(userID uint, ev Event) bool {
	r.mu.RLock()
	s, ok := r.streams[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if s.Closed() {
		r.Unregister(userID, s)
		return false
	}
	if err := s.Send(ev); err != nil {
		log.Printf("[REALTIME] push %s to user %d failed: %v", ev.Type, userID, err)
		s.Close()
		r.Unregister(userID, s)
		return false
	}
	return true
}

func (r *LocalRegistry) Connected(userID uint) bool {
	r.mu.RLock()
	s, ok := r.streams[userID]
	r.mu.RUnlock()
	return ok && !s.Closed()
}

// ConnectedUsers returns the identities with a live local stream.
func (r *LocalRegistry) ConnectedUsers() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint, 0, len(r.streams))
	for id, s := range r.streams {
		if !s.Closed() {
			ids = append(ids, id)
		}
	}
	return ids
}

// CloseAll closes and forgets every stream, returning the identities that
// were connected. Used on shutdown so open event streams let the server stop.
func (r *LocalRegistry) CloseAll() []uint {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[uint]Stream)
	r.mu.Unlock()

	ids := make([]uint, 0, len(streams))
	for id, s := range streams {
		s.Close()
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		log.Printf("[REALTIME] closed %d stream(s)", len(ids))
	}
	return ids
}
