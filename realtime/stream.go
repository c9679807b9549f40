package realtime

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrStreamClosed = errors.New("stream closed")

// SSEStream writes events in text/event-stream framing. Writes from request
// goroutines and heartbeats from Serve share one mutex, so nothing is queued.
type SSEStream struct {
	id     string
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
	done   chan struct{}
}

func NewSSEStream(w *bufio.Writer) *SSEStream {
	return &SSEStream{
		id:   uuid.NewString(),
		w:    w,
		done: make(chan struct{}),
	}
}

func (s *SSEStream) ID() string { return s.id }

func (s *SSEStream) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.write(fmt.Sprintf("id: %s\ndata: %s\n\n", ev.ID, data))
}

// Heartbeat writes an SSE comment line so proxies keep the connection open
// and dead peers are detected.
func (s *SSEStream) Heartbeat() error {
	return s.write(": ping\n\n")
}

func (s *SSEStream) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if _, err := s.w.WriteString(frame); err != nil {
		s.closeLocked()
		return err
	}
	if err := s.w.Flush(); err != nil {
		s.closeLocked()
		return err
	}
	return nil
}

func (s *SSEStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SSEStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *SSEStream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *SSEStream) Done() <-chan struct{} { return s.done }

// Serve blocks until the stream is closed, sending heartbeats every interval.
func (s *SSEStream) Serve(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.Heartbeat(); err != nil {
				return
			}
		}
	}
}
