// Package events fans engagement notifications out to live subscribers, the
// feed behind the community dashboard's activity ticker.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind names the engagement event classes on the wire.
type Kind string

const (
	KindPointsAwarded Kind = "points_awarded"
	KindVoteCast      Kind = "vote_cast"
	KindPollClosed    Kind = "poll_closed"
	KindAlertReported Kind = "alert_reported"
	KindAlertResolved Kind = "alert_resolved"
)

// Event is one entry of the live engagement feed. Fields carries the
// kind-specific payload; member identity is omitted for anonymous ballots.
type Event struct {
	Kind      Kind           `json:"kind"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. A zero timestamp is filled
// in at publish time.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
