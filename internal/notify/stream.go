package notify

import (
	"context"
	"sync"

	"pigeon-bidding/internal/models"
)

const subscriberBuffer = 16

type subscriber struct {
	auctionID string // empty receives every auction
	ch        chan models.Event
}

// Stream fans events out to in-process subscribers such as SSE clients
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// NewStream initialises an empty stream
func NewStream() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one auction (or all when auctionID is empty).
// The channel is closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, auctionID string) <-chan models.Event {
	ch := make(chan models.Event, subscriberBuffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{auctionID: auctionID, ch: ch}
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

// Publish delivers events to matching subscribers
func (s *Stream) Publish(_ context.Context, events ...models.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, evt := range events {
		for _, sub := range s.subs {
			if sub.auctionID != "" && sub.auctionID != evt.AuctionID {
				continue
			}
			select {
			case sub.ch <- evt:
			default:
				// slow subscriber, drop
			}
		}
	}
}

// Subscribers returns the number of active subscribers
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
