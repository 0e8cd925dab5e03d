package monitor

import (
	"sync"

	"github.com/google/uuid"
)

// Topic identifies a broadcast event stream.
type Topic string

const (
	TopicUsageUpdated   Topic = "usage-updated"
	TopicAccountUpdated Topic = "account-updated"
	TopicUsageError     Topic = "usage-error"
)

// Event is a fire-and-forget change notification.
type Event struct {
	ID      string `json:"id"`
	Topic   Topic  `json:"topic"`
	Payload any    `json:"payload"`
}

// subscriberBuffer bounds how far a subscriber may fall behind before its
// events are dropped.
const subscriberBuffer = 16

// Broadcaster fans events out to subscribers. Delivery is best-effort: a
// subscriber that cannot keep up has events dropped rather than blocking
// the publisher. There is no replay; late subscribers catch up through the
// State read methods.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster returns a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a listener. The returned cancel function releases the
// subscription and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}

	return ch, cancel
}

// Publish delivers the payload to all current subscribers without blocking.
func (b *Broadcaster) Publish(topic Topic, payload any) {
	event := Event{
		ID:      uuid.NewString(),
		Topic:   topic,
		Payload: payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default: // subscriber is behind, drop
		}
	}
}
