// Package events fans out application change notifications to live dashboard subscribers.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	TypeApplicationCreated = "application.created"
	TypePaymentReceived    = "application.payment_received"
	TypeStatusChanged      = "application.status_changed"
)

// ApplicationChanged announces that one application record was written.
// Subscribers re-read the record; the event itself carries no record data.
type ApplicationChanged struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"application_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Broker delivers events scoped to a single application id.
type Broker interface {
	Publish(ctx context.Context, ev ApplicationChanged) error
	// Subscribe returns a channel of events for applicationID. The channel is
	// closed when ctx is done or cancel is called.
	Subscribe(ctx context.Context, applicationID string) (<-chan ApplicationChanged, func(), error)
}

const subscriberBuffer = 8

type subscriber struct {
	ch   chan ApplicationChanged
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// MemoryBroker is an in-process Broker. Slow subscribers lose events rather than block publishers.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*subscriber]struct{})}
}

// Publish delivers ev to current subscribers of ev.ApplicationID.
func (b *MemoryBroker) Publish(_ context.Context, ev ApplicationChanged) error {
	b.deliver(ev)
	return nil
}

func (b *MemoryBroker) deliver(ev ApplicationChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[ev.ApplicationID] {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribe registers a subscriber for applicationID.
func (b *MemoryBroker) Subscribe(ctx context.Context, applicationID string) (<-chan ApplicationChanged, func(), error) {
	s := &subscriber{ch: make(chan ApplicationChanged, subscriberBuffer)}

	b.mu.Lock()
	set, ok := b.subs[applicationID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[applicationID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[applicationID], s)
			if len(b.subs[applicationID]) == 0 {
				delete(b.subs, applicationID)
			}
			b.mu.Unlock()
			s.close()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return s.ch, cancel, nil
}

// SubscriberCount reports the live subscribers of applicationID.
func (b *MemoryBroker) SubscriberCount(applicationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[applicationID])
}
