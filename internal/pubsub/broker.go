// Package pubsub is the change-notification fanout between ledger
// writers and the read-model caches. Writers publish "entity X of type
// T changed for shop S"; they do not know who is subscribed. Delivery
// is at-least-once, best-effort: a dropped event only delays a
// projection's refresh, it never makes one wrong, because projections
// re-derive from the store instead of trusting event payloads.
package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// Entity types carried on the fanout.
const (
	EntityInvoices = "invoices"
	EntitySales    = "sales"
	EntityProducts = "products"
	EntityExpenses = "expenses"
	EntityStaff    = "staff"
)

// Event types.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Event describes one ledger mutation. It intentionally carries no row
// data — consumers recompute from the store.
type Event struct {
	ShopID     uuid.UUID `json:"shop_id"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	EventType  string    `json:"event_type"`
}

type topic struct {
	shopID     uuid.UUID
	entityType string
}

// Subscription receives events for the topics it was created with.
// Close unregisters it and closes C.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	broker *Broker
	topics []topic
	all    bool
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.unsubscribe(s)
		close(s.ch)
	})
}

// Broker is the topic-keyed fanout, keyed by (shop, entity type).
type Broker struct {
	mu       sync.RWMutex
	subs     map[topic][]*Subscription
	wildcard []*Subscription
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[topic][]*Subscription)}
}

const subscriptionBuffer = 16

// Subscribe registers interest in the given entity types of one shop.
func (b *Broker) Subscribe(shopID uuid.UUID, entityTypes ...string) *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, broker: b}
	for _, et := range entityTypes {
		sub.topics = append(sub.topics, topic{shopID: shopID, entityType: et})
	}

	b.mu.Lock()
	for _, t := range sub.topics {
		b.subs[t] = append(b.subs[t], sub)
	}
	b.mu.Unlock()
	return sub
}

// SubscribeAll receives every event regardless of shop. Used by the
// websocket bridge, which filters per connected client.
func (b *Broker) SubscribeAll() *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, broker: b, all: true}

	b.mu.Lock()
	b.wildcard = append(b.wildcard, sub)
	b.mu.Unlock()
	return sub
}

// Publish fans the event out without ever blocking the writer. When a
// subscriber's buffer is full the oldest pending event is discarded to
// make room; the subscriber re-derives from the store anyway.
func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[topic{shopID: e.ShopID, entityType: e.EntityType}] {
		deliver(sub.ch, e)
	}
	for _, sub := range b.wildcard {
		deliver(sub.ch, e)
	}
}

func deliver(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	// Buffer full: drop the oldest, then try once more. If another
	// goroutine raced us the event is dropped, which staleness-tolerant
	// consumers absorb.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.all {
		b.wildcard = remove(b.wildcard, sub)
		return
	}
	for _, t := range sub.topics {
		b.subs[t] = remove(b.subs[t], sub)
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
}

func remove(subs []*Subscription, target *Subscription) []*Subscription {
	out := subs[:0]
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
