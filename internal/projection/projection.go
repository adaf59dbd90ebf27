// Package projection holds the read-only aggregation views derived
// from the ledger. Projections are invalidated by the fanout, not
// incrementally updated: an event only marks the shop's cached result
// stale, and the next read recomputes from the store. A recompute
// failure serves the stale value and logs — it never fails a write.
package projection

import (
	"context"
	"log"
	"sync"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
)

type entry[T any] struct {
	value      T
	computedAt time.Time
	stale      bool
}

// Projection caches one computed result per shop with a TTL that acts
// as a staleness bound independent of the fanout (a missed event only
// delays refresh until expiry).
type Projection[T any] struct {
	name     string
	ttl      time.Duration
	entities map[string]bool
	compute  func(ctx context.Context, shopID uuid.UUID) (T, error)

	mu      sync.Mutex
	entries map[uuid.UUID]*entry[T]
	sub     *pubsub.Subscription
	done    chan struct{}
}

// New registers a projection on the broker. entityTypes declares which
// ledger topics the computation depends on.
func New[T any](
	broker *pubsub.Broker,
	name string,
	ttl time.Duration,
	entityTypes []string,
	compute func(ctx context.Context, shopID uuid.UUID) (T, error),
) *Projection[T] {
	p := &Projection[T]{
		name:     name,
		ttl:      ttl,
		entities: make(map[string]bool, len(entityTypes)),
		compute:  compute,
		entries:  make(map[uuid.UUID]*entry[T]),
		sub:      broker.SubscribeAll(),
		done:     make(chan struct{}),
	}
	for _, et := range entityTypes {
		p.entities[et] = true
	}
	go p.listen()
	return p
}

func (p *Projection[T]) listen() {
	defer close(p.done)
	for e := range p.sub.C {
		if !p.entities[e.EntityType] {
			continue
		}
		p.mu.Lock()
		if ent, ok := p.entries[e.ShopID]; ok {
			ent.stale = true
		}
		p.mu.Unlock()
	}
}

// Get returns the cached value when it is neither stale nor expired,
// otherwise recomputes. If recompute fails and a previous value exists,
// the stale value is served and the error only logged.
func (p *Projection[T]) Get(ctx context.Context, shopID uuid.UUID) (T, error) {
	p.mu.Lock()
	ent, ok := p.entries[shopID]
	if ok && !ent.stale && time.Since(ent.computedAt) < p.ttl {
		v := ent.value
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	value, err := p.compute(ctx, shopID)
	if err != nil {
		log.Printf("projection %s: recompute failed for shop %s: %v", p.name, shopID, err)
		p.mu.Lock()
		defer p.mu.Unlock()
		if ent != nil {
			// Stay stale; the next trigger retries.
			return ent.value, nil
		}
		var zero T
		return zero, err
	}

	p.mu.Lock()
	p.entries[shopID] = &entry[T]{value: value, computedAt: time.Now()}
	p.mu.Unlock()
	return value, nil
}

// Invalidate marks the shop's entry stale directly (used by tests and
// by callers that know they just wrote).
func (p *Projection[T]) Invalidate(shopID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ent, ok := p.entries[shopID]; ok {
		ent.stale = true
	}
}

// Close detaches the projection from the broker.
func (p *Projection[T]) Close() {
	p.sub.Close()
	<-p.done
}
