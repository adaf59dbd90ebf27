package projection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProjection returns an int projection whose compute function
// counts invocations and can be forced to fail.
func countingProjection(broker *pubsub.Broker, ttl time.Duration, fail *atomic.Bool) (*Projection[int], *atomic.Int32) {
	var calls atomic.Int32
	p := New(broker, "counting", ttl, []string{pubsub.EntityInvoices}, func(ctx context.Context, shopID uuid.UUID) (int, error) {
		if fail != nil && fail.Load() {
			return 0, errors.New("store unavailable")
		}
		return int(calls.Add(1)), nil
	})
	return p, &calls
}

func TestProjectionCachesWithinTTL(t *testing.T) {
	broker := pubsub.NewBroker()
	p, calls := countingProjection(broker, time.Minute, nil)
	defer p.Close()
	shopID := uuid.New()
	ctx := context.Background()

	first, err := p.Get(ctx, shopID)
	require.NoError(t, err)
	second, err := p.Get(ctx, shopID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestProjectionEntriesArePerShop(t *testing.T) {
	broker := pubsub.NewBroker()
	p, calls := countingProjection(broker, time.Minute, nil)
	defer p.Close()
	ctx := context.Background()

	_, err := p.Get(ctx, uuid.New())
	require.NoError(t, err)
	_, err = p.Get(ctx, uuid.New())
	require.NoError(t, err)

	assert.EqualValues(t, 2, calls.Load())
}

func TestEventInvalidatesDependentProjection(t *testing.T) {
	broker := pubsub.NewBroker()
	p, calls := countingProjection(broker, time.Minute, nil)
	defer p.Close()
	shopID := uuid.New()
	ctx := context.Background()

	_, err := p.Get(ctx, shopID)
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())

	broker.Publish(pubsub.Event{ShopID: shopID, EntityType: pubsub.EntityInvoices, EntityID: uuid.New(), EventType: pubsub.EventUpdate})

	// The listen goroutine marks the entry stale asynchronously; the
	// next Get after that recomputes.
	require.Eventually(t, func() bool {
		_, getErr := p.Get(ctx, shopID)
		return getErr == nil && calls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestUnrelatedEventDoesNotInvalidate(t *testing.T) {
	broker := pubsub.NewBroker()
	p, calls := countingProjection(broker, time.Minute, nil)
	defer p.Close()
	shopID := uuid.New()
	ctx := context.Background()

	_, err := p.Get(ctx, shopID)
	require.NoError(t, err)

	broker.Publish(pubsub.Event{ShopID: shopID, EntityType: pubsub.EntityExpenses, EntityID: uuid.New(), EventType: pubsub.EventUpdate})
	time.Sleep(50 * time.Millisecond)

	_, err = p.Get(ctx, shopID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInvalidateForcesRecompute(t *testing.T) {
	broker := pubsub.NewBroker()
	p, calls := countingProjection(broker, time.Minute, nil)
	defer p.Close()
	shopID := uuid.New()
	ctx := context.Background()

	_, err := p.Get(ctx, shopID)
	require.NoError(t, err)

	p.Invalidate(shopID)

	_, err = p.Get(ctx, shopID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTTLExpiryForcesRecompute(t *testing.T) {
	broker := pubsub.NewBroker()
	p, calls := countingProjection(broker, 10*time.Millisecond, nil)
	defer p.Close()
	shopID := uuid.New()
	ctx := context.Background()

	_, err := p.Get(ctx, shopID)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = p.Get(ctx, shopID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestServeStaleOnComputeError(t *testing.T) {
	broker := pubsub.NewBroker()
	var fail atomic.Bool
	p, _ := countingProjection(broker, time.Minute, &fail)
	defer p.Close()
	shopID := uuid.New()
	ctx := context.Background()

	good, err := p.Get(ctx, shopID)
	require.NoError(t, err)

	fail.Store(true)
	p.Invalidate(shopID)

	// A recompute failure serves the previous value instead of erroring.
	stale, err := p.Get(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, good, stale)

	// With nothing cached yet the error surfaces.
	_, err = p.Get(ctx, uuid.New())
	require.Error(t, err)
}
