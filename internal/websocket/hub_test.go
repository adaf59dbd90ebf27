package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubForwardsOnlyToMatchingShop(t *testing.T) {
	broker := pubsub.NewBroker()
	hub := NewHub(broker)
	go hub.Run()
	defer hub.Close()

	shopA := uuid.New()
	shopB := uuid.New()

	clientA := &Client{Hub: hub, Send: make(chan []byte, 8), ShopID: shopA}
	clientB := &Client{Hub: hub, Send: make(chan []byte, 8), ShopID: shopB}
	hub.register <- clientA
	hub.register <- clientB

	event := pubsub.Event{ShopID: shopA, EntityType: pubsub.EntityInvoices, EntityID: uuid.New(), EventType: pubsub.EventUpdate}
	broker.Publish(event)

	select {
	case raw := <-clientA.Send:
		var got pubsub.Event
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("shop A client never received the event")
	}

	select {
	case <-clientB.Send:
		t.Fatal("shop B client received another shop's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	broker := pubsub.NewBroker()
	hub := NewHub(broker)
	go hub.Run()
	defer hub.Close()

	shopID := uuid.New()
	client := &Client{Hub: hub, Send: make(chan []byte, 8), ShopID: shopID}
	hub.register <- client
	hub.unregister <- client

	// The hub closes Send on unregister.
	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Send was not closed on unregister")
	}

	// Publishing afterwards must not panic.
	broker.Publish(pubsub.Event{ShopID: shopID, EntityType: pubsub.EntitySales, EntityID: uuid.New(), EventType: pubsub.EventInsert})
	time.Sleep(20 * time.Millisecond)
}
