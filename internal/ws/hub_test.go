package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, room string) *Client {
	return &Client{
		hub:    hub,
		room:   room,
		send:   make(chan []byte, 256),
		logger: zap.NewNop(),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
		return Event{}
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, "orders")

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, hub.RoomSize("orders"))
}

func TestHubUnregistration_RemovesEmptyRoom(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, "orders")

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	_, exists := hub.rooms["orders"]
	hub.mu.RUnlock()
	assert.False(t, exists, "empty room should be deleted")

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")
}

func TestPublish_ReachesEveryClientInRoom(t *testing.T) {
	hub := startHub(t)
	clients := []*Client{
		mockClient(hub, "BankNoti"),
		mockClient(hub, "BankNoti"),
		mockClient(hub, "BankNoti"),
	}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	event, err := NewEvent("chat.message", map[string]string{"body": "hello"})
	require.NoError(t, err)
	hub.Publish("BankNoti", event)

	for _, c := range clients {
		got := receive(t, c)
		assert.Equal(t, "chat.message", got.Type)
		assert.JSONEq(t, `{"body":"hello"}`, string(got.Payload))
	}
}

func TestPublish_RoomIsolation(t *testing.T) {
	hub := startHub(t)
	orders := mockClient(hub, "orders")
	bank := mockClient(hub, "BankNoti")
	hub.register <- orders
	hub.register <- bank
	time.Sleep(10 * time.Millisecond)

	event, err := NewEvent("order.updated", map[string]string{"name": "SO00001"})
	require.NoError(t, err)
	hub.Publish("orders", event)

	assert.Equal(t, "order.updated", receive(t, orders).Type)
	select {
	case <-bank.send:
		t.Fatal("client in another room received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_UnknownRoomIsNoop(t *testing.T) {
	hub := startHub(t)
	event, err := NewEvent("order.updated", nil)
	require.NoError(t, err)

	hub.Publish("nobody-here", event)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.RoomSize("nobody-here"))
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("broken", make(chan int))
	assert.Error(t, err)
}

func TestRun_ContextCancelClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := mockClient(hub, "orders")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-client.send
	assert.False(t, open)
}

func TestValidRoom(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"orders", true},
		{"BankNoti", true},
		{"", false},
		{"two words", false},
		{"a/b", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, validRoom(tc.name), tc.name)
	}
}
