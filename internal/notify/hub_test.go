package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID string) *Client {
	return &Client{
		UserID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func waitForOnline(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.IsUserOnline(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s never came online", userID)
}

func TestHubDeliversToRegisteredUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("user-1")
	hub.Register(client)
	waitForOnline(t, hub, "user-1")

	hub.SendToUser("user-1", NewEvent(EventVideoProcessed, map[string]interface{}{
		"video_id": "vid-1",
	}))

	select {
	case data := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, EventVideoProcessed, event.Type)
		assert.Equal(t, "vid-1", event.Payload["video_id"])
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestHubDoesNotCrossUsers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	hub.Register(alice)
	hub.Register(bob)
	waitForOnline(t, hub, "alice")
	waitForOnline(t, hub, "bob")

	hub.SendToUser("alice", NewEvent(EventNewComment, nil))

	select {
	case <-alice.send:
	case <-time.After(time.Second):
		t.Fatal("alice never got her event")
	}

	select {
	case <-bob.send:
		t.Fatal("bob received alice's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubFansOutToAllConnections(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	// Same user on two devices
	first := newTestClient("user-1")
	second := newTestClient("user-1")
	hub.Register(first)
	hub.Register(second)
	waitForOnline(t, hub, "user-1")

	deadline := time.Now().Add(time.Second)
	for hub.ActiveConnections() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, int64(2), hub.ActiveConnections())

	hub.SendToUser("user-1", NewEvent(EventSystem, nil))

	for _, client := range []*Client{first, second} {
		select {
		case <-client.send:
		case <-time.After(time.Second):
			t.Fatal("connection missed the fanout")
		}
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("user-1")
	hub.Register(client)
	waitForOnline(t, hub, "user-1")

	hub.Unregister(client)

	deadline := time.Now().Add(time.Second)
	for hub.IsUserOnline("user-1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, hub.IsUserOnline("user-1"))
	assert.Equal(t, int64(0), hub.ActiveConnections())

	select {
	case _, open := <-client.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestSendToUnknownUserIsNoOp(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	// Should not block or panic
	hub.SendToUser("ghost", NewEvent(EventSystem, nil))
	assert.False(t, hub.IsUserOnline("ghost"))
}
