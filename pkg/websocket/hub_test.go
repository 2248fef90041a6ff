package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"carhire/pkg/logger"
)

func newTestClient(hub *Hub, userID string) *Client {
	opts := DefaultOptions()
	opts.SendBufferSize = 2
	return NewClient(hub, nil, opts, userID, "customer")
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitOnline(t *testing.T, hub *Hub, userID string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Online(userID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected online=%v for %s", want, userID)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_SendToUser_ReachesOnlyThatUser(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.register <- alice
	hub.register <- bob
	waitOnline(t, hub, "alice", true)
	waitOnline(t, hub, "bob", true)

	hub.SendToUser("alice", NewMessage("notification", map[string]string{"title": "hi"}))

	select {
	case data := <-alice.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.Type != "notification" || msg.UserID != "alice" {
			t.Errorf("unexpected frame: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a frame for alice")
	}

	select {
	case data := <-bob.send:
		t.Fatalf("expected nothing for bob, got %s", data)
	default:
	}
}

func TestHub_FullQueueDropsFrameWithoutDisconnecting(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	c := newTestClient(hub, "u1")
	hub.register <- c
	waitOnline(t, hub, "u1", true)

	for i := 0; i < 5; i++ {
		hub.SendToUser("u1", NewMessage("position", nil))
	}
	if len(c.send) != 2 {
		t.Errorf("expected queue to hold 2 frames, got %d", len(c.send))
	}
	if !hub.Online("u1") {
		t.Error("expected client to stay registered")
	}
}

func TestHub_Unregister_ClosesQueueOnce(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	c := newTestClient(hub, "u1")
	hub.register <- c
	waitOnline(t, hub, "u1", true)

	hub.unregister <- c
	hub.unregister <- c
	waitOnline(t, hub, "u1", false)

	if c.Send(NewMessage("late", nil)) {
		t.Error("expected Send after unregister to fail")
	}
}

func TestMessage_Decode(t *testing.T) {
	t.Parallel()

	msg := NewMessage("start_sharing", map[string]string{"trip_id": "t1"})
	var payload struct {
		TripID string `json:"trip_id"`
	}
	if err := msg.Decode(&payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.TripID != "t1" {
		t.Errorf("expected t1, got %q", payload.TripID)
	}
}

func TestHub_Disconnect(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	c := newTestClient(hub, "u1")
	hub.register <- c
	waitOnline(t, hub, "u1", true)

	c.Close()
	c.Close()
	if hub.Online("u1") {
		t.Error("expected client to be removed")
	}
	if _, ok := <-c.send; ok {
		t.Error("expected send queue to be closed")
	}
}
