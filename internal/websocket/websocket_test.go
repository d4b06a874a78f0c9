package websocket

import (
	"testing"
	"time"
)

func TestHandleInbound_SelectProfile(t *testing.T) {
	hub := NewHub()

	var got []string
	hub.SetSelectHandler(func(profileID string) { got = append(got, profileID) })

	hub.handleInbound([]byte(`{"type":"select_profile","payload":{"profileId":"p1"}}`))
	if len(got) != 1 || got[0] != "p1" {
		t.Fatalf("got=%v, want [p1]", got)
	}

	// Ignored inputs: other message types, empty ids, malformed JSON.
	hub.handleInbound([]byte(`{"type":"routing_config","payload":{}}`))
	hub.handleInbound([]byte(`{"type":"select_profile","payload":{"profileId":""}}`))
	hub.handleInbound([]byte(`not json`))
	if len(got) != 1 {
		t.Fatalf("got=%v, want exactly one selection", got)
	}
}

func TestHandleInbound_NoHandler(t *testing.T) {
	hub := NewHub()
	// Must not panic without a registered handler.
	hub.handleInbound([]byte(`{"type":"select_profile","payload":{"profileId":"p1"}}`))
}

func TestHubRunStop(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !hub.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("hub never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	client := &Client{ID: "c1", Send: make(chan *Message, 1), hub: hub}
	hub.Register(client)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("clients=%d, want 1", hub.ClientCount())
		default:
			time.Sleep(time.Millisecond)
		}
	}

	hub.BroadcastRoutingConfig(map[string]int{"version": 1})
	select {
	case msg := <-client.Send:
		if msg.Type != MessageTypeRoutingConfig {
			t.Fatalf("type=%s, want routing_config", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never delivered")
	}

	hub.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("clients=%d after stop, want 0", hub.ClientCount())
	}
}
