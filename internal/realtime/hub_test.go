package realtime

import (
	"encoding/json"
	"testing"
)

func testClient(hub *Hub, buffer int, channels ...string) *Client {
	c := &Client{
		hub:      hub,
		send:     make(chan []byte, buffer),
		channels: channels,
	}
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		return ev
	default:
		t.Fatal("expected an event, send queue is empty")
	}
	return Event{}
}

func TestHub_BroadcastToUserChannel(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, 4, UserChannel("u1"))

	hub.Broadcast("u1", "", EventReviewCreated, map[string]string{"id": "rev-1"})

	ev := receive(t, c)
	if ev.Event != EventReviewCreated {
		t.Errorf("event = %q, want %q", ev.Event, EventReviewCreated)
	}
	if ev.Timestamp == "" {
		t.Error("event timestamp missing")
	}
	data, ok := ev.Data.(map[string]interface{})
	if !ok || data["id"] != "rev-1" {
		t.Errorf("event data = %v", ev.Data)
	}
}

func TestHub_BroadcastReachesTeamChannel(t *testing.T) {
	hub := NewHub()
	owner := testClient(hub, 4, UserChannel("u1"))
	teammate := testClient(hub, 4, TeamChannel("t1"))
	stranger := testClient(hub, 4, UserChannel("u2"), TeamChannel("t2"))

	hub.Broadcast("u1", "t1", EventReviewCompleted, nil)

	if ev := receive(t, owner); ev.Event != EventReviewCompleted {
		t.Errorf("owner got %q", ev.Event)
	}
	if ev := receive(t, teammate); ev.Event != EventReviewCompleted {
		t.Errorf("teammate got %q", ev.Event)
	}
	if len(stranger.send) != 0 {
		t.Error("unrelated client should receive nothing")
	}
}

func TestHub_BroadcastDedupesMultiChannelClient(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, 4, UserChannel("u1"), TeamChannel("t1"))

	hub.Broadcast("u1", "t1", EventReviewUpdated, nil)

	if got := len(c.send); got != 1 {
		t.Errorf("client on both channels received %d copies, want 1", got)
	}
}

func TestHub_NoTeamSkipsTeamChannel(t *testing.T) {
	hub := NewHub()
	teammate := testClient(hub, 4, TeamChannel("t1"))

	hub.Broadcast("u1", "", EventReviewUpdated, nil)

	if len(teammate.send) != 0 {
		t.Error("broadcast without a team should not hit team channels")
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub()
	slow := testClient(hub, 1, UserChannel("u1"))

	hub.Broadcast("u1", "", EventReviewCreated, nil) // fills the queue
	hub.Broadcast("u1", "", EventReviewUpdated, nil) // overflows, drops

	if n := hub.subscriberCount(UserChannel("u1")); n != 0 {
		t.Errorf("slow client still subscribed, count = %d", n)
	}

	// the send queue must be closed exactly once; draining it terminates
	<-slow.send
	if _, open := <-slow.send; open {
		t.Error("dropped client's send queue should be closed")
	}

	// dropping again must not panic
	hub.Unregister(slow)
}

func TestHub_UnregisterRemovesAllChannels(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, 4, UserChannel("u1"), TeamChannel("t1"))

	if hub.subscriberCount(UserChannel("u1")) != 1 || hub.subscriberCount(TeamChannel("t1")) != 1 {
		t.Fatal("client should be on both channels after register")
	}

	hub.Unregister(c)

	if hub.subscriberCount(UserChannel("u1")) != 0 || hub.subscriberCount(TeamChannel("t1")) != 0 {
		t.Error("unregister should remove the client from every channel")
	}

	hub.Broadcast("u1", "t1", EventReviewUpdated, nil)
	if _, open := <-c.send; open {
		t.Error("no event should reach an unregistered client")
	}
}
