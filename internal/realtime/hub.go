// Package realtime fans review lifecycle events out to connected
// websocket clients. Delivery is fire-and-forget and at-most-once: a
// client that connects after an event missed it, and a client that
// cannot keep up is dropped. The review store stays the source of
// truth; clients re-fetch state on (re)connect.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event names for the realtime channel.
const (
	EventReviewCreated   = "review-created"
	EventReviewUpdated   = "review-updated"
	EventReviewCompleted = "review-completed"
)

// UserChannel returns the per-user channel name.
func UserChannel(userID string) string {
	return "user_" + userID
}

// TeamChannel returns the per-team channel name.
func TeamChannel(teamID string) string {
	return "team_" + teamID
}

// Event is the wire format pushed to clients.
type Event struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Hub tracks channel subscriptions and broadcasts events. It is
// constructed once in main and passed to its consumers explicitly.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Client]struct{})}
}

// Register subscribes a client to its channels.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range c.channels {
		set := h.channels[ch]
		if set == nil {
			set = make(map[*Client]struct{})
			h.channels[ch] = set
		}
		set[c] = struct{}{}
	}
}

// Unregister removes a client from all its channels and closes its
// send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for _, ch := range c.channels {
		if set, ok := h.channels[ch]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	h.mu.Unlock()

	c.closeSend()
}

// Broadcast delivers an event to every connection on the user channel
// and, when teamID is non-empty, the team channel. A client whose send
// queue is full is dropped rather than blocking the pipeline.
func (h *Hub) Broadcast(userID, teamID, event string, payload interface{}) {
	msg, err := json.Marshal(Event{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("realtime: marshal %s event: %v", event, err)
		return
	}

	names := []string{UserChannel(userID)}
	if teamID != "" {
		names = append(names, TeamChannel(teamID))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[*Client]struct{})
	for _, name := range names {
		for c := range h.channels[name] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}

			select {
			case c.send <- msg:
			default:
				// Slow consumer; drop it under the lock so no
				// further send can race the close.
				h.dropLocked(c)
			}
		}
	}
}

func (h *Hub) dropLocked(c *Client) {
	for _, ch := range c.channels {
		if set, ok := h.channels[ch]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	c.closeSend()
}

// subscriberCount reports connections on a channel. Test hook.
func (h *Hub) subscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}
