package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Client is one websocket connection subscribed to a set of channels.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels []string
	once     sync.Once
}

// NewClient wraps an upgraded connection and registers it with the
// hub. Call Run to start the read/write pumps.
func NewClient(hub *Hub, conn *websocket.Conn, channels []string) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		channels: channels,
	}
	hub.Register(c)
	return c
}

// Run starts the write pump and blocks on the read pump until the
// connection drops.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// readPump discards inbound frames; the channel is push-only. Its real
// job is detecting disconnects and answering pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
