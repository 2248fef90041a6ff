package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options tune connection keepalive and buffering.
type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	SendBufferSize    int
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	PongTimeout       time.Duration
	PingInterval      time.Duration
	MaxMessageSize    int64
	EnableCompression bool
	AllowedOrigins    []string
}

func DefaultOptions() Options {
	return Options{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingInterval:    54 * time.Second,
		MaxMessageSize:  4096,
	}
}

// Client is one WebSocket connection of an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	opts     Options
	send     chan []byte
	UserID   string
	UserType string
	rooms    map[string]bool

	sendMu     sync.Mutex
	sendClosed bool

	onMessage func(Message)
	onClose   func()
}

func NewClient(hub *Hub, conn *websocket.Conn, opts Options, userID, userType string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		opts:     opts,
		send:     make(chan []byte, opts.SendBufferSize),
		UserID:   userID,
		UserType: userType,
		rooms:    make(map[string]bool),
	}
}

// OnMessage sets the handler of inbound frames. It must be set before the pumps start.
func (c *Client) OnMessage(fn func(Message)) {
	c.onMessage = fn
}

// OnClose sets the function run once the connection has been read to its end.
func (c *Client) OnClose(fn func()) {
	c.onClose = fn
}

// Send queues a frame for this connection only.
func (c *Client) Send(message Message) bool {
	data, err := json.Marshal(message)
	if err != nil {
		return false
	}
	return c.enqueue(data)
}

// Close ends the connection from the server side.
func (c *Client) Close() {
	c.hub.Disconnect(c)
}

func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose()
		}
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithUserID(c.UserID).WithError(err).Warn("WebSocket read failed")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(NewMessage("error", map[string]string{"message": "malformed frame"}))
			continue
		}
		msg.UserID = c.UserID
		msg.Timestamp = getCurrentTimestamp()

		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
