package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WSClient bridges one websocket connection to the Redis fan-out
// channels. Every connection subscribes to the user's personal channel;
// room and presence channels are added on demand via control frames.
// Push delivery is an optimization: a client that misses events
// reconciles by calling the poll endpoints, which share the same reads.
type WSClient struct {
	ID     uuid.UUID
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	chat *ChatService
	sub  *redis.PubSub

	mu     sync.Mutex
	rooms  map[uint]bool
	cancel context.CancelFunc
}

// controlFrame is what clients send upstream. Everything else on the
// socket flows downstream.
type controlFrame struct {
	Action string `json:"action"` // join | leave | watch | unwatch
	RoomID uint   `json:"roomID,omitempty"`
	UserID uint   `json:"userID,omitempty"`
}

func NewWSClient(rdb *redis.Client, chat *ChatService, conn *websocket.Conn, userID uint) *WSClient {
	ctx, cancel := context.WithCancel(context.Background())
	client := &WSClient{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		chat:   chat,
		sub:    rdb.Subscribe(ctx, UserChannel(userID)),
		rooms:  make(map[uint]bool),
		cancel: cancel,
	}
	go client.relayPump()
	return client
}

// relayPump forwards every Redis payload on the client's subscriptions
// to the socket, verbatim. Drops on a full send buffer rather than
// blocking the fan-out.
func (c *WSClient) relayPump() {
	for msg := range c.sub.Channel() {
		select {
		case c.Send <- []byte(msg.Payload):
		default:
			log.Printf("ws: client %s send buffer full, dropping event", c.ID)
		}
	}
}

// ReadPump consumes control frames until the connection drops.
func (c *WSClient) ReadPump() {
	defer c.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame controlFrame
		if err := c.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read: %v", c.ID, err)
			}
			return
		}

		switch frame.Action {
		case "join":
			c.joinRoom(frame.RoomID)
		case "leave":
			c.leaveRoom(frame.RoomID)
		case "watch":
			c.sub.Subscribe(bgCtx, PresenceChannel(frame.UserID))
		case "unwatch":
			c.sub.Unsubscribe(bgCtx, PresenceChannel(frame.UserID))
		}
	}
}

// joinRoom subscribes the connection to a room channel, but only for
// rooms the user participates in.
func (c *WSClient) joinRoom(roomID uint) {
	if _, err := c.chat.Authorize(roomID, c.UserID); err != nil {
		log.Printf("ws: client %s denied room %d: %v", c.ID, roomID, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[roomID] {
		return
	}
	c.rooms[roomID] = true
	c.sub.Subscribe(bgCtx, RoomChannel(roomID))
}

func (c *WSClient) leaveRoom(roomID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.rooms[roomID] {
		return
	}
	delete(c.rooms, roomID)
	c.sub.Unsubscribe(bgCtx, RoomChannel(roomID))
}

// WritePump drains the send buffer to the socket and keeps the
// connection alive with pings.
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) Close() {
	c.cancel()
	c.sub.Close()
	c.Conn.Close()
}
