package services

import (
	"context"
	"doorstep-server/models"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Event kinds fanned out to subscribers. Events are nudges to refetch,
// not the system of record: subscribers can always reconcile through the
// read endpoints backed by the same rows.
const (
	EventNewMessage      = "message:new"
	EventUnreadChanged   = "unread:changed"
	EventPresenceChanged = "presence:changed"
)

type Event struct {
	Type    string      `json:"type"`
	RoomID  uint        `json:"roomID,omitempty"`
	UserID  uint        `json:"userID,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

func RoomChannel(roomID uint) string     { return fmt.Sprintf("chat:room:%d", roomID) }
func UserChannel(userID uint) string     { return fmt.Sprintf("chat:user:%d", userID) }
func PresenceChannel(userID uint) string { return fmt.Sprintf("presence:user:%d", userID) }

// Broadcaster is the outbox invoked after a successful commit. Publishing
// never blocks the request and never fails the triggering write; the row
// already committed is the source of truth.
type Broadcaster interface {
	NewMessage(roomID uint, msg *models.ChatMessage)
	UnreadChanged(userID, roomID uint)
	PresenceChanged(userID uint, state PresenceState)
}

// RedisBroadcaster fans events out over Redis pub/sub channels. Delivery
// is best-effort, at-most-once: publish errors are logged and dropped.
type RedisBroadcaster struct {
	Client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{Client: client}
}

func (b *RedisBroadcaster) NewMessage(roomID uint, msg *models.ChatMessage) {
	b.publish(RoomChannel(roomID), Event{Type: EventNewMessage, RoomID: roomID, Payload: msg})
}

func (b *RedisBroadcaster) UnreadChanged(userID, roomID uint) {
	b.publish(UserChannel(userID), Event{Type: EventUnreadChanged, RoomID: roomID, UserID: userID})
}

func (b *RedisBroadcaster) PresenceChanged(userID uint, state PresenceState) {
	b.publish(PresenceChannel(userID), Event{Type: EventPresenceChanged, UserID: userID, Payload: state})
}

func (b *RedisBroadcaster) publish(channel string, ev Event) {
	ev.At = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("broadcast: marshal %s event: %v", ev.Type, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.Client.Publish(ctx, channel, data).Err(); err != nil {
			log.Printf("broadcast: publish %s to %s: %v", ev.Type, channel, err)
		}
	}()
}

// NopBroadcaster drops all events. Used when no fan-out transport is
// configured; writes still commit and polling converges.
type NopBroadcaster struct{}

func (NopBroadcaster) NewMessage(uint, *models.ChatMessage) {}
func (NopBroadcaster) UnreadChanged(uint, uint)             {}
func (NopBroadcaster) PresenceChanged(uint, PresenceState)  {}
