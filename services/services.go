package services

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Package-level instances wired once at startup and shared by the route
// handlers. Tests construct their own instances against an in-memory DB
// and a recording broadcaster.
var (
	Chat     *ChatService
	Presence *PresenceService
)

func Initialize(db *gorm.DB, rdb *redis.Client) {
	var broadcast Broadcaster = NopBroadcaster{}
	if rdb != nil {
		broadcast = NewRedisBroadcaster(rdb)
	}

	Presence = NewPresenceService(db, rdb, broadcast)
	Chat = NewChatService(db, broadcast, Presence, NewNotificationService(db))
}
