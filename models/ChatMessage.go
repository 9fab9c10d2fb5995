package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatMessage is one entry in a room's append-only message log.
// Messages are immutable once created; the only mutation is setting
// ReadAt when the recipient views the room.
type ChatMessage struct {
	gorm.Model
	RoomID uint     `json:"roomID" gorm:"not null;index"`
	Room   ChatRoom `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnDelete:CASCADE"`

	SenderID uint `json:"senderID" gorm:"not null;index"`
	Sender   User `json:"sender" gorm:"foreignKey:SenderID;references:ID"`

	Body   string     `json:"body" gorm:"type:text;not null"`
	ReadAt *time.Time `json:"readAt" gorm:"index"`
}
