package models

import "time"

// UserStatus is the stored half of a user's presence. The displayed
// online/offline value is computed from this row at read time; the row
// itself decays to offline lazily (see services.PresenceService).
type UserStatus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex"`
	User   User `json:"-" gorm:"foreignKey:UserID;references:ID"`

	IsOnline        bool       `json:"isOnline"`
	Location        *string    `json:"location"`
	LastActivity    *time.Time `json:"lastActivity"`
	MessageJustSent bool       `json:"messageJustSent"`
}
