package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	AvatarURL           string         `json:"avatarURL"`
	Role                string         `json:"role" gorm:"type:varchar(20);default:user;index"` // user, host, admin
	PushTokens          datatypes.JSON `json:"-"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
}

// PublicProfile is the projection of a user shown to other users
// (chat participants, property hosts). Never carries tokens or email.
type PublicProfile struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarURL"`
	Role      string `json:"role"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
	}
}
