package services

import (
	"doorstep-server/models"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	// A user with no activity for this long reads as offline.
	onlineWindow = 30 * time.Second

	// How long the message-just-sent override keeps the displayed state
	// online past the staleness window.
	justSentWindow = 45 * time.Second

	typingTTL = 5 * time.Second
)

// PresenceState is the displayed (computed) presence value shown to
// peers, as opposed to the stored models.UserStatus row.
type PresenceState struct {
	Online          bool    `json:"online"`
	Location        *string `json:"location"`
	MessageJustSent bool    `json:"messageJustSent"`
}

type PresenceService struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Broadcast Broadcaster

	// Now is swappable so staleness can be tested without sleeping.
	Now func() time.Time
}

func NewPresenceService(db *gorm.DB, rdb *redis.Client, broadcast Broadcaster) *PresenceService {
	return &PresenceService{DB: db, Redis: rdb, Broadcast: broadcast, Now: time.Now}
}

// Heartbeat records a client-originated presence report. online=false
// clears location and last-activity; both explicit-offline clients and
// clients that simply stop reporting are supported (the latter decay via
// the staleness window).
func (s *PresenceService) Heartbeat(userID uint, online bool, location *string) (PresenceState, error) {
	now := s.Now()

	var status models.UserStatus
	err := s.DB.Where("user_id = ?", userID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		status = models.UserStatus{UserID: userID}
	} else if err != nil {
		return PresenceState{}, err
	}

	if online {
		status.IsOnline = true
		status.Location = location
		status.LastActivity = &now
		status.MessageJustSent = false
	} else {
		status.IsOnline = false
		status.Location = nil
		status.LastActivity = nil
		status.MessageJustSent = false
	}

	if err := s.DB.Save(&status).Error; err != nil {
		return PresenceState{}, err
	}

	state := Displayed(&status, now)
	s.Broadcast.PresenceChanged(userID, state)
	return state, nil
}

// TouchOnMessage is the heartbeat-equivalent fired when a user sends a
// chat message. It sets the message-just-sent flag so the sender reads
// as online even when their last heartbeat would otherwise be stale.
func (s *PresenceService) TouchOnMessage(userID uint) {
	now := s.Now()

	var status models.UserStatus
	err := s.DB.Where("user_id = ?", userID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		status = models.UserStatus{UserID: userID}
	} else if err != nil {
		return
	}

	status.IsOnline = true
	status.LastActivity = &now
	status.MessageJustSent = true

	if err := s.DB.Save(&status).Error; err != nil {
		return
	}

	s.Broadcast.PresenceChanged(userID, Displayed(&status, now))
}

// Displayed computes the presence value shown to peers from a stored
// row. Pure: no I/O, no clock reads. A nil row is plain offline.
func Displayed(status *models.UserStatus, now time.Time) PresenceState {
	if status == nil || status.LastActivity == nil {
		return PresenceState{}
	}

	age := now.Sub(*status.LastActivity)

	if status.MessageJustSent && age < justSentWindow {
		return PresenceState{Online: true, Location: status.Location, MessageJustSent: true}
	}
	if status.IsOnline && age < onlineWindow {
		return PresenceState{Online: true, Location: status.Location}
	}
	return PresenceState{}
}

// Get returns the displayed presence for a user. A missing row is
// Offline with no location, never an error. When the stored row still
// claims online but the displayed state has decayed, the row is
// reconciled in place; this lazy expiry replaces a background sweeper.
func (s *PresenceService) Get(userID uint) (PresenceState, error) {
	var status models.UserStatus
	err := s.DB.Where("user_id = ?", userID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PresenceState{}, nil
	}
	if err != nil {
		return PresenceState{}, err
	}

	state := Displayed(&status, s.Now())
	if !state.Online && status.IsOnline {
		s.reconcile(&status)
	}
	return state, nil
}

// reconcile marks a stale stored record offline. Separated from Get so
// the expiry write can be exercised directly in tests. A concurrent
// heartbeat may race this write; last-writer-wins is acceptable because
// presence is approximate at 30-second resolution.
func (s *PresenceService) reconcile(status *models.UserStatus) {
	status.IsOnline = false
	status.Location = nil
	status.LastActivity = nil
	status.MessageJustSent = false

	if err := s.DB.Save(status).Error; err != nil {
		return
	}
	s.Broadcast.PresenceChanged(status.UserID, PresenceState{})
}

// SetTyping marks the user as typing in the room for a few seconds.
// Stored as a Redis TTL key so it expires on its own.
func (s *PresenceService) SetTyping(roomID, userID uint) {
	if s.Redis == nil {
		return
	}
	s.Redis.Set(bgCtx, typingKey(roomID, userID), "1", typingTTL)
}

// TypingPeers reports which of the given peers currently hold a live
// typing key for the room.
func (s *PresenceService) TypingPeers(roomID uint, peerIDs []uint) []uint {
	typing := []uint{}
	if s.Redis == nil {
		return typing
	}
	for _, peerID := range peerIDs {
		if val, err := s.Redis.Get(bgCtx, typingKey(roomID, peerID)).Result(); err == nil && val == "1" {
			typing = append(typing, peerID)
		}
	}
	return typing
}

func typingKey(roomID, userID uint) string {
	return fmt.Sprintf("typing:room:%d:user:%d", roomID, userID)
}
