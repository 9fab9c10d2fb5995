package services

import (
	"context"
	"doorstep-server/models"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var bgCtx = context.Background()

// Sentinel errors returned by chat operations. Routes map these onto
// HTTP statuses; anything else is treated as an internal failure.
var (
	ErrInvalidParticipants = errors.New("buyer and seller must be distinct users")
	ErrForbidden           = errors.New("user is not a participant of this room")
	ErrNotFound            = errors.New("not found")
	ErrEmptyBody           = errors.New("message body must not be empty")
)

// ChatService owns the room registry and the message log. Every
// operation takes the acting user's ID explicitly; there is no ambient
// request state below the route layer.
type ChatService struct {
	DB        *gorm.DB
	Broadcast Broadcaster
	Presence  *PresenceService
	Notifier  *NotificationService
}

func NewChatService(db *gorm.DB, broadcast Broadcaster, presence *PresenceService, notifier *NotificationService) *ChatService {
	return &ChatService{DB: db, Broadcast: broadcast, Presence: presence, Notifier: notifier}
}

// RoomSummary annotates a room for the room list: the peer's public
// profile, the property, and the viewer's unread count.
type RoomSummary struct {
	ID               uint                   `json:"id"`
	CreatedAt        time.Time              `json:"createdAt"`
	OtherParticipant models.PublicProfile   `json:"otherParticipant"`
	Property         models.PropertySummary `json:"property"`
	UnreadCount      int64                  `json:"unreadCount"`
}

// OpenOrCreateRoom returns the room for the exact (buyer, seller,
// property) triple, creating it on first contact. Role-swapped triples
// are deliberately not deduplicated: a conversation started by the other
// side is a distinct room.
func (s *ChatService) OpenOrCreateRoom(buyerID, sellerID, propertyID uint) (*models.ChatRoom, error) {
	if buyerID == sellerID {
		return nil, ErrInvalidParticipants
	}

	var participants []models.User
	if err := s.DB.Where("id IN ?", []uint{buyerID, sellerID}).Find(&participants).Error; err != nil {
		return nil, err
	}
	if len(participants) != 2 {
		return nil, ErrNotFound
	}

	var property models.Property
	if err := s.DB.First(&property, propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var room models.ChatRoom
	err := s.DB.
		Where("buyer_id = ? AND seller_id = ? AND property_id = ?", buyerID, sellerID, propertyID).
		First(&room).Error
	if err == nil {
		return s.loadRoom(room.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = models.ChatRoom{BuyerID: buyerID, SellerID: sellerID, PropertyID: propertyID}
	if err := s.DB.Create(&room).Error; err != nil {
		return nil, err
	}
	return s.loadRoom(room.ID)
}

// OpenRoomFromTransaction is the hook called by a completed purchase or
// rental flow: the buyer is paired with the property's host. Tolerates
// an already-existing room.
func (s *ChatService) OpenRoomFromTransaction(buyerID, propertyID uint) (*models.ChatRoom, error) {
	var property models.Property
	if err := s.DB.First(&property, propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.OpenOrCreateRoom(buyerID, property.HostID, propertyID)
}

func (s *ChatService) loadRoom(roomID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.
		Preload("Buyer").
		Preload("Seller").
		Preload("Property").
		First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Authorize fails with ErrForbidden unless the user is the room's buyer
// or seller. Every message read, list, and mark operation goes through
// this guard first.
func (s *ChatService) Authorize(roomID, userID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !room.Participant(userID) {
		return nil, ErrForbidden
	}
	return &room, nil
}

// RoomsForUser returns every room where the user is buyer or seller,
// annotated with the peer's profile, the property summary, and the
// user's unread count for that room.
func (s *ChatService) RoomsForUser(userID uint) ([]RoomSummary, error) {
	var rooms []models.ChatRoom
	err := s.DB.
		Preload("Buyer").
		Preload("Seller").
		Preload("Property").
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]

		unread, err := s.UnreadCount(room.ID, userID)
		if err != nil {
			return nil, err
		}

		other := room.Seller
		if room.SellerID == userID {
			other = room.Buyer
		}

		summaries = append(summaries, RoomSummary{
			ID:               room.ID,
			CreatedAt:        room.CreatedAt,
			OtherParticipant: other.Public(),
			Property:         room.Property.Summary(),
			UnreadCount:      unread,
		})
	}
	return summaries, nil
}

// AppendMessage inserts a message into the room's log and fans out the
// resulting events. The insert is the commit; broadcast and push happen
// after and cannot fail it.
func (s *ChatService) AppendMessage(roomID, senderID uint, body string) (*models.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	room, err := s.Authorize(roomID, senderID)
	if err != nil {
		return nil, err
	}

	message := models.ChatMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Body:     body,
	}
	if err := s.DB.Create(&message).Error; err != nil {
		return nil, err
	}

	// Reload with the sender attached for client display
	if err := s.DB.Preload("Sender").First(&message, message.ID).Error; err != nil {
		return nil, err
	}

	recipientID := room.OtherParticipantID(senderID)

	s.Broadcast.NewMessage(roomID, &message)
	s.Broadcast.UnreadChanged(recipientID, roomID)

	if s.Presence != nil {
		s.Presence.TouchOnMessage(senderID)
	}
	if s.Notifier != nil {
		sender := message.Sender
		go s.Notifier.SendMessagePush(recipientID, sender.FirstName+" "+sender.LastName, room.PropertyID)
	}

	return &message, nil
}

// Messages returns the room's full history, oldest first, with sender
// profiles attached. No pagination cutoff in current scope.
func (s *ChatService) Messages(roomID, requesterID uint) ([]models.ChatMessage, error) {
	if _, err := s.Authorize(roomID, requesterID); err != nil {
		return nil, err
	}

	var messages []models.ChatMessage
	err := s.DB.
		Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRoomRead stamps read-at on every unread message in the room not
// sent by the requester. Re-marking already-read messages is a no-op.
func (s *ChatService) MarkRoomRead(roomID, requesterID uint) (int64, error) {
	if _, err := s.Authorize(roomID, requesterID); err != nil {
		return 0, err
	}

	res := s.DB.Model(&models.ChatMessage{}).
		Where("room_id = ? AND sender_id <> ? AND read_at IS NULL", roomID, requesterID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		s.Broadcast.UnreadChanged(requesterID, roomID)
	}
	return res.RowsAffected, nil
}

// MarkMessagesRead is the targeted form of MarkRoomRead: only the given
// message IDs qualify, still restricted to the room, to messages the
// requester did not send, and to those not already read.
func (s *ChatService) MarkMessagesRead(roomID, requesterID uint, messageIDs []uint) (int64, error) {
	if _, err := s.Authorize(roomID, requesterID); err != nil {
		return 0, err
	}
	if len(messageIDs) == 0 {
		return 0, nil
	}

	res := s.DB.Model(&models.ChatMessage{}).
		Where("room_id = ? AND id IN ? AND sender_id <> ? AND read_at IS NULL", roomID, messageIDs, requesterID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		s.Broadcast.UnreadChanged(requesterID, roomID)
	}
	return res.RowsAffected, nil
}

// UnreadCount counts messages in the room the viewer has not read and
// did not send. Plain non-negative integer; display capping is the
// client's concern.
func (s *ChatService) UnreadCount(roomID, viewerID uint) (int64, error) {
	var count int64
	err := s.DB.Model(&models.ChatMessage{}).
		Where("room_id = ? AND sender_id <> ? AND read_at IS NULL", roomID, viewerID).
		Count(&count).Error
	return count, err
}

// AggregateUnread sums unread counts across every room the user
// participates in, in one query.
func (s *ChatService) AggregateUnread(userID uint) (int64, error) {
	var count int64
	err := s.DB.Model(&models.ChatMessage{}).
		Joins("JOIN chat_rooms ON chat_rooms.id = chat_messages.room_id").
		Where("(chat_rooms.buyer_id = ? OR chat_rooms.seller_id = ?)", userID, userID).
		Where("chat_messages.sender_id <> ? AND chat_messages.read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}
