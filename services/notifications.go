package services

import (
	"doorstep-server/models"
	"doorstep-server/utils"
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/gorm"
)

// NotificationService handles push notification delivery for chat
// events. Delivery is best-effort and never blocks the message write.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (ns *NotificationService) userPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := ns.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user %d has notifications disabled or no tokens", userID)
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %w", err)
	}
	return tokens, nil
}

// SendMessagePush notifies a chat recipient about a new message. Called
// from a goroutine off the write path; failures are logged only.
func (ns *NotificationService) SendMessagePush(recipientID uint, senderName string, propertyID uint) error {
	tokens, err := ns.userPushTokens(recipientID)
	if err != nil {
		log.Printf("push: skipping user %d: %v", recipientID, err)
		return err
	}

	propertyTitle := "a property"
	var property models.Property
	if err := ns.DB.First(&property, propertyID).Error; err == nil {
		propertyTitle = property.Title
	}

	title := "New Message"
	body := fmt.Sprintf("%s sent you a message about %s", senderName, propertyTitle)
	data := map[string]string{
		"type":       "message_received",
		"propertyId": fmt.Sprintf("%d", propertyID),
		"screen":     "Messages",
	}

	var lastError error
	for _, token := range tokens {
		if err := utils.SendPushNotification(token, title, body, data); err != nil {
			log.Printf("push: send to token for user %d: %v", recipientID, err)
			lastError = err
		}
	}
	return lastError
}
