package models

import "gorm.io/gorm"

// ChatRoom pairs a buyer and a seller around a single property listing.
// At most one room exists per exact (buyer, seller, property) triple;
// swapping the roles is a different triple and yields a different room.
type ChatRoom struct {
	gorm.Model
	BuyerID    uint `json:"buyerID" gorm:"not null;index;uniqueIndex:idx_chat_rooms_triple"`
	SellerID   uint `json:"sellerID" gorm:"not null;index;uniqueIndex:idx_chat_rooms_triple"`
	PropertyID uint `json:"propertyID" gorm:"not null;index;uniqueIndex:idx_chat_rooms_triple"`

	Buyer    User     `json:"buyer" gorm:"foreignKey:BuyerID;references:ID"`
	Seller   User     `json:"seller" gorm:"foreignKey:SellerID;references:ID"`
	Property Property `json:"property" gorm:"foreignKey:PropertyID;references:ID"`
}

// Participant reports whether the user is the room's buyer or seller.
func (r *ChatRoom) Participant(userID uint) bool {
	return r.BuyerID == userID || r.SellerID == userID
}

// OtherParticipantID returns the peer of the given participant.
func (r *ChatRoom) OtherParticipantID(userID uint) uint {
	if r.BuyerID == userID {
		return r.SellerID
	}
	return r.BuyerID
}
