package routes

import (
	"doorstep-server/services"
	"doorstep-server/utils"
	"errors"
	"net/http"

	"github.com/kataras/iris/v12"
)

// handleChatError maps service sentinel errors onto HTTP statuses. The
// Forbidden response deliberately carries no detail about who the actual
// participants are.
func handleChatError(err error, ctx iris.Context) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.CreateNotFound(ctx)
	case errors.Is(err, services.ErrForbidden):
		utils.CreateForbidden(ctx)
	case errors.Is(err, services.ErrEmptyBody), errors.Is(err, services.ErrInvalidParticipants):
		utils.CreateError(iris.StatusBadRequest, "Bad Request", err.Error(), ctx)
	default:
		utils.CreateInternalServerError(ctx)
	}
}

// ListRooms returns every room the current user participates in, each
// annotated with the peer, the property summary, and the unread count.
func ListRooms(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	rooms, err := services.Chat.RoomsForUser(userID)
	if err != nil {
		handleChatError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"rooms": rooms})
}

type createRoomInput struct {
	PropertyID uint   `json:"propertyID" validate:"required"`
	SellerID   uint   `json:"sellerID" validate:"required"`
	Message    string `json:"message"`
}

// CreateRoom opens (or reuses) the room pairing the current user as
// buyer with the given seller over the property, optionally sending an
// opening message.
func CreateRoom(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	var input createRoomInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	room, err := services.Chat.OpenOrCreateRoom(userID, input.SellerID, input.PropertyID)
	if err != nil {
		handleChatError(err, ctx)
		return
	}

	if input.Message != "" {
		if _, err := services.Chat.AppendMessage(room.ID, userID, input.Message); err != nil {
			handleChatError(err, ctx)
			return
		}
	}

	ctx.JSON(iris.Map{"room": room})
}

// ListMessages returns the room's full history, oldest first.
func ListMessages(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)
	roomID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	messages, err := services.Chat.Messages(roomID, userID)
	if err != nil {
		handleChatError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"messages": messages})
}

type createMessageInput struct {
	Body string `json:"body" validate:"required,lt=5000"`
}

// CreateMessage appends a message to the room and triggers the fan-out.
func CreateMessage(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)
	roomID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var input createMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	message, appendErr := services.Chat.AppendMessage(roomID, userID, input.Body)
	if appendErr != nil {
		handleChatError(appendErr, ctx)
		return
	}
	ctx.JSON(iris.Map{"message": message})
}

// MarkRoomRead stamps every unread message in the room addressed to the
// current user. Idempotent: a second call reports zero updates.
func MarkRoomRead(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)
	roomID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	updated, markErr := services.Chat.MarkRoomRead(roomID, userID)
	if markErr != nil {
		handleChatError(markErr, ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "updated": updated})
}

type markMessagesReadInput struct {
	RoomID     uint   `json:"roomID" validate:"required"`
	MessageIDs []uint `json:"messageIDs" validate:"required"`
}

// MarkMessagesRead marks the given message IDs read within their room.
func MarkMessagesRead(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	var input markMessagesReadInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updated, err := services.Chat.MarkMessagesRead(input.RoomID, userID, input.MessageIDs)
	if err != nil {
		handleChatError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "updated": updated})
}

// AggregateUnread returns the current user's total unread count across
// all their rooms. Badge counters poll this.
func AggregateUnread(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	count, err := services.Chat.AggregateUnread(userID)
	if err != nil {
		handleChatError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"unreadCount": count})
}

// Typing marks the current user as typing in the room for a few seconds.
func Typing(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)
	roomID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if _, authErr := services.Chat.Authorize(roomID, userID); authErr != nil {
		handleChatError(authErr, ctx)
		return
	}

	services.Presence.SetTyping(roomID, userID)
	ctx.JSON(iris.Map{"success": true})
}

// ListTyping reports whether the room's other participant is typing.
func ListTyping(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)
	roomID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	room, authErr := services.Chat.Authorize(roomID, userID)
	if authErr != nil {
		handleChatError(authErr, ctx)
		return
	}

	peers := services.Presence.TypingPeers(roomID, []uint{room.OtherParticipantID(userID)})
	ctx.JSON(iris.Map{"typing": peers})
}
