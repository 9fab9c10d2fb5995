package routes

import (
	"doorstep-server/services"
	"doorstep-server/utils"

	"github.com/kataras/iris/v12"
)

type completeTransactionInput struct {
	PropertyID uint `json:"propertyID" validate:"required"`
}

// CompleteTransaction is the hook invoked by the purchase/rental flow
// once payment settles: it opens (or reuses) the buyer's room with the
// property's host so the conversation exists before the keys change
// hands.
func CompleteTransaction(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	var input completeTransactionInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	room, err := services.Chat.OpenRoomFromTransaction(userID, input.PropertyID)
	if err != nil {
		handleChatError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"room": room})
}
