package routes

import (
	"doorstep-server/models"
	"doorstep-server/storage"
	"doorstep-server/utils"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/kataras/iris/v12"
)

// GetUser resolves a user ID into the public profile used to annotate
// rooms and messages (the user directory).
func GetUser(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var user models.User
	userExists := storage.DB.First(&user, id)
	if userExists.Error != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(user.Public())
}

type alterPushTokenInput struct {
	Op    string `json:"op" validate:"required,oneof=add replace"`
	Token string `json:"token" validate:"required"`
}

// AlterPushToken adds or replaces an Expo push token on the current
// user's record.
func AlterPushToken(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var req alterPushTokenInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var tokens []string
	if user.PushTokens != nil {
		if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	switch req.Op {
	case "add":
		if !slices.Contains(tokens, req.Token) {
			tokens = append(tokens, req.Token)
		}
	case "replace":
		tokens = []string{req.Token}
	}

	marshalled, err := json.Marshal(tokens)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if err := storage.DB.Model(&user).Update("push_tokens", marshalled).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusNoContent)
}
