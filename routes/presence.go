package routes

import (
	"doorstep-server/services"
	"doorstep-server/utils"
	"net/http"

	"github.com/kataras/iris/v12"
)

type heartbeatInput struct {
	Online   bool    `json:"online"`
	Location *string `json:"location"`
}

// Heartbeat records the current user's client-reported presence. A
// client whose geolocation lookup timed out or was denied simply omits
// the location; the update proceeds without it.
func Heartbeat(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	var input heartbeatInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	state, err := services.Presence.Heartbeat(userID, input.Online, input.Location)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(state)
}

// GetPresence returns the displayed online/location state for a user.
// Unknown users read as plain offline.
func GetPresence(ctx iris.Context) {
	targetID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	state, presErr := services.Presence.Get(targetID)
	if presErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(state)
}
