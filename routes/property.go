package routes

import (
	"doorstep-server/models"
	"doorstep-server/storage"
	"doorstep-server/utils"
	"net/http"

	"github.com/kataras/iris/v12"
)

// GetProperty resolves a property ID into the summary used by room
// lists and the open-room flow (the property directory).
func GetProperty(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var property models.Property
	propertyExists := storage.DB.Preload("Host").First(&property, id)
	if propertyExists.Error != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"property": property.Summary(),
		"host":     property.Host.Public(),
	})
}
