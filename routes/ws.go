package routes

import (
	"doorstep-server/services"
	"doorstep-server/storage"
	"doorstep-server/utils"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin is already handled by the router-level CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatWebsocket upgrades the connection and bridges it to the Redis
// fan-out channels. The access token is verified by the usual jwt
// middleware (a query-param extractor is registered for websocket
// clients, which cannot set headers).
func ChatWebsocket(ctx iris.Context) {
	userID := utils.CurrentUserID(ctx)

	conn, err := wsUpgrader.Upgrade(ctx.ResponseWriter(), ctx.Request(), nil)
	if err != nil {
		log.Printf("ws: upgrade for user %d: %v", userID, err)
		return
	}

	client := services.NewWSClient(storage.Redis, services.Chat, conn, userID)
	go client.WritePump()
	client.ReadPump()
}
