package main

import (
	"doorstep-server/routes"
	"doorstep-server/services"
	"doorstep-server/storage"
	"doorstep-server/utils"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()
	services.Initialize(storage.DB, storage.Redis)

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	// JWT verifiers
	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	// Websocket clients cannot set the Authorization header, so the
	// access token may also arrive as a ?token= query parameter.
	accessTokenVerifier.Extractors = append(accessTokenVerifier.Extractors, func(ctx iris.Context) string {
		return ctx.URLParam("token")
	})
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})
	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetUser)
		user.Patch("/pushtoken", accessTokenVerifierMiddleware, routes.AlterPushToken)
	}

	property := app.Party("/api/property")
	{
		property.Get("/{id:uint}", routes.GetProperty)
	}

	chat := app.Party("/api/chat", accessTokenVerifierMiddleware)
	{
		chat.Get("/rooms", routes.ListRooms)
		chat.Post("/rooms", routes.CreateRoom)
		chat.Get("/rooms/{id:uint}/messages", routes.ListMessages)
		chat.Post("/rooms/{id:uint}/messages", routes.CreateMessage)
		chat.Post("/rooms/{id:uint}/read", routes.MarkRoomRead)
		chat.Post("/messages/read", routes.MarkMessagesRead)
		chat.Get("/unread", routes.AggregateUnread)
		chat.Post("/rooms/{id:uint}/typing", routes.Typing)
		chat.Get("/rooms/{id:uint}/typing", routes.ListTyping)
		chat.Get("/ws", routes.ChatWebsocket)
	}

	presence := app.Party("/api/presence", accessTokenVerifierMiddleware)
	{
		presence.Post("/heartbeat", routes.Heartbeat)
		presence.Get("/{id:uint}", routes.GetPresence)
	}

	transaction := app.Party("/api/transaction", accessTokenVerifierMiddleware)
	{
		transaction.Post("/complete", routes.CompleteTransaction)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
