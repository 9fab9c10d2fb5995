package routes

import (
	"bytes"
	"doorstep-server/models"
	"doorstep-server/services"
	"doorstep-server/utils"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// buildChatTestApp wires a minimal iris app with the chat routes, a JWT
// verifier, and services backed by an in-memory SQLite DB.
func buildChatTestApp(t *testing.T) (*iris.Application, *gorm.DB) {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.UserStatus{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	services.Presence = services.NewPresenceService(db, nil, services.NopBroadcaster{})
	services.Chat = services.NewChatService(db, services.NopBroadcaster{}, services.Presence, nil)

	app := iris.New()
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} { return new(utils.AccessToken) })

	chat := app.Party("/api/chat", accessTokenVerifierMiddleware)
	{
		chat.Get("/rooms", ListRooms)
		chat.Post("/rooms", CreateRoom)
		chat.Get("/rooms/{id:uint}/messages", ListMessages)
		chat.Post("/rooms/{id:uint}/messages", CreateMessage)
		chat.Post("/rooms/{id:uint}/read", MarkRoomRead)
		chat.Get("/unread", AggregateUnread)
	}

	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}
	return app, db
}

func signChatTestToken(userID uint) string {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 0)
	token, _ := signer.Sign(utils.AccessToken{ID: userID, Role: "user"})
	return string(token)
}

func seedChatFixtures(t *testing.T, db *gorm.DB) (buyer, seller models.User, property models.Property) {
	t.Helper()
	buyer = models.User{FirstName: "Awa", LastName: "Diop", Email: "awa@example.com"}
	seller = models.User{FirstName: "Moussa", LastName: "Ba", Email: "moussa@example.com"}
	if err := db.Create(&buyer).Error; err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	property = models.Property{HostID: seller.ID, Title: "Villa Nouakchott", City: "Nouakchott"}
	if err := db.Create(&property).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return buyer, seller, property
}

func doJSON(app *iris.Application, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func TestChatRoutesRequireToken(t *testing.T) {
	app, _ := buildChatTestApp(t)

	resp := doJSON(app, http.MethodGet, "/api/chat/rooms", "", nil)
	if resp.Code == http.StatusOK {
		t.Fatalf("expected non-200 without token, got %d", resp.Code)
	}
}

func TestCreateRoomAndSendMessage(t *testing.T) {
	app, db := buildChatTestApp(t)
	buyer, seller, property := seedChatFixtures(t, db)

	buyerToken := signChatTestToken(buyer.ID)

	resp := doJSON(app, http.MethodPost, "/api/chat/rooms", buyerToken, iris.Map{
		"propertyID": property.ID,
		"sellerID":   seller.ID,
		"message":    "is the villa still available?",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 creating room, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		Room models.ChatRoom `json:"room"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if created.Room.ID == 0 {
		t.Fatalf("expected persisted room, got %+v", created.Room)
	}

	path := fmt.Sprintf("/api/chat/rooms/%d/messages", created.Room.ID)
	resp2 := doJSON(app, http.MethodPost, path, buyerToken, iris.Map{"body": "second message"})
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected 200 sending message, got %d: %s", resp2.Code, resp2.Body.String())
	}

	// The seller sees both messages, oldest first.
	sellerToken := signChatTestToken(seller.ID)
	resp3 := doJSON(app, http.MethodGet, path, sellerToken, nil)
	if resp3.Code != http.StatusOK {
		t.Fatalf("expected 200 listing messages, got %d", resp3.Code)
	}
	var listed struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(resp3.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(listed.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(listed.Messages))
	}
	if listed.Messages[0].Body != "is the villa still available?" {
		t.Fatalf("unexpected first message: %q", listed.Messages[0].Body)
	}
}

func TestNonParticipantGetsForbidden(t *testing.T) {
	app, db := buildChatTestApp(t)
	buyer, seller, property := seedChatFixtures(t, db)

	stranger := models.User{FirstName: "Oumar", LastName: "Sy", Email: "oumar@example.com"}
	if err := db.Create(&stranger).Error; err != nil {
		t.Fatalf("seed stranger: %v", err)
	}

	room, err := services.Chat.OpenOrCreateRoom(buyer.ID, seller.ID, property.ID)
	if err != nil {
		t.Fatalf("open room: %v", err)
	}

	path := fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID)
	resp := doJSON(app, http.MethodGet, path, signChatTestToken(stranger.ID), nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-participant, got %d", resp.Code)
	}

	resp2 := doJSON(app, http.MethodPost, path, signChatTestToken(stranger.ID), iris.Map{"body": "let me in"})
	if resp2.Code != http.StatusForbidden {
		t.Fatalf("expected 403 posting as non-participant, got %d", resp2.Code)
	}
}

func TestEmptyMessageBodyRejected(t *testing.T) {
	app, db := buildChatTestApp(t)
	buyer, seller, property := seedChatFixtures(t, db)

	room, err := services.Chat.OpenOrCreateRoom(buyer.ID, seller.ID, property.ID)
	if err != nil {
		t.Fatalf("open room: %v", err)
	}

	path := fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID)
	resp := doJSON(app, http.MethodPost, path, signChatTestToken(buyer.ID), iris.Map{"body": ""})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.Code)
	}
}

func TestMarkRoomReadAndAggregate(t *testing.T) {
	app, db := buildChatTestApp(t)
	buyer, seller, property := seedChatFixtures(t, db)

	room, err := services.Chat.OpenOrCreateRoom(buyer.ID, seller.ID, property.ID)
	if err != nil {
		t.Fatalf("open room: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := services.Chat.AppendMessage(room.ID, buyer.ID, "hello"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sellerToken := signChatTestToken(seller.ID)

	resp := doJSON(app, http.MethodGet, "/api/chat/unread", sellerToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for aggregate unread, got %d", resp.Code)
	}
	var agg struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	json.Unmarshal(resp.Body.Bytes(), &agg)
	if agg.UnreadCount != 3 {
		t.Fatalf("expected 3 unread, got %d", agg.UnreadCount)
	}

	readPath := fmt.Sprintf("/api/chat/rooms/%d/read", room.ID)
	resp2 := doJSON(app, http.MethodPost, readPath, sellerToken, nil)
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected 200 marking read, got %d", resp2.Code)
	}

	resp3 := doJSON(app, http.MethodGet, "/api/chat/unread", sellerToken, nil)
	json.Unmarshal(resp3.Body.Bytes(), &agg)
	if agg.UnreadCount != 0 {
		t.Fatalf("expected 0 unread after mark, got %d", agg.UnreadCount)
	}
}
