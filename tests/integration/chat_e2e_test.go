package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gchat-dev/gchat-api/internal/config"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/handler"
	"github.com/gchat-dev/gchat-api/internal/middleware"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
	"github.com/gchat-dev/gchat-api/internal/router"
	"github.com/gchat-dev/gchat-api/internal/service"
)

const e2eSecret = "e2e-test-secret"

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type memoryStorage struct {
	uploads int
}

func (s *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	s.uploads++
	return "https://cdn.example.com/" + name, nil
}

type testServer struct {
	app     *fiber.App
	storage *memoryStorage
}

// newTestServer wires the full HTTP stack against an in-memory database. The
// websocket dispatcher stays out since app.Test cannot upgrade connections.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Friendship{},
		&models.FriendRequest{},
		&models.BlockedUser{},
		&models.MusicHistoryEntry{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.Notification{},
		&models.Gift{},
		&models.UserGift{},
		&models.GiftTransaction{},
		&models.CallLog{},
		&models.UploadRecord{},
	))

	users := repository.NewUserRepository(db)
	rooms := repository.NewRoomRepository(db)
	music := repository.NewMusicHistoryRepository(db)
	notifications := repository.NewNotificationRepository(db)
	gifts := repository.NewGiftRepository(db)
	uploads := repository.NewUploadRepository(db)

	nop := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	hub := service.NewHub(nop)
	notificationSvc := service.NewNotificationService(notifications, hub, nop)
	userSvc := service.NewUserService(users, music, notificationSvc, hub, validate, nop)
	roomSvc := service.NewRoomService(rooms, users, notificationSvc, validate, nop)
	giftSvc := service.NewGiftService(gifts, users, notificationSvc, hub, validate, nop)
	authSvc := service.NewAuthService(users, validate, e2eSecret, time.Hour, 100, nop)

	require.NoError(t, giftSvc.Seed(context.Background()))

	storage := &memoryStorage{}
	uploadSvc := service.NewUploadService(storage, uploads, 1, nop)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "GChat API", AppEnv: "test"}, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authSvc, nop),
		ProfileHandler:      handler.NewProfileHandler(userSvc, hub, nop),
		RoomHandler:         handler.NewRoomHandler(roomSvc, hub, nop),
		GiftHandler:         handler.NewGiftHandler(giftSvc, nop),
		NotificationHandler: handler.NewNotificationHandler(notificationSvc, nop),
		UploadHandler:       handler.NewUploadHandler(uploadSvc, nop),
		JWTMiddleware:       middleware.JWTProtected(e2eSecret),
	})

	return &testServer{app: app, storage: storage}
}

func (s *testServer) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()

	defer resp.Body.Close()
	var payload envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func (s *testServer) login(t *testing.T, username string) dto.AuthResponse {
	t.Helper()

	resp := s.request(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{
		Username: username,
		Password: "password-" + username,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decode[dto.AuthResponse](t, resp)
	require.True(t, payload.Success)
	require.NotEmpty(t, payload.Data.Token)
	return payload.Data
}

func TestLoginRegistersAndAuthenticates(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.login(t, "alice")
	require.Equal(t, "alice", alice.Username)
	require.NotZero(t, alice.UserID)

	// Same credentials log the existing account back in.
	again := srv.login(t, "alice")
	require.Equal(t, alice.UserID, again.UserID)

	// Wrong password is rejected, not re-registered.
	resp := srv.request(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{
		Username: "alice",
		Password: "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.request(t, http.MethodGet, "/api/settings", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodGet, "/api/rooms", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestProfileAndSettingsFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	bob := srv.login(t, "bob")

	status := "listening to records"
	resp := srv.request(t, http.MethodPut, "/api/profile", alice.Token, dto.ProfileUpdateRequest{Status: &status})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Bob sees the new status but never the stars balance.
	resp = srv.request(t, http.MethodGet, "/api/users/alice/profile", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[dto.ProfileResponse](t, resp)
	require.Equal(t, status, profile.Data.Status)
	require.Zero(t, profile.Data.StarsBalance)
	require.Equal(t, service.FriendStatusNone, profile.Data.FriendStatus)

	// The owner's view keeps the balance.
	resp = srv.request(t, http.MethodGet, "/api/users/alice/profile", alice.Token, nil)
	own := decode[dto.ProfileResponse](t, resp)
	require.Equal(t, int64(100), own.Data.StarsBalance)

	resp = srv.request(t, http.MethodGet, "/api/settings", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settings := decode[dto.SettingsResponse](t, resp)
	require.Equal(t, "dark", settings.Data.Theme)

	theme := "light"
	resp = srv.request(t, http.MethodPut, "/api/settings", alice.Token, dto.SettingsUpdateRequest{Theme: &theme})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[dto.SettingsResponse](t, resp)
	require.Equal(t, "light", updated.Data.Theme)

	resp = srv.request(t, http.MethodGet, "/api/users/search?q=bo", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := decode[[]dto.SearchResult](t, resp)
	require.Len(t, results.Data, 1)
	require.Equal(t, "bob", results.Data[0].Username)
}

func TestBlockFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	srv.login(t, "bob")

	resp := srv.request(t, http.MethodPost, "/api/blocks/bob", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodGet, "/api/blocks", alice.Token, nil)
	blocked := decode[[]dto.UserSummary](t, resp)
	require.Len(t, blocked.Data, 1)
	require.Equal(t, "bob", blocked.Data[0].Username)

	resp = srv.request(t, http.MethodDelete, "/api/blocks/bob", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodGet, "/api/blocks", alice.Token, nil)
	blocked = decode[[]dto.UserSummary](t, resp)
	require.Empty(t, blocked.Data)
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	bob := srv.login(t, "bob")

	resp := srv.request(t, http.MethodPost, "/api/rooms", alice.Token, dto.CreateRoomRequest{
		Name:      "Late Night Lounge",
		IsPrivate: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[dto.RoomSummary](t, resp)
	require.Equal(t, "late-night-lounge", created.Data.Name)
	require.Equal(t, "Late Night Lounge", created.Data.DisplayName)
	require.True(t, created.Data.IsPrivate)

	resp = srv.request(t, http.MethodGet, "/api/rooms", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rooms := decode[[]dto.RoomSummary](t, resp)
	names := make([]string, 0, len(rooms.Data))
	for _, room := range rooms.Data {
		names = append(names, room.Name)
	}
	require.Contains(t, names, "late-night-lounge")

	resp = srv.request(t, http.MethodGet, "/api/rooms/late-night-lounge/info", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[dto.RoomInfoResponse](t, resp)
	require.True(t, info.Data.CanInvite)
	require.Len(t, info.Data.Members, 1)

	// Non-members cannot inspect a private room.
	resp = srv.request(t, http.MethodGet, "/api/rooms/late-night-lounge/info", bob.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodGet, "/api/rooms/late-night-lounge/invite-suggestions", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodGet, "/api/rooms/no-such-room/info", alice.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestMusicHistoryFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")

	resp := srv.request(t, http.MethodPost, "/api/music", alice.Token, dto.MusicEntryCreateRequest{
		Title:  "Blue in Green",
		Artist: "Miles Davis",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[dto.MusicEntryResponse](t, resp)
	require.Equal(t, "Blue in Green", entry.Data.Title)

	resp = srv.request(t, http.MethodGet, "/api/music", alice.Token, nil)
	history := decode[[]dto.MusicEntryResponse](t, resp)
	require.Len(t, history.Data, 1)

	resp = srv.request(t, http.MethodDelete, "/api/music/"+strconv.FormatUint(uint64(entry.Data.ID), 10), alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodGet, "/api/music", alice.Token, nil)
	history = decode[[]dto.MusicEntryResponse](t, resp)
	require.Empty(t, history.Data)
}

func TestGiftCatalogAndNotifications(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")

	resp := srv.request(t, http.MethodGet, "/api/gifts", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	catalog := decode[[]dto.GiftView](t, resp)
	require.Len(t, catalog.Data, 5)

	resp = srv.request(t, http.MethodGet, "/api/gifts/mine", alice.Token, nil)
	owned := decode[[]dto.UserGiftView](t, resp)
	require.Empty(t, owned.Data)

	resp = srv.request(t, http.MethodGet, "/api/gifts/market", alice.Token, nil)
	market := decode[[]dto.UserGiftView](t, resp)
	require.Empty(t, market.Data)

	resp = srv.request(t, http.MethodGet, "/api/notifications", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = srv.request(t, http.MethodPost, "/api/notifications/read-all", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUploadOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "avatar.png")
	require.NoError(t, err)
	_, err = part.Write(append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice.Token)

	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decode[dto.UploadResponse](t, resp)
	require.Equal(t, "https://cdn.example.com/avatar.png", payload.Data.URL)
	require.Equal(t, 1, srv.storage.uploads)
}
