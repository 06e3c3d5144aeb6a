package service

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Discard,
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

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		Avatar:       "default.jpg",
		StarsBalance: 100,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func befriend(t *testing.T, db *gorm.DB, a, b models.User) {
	t.Helper()

	require.NoError(t, db.Create(&models.Friendship{UserID: a.ID, FriendID: b.ID}).Error)
	require.NoError(t, db.Create(&models.Friendship{UserID: b.ID, FriendID: a.ID}).Error)
}

type sinkRecord struct {
	target string
	room   string
	event  dto.Event
}

// captureSink records deliveries instead of pushing them to live sessions.
type captureSink struct {
	mu      sync.Mutex
	records []sinkRecord
}

func (s *captureSink) SendToUser(username string, event dto.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{target: username, event: event})
}

func (s *captureSink) SendToRoom(room string, event dto.Event, _ *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{room: room, event: event})
}

func (s *captureSink) eventsFor(username string) []dto.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []dto.Event
	for _, record := range s.records {
		if record.target == username {
			events = append(events, record.event)
		}
	}
	return events
}

func (s *captureSink) hasEvent(username, eventType string) bool {
	for _, event := range s.eventsFor(username) {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func countNotifications(t *testing.T, db *gorm.DB, recipientID uint, kind string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", recipientID, kind).
		Count(&count).Error)
	return count
}
