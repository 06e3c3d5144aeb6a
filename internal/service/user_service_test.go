package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

type userServiceFixture struct {
	db    *gorm.DB
	svc   UserService
	users repository.UserRepository
	sink  *captureSink
}

func newUserServiceFixture(t *testing.T) *userServiceFixture {
	t.Helper()

	db := newTestDB(t)
	sink := &captureSink{}
	users := repository.NewUserRepository(db)
	music := repository.NewMusicHistoryRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), sink, testLogger())
	svc := NewUserService(users, music, notifications, sink, testValidator(), testLogger())

	return &userServiceFixture{db: db, svc: svc, users: users, sink: sink}
}

func TestFriendRequestLifecycle(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "bob"))

	status, err := f.svc.FriendStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, FriendStatusRequestSent, status)

	status, err = f.svc.FriendStatus(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, FriendStatusRequestReceived, status)

	require.Equal(t, int64(1), countNotifications(t, f.db, bob.ID, models.NotifFriendRequest))
	require.True(t, f.sink.hasEvent("bob", dto.EventFriendRequestUpdate))

	require.NoError(t, f.svc.RespondFriendRequest(ctx, bob.ID, bob.Username, "alice", "accept"))

	friends, err := f.users.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, friends)

	require.Equal(t, int64(1), countNotifications(t, f.db, alice.ID, models.NotifFriendAccepted))
	require.True(t, f.sink.hasEvent("alice", dto.EventFriendsList))
	require.True(t, f.sink.hasEvent("bob", dto.EventFriendsList))
}

func TestFriendRequestGuards(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	createTestUser(t, f.db, "bob")

	err := f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "alice")
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	err = f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "nobody")
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	require.NoError(t, f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "bob"))
	err = f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "bob")
	require.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestFriendRequestRejectLeavesNoFriendship(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "bob"))
	require.NoError(t, f.svc.RespondFriendRequest(ctx, bob.ID, bob.Username, "alice", "reject"))

	friends, err := f.users.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, friends)

	// The rejected request no longer counts as pending, so a new one is allowed.
	require.NoError(t, f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "bob"))
}

func TestCancelFriendRequest(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.SendFriendRequest(ctx, alice.ID, alice.Username, "bob"))
	require.NoError(t, f.svc.CancelFriendRequest(ctx, alice.ID, alice.Username, "bob"))

	status, err := f.svc.FriendStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, FriendStatusNone, status)
}

func TestRemoveFriendRequiresFriendship(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	err := f.svc.RemoveFriend(ctx, alice.ID, "bob")
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	befriend(t, f.db, alice, bob)
	require.NoError(t, f.svc.RemoveFriend(ctx, alice.ID, "bob"))

	friends, err := f.users.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, friends)
}

func TestBlockDissolvesRelationAndPreventsRequests(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	befriend(t, f.db, alice, bob)

	require.NoError(t, f.svc.Block(ctx, alice.ID, "bob"))

	friends, err := f.users.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, friends)

	err = f.svc.SendFriendRequest(ctx, bob.ID, bob.Username, "alice")
	require.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	require.NoError(t, f.svc.Unblock(ctx, alice.ID, "bob"))
	require.NoError(t, f.svc.SendFriendRequest(ctx, bob.ID, bob.Username, "alice"))
}

func TestProfileHidesBalanceFromOthers(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	own, err := f.svc.Profile(ctx, alice.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(100), own.StarsBalance)

	other, err := f.svc.Profile(ctx, bob.ID, "alice")
	require.NoError(t, err)
	require.Zero(t, other.StarsBalance)
	require.Equal(t, FriendStatusNone, other.FriendStatus)
}

func TestUpdateProfileSanitizesMarkup(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")

	status := `<script>alert("x")</script>listening to music`
	updated, err := f.svc.UpdateProfile(ctx, alice.ID, dto.ProfileUpdateRequest{Status: &status})
	require.NoError(t, err)
	require.Equal(t, "listening to music", updated.Status)
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")

	settings, err := f.svc.Settings(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "dark", settings.Theme)
	require.True(t, settings.NotificationsEnabled)

	theme := "light"
	sound := false
	settings, err = f.svc.UpdateSettings(ctx, alice.ID, dto.SettingsUpdateRequest{Theme: &theme, SoundEnabled: &sound})
	require.NoError(t, err)
	require.Equal(t, "light", settings.Theme)
	require.False(t, settings.SoundEnabled)

	bad := "neon"
	_, err = f.svc.UpdateSettings(ctx, alice.ID, dto.SettingsUpdateRequest{Theme: &bad})
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestSearchAnnotatesFriendStatus(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	createTestUser(t, f.db, "bobby")
	befriend(t, f.db, alice, bob)

	results, err := f.svc.Search(ctx, alice.ID, "bob")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "bob", results[0].Username)
	require.Equal(t, FriendStatusFriends, results[0].FriendStatus)
	require.Equal(t, FriendStatusNone, results[1].FriendStatus)

	empty, err := f.svc.Search(ctx, alice.ID, "   ")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMusicHistoryCapEvictsOldest(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")

	for i := 0; i < musicHistoryCap; i++ {
		_, err := f.svc.AddMusicEntry(ctx, alice.ID, dto.MusicEntryCreateRequest{Title: fmt.Sprintf("track %03d", i)})
		require.NoError(t, err)
	}

	_, err := f.svc.AddMusicEntry(ctx, alice.ID, dto.MusicEntryCreateRequest{Title: "one past the cap"})
	require.NoError(t, err)

	entries, err := f.svc.MusicHistory(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, musicHistoryCap)
}

func TestDeleteMusicEntryOwnership(t *testing.T) {
	f := newUserServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	entry, err := f.svc.AddMusicEntry(ctx, alice.ID, dto.MusicEntryCreateRequest{Title: "midnight city"})
	require.NoError(t, err)

	err = f.svc.DeleteMusicEntry(ctx, bob.ID, entry.ID)
	require.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	require.NoError(t, f.svc.DeleteMusicEntry(ctx, alice.ID, entry.ID))
}
