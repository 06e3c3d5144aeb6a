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

type messageServiceFixture struct {
	db      *gorm.DB
	svc     MessageService
	roomSvc RoomService
}

func newMessageServiceFixture(t *testing.T) *messageServiceFixture {
	t.Helper()

	db := newTestDB(t)
	sink := &captureSink{}
	rooms := repository.NewRoomRepository(db)
	users := repository.NewUserRepository(db)
	messages := repository.NewMessageRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), sink, testLogger())
	roomSvc := NewRoomService(rooms, users, notifications, testValidator(), testLogger())
	svc := NewMessageService(messages, rooms, roomSvc, testValidator(), testLogger())

	return &messageServiceFixture{db: db, svc: svc, roomSvc: roomSvc}
}

func (f *messageServiceFixture) publicRoom(t *testing.T, creator models.User, name string) dto.RoomSummary {
	t.Helper()

	room, err := f.roomSvc.CreateGroup(context.Background(), creator.ID, dto.CreateRoomRequest{Name: name})
	require.NoError(t, err)
	return room
}

func TestPostSanitizesMessage(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	room := f.publicRoom(t, alice, "general")

	_, resp, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{
		Room:    room.Name,
		Message: `hello <script>alert("x")</script>world`,
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Message)
	require.Equal(t, "alice", resp.Username)

	_, _, err = f.svc.Post(ctx, alice, dto.SendMessageRequest{
		Room:    room.Name,
		Message: "<script>only markup</script>",
	})
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestPostAllowsAttachmentOnlyMessage(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	room := f.publicRoom(t, alice, "general")

	_, resp, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{
		Room:       room.Name,
		Attachment: "uploads/photo.png",
	})
	require.NoError(t, err)
	require.Empty(t, resp.Message)
	require.Equal(t, "uploads/photo.png", resp.AttachmentPath)
}

func TestPostToDirectRoomByUsername(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	befriend(t, f.db, alice, bob)

	room, resp, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: "bob", Message: "hey"})
	require.NoError(t, err)
	require.Equal(t, DirectRoomName(alice.ID, bob.ID), room.Name)
	require.Equal(t, room.Name, resp.Room)
}

func TestPostAttachesReplyPreview(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	room := f.publicRoom(t, alice, "general")

	_, original, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: room.Name, Message: "first"})
	require.NoError(t, err)

	_, reply, err := f.svc.Post(ctx, bob, dto.SendMessageRequest{
		Room:    room.Name,
		Message: "answering",
		ReplyTo: &original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.RepliedTo)
	require.Equal(t, "alice", reply.RepliedTo.Username)
	require.Equal(t, "first", reply.RepliedTo.Message)
}

func TestPostIgnoresCrossRoomReply(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	general := f.publicRoom(t, alice, "general")
	random := f.publicRoom(t, alice, "random")

	_, original, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: general.Name, Message: "over here"})
	require.NoError(t, err)

	_, reply, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{
		Room:    random.Name,
		Message: "elsewhere",
		ReplyTo: &original.ID,
	})
	require.NoError(t, err)
	require.Nil(t, reply.RepliedTo)
}

func TestEditEnforcesOwnership(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	room := f.publicRoom(t, alice, "general")

	_, posted, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: room.Name, Message: "draft"})
	require.NoError(t, err)

	_, _, err = f.svc.Edit(ctx, bob.ID, dto.EditMessageRequest{MessageID: posted.ID, NewText: "hijacked"})
	require.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	editedRoom, payload, err := f.svc.Edit(ctx, alice.ID, dto.EditMessageRequest{MessageID: posted.ID, NewText: "final"})
	require.NoError(t, err)
	require.Equal(t, room.Name, editedRoom.Name)
	require.Equal(t, "final", payload.NewText)
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	room := f.publicRoom(t, alice, "general")

	_, posted, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: room.Name, Message: "oops"})
	require.NoError(t, err)

	_, _, err = f.svc.Delete(ctx, bob.ID, dto.DeleteMessageRequest{MessageID: posted.ID})
	require.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	_, payload, err := f.svc.Delete(ctx, alice.ID, dto.DeleteMessageRequest{MessageID: posted.ID})
	require.NoError(t, err)
	require.Equal(t, posted.ID, payload.MessageID)

	_, _, err = f.svc.Delete(ctx, alice.ID, dto.DeleteMessageRequest{MessageID: posted.ID})
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestHistoryReturnsChronologicalPage(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	room := f.publicRoom(t, alice, "general")

	for i := 1; i <= 5; i++ {
		_, _, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{
			Room:    room.Name,
			Message: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	payload, err := f.svc.History(ctx, alice, dto.HistoryRequest{Room: room.Name, Limit: 3})
	require.NoError(t, err)
	require.Equal(t, room.Name, payload.Room)
	require.Len(t, payload.History, 3)
	require.Equal(t, "message 3", payload.History[0].Message)
	require.Equal(t, "message 5", payload.History[2].Message)
}

func TestHistoryDropsPreviewForDeletedReplyTarget(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	room := f.publicRoom(t, alice, "general")

	_, original, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: room.Name, Message: "first"})
	require.NoError(t, err)
	_, reply, err := f.svc.Post(ctx, bob, dto.SendMessageRequest{
		Room:    room.Name,
		Message: "answering",
		ReplyTo: &original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.RepliedTo)

	_, _, err = f.svc.Delete(ctx, alice.ID, dto.DeleteMessageRequest{MessageID: original.ID})
	require.NoError(t, err)

	payload, err := f.svc.History(ctx, bob, dto.HistoryRequest{Room: room.Name, Limit: 10})
	require.NoError(t, err)
	require.Len(t, payload.History, 1)
	require.Equal(t, reply.ID, payload.History[0].ID)
	require.Nil(t, payload.History[0].RepliedTo)
}

func TestHistoryForDirectChatUsesCanonicalRoom(t *testing.T) {
	f := newMessageServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")
	befriend(t, f.db, alice, bob)

	_, _, err := f.svc.Post(ctx, alice, dto.SendMessageRequest{Room: "bob", Message: "ping"})
	require.NoError(t, err)

	payload, err := f.svc.History(ctx, bob, dto.HistoryRequest{Room: "alice", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, DirectRoomName(alice.ID, bob.ID), payload.Room)
	require.Len(t, payload.History, 1)
	require.Equal(t, "ping", payload.History[0].Message)
}
