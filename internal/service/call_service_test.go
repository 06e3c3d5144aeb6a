package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

type callServiceFixture struct {
	db    *gorm.DB
	svc   CallService
	calls repository.CallRepository
	sink  *captureSink
}

func newCallServiceFixture(t *testing.T) *callServiceFixture {
	t.Helper()

	db := newTestDB(t)
	sink := &captureSink{}
	calls := repository.NewCallRepository(db)
	users := repository.NewUserRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), sink, testLogger())
	svc := NewCallService(calls, users, notifications, sink, testLogger())

	return &callServiceFixture{db: db, svc: svc, calls: calls, sink: sink}
}

func TestStartCallRingsCallee(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.Start(ctx, alice, dto.StartCallRequest{To: "bob", CallType: models.CallTypeVideo}))

	require.True(t, f.sink.hasEvent("bob", dto.EventIncomingCall))

	call, err := f.calls.FindOpen(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.CallStatusPending, call.Status)
	require.Equal(t, models.CallTypeVideo, call.CallType)
}

func TestStartCallGuards(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")

	err := f.svc.Start(ctx, alice, dto.StartCallRequest{To: "alice"})
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	err = f.svc.Start(ctx, alice, dto.StartCallRequest{To: "nobody"})
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestSignalingRelaysOpaquePayloads(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.RelayOffer(ctx, alice, dto.RTCOfferRequest{To: "bob", SDP: "v=0 offer", CallType: models.CallTypeAudio}))
	require.NoError(t, f.svc.RelayICECandidate(ctx, alice, dto.RTCIceCandidateRequest{To: "bob", Candidate: map[string]interface{}{"candidate": "udp"}}))

	require.True(t, f.sink.hasEvent("bob", dto.EventRTCOffer))
	require.True(t, f.sink.hasEvent("bob", dto.EventRTCIceCandidate))
}

func TestAnswerMarksCallActive(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.Start(ctx, alice, dto.StartCallRequest{To: "bob"}))
	require.NoError(t, f.svc.RelayAnswer(ctx, bob, dto.RTCAnswerRequest{To: "alice", SDP: "v=0 answer"}))

	require.True(t, f.sink.hasEvent("alice", dto.EventRTCAnswer))

	call, err := f.calls.FindOpen(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.CallStatusActive, call.Status)
}

func TestEndClosesCallAndNotifiesPeer(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.Start(ctx, alice, dto.StartCallRequest{To: "bob"}))
	require.NoError(t, f.svc.RelayAnswer(ctx, bob, dto.RTCAnswerRequest{To: "alice", SDP: "v=0 answer"}))
	require.NoError(t, f.svc.End(ctx, alice, dto.EndCallRequest{To: "bob"}))

	require.True(t, f.sink.hasEvent("bob", dto.EventCallEnded))

	_, err := f.calls.FindOpen(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMissedCallNotifiesTheCallee(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	bob := createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.Start(ctx, alice, dto.StartCallRequest{To: "bob"}))

	// The callee never answers and dismisses the ring, which records the
	// missed call on the callee's side.
	require.NoError(t, f.svc.End(ctx, bob, dto.EndCallRequest{To: "alice", Status: models.CallStatusMissed}))

	require.Equal(t, int64(1), countNotifications(t, f.db, bob.ID, models.NotifCallMissed))
	require.Equal(t, int64(0), countNotifications(t, f.db, alice.ID, models.NotifCallMissed))
}

func TestEndWithoutOpenCallStillInformsPeer(t *testing.T) {
	f := newCallServiceFixture(t)
	ctx := context.Background()
	alice := createTestUser(t, f.db, "alice")
	createTestUser(t, f.db, "bob")

	require.NoError(t, f.svc.End(ctx, alice, dto.EndCallRequest{To: "bob"}))
	require.True(t, f.sink.hasEvent("bob", dto.EventCallEnded))
}
