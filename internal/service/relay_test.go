package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gchat-dev/gchat-api/internal/dto"
)

func newRelayNode(t *testing.T, addr string) (*Hub, *Relay) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(testLogger())
	relay := NewRelay(client, nil, "gchat:test", hub, testLogger())
	return hub, relay
}

func TestRelayDeliversAcrossNodes(t *testing.T) {
	server := miniredis.RunT(t)

	hubA, relayA := newRelayNode(t, server.Addr())
	hubB, relayB := newRelayNode(t, server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relayA.Start(ctx)
	relayB.Start(ctx)

	// Alice is connected to node B only; node A publishes her event.
	alice := hubB.NewSession(nil, 1, "alice")
	hubB.Register(alice)

	require.Eventually(t, func() bool {
		hubA.SendToUser("alice", dto.Event{Type: dto.EventNotificationsList})
		return len(drainSession(alice)) > 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRelayDeliversRoomEventsAcrossNodes(t *testing.T) {
	server := miniredis.RunT(t)

	hubA, relayA := newRelayNode(t, server.Addr())
	hubB, relayB := newRelayNode(t, server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relayA.Start(ctx)
	relayB.Start(ctx)

	bob := hubB.NewSession(nil, 2, "bob")
	hubB.Register(bob)
	hubB.JoinRoom(bob, "general")

	require.Eventually(t, func() bool {
		hubA.SendToRoom("general", dto.Event{Type: dto.EventNewMessage}, nil)
		return len(drainSession(bob)) > 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRelayIgnoresItsOwnEnvelopes(t *testing.T) {
	server := miniredis.RunT(t)

	hub, relay := newRelayNode(t, server.Addr())

	alice := hub.NewSession(nil, 1, "alice")
	hub.Register(alice)

	payload, err := json.Marshal(relayEnvelope{
		Source: relay.nodeID,
		Scope:  relayScopeUser,
		Target: "alice",
		Event:  dto.Event{Type: dto.EventNotificationsList},
	})
	require.NoError(t, err)
	relay.handle(payload)

	require.Empty(t, drainSession(alice))
}

func TestRelayHandlesForeignEnvelope(t *testing.T) {
	server := miniredis.RunT(t)

	hub, relay := newRelayNode(t, server.Addr())

	alice := hub.NewSession(nil, 1, "alice")
	hub.Register(alice)

	payload, err := json.Marshal(relayEnvelope{
		Source: "some-other-node",
		Scope:  relayScopeUser,
		Target: "alice",
		Event:  dto.Event{Type: dto.EventNotificationsList},
	})
	require.NoError(t, err)
	relay.handle(payload)

	require.Len(t, drainSession(alice), 1)

	// Garbage payloads and unknown scopes are dropped quietly.
	relay.handle([]byte("not json"))
	relay.handle([]byte(`{"source":"x","scope":"galaxy","target":"alice"}`))
	require.Empty(t, drainSession(alice))
}

func TestRelayWithoutTransportsIsInert(t *testing.T) {
	hub := NewHub(testLogger())
	relay := NewRelay(nil, nil, "", hub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay.Start(ctx)

	relay.PublishToUser("alice", dto.Event{Type: dto.EventNotificationsList})
	relay.PublishToRoom("general", dto.Event{Type: dto.EventNewMessage})
}
