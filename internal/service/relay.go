package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/dto"
)

// Relay scopes.
const (
	relayScopeUser = "user"
	relayScopeRoom = "room"
)

type relayEnvelope struct {
	Source string    `json:"source"`
	Scope  string    `json:"scope"`
	Target string    `json:"target"`
	Event  dto.Event `json:"event"`
	SentAt time.Time `json:"sent_at"`
}

// Relay fans delivered events out to sibling nodes over Redis pub/sub and
// NATS, filtering its own publications by node ID on the way back in. Both
// transports are optional; with neither configured the relay is inert.
type Relay struct {
	redis   *redis.Client
	channel string
	nats    *nats.Conn
	subject string
	nodeID  string
	hub     *Hub
	log     zerolog.Logger
}

// NewRelay wires cross-node delivery for the hub. channelBase names the Redis
// channel and, dot-separated, the NATS subject.
func NewRelay(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, hub *Hub, logger zerolog.Logger) *Relay {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	relay := &Relay{
		redis:   redisClient,
		channel: channel,
		nats:    natsConn,
		subject: subject,
		nodeID:  uuid.NewString(),
		hub:     hub,
		log:     logger.With().Str("component", "event_relay").Logger(),
	}
	hub.AttachRelay(relay)
	return relay
}

// Start launches the consumer loops. Safe to call with no transports wired.
func (r *Relay) Start(ctx context.Context) {
	if r.redis != nil && r.channel != "" {
		go r.consumeRedis(ctx)
	}
	if r.nats != nil && r.subject != "" {
		go r.consumeNATS(ctx)
	}
}

// PublishToUser forwards a user-scoped delivery to sibling nodes.
func (r *Relay) PublishToUser(username string, event dto.Event) {
	r.publish(relayScopeUser, username, event)
}

// PublishToRoom forwards a room-scoped delivery to sibling nodes.
func (r *Relay) PublishToRoom(room string, event dto.Event) {
	r.publish(relayScopeRoom, room, event)
}

func (r *Relay) publish(scope, target string, event dto.Event) {
	if (r.redis == nil || r.channel == "") && (r.nats == nil || r.subject == "") {
		return
	}

	envelope := relayEnvelope{
		Source: r.nodeID,
		Scope:  scope,
		Target: target,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to marshal relay envelope")
		return
	}

	if r.redis != nil && r.channel != "" {
		if err := r.redis.Publish(context.Background(), r.channel, payload).Err(); err != nil {
			r.log.Warn().Err(err).Msg("failed to publish relay event to redis")
		}
	}

	if r.nats != nil && r.subject != "" {
		if err := r.nats.Publish(r.subject, payload); err != nil {
			r.log.Warn().Err(err).Msg("failed to publish relay event to nats")
		}
	}
}

func (r *Relay) consumeRedis(ctx context.Context) {
	pubsub := r.redis.Subscribe(ctx, r.channel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error().Err(err).Msg("relay redis subscription closed")
			return
		}
		r.handle([]byte(msg.Payload))
	}
}

func (r *Relay) consumeNATS(ctx context.Context) {
	sub, err := r.nats.QueueSubscribe(r.subject, "gchat-events", func(msg *nats.Msg) {
		r.handle(msg.Data)
	})
	if err != nil {
		r.log.Error().Err(err).Msg("failed to subscribe to nats relay subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.log.Warn().Err(err).Msg("failed to drain relay nats subscription")
		}
	}()
}

func (r *Relay) handle(data []byte) {
	var envelope relayEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		r.log.Warn().Err(err).Msg("invalid relay envelope")
		return
	}

	if envelope.Source == r.nodeID {
		return
	}

	switch envelope.Scope {
	case relayScopeUser:
		r.hub.deliverToUser(envelope.Target, envelope.Event)
	case relayScopeRoom:
		r.hub.deliverToRoom(envelope.Target, envelope.Event, nil)
	default:
		r.log.Warn().Str("scope", envelope.Scope).Msg("unknown relay scope")
	}
}
